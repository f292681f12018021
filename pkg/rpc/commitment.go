package rpc

import "fmt"

// Commitment is the confirmation level requested from the upstream.
type Commitment string

const (
	// CommitmentFinalized is the highest level: the block was rooted by a supermajority
	CommitmentFinalized Commitment = "finalized"

	// CommitmentConfirmed means the block was voted on by a supermajority
	CommitmentConfirmed Commitment = "confirmed"

	// CommitmentProcessed means the node has processed the block (may be skipped later)
	CommitmentProcessed Commitment = "processed"
)

// String returns the string representation of Commitment.
func (c Commitment) String() string {
	return string(c)
}

// IsValid checks if the Commitment value is valid.
func (c Commitment) IsValid() bool {
	switch c {
	case CommitmentFinalized, CommitmentConfirmed, CommitmentProcessed:
		return true
	default:
		return false
	}
}

// ParseCommitment parses a string into a Commitment type.
func ParseCommitment(s string) (Commitment, error) {
	c := Commitment(s)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid commitment: %s (must be one of: finalized, confirmed, processed)", s)
	}
	return c, nil
}
