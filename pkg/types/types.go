package types

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

// SignatureInfo is one entry returned when listing a program's signatures.
type SignatureInfo struct {
	Signature solana.Signature
	Slot      uint64
	BlockTime *time.Time
	Failed    bool
}

// BlockRef identifies a block together with its parent, used for ancestry checks.
type BlockRef struct {
	Slot       uint64
	Hash       solana.Hash
	ParentSlot uint64
	ParentHash solana.Hash
}

// Instruction is a single executed instruction, outer or inner.
type Instruction struct {
	ProgramID solana.PublicKey
	Accounts  []solana.PublicKey
	Data      []byte

	// OuterIndex is the index of the top level instruction this one belongs to.
	OuterIndex int
	// InnerIndex is -1 for top level instructions.
	InnerIndex int
}

// IsInner reports whether the instruction was a cross program invocation.
func (i Instruction) IsInner() bool {
	return i.InnerIndex >= 0
}

// RawTransaction is a fetched, undecoded transaction.
type RawTransaction struct {
	Signature solana.Signature
	Block     BlockRef
	BlockTime *time.Time
	Fee       uint64

	// Instructions are in execution order: each outer instruction followed by its inner ones.
	Instructions []Instruction
	LogMessages  []string

	Succeeded bool
}

// EventSource tells where a decoded event came from inside a transaction.
type EventSource string

const (
	SourceInstruction EventSource = "instruction"
	SourceLog         EventSource = "log"
)

// Discriminator is the 8 byte prefix selecting an instruction or event variant.
type Discriminator [8]byte

// DecodedEvent is the typed output of decoding a transaction.
type DecodedEvent struct {
	Signature     solana.Signature
	ProgramID     solana.PublicKey
	Slot          uint64
	BlockTime     *time.Time
	Kind          string
	Discriminator Discriminator
	Source        EventSource
	// Index is the emission order of the event within its transaction.
	Index   int
	Payload any

	// Accounts are the instruction accounts; empty for log events.
	Accounts []solana.PublicKey
	Fee      uint64
}

// DeliveryStatus is the processing state of a signature in the delivery ledger.
type DeliveryStatus string

const (
	StatusPending    DeliveryStatus = "pending"
	StatusCommitted  DeliveryStatus = "committed"
	StatusFailed     DeliveryStatus = "failed"
	StatusSuperseded DeliveryStatus = "superseded"
)

// Retryable reports whether a signature in this status may be delivered again.
func (s DeliveryStatus) Retryable() bool {
	return s == StatusFailed || s == StatusSuperseded
}

// DeliveryRecord is a durable row of the delivery ledger.
type DeliveryRecord struct {
	Signature   solana.Signature `meddler:"signature,signature"`
	ProgramID   solana.PublicKey `meddler:"program_id,pubkey"`
	Slot        uint64           `meddler:"slot"`
	Status      DeliveryStatus   `meddler:"status"`
	Attempts    int              `meddler:"attempts"`
	LastError   string           `meddler:"last_error"`
	CommittedAt int64            `meddler:"committed_at"`
	UpdatedAt   int64            `meddler:"updated_at"`
}

// SignatureCursor is the per program position in the upstream signature sequence.
type SignatureCursor struct {
	ProgramID solana.PublicKey `meddler:"program_id,pubkey"`
	Signature solana.Signature `meddler:"signature,signature"`
	Slot      uint64           `meddler:"slot"`
	BlockHash solana.Hash      `meddler:"block_hash,blockhash"`
	Version   uint64           `meddler:"version"`
	UpdatedAt int64            `meddler:"updated_at"`
}

// IsEmpty reports whether the cursor has never been advanced.
func (c SignatureCursor) IsEmpty() bool {
	return c.Signature == solana.Signature{}
}

// ReorgCheckpoint is a known good block in a program's checkpoint chain.
type ReorgCheckpoint struct {
	ProgramID  solana.PublicKey `meddler:"program_id,pubkey"`
	Slot       uint64           `meddler:"slot"`
	BlockHash  solana.Hash      `meddler:"block_hash,blockhash"`
	ParentSlot uint64           `meddler:"parent_slot"`
	ParentHash solana.Hash      `meddler:"parent_hash,blockhash"`
}

// Ref converts the checkpoint back into a BlockRef.
func (c ReorgCheckpoint) Ref() BlockRef {
	return BlockRef{
		Slot:       c.Slot,
		Hash:       c.BlockHash,
		ParentSlot: c.ParentSlot,
		ParentHash: c.ParentHash,
	}
}

// BackfillStatus is the state of a backfill range.
type BackfillStatus string

const (
	BackfillRunning BackfillStatus = "running"
	BackfillDone    BackfillStatus = "done"
	BackfillAborted BackfillStatus = "aborted"
)

// BackfillProgress is the range cursor of a backfill run.
// ID is derived from the program and the range bounds so a rerun of the same range resumes it.
type BackfillProgress struct {
	ID            string           `meddler:"id"`
	ProgramID     solana.PublicKey `meddler:"program_id,pubkey"`
	FromSlot      uint64           `meddler:"from_slot"`
	ToSlot        uint64           `meddler:"to_slot"`
	LastSignature solana.Signature `meddler:"last_signature,signature"`
	LastSlot      uint64           `meddler:"last_slot"`
	Processed     uint64           `meddler:"processed"`
	Status        BackfillStatus   `meddler:"status"`
	UpdatedAt     int64            `meddler:"updated_at"`
}

// BackfillRangeID returns the progress key of a backfill range.
func BackfillRangeID(program solana.PublicKey, fromSlot, toSlot uint64) string {
	return fmt.Sprintf("%s:%d-%d", program, fromSlot, toSlot)
}
