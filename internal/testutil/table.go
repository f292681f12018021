package testutil

import (
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/goran-ethernal/SolanaIndexor/pkg/decoder"
	"github.com/stretchr/testify/require"
)

// Deposit is the instruction payload of the test table.
type Deposit struct {
	Amount uint64
}

// Deposited is the log event of the test table.
type Deposited struct {
	Total uint64
}

const (
	KindDeposit   = "deposit"
	KindDeposited = "Deposited"
)

// NewTable returns a decoding table with one instruction and one log event.
func NewTable(t *testing.T) *decoder.Table {
	t.Helper()

	table := decoder.NewTable("test")
	require.NoError(t, decoder.RegisterAnchorInstruction[Deposit](table, KindDeposit))
	require.NoError(t, decoder.RegisterAnchorEvent[Deposited](table, KindDeposited))

	return table
}

// DepositData encodes a deposit instruction.
func DepositData(t *testing.T, amount uint64) []byte {
	t.Helper()

	disc := decoder.InstructionDiscriminator(KindDeposit)
	data, err := bin.MarshalBorsh(Deposit{Amount: amount})
	require.NoError(t, err)

	return append(disc[:], data...)
}
