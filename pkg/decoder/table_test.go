package decoder

import (
	"encoding/binary"
	"errors"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
	"github.com/stretchr/testify/require"
)

type transferEvent struct {
	From   solana.PublicKey
	To     solana.PublicKey
	Amount uint64
}

func encodeBorsh(t *testing.T, disc types.Discriminator, v any) []byte {
	t.Helper()

	data, err := bin.MarshalBorsh(v)
	require.NoError(t, err)

	return append(disc[:], data...)
}

func TestTable_RegisterBorshAndDecode(t *testing.T) {
	table := NewTable("test")
	require.NoError(t, RegisterAnchorEvent[transferEvent](table, "Transfer"))

	want := transferEvent{
		From:   solana.NewWallet().PublicKey(),
		To:     solana.NewWallet().PublicKey(),
		Amount: 42,
	}

	payload, disc, err := table.Decode(types.SourceLog, encodeBorsh(t, EventDiscriminator("Transfer"), want))
	require.NoError(t, err)
	require.Equal(t, EventDiscriminator("Transfer"), disc)
	require.Equal(t, "Transfer", payload.Kind)
	require.Equal(t, want, payload.Value)
}

func TestTable_SourceIsPartOfKey(t *testing.T) {
	table := NewTable("test")
	require.NoError(t, RegisterAnchorEvent[transferEvent](table, "Transfer"))

	data := encodeBorsh(t, EventDiscriminator("Transfer"), transferEvent{})

	_, _, err := table.Decode(types.SourceInstruction, data)
	require.ErrorIs(t, err, ErrUnrecognized)
}

func TestTable_Unrecognized(t *testing.T) {
	table := NewTable("test")
	require.NoError(t, RegisterAnchorEvent[transferEvent](table, "Transfer"))

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "shorter than discriminator", data: []byte{1, 2, 3}},
		{name: "unknown discriminator", data: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := table.Decode(types.SourceLog, tt.data)
			require.ErrorIs(t, err, ErrUnrecognized)
		})
	}
}

func TestTable_MalformedPayload(t *testing.T) {
	table := NewTable("test")
	require.NoError(t, RegisterAnchorEvent[transferEvent](table, "Transfer"))

	disc := EventDiscriminator("Transfer")
	data := append(disc[:], 1, 2, 3)

	payload, got, err := table.Decode(types.SourceLog, data)
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrUnrecognized))
	require.Equal(t, disc, got)
	require.Equal(t, "Transfer", payload.Kind)
	require.Nil(t, payload.Value)
}

func TestTable_TrailingBytesAreMalformed(t *testing.T) {
	table := NewTable("test")
	require.NoError(t, RegisterAnchorEvent[transferEvent](table, "Transfer"))

	data := append(encodeBorsh(t, EventDiscriminator("Transfer"), transferEvent{Amount: 1}), 0xff, 0xff)

	payload, _, err := table.Decode(types.SourceLog, data)
	require.ErrorIs(t, err, ErrTrailingData)
	require.Equal(t, "Transfer", payload.Kind)
	require.Nil(t, payload.Value)
}

func TestTable_CustomDecodeFunc(t *testing.T) {
	table := NewTable("test")
	disc := InstructionDiscriminator("set_value")

	table.MustRegister("SetValue", types.SourceInstruction, disc, func(data []byte) (any, error) {
		if len(data) != 4 {
			return nil, errors.New("bad length")
		}
		return binary.LittleEndian.Uint32(data), nil
	})

	data := append(disc[:], 7, 0, 0, 0)
	payload, _, err := table.Decode(types.SourceInstruction, data)
	require.NoError(t, err)
	require.Equal(t, uint32(7), payload.Value)
}

func TestTable_RegisterValidation(t *testing.T) {
	noop := func([]byte) (any, error) { return nil, nil }
	disc := EventDiscriminator("A")

	table := NewTable("test")
	require.Error(t, table.Register("", types.SourceLog, disc, noop))
	require.Error(t, table.Register("A", types.SourceLog, disc, nil))
	require.Error(t, table.Register("A", types.EventSource("other"), disc, noop))

	require.NoError(t, table.Register("A", types.SourceLog, disc, noop))
	require.Error(t, table.Register("B", types.SourceLog, disc, noop))

	// same discriminator under the other source is a different entry
	require.NoError(t, table.Register("A", types.SourceInstruction, disc, noop))

	require.Panics(t, func() {
		table.MustRegister("C", types.SourceLog, disc, noop)
	})

	require.Equal(t, []string{"A"}, table.Kinds())
	require.Equal(t, 2, table.Len())
}

func TestAnchorDiscriminators(t *testing.T) {
	// sha256("global:initialize")[:8] as published by Anchor
	require.Equal(t,
		types.Discriminator{0xaf, 0xaf, 0x6d, 0x1f, 0x0d, 0x98, 0x9b, 0xed},
		InstructionDiscriminator("initialize"))

	require.NotEqual(t, EventDiscriminator("Transfer"), InstructionDiscriminator("Transfer"))
}

func TestRegistry(t *testing.T) {
	RegisterTable("Test-Table", func() (*Table, error) {
		return NewTable("test-table"), nil
	})
	RegisterTable("broken", func() (*Table, error) {
		return nil, errors.New("boom")
	})

	table, err := BuildTable("test-table")
	require.NoError(t, err)
	require.Equal(t, "test-table", table.Name())

	_, err = BuildTable("broken")
	require.ErrorContains(t, err, "boom")

	_, err = BuildTable("missing")
	require.ErrorContains(t, err, "unknown decoder")

	require.Contains(t, ListTables(), "test-table")
}
