package decoder

import (
	"errors"
	"fmt"
	"sort"

	bin "github.com/gagliardetto/binary"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
)

// DiscriminatorSize is the length of the variant prefix on instruction data and event payloads.
const DiscriminatorSize = 8

// ErrUnrecognized is returned for payloads whose discriminator is not in the table.
var ErrUnrecognized = errors.New("unrecognized discriminator")

// ErrTrailingData is returned when a payload decodes but leaves bytes unread.
var ErrTrailingData = errors.New("trailing data after payload")

// DecodeFunc turns the payload that follows the discriminator into a typed value.
type DecodeFunc func(data []byte) (any, error)

// DecodedPayload is the result of a successful table lookup and decode.
type DecodedPayload struct {
	Kind  string
	Value any
}

type entryKey struct {
	source types.EventSource
	disc   types.Discriminator
}

type entry struct {
	kind   string
	decode DecodeFunc
}

// Table maps discriminators to typed decoders for one program.
// It is built once at startup and is read-only afterwards.
type Table struct {
	name    string
	entries map[entryKey]entry
}

// NewTable creates an empty decoding table.
func NewTable(name string) *Table {
	return &Table{
		name:    name,
		entries: make(map[entryKey]entry),
	}
}

// Name returns the name the table was created with.
func (t *Table) Name() string {
	return t.name
}

// Register adds a decoder for the given source and discriminator.
func (t *Table) Register(kind string, source types.EventSource, disc types.Discriminator, fn DecodeFunc) error {
	if kind == "" {
		return errors.New("kind cannot be empty")
	}

	if fn == nil {
		return fmt.Errorf("decode function for %s cannot be nil", kind)
	}

	if source != types.SourceInstruction && source != types.SourceLog {
		return fmt.Errorf("invalid event source %q for %s", source, kind)
	}

	key := entryKey{source: source, disc: disc}
	if existing, ok := t.entries[key]; ok {
		return fmt.Errorf("discriminator %x for %s source is already registered as %s",
			disc[:], source, existing.kind)
	}

	t.entries[key] = entry{kind: kind, decode: fn}

	return nil
}

// MustRegister is like Register but panics on error.
func (t *Table) MustRegister(kind string, source types.EventSource, disc types.Discriminator, fn DecodeFunc) {
	if err := t.Register(kind, source, disc, fn); err != nil {
		panic(err)
	}
}

// Kinds returns the sorted, de-duplicated kind names registered in the table.
func (t *Table) Kinds() []string {
	seen := make(map[string]struct{}, len(t.entries))
	kinds := make([]string, 0, len(t.entries))

	for _, e := range t.entries {
		if _, ok := seen[e.kind]; ok {
			continue
		}
		seen[e.kind] = struct{}{}
		kinds = append(kinds, e.kind)
	}

	sort.Strings(kinds)

	return kinds
}

// Len returns the number of registered entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Decode looks up the discriminator at the head of data and decodes the rest.
// Payloads shorter than a discriminator are reported as unrecognized.
func (t *Table) Decode(source types.EventSource, data []byte) (DecodedPayload, types.Discriminator, error) {
	var disc types.Discriminator
	if len(data) < DiscriminatorSize {
		return DecodedPayload{}, disc, ErrUnrecognized
	}

	copy(disc[:], data[:DiscriminatorSize])

	e, ok := t.entries[entryKey{source: source, disc: disc}]
	if !ok {
		return DecodedPayload{}, disc, ErrUnrecognized
	}

	value, err := e.decode(data[DiscriminatorSize:])
	if err != nil {
		return DecodedPayload{Kind: e.kind}, disc, fmt.Errorf("decode %s: %w", e.kind, err)
	}

	return DecodedPayload{Kind: e.kind, Value: value}, disc, nil
}

// RegisterBorsh registers a Borsh-encoded payload of type T.
// The decoded value is passed to handlers as T.
func RegisterBorsh[T any](t *Table, kind string, source types.EventSource, disc types.Discriminator) error {
	return t.Register(kind, source, disc, func(data []byte) (any, error) {
		var v T

		dec := bin.NewBorshDecoder(data)
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		if n := dec.Remaining(); n > 0 {
			return nil, fmt.Errorf("%w: %d bytes", ErrTrailingData, n)
		}

		return v, nil
	})
}
