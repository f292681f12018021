package decoder

import (
	"crypto/sha256"

	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
)

// EventDiscriminator returns the Anchor discriminator of an event struct, sha256("event:<Name>")[:8].
func EventDiscriminator(name string) types.Discriminator {
	return sighash("event", name)
}

// InstructionDiscriminator returns the Anchor discriminator of an instruction, sha256("global:<name>")[:8].
func InstructionDiscriminator(name string) types.Discriminator {
	return sighash("global", name)
}

func sighash(namespace, name string) types.Discriminator {
	var disc types.Discriminator

	sum := sha256.Sum256([]byte(namespace + ":" + name))
	copy(disc[:], sum[:DiscriminatorSize])

	return disc
}

// RegisterAnchorEvent registers a Borsh event emitted through "Program data:" logs.
func RegisterAnchorEvent[T any](t *Table, name string) error {
	return RegisterBorsh[T](t, name, types.SourceLog, EventDiscriminator(name))
}

// RegisterAnchorInstruction registers a Borsh instruction argument struct.
func RegisterAnchorInstruction[T any](t *Table, name string) error {
	return RegisterBorsh[T](t, name, types.SourceInstruction, InstructionDiscriminator(name))
}
