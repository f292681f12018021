package decoder

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/gagliardetto/solana-go"
	"github.com/goran-ethernal/SolanaIndexor/internal/common"
	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	"github.com/goran-ethernal/SolanaIndexor/internal/metrics"
	"github.com/goran-ethernal/SolanaIndexor/pkg/decoder"
	"github.com/goran-ethernal/SolanaIndexor/pkg/types"
)

// candidate is a decoded payload waiting for its emission index.
type candidate struct {
	outer    int
	payload  decoder.DecodedPayload
	disc     types.Discriminator
	source   types.EventSource
	accounts []solana.PublicKey
}

// Decoder turns raw transactions into ordered events of one program.
type Decoder struct {
	program     solana.PublicKey
	table       *decoder.Table
	indexFailed bool
	log         *logger.Logger
}

// New creates a decoder for program backed by table.
func New(program solana.PublicKey, table *decoder.Table, indexFailed bool, log *logger.Logger) *Decoder {
	return &Decoder{
		program:     program,
		table:       table,
		indexFailed: indexFailed,
		log:         log,
	}
}

// Decode extracts the program's events from tx in emission order. Events are grouped by top level
// instruction: the instruction and its inner instructions come first, then the log events emitted
// while it executed. Unknown discriminators are skipped; malformed payloads are reported and do not
// stop decoding.
func (d *Decoder) Decode(tx *types.RawTransaction) ([]types.DecodedEvent, []*types.DecodingError) {
	if !tx.Succeeded && !d.indexFailed {
		return nil, nil
	}

	var (
		found []candidate
		errs  []*types.DecodingError
	)

	for i, ix := range tx.Instructions {
		if ix.ProgramID != d.program {
			continue
		}

		payload, disc, err := d.table.Decode(types.SourceInstruction, ix.Data)
		switch {
		case errors.Is(err, decoder.ErrUnrecognized):
			continue
		case err != nil:
			errs = append(errs, &types.DecodingError{
				Signature:     tx.Signature,
				Discriminator: disc,
				Kind:          payload.Kind,
				Position:      i,
				Err:           err,
			})
			continue
		}

		found = append(found, candidate{
			outer:    ix.OuterIndex,
			payload:  payload,
			disc:     disc,
			source:   types.SourceInstruction,
			accounts: ix.Accounts,
		})
	}

	for _, p := range programPayloads(tx.LogMessages, d.program) {
		if p.Err != nil {
			errs = append(errs, &types.DecodingError{
				Signature: tx.Signature,
				Position:  p.Line,
				Err:       fmt.Errorf("invalid base64 program data: %w", p.Err),
			})
			continue
		}

		payload, disc, err := d.table.Decode(types.SourceLog, p.Data)
		switch {
		case errors.Is(err, decoder.ErrUnrecognized):
			continue
		case err != nil:
			errs = append(errs, &types.DecodingError{
				Signature:     tx.Signature,
				Discriminator: disc,
				Kind:          payload.Kind,
				Position:      p.Line,
				Err:           err,
			})
			continue
		}

		found = append(found, candidate{
			outer:   p.Outer,
			payload: payload,
			disc:    disc,
			source:  types.SourceLog,
		})
	}

	// instructions were collected before logs, so a stable sort keeps that order within a group
	slices.SortStableFunc(found, func(a, b candidate) int {
		return cmp.Compare(a.outer, b.outer)
	})

	events := make([]types.DecodedEvent, 0, len(found))
	for _, c := range found {
		events = append(events, types.DecodedEvent{
			Signature:     tx.Signature,
			ProgramID:     d.program,
			Slot:          tx.Block.Slot,
			BlockTime:     tx.BlockTime,
			Kind:          c.payload.Kind,
			Discriminator: c.disc,
			Source:        c.source,
			Index:         len(events),
			Payload:       c.payload.Value,
			Accounts:      c.accounts,
			Fee:           tx.Fee,
		})
	}

	if len(errs) > 0 {
		metrics.DecodingErrorsInc(d.program.String(), len(errs))
		for _, err := range errs {
			d.log.Warnf("decoding error in %s: %v", common.ShortID(tx.Signature.String()), err)
		}
	}

	return events, errs
}
