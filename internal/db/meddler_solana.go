package db

import (
	"database/sql"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/russross/meddler"
)

func init() {
	meddler.Register("signature", base58Meddler[solana.Signature]{parse: solana.SignatureFromBase58})
	meddler.Register("pubkey", base58Meddler[solana.PublicKey]{parse: solana.PublicKeyFromBase58})
	meddler.Register("blockhash", base58Meddler[solana.Hash]{parse: solana.HashFromBase58})
}

// base58Meddler handles conversion between fixed size solana values and their base58 text form.
// The zero value is stored as an empty string so it can be queried without decoding.
type base58Meddler[T interface {
	comparable
	fmt.Stringer
}] struct {
	parse func(string) (T, error)
}

func (m base58Meddler[T]) PreRead(fieldAddr interface{}) (scanTarget interface{}, err error) {
	// Use sql.NullString to handle NULL values
	return new(sql.NullString), nil
}

func (m base58Meddler[T]) PostRead(fieldAddr, scanTarget interface{}) error {
	ns, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("expected *sql.NullString, got %T", scanTarget)
	}

	ptr, ok := fieldAddr.(*T)
	if !ok {
		return fmt.Errorf("unexpected field type %T", fieldAddr)
	}

	var zero T
	if !ns.Valid || ns.String == "" {
		*ptr = zero
		return nil
	}

	v, err := m.parse(ns.String)
	if err != nil {
		return fmt.Errorf("failed to decode %q: %w", ns.String, err)
	}
	*ptr = v

	return nil
}

func (m base58Meddler[T]) PreWrite(field interface{}) (saveValue interface{}, err error) {
	v, ok := field.(T)
	if !ok {
		return nil, fmt.Errorf("unexpected field type %T", field)
	}

	return EncodeBase58(v), nil
}

// EncodeBase58 renders v the way it is stored in the database.
func EncodeBase58[T interface {
	comparable
	fmt.Stringer
}](v T) string {
	var zero T
	if v == zero {
		return ""
	}

	return v.String()
}
