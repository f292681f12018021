package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTxContext(t *testing.T) {
	ctx := context.Background()

	require.Nil(t, SQLTx(ctx))
	require.Nil(t, PgxTx(ctx))

	tx := &sql.Tx{}
	ctx = WithSQLTx(ctx, tx)
	require.Same(t, tx, SQLTx(ctx))
	require.Nil(t, PgxTx(ctx))
}

func TestInsertResultString(t *testing.T) {
	require.Equal(t, "inserted", InsertedPending.String())
	require.Equal(t, "duplicate", AlreadyCommitted.String())
	require.Equal(t, "unknown", InsertResult(7).String())
}
