// Package storetest provides migrated databases for repository tests.
package storetest

import (
	"testing"

	"go-shortlink/internal/store"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/stretchr/testify/require"
)

// NewSQLite returns a migrated in-memory SQLite driver closed at test end.
func NewSQLite(t *testing.T) *entsql.Driver {
	t.Helper()

	drv, err := store.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { drv.Close() })

	require.NoError(t, store.RunMigrations(drv))
	return drv
}
