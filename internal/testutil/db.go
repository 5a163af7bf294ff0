// Package testutil opens throwaway encrypted databases for tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amirk1998/univ-erp/internal/database"
	"github.com/amirk1998/univ-erp/internal/logger"
)

// EncryptionKey is a fixed 32+ character key for test databases.
const EncryptionKey = "test-key-0123456789abcdef01234567"

// OpenDB creates a migrated database file under t.TempDir() and closes it
// when the test finishes.
func OpenDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Connect(database.Config{
		Path:          filepath.Join(t.TempDir(), "erp.db"),
		EncryptionKey: EncryptionKey,
		MaxOpenConns:  16,
		MaxIdleConns:  16,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// Ctx returns the test context carrying a silent logger.
func Ctx(t *testing.T) context.Context {
	t.Helper()
	return logger.ContextWithLogger(t.Context(), logger.NewForTests())
}
