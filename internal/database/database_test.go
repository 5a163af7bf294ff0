package database_test

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirk1998/univ-erp/internal/database"
	"github.com/amirk1998/univ-erp/internal/testutil"
)

func TestMigrate(t *testing.T) {
	t.Run("Should be idempotent", func(t *testing.T) {
		db := testutil.OpenDB(t)
		require.NoError(t, database.Migrate(db))
	})

	t.Run("Should reject invalid enumerations", func(t *testing.T) {
		db := testutil.OpenDB(t)
		_, err := db.Exec(`INSERT INTO accounts (username, role, password_hash, status, created_at, updated_at)
            VALUES ('x', 'ADMIN', 'h', 'FROZEN', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
		assert.Error(t, err)
	})
}

func TestConnect(t *testing.T) {
	t.Run("Should refuse to open with the wrong key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "erp.db")
		db, err := database.Connect(database.Config{Path: path, EncryptionKey: testutil.EncryptionKey})
		require.NoError(t, err)
		require.NoError(t, database.Migrate(db))
		require.NoError(t, db.Close())

		other, err := database.Connect(database.Config{Path: path, EncryptionKey: "another-key-0123456789abcdef0123456"})
		if err == nil {
			defer other.Close()
			var n int
			err = other.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&n)
		}
		assert.Error(t, err)
	})
}

func TestGetStats(t *testing.T) {
	t.Run("Should report the configured pool", func(t *testing.T) {
		db, err := database.Connect(database.Config{
			Path:          filepath.Join(t.TempDir(), "erp.db"),
			EncryptionKey: testutil.EncryptionKey,
			MaxOpenConns:  4,
		})
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })

		stats := map[string]any{}
		kv := database.GetStats(db)
		require.Zero(t, len(kv)%2)
		for i := 0; i < len(kv); i += 2 {
			stats[kv[i].(string)] = kv[i+1]
		}

		assert.Equal(t, 4, stats["max_open"])
		assert.GreaterOrEqual(t, stats["open"], 1)
		assert.Equal(t, 0, stats["in_use"])
	})
}

func TestTransactionManager(t *testing.T) {
	insert := func(tx *sql.Tx, key string) error {
		_, err := tx.Exec(`INSERT INTO settings (key, value, updated_at) VALUES (?, 'v', CURRENT_TIMESTAMP)`, key)
		return err
	}
	count := func(t *testing.T, db *sql.DB) int {
		var n int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM settings`).Scan(&n))
		return n
	}

	t.Run("Should commit when fn succeeds", func(t *testing.T) {
		db := testutil.OpenDB(t)
		tm := database.NewTransactionManager(db)

		err := tm.Execute(testutil.Ctx(t), func(tx *sql.Tx) error { return insert(tx, "a") })
		require.NoError(t, err)
		assert.Equal(t, 1, count(t, db))
	})

	t.Run("Should roll back and return the fn error unchanged", func(t *testing.T) {
		db := testutil.OpenDB(t)
		tm := database.NewTransactionManager(db)
		sentinel := errors.New("boom")

		err := tm.Execute(testutil.Ctx(t), func(tx *sql.Tx) error {
			if err := insert(tx, "a"); err != nil {
				return err
			}
			return sentinel
		})
		require.ErrorIs(t, err, sentinel)
		assert.Equal(t, 0, count(t, db))
	})

	t.Run("Should report unique violations", func(t *testing.T) {
		db := testutil.OpenDB(t)
		tm := database.NewTransactionManager(db)

		err := tm.Execute(testutil.Ctx(t), func(tx *sql.Tx) error {
			if err := insert(tx, "dup"); err != nil {
				return err
			}
			return insert(tx, "dup")
		})
		require.Error(t, err)
		assert.True(t, database.IsUniqueViolation(err))
		assert.False(t, database.IsBusy(err))
	})
}
