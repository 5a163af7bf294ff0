package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/amirk1998/univ-erp/internal/logger"
)

const (
	defaultTxTimeout  = 30 * time.Second
	defaultMaxRetries = 5
	defaultRetryBase  = 25 * time.Millisecond
)

type TransactionManager struct {
	db         *sql.DB
	maxRetries uint64
	retryBase  time.Duration
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(db *sql.DB) *TransactionManager {
	return &TransactionManager{
		db:         db,
		maxRetries: defaultMaxRetries,
		retryBase:  defaultRetryBase,
	}
}

// DB exposes the underlying pool for read-only queries.
func (tm *TransactionManager) DB() *sql.DB {
	return tm.db
}

// Execute runs fn within a write transaction. fn may run more than once
// when SQLite reports lock contention, so it must not have side effects
// outside tx. Errors returned by fn are passed through unchanged.
func (tm *TransactionManager) Execute(ctx context.Context, fn func(*sql.Tx) error) error {
	backoff := retry.WithMaxRetries(tm.maxRetries, retry.NewExponential(tm.retryBase))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := tm.executeOnce(ctx, fn)
		if err != nil && IsBusy(err) {
			logger.FromContext(ctx).Debug("transaction busy, retrying", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

func (tm *TransactionManager) executeOnce(ctx context.Context, fn func(*sql.Tx) error) error {
	// Set transaction timeout
	ctx, cancel := context.WithTimeout(ctx, defaultTxTimeout)
	defer cancel()

	// Begin transaction with serializable isolation
	tx, err := tm.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
		ReadOnly:  false,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Ensure transaction is finalized
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	// Execute transaction function
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	// Commit transaction
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
