package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amirk1998/univ-erp/internal/database"
	"github.com/amirk1998/univ-erp/internal/models"
	"github.com/amirk1998/univ-erp/pkg/errors"
)

const accountColumns = `id, username, role, password_hash, status, failed_attempts,
               last_login, created_at, updated_at`

// AccountRepository is the credential store: one authentication record
// per account.
type AccountRepository struct {
	db database.Querier
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db database.Querier) *AccountRepository {
	return &AccountRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *AccountRepository) WithTx(tx *sql.Tx) *AccountRepository {
	return &AccountRepository{db: tx}
}

// Create creates a new account
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
        INSERT INTO accounts (username, role, password_hash, status, failed_attempts, created_at, updated_at)
        VALUES (?, ?, ?, ?, 0, ?, ?)
    `

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		account.Username,
		account.Role,
		account.PasswordHash,
		models.StatusActive,
		now,
		now,
	)

	if database.IsUniqueViolation(err) {
		return errors.ErrUserAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get account ID: %w", err)
	}

	account.ID = int(id)
	account.Status = models.StatusActive
	account.FailedAttempts = 0
	account.CreatedAt = now
	account.UpdatedAt = now

	return nil
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id int) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByUsername retrieves an account by username
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, username))
}

func (r *AccountRepository) scanOne(row *sql.Row) (*models.Account, error) {
	account := &models.Account{}
	err := row.Scan(
		&account.ID,
		&account.Username,
		&account.Role,
		&account.PasswordHash,
		&account.Status,
		&account.FailedAttempts,
		&account.LastLogin,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, errors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// RecordFailedLogin increments the failure counter of an ACTIVE account in
// a single statement and locks it once the counter reaches threshold. It
// returns the new counter and status. A LOCKED account is left untouched.
func (r *AccountRepository) RecordFailedLogin(ctx context.Context, id, threshold int) (int, models.AccountStatus, error) {
	query := `
        UPDATE accounts
        SET failed_attempts = failed_attempts + 1,
            status = CASE WHEN failed_attempts + 1 >= ? THEN 'LOCKED' ELSE status END,
            updated_at = ?
        WHERE id = ? AND status = 'ACTIVE'
    `

	if _, err := r.db.ExecContext(ctx, query, threshold, time.Now().UTC(), id); err != nil {
		return 0, "", fmt.Errorf("failed to increment failed logins: %w", err)
	}

	var (
		count  int
		status models.AccountStatus
	)
	err := r.db.QueryRowContext(ctx, `SELECT failed_attempts, status FROM accounts WHERE id = ?`, id).Scan(&count, &status)
	if err == sql.ErrNoRows {
		return 0, "", errors.ErrUserNotFound
	}
	if err != nil {
		return 0, "", fmt.Errorf("failed to read failed logins: %w", err)
	}

	return count, status, nil
}

// RecordSuccessfulLogin resets the failure counter and stamps last_login,
// but only while the account is ACTIVE. It reports whether a row changed.
func (r *AccountRepository) RecordSuccessfulLogin(ctx context.Context, id int, at time.Time) (bool, error) {
	query := `
        UPDATE accounts
        SET failed_attempts = 0, last_login = ?, updated_at = ?
        WHERE id = ? AND status = 'ACTIVE'
    `

	result, err := r.db.ExecContext(ctx, query, at.UTC(), at.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to update last login: %w", err)
	}

	return affectedOne(result)
}

// UpdatePasswordHash swaps the hash only if it still equals currentHash.
func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, id int, currentHash, newHash string) (bool, error) {
	query := `
        UPDATE accounts
        SET password_hash = ?, updated_at = ?
        WHERE id = ? AND password_hash = ?
    `

	result, err := r.db.ExecContext(ctx, query, newHash, time.Now().UTC(), id, currentHash)
	if err != nil {
		return false, fmt.Errorf("failed to update password: %w", err)
	}

	return affectedOne(result)
}

// Unlock clears the lock and the failure counter
func (r *AccountRepository) Unlock(ctx context.Context, id int) error {
	query := `
        UPDATE accounts
        SET status = 'ACTIVE', failed_attempts = 0, updated_at = ?
        WHERE id = ?
    `

	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to unlock account: %w", err)
	}

	ok, err := affectedOne(result)
	if err != nil {
		return err
	}
	if !ok {
		return errors.ErrUserNotFound
	}

	return nil
}

// Delete removes an account. This is the administrative rollback path
// and fails on accounts that already own enrollments or sections.
func (r *AccountRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	ok, err := affectedOne(result)
	if err != nil {
		return err
	}
	if !ok {
		return errors.ErrUserNotFound
	}

	return nil
}

// CountByRole returns how many accounts hold role.
func (r *AccountRepository) CountByRole(ctx context.Context, role models.Role) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE role = ?`, string(role)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return n, nil
}

func affectedOne(result sql.Result) (bool, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows == 1, nil
}
