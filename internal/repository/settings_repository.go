package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/amirk1998/univ-erp/internal/database"
)

// Setting keys read by the access policy.
const (
	SettingMaintenance          = "maintenance_on"
	SettingRegistrationDeadline = "registration_deadline"
	SettingDropDeadline         = "drop_deadline"
)

// SettingsRepository is a key/value store for global switches.
type SettingsRepository struct {
	db database.Querier
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db database.Querier) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the raw value of key. ok is false when the key is unset.
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %q: %w", key, err)
	}

	return value, true, nil
}

// Set stores value under key, replacing any previous value
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	query := `
        INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
        ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
    `

	if _, err := r.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write setting %q: %w", key, err)
	}

	return nil
}

// Delete removes key
func (r *SettingsRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete setting %q: %w", key, err)
	}
	return nil
}
