package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Catalog metadata keys.
const (
	SettingCreatedAt      = "created_at"
	SettingLastImportAt   = "last_import_at"
	SettingLastImportFile = "last_import_file"
	SettingLastExportAt   = "last_export_at"
)

// GetSetting returns a stored value, or "" if the key is unset.
func GetSetting(ctx context.Context, q Querier, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying %s: %w", key, err)
	}
	return value, nil
}

// SetSetting stores value under key, replacing any previous value.
func SetSetting(ctx context.Context, q Querier, key, value string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}
	return nil
}

// EnsureSetting stores candidate under key unless a value already exists, and
// returns the stored value. Uses INSERT OR IGNORE + re-SELECT so the first
// writer wins.
func EnsureSetting(ctx context.Context, q Querier, key, candidate string) (string, error) {
	_, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
		key, candidate,
	)
	if err != nil {
		return "", fmt.Errorf("storing %s: %w", key, err)
	}

	var value string
	err = q.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("querying %s: %w", key, err)
	}
	return value, nil
}
