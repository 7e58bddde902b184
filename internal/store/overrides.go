package store

import (
	"context"
	"fmt"
)

// SaveOverrides replaces every stored override of bundle with overrides.
// An empty or nil map clears the bundle's overrides.
func (s *Store) SaveOverrides(ctx context.Context, bundle string, overrides map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save overrides: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM overrides WHERE bundle = ?`, bundle); err != nil {
		return fmt.Errorf("save overrides: %w", err)
	}
	for rule, value := range overrides {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO overrides (bundle, rule, value) VALUES (?, ?, ?)
		`, bundle, rule, value); err != nil {
			return fmt.Errorf("save overrides: %s: %w", rule, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save overrides: commit: %w", err)
	}
	return nil
}

// LoadOverrides returns the stored overrides of bundle.
// Returns an empty map (not nil) when none are stored.
func (s *Store) LoadOverrides(ctx context.Context, bundle string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rule, value FROM overrides
		WHERE bundle = ?
		ORDER BY rule COLLATE BINARY ASC
	`, bundle)
	if err != nil {
		return nil, fmt.Errorf("load overrides: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var rule, value string
		if err := rows.Scan(&rule, &value); err != nil {
			return nil, fmt.Errorf("load overrides: scan: %w", err)
		}
		out[rule] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load overrides: iterate: %w", err)
	}
	return out, nil
}

// SetOverride stores or replaces one override.
func (s *Store) SetOverride(ctx context.Context, bundle, rule, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO overrides (bundle, rule, value) VALUES (?, ?, ?)
		ON CONFLICT(bundle, rule) DO UPDATE SET value = excluded.value
	`, bundle, rule, value)
	if err != nil {
		return fmt.Errorf("set override: %w", err)
	}
	return nil
}

// ClearOverride removes one override. Returns whether a row was removed.
func (s *Store) ClearOverride(ctx context.Context, bundle, rule string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM overrides WHERE bundle = ? AND rule = ?`, bundle, rule)
	if err != nil {
		return false, fmt.Errorf("clear override: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("clear override: %w", err)
	}
	return n > 0, nil
}

// ClearOverrides removes every override of bundle and returns how many
// were removed.
func (s *Store) ClearOverrides(ctx context.Context, bundle string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM overrides WHERE bundle = ?`, bundle)
	if err != nil {
		return 0, fmt.Errorf("clear overrides: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear overrides: %w", err)
	}
	return n, nil
}
