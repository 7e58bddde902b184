package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Setting keys.
const (
	settingSelected = "selected_bundle"
	settingSeed     = "seed"

	settingGenerationSeq = "generation_seq" // last seq handed out
)

// SetSelected records the selected bundle. An empty name clears it.
func (s *Store) SetSelected(ctx context.Context, bundle string) error {
	return s.putSetting(ctx, settingSelected, bundle)
}

// Selected returns the recorded bundle selection, or "" when none is
// recorded.
func (s *Store) Selected(ctx context.Context) (string, error) {
	v, _, err := s.getSetting(ctx, settingSelected)
	return v, err
}

// SetSeed records the active seed. An empty seed clears it, meaning
// generation is unseeded.
func (s *Store) SetSeed(ctx context.Context, seed string) error {
	return s.putSetting(ctx, settingSeed, seed)
}

// Seed returns the recorded seed and whether one is set.
func (s *Store) Seed(ctx context.Context) (string, bool, error) {
	return s.getSetting(ctx, settingSeed)
}

func (s *Store) putSetting(ctx context.Context, key, value string) error {
	var err error
	if value == "" {
		_, err = s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	} else {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, value)
	}
	if err != nil {
		return fmt.Errorf("put setting %s: %w", key, err)
	}
	return nil
}

func (s *Store) getSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}
