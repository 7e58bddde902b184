package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/roach88/promptforge/internal/engine"
)

// Generation is one recorded generate call.
type Generation struct {
	ID         string            `json:"id"`
	Seq        int64             `json:"seq"`
	Bundle     string            `json:"bundle"`
	BundleHash string            `json:"bundle_hash,omitempty"`
	Seed       string            `json:"seed,omitempty"`
	Seeded     bool              `json:"seeded"`
	Entry      string            `json:"entry,omitempty"`
	Target     string            `json:"target,omitempty"`
	Overrides  map[string]string `json:"overrides,omitempty"`
	Raw        string            `json:"raw"`
	Readable   string            `json:"readable,omitempty"`
	Segments   []engine.Segment  `json:"segments,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

const generationColumns = `id, seq, bundle, bundle_hash, seed, entry, target, overrides, raw, readable, segments, created_at`

// RecordGeneration appends gen to the history. ID, Seq and CreatedAt are
// assigned by the store; the completed record is returned.
func (s *Store) RecordGeneration(ctx context.Context, gen Generation) (Generation, error) {
	overridesJSON, err := marshalOverrides(gen.Overrides)
	if err != nil {
		return gen, fmt.Errorf("record generation: %w", err)
	}
	segmentsJSON, err := marshalSegments(gen.Segments)
	if err != nil {
		return gen, fmt.Errorf("record generation: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return gen, fmt.Errorf("record generation: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// The counter in settings survives pruning, so a seq is never reused.
	// MAX(seq) covers databases written before the counter existed.
	if err := tx.QueryRowContext(ctx, `
		SELECT MAX(
			COALESCE((SELECT CAST(value AS INTEGER) FROM settings WHERE key = ?), 0),
			COALESCE((SELECT MAX(seq) FROM generations), 0)
		) + 1
	`, settingGenerationSeq).Scan(&gen.Seq); err != nil {
		return gen, fmt.Errorf("record generation: next seq: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, settingGenerationSeq, strconv.FormatInt(gen.Seq, 10)); err != nil {
		return gen, fmt.Errorf("record generation: advance seq: %w", err)
	}
	gen.ID = s.ids.Generate()
	gen.CreatedAt = s.now().UTC()

	var seed sql.NullString
	if gen.Seeded {
		seed = sql.NullString{String: gen.Seed, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO generations (`+generationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		gen.ID,
		gen.Seq,
		gen.Bundle,
		gen.BundleHash,
		seed,
		gen.Entry,
		gen.Target,
		overridesJSON,
		gen.Raw,
		gen.Readable,
		segmentsJSON,
		gen.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return gen, fmt.Errorf("record generation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return gen, fmt.Errorf("record generation: commit: %w", err)
	}
	return gen, nil
}

// History returns recorded generations, newest first. An empty bundle
// lists every bundle; limit <= 0 means no limit.
//
// Returns an empty slice (not nil) if nothing is recorded.
func (s *Store) History(ctx context.Context, bundle string, limit int) ([]Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations`
	var args []any
	if bundle != "" {
		query += ` WHERE bundle = ?`
		args = append(args, bundle)
	}
	query += ` ORDER BY seq DESC, id COLLATE BINARY ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := []Generation{}
	for rows.Next() {
		gen, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, gen)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

// ReadGeneration retrieves a single generation by ID.
// Returns an error wrapping sql.ErrNoRows if not found.
func (s *Store) ReadGeneration(ctx context.Context, id string) (Generation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+generationColumns+` FROM generations WHERE id = ?`, id)
	return scanGeneration(row)
}

// PruneHistory deletes all but the newest keep generations of bundle and
// returns how many were deleted.
func (s *Store) PruneHistory(ctx context.Context, bundle string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM generations
		WHERE bundle = ? AND seq NOT IN (
			SELECT seq FROM generations WHERE bundle = ? ORDER BY seq DESC LIMIT ?
		)
	`, bundle, bundle, keep)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return n, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanGeneration(row rowScanner) (Generation, error) {
	var (
		gen           Generation
		seed          sql.NullString
		overridesJSON string
		segmentsJSON  string
		createdAt     string
	)
	err := row.Scan(
		&gen.ID,
		&gen.Seq,
		&gen.Bundle,
		&gen.BundleHash,
		&seed,
		&gen.Entry,
		&gen.Target,
		&overridesJSON,
		&gen.Raw,
		&gen.Readable,
		&segmentsJSON,
		&createdAt,
	)
	if err != nil {
		return Generation{}, fmt.Errorf("scan generation: %w", err)
	}

	gen.Seed, gen.Seeded = seed.String, seed.Valid
	if gen.Overrides, err = unmarshalOverrides(overridesJSON); err != nil {
		return Generation{}, err
	}
	if gen.Segments, err = unmarshalSegments(segmentsJSON); err != nil {
		return Generation{}, err
	}
	if gen.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Generation{}, fmt.Errorf("scan generation: created_at: %w", err)
	}
	return gen, nil
}
