package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/promptforge/internal/engine"
	"github.com/roach88/promptforge/internal/ir"
	"github.com/roach88/promptforge/internal/testutil"
)

// fixedTime is the created_at stamp of every record in test stores.
var fixedTime = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

// createTestStore creates a new store in a temp dir with sequential ids
// and a fixed clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithIDGenerator(testutil.NewSequentialIDs("gen")),
		WithClock(func() time.Time { return fixedTime }),
	)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestGeneration creates a generation with minimal required fields.
func createTestGeneration(bundle, raw string) Generation {
	return Generation{
		Bundle:   bundle,
		Raw:      raw,
		Readable: raw,
		Segments: []engine.Segment{
			{Key: "origin", Text: raw},
			{Key: "subject", Text: raw, Meta: &ir.Meta{Slot: "subject", Connector: "with"}},
		},
	}
}
