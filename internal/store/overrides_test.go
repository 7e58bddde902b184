package store

import (
	"context"
	"testing"
)

func TestSaveOverrides_ReplacesBundleOverrides(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.SaveOverrides(ctx, "robots", map[string]string{"color": "red", "size": "big"}); err != nil {
		t.Fatalf("SaveOverrides() failed: %v", err)
	}
	if err := s.SaveOverrides(ctx, "other", map[string]string{"color": "blue"}); err != nil {
		t.Fatalf("SaveOverrides() failed: %v", err)
	}
	if err := s.SaveOverrides(ctx, "robots", map[string]string{"size": "small"}); err != nil {
		t.Fatalf("SaveOverrides() failed: %v", err)
	}

	got, err := s.LoadOverrides(ctx, "robots")
	if err != nil {
		t.Fatalf("LoadOverrides() failed: %v", err)
	}
	if len(got) != 1 || got["size"] != "small" {
		t.Errorf("LoadOverrides(robots) = %v, want map[size:small]", got)
	}

	other, err := s.LoadOverrides(ctx, "other")
	if err != nil {
		t.Fatalf("LoadOverrides() failed: %v", err)
	}
	if other["color"] != "blue" {
		t.Errorf("overrides of another bundle changed: %v", other)
	}
}

func TestSaveOverrides_NilClears(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.SetOverride(ctx, "b", "r", "v"); err != nil {
		t.Fatalf("SetOverride() failed: %v", err)
	}
	if err := s.SaveOverrides(ctx, "b", nil); err != nil {
		t.Fatalf("SaveOverrides() failed: %v", err)
	}

	got, err := s.LoadOverrides(ctx, "b")
	if err != nil {
		t.Fatalf("LoadOverrides() failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no overrides, got %v", got)
	}
}

func TestLoadOverrides_EmptyIsNotNil(t *testing.T) {
	s := createTestStore(t)

	got, err := s.LoadOverrides(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("LoadOverrides() failed: %v", err)
	}
	if got == nil {
		t.Error("LoadOverrides() returned nil map")
	}
}

func TestSetOverride_Upserts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, v := range []string{"first", "second"} {
		if err := s.SetOverride(ctx, "b", "rule", v); err != nil {
			t.Fatalf("SetOverride(%q) failed: %v", v, err)
		}
	}

	got, err := s.LoadOverrides(ctx, "b")
	if err != nil {
		t.Fatalf("LoadOverrides() failed: %v", err)
	}
	if got["rule"] != "second" {
		t.Errorf("rule = %q, want %q", got["rule"], "second")
	}
}

func TestClearOverride(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.SaveOverrides(ctx, "b", map[string]string{"x": "1", "y": "2"}); err != nil {
		t.Fatalf("SaveOverrides() failed: %v", err)
	}

	removed, err := s.ClearOverride(ctx, "b", "x")
	if err != nil {
		t.Fatalf("ClearOverride() failed: %v", err)
	}
	if !removed {
		t.Error("ClearOverride(x) reported nothing removed")
	}

	removed, err = s.ClearOverride(ctx, "b", "x")
	if err != nil {
		t.Fatalf("ClearOverride() failed: %v", err)
	}
	if removed {
		t.Error("second ClearOverride(x) reported a removal")
	}

	n, err := s.ClearOverrides(ctx, "b")
	if err != nil {
		t.Fatalf("ClearOverrides() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("ClearOverrides() removed %d, want 1", n)
	}
}
