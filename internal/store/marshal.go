package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/promptforge/internal/engine"
	"github.com/roach88/promptforge/internal/ir"
)

// marshalOverrides converts an override map to canonical JSON TEXT.
// Uses RFC 8785 canonical JSON so identical maps store identical bytes.
func marshalOverrides(overrides map[string]string) (string, error) {
	if overrides == nil {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(overrides)
	if err != nil {
		return "", fmt.Errorf("marshal overrides: %w", err)
	}
	return string(data), nil
}

func unmarshalOverrides(data string) (map[string]string, error) {
	out := map[string]string{}
	if data == "" || data == "{}" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal overrides: %w", err)
	}
	return out, nil
}

// marshalSegments converts segments to JSON TEXT.
// Segment is a struct (not a canonical document), so json.Encoder is used
// with HTML escaping disabled; field order is fixed by the struct.
func marshalSegments(segments []engine.Segment) (string, error) {
	if len(segments) == 0 {
		return "[]", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(segments); err != nil {
		return "", fmt.Errorf("marshal segments: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

func unmarshalSegments(data string) ([]engine.Segment, error) {
	out := []engine.Segment{}
	if data == "" || data == "[]" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal segments: %w", err)
	}
	return out, nil
}
