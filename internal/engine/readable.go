package engine

import (
	"slices"
	"strings"

	"github.com/roach88/promptforge/internal/ir"
)

// DefaultSlotOrder ranks slots when a bundle declares no slotOrder.
var DefaultSlotOrder = []string{
	"subject", "condition", "purpose", "materials", "colour", "controls",
	"displays", "lighting", "markings", "density", "view",
}

// templateSlot marks a segment whose text replaces the whole prompt.
const templateSlot = "template"

// unlistedRank sorts slots missing from the order after every listed one.
const unlistedRank = 999

// BuildReadable reassembles segments into a prompt ordered by slot.
//
// Segments without meta are dropped, unless none has meta, in which case
// the texts are joined with single spaces in discovery order. A "template"
// slot wins outright. Otherwise segments are stably sorted by slot rank
// and joined: a connector equal to the previous segment's connector
// becomes ", ", any other connector is padded with single spaces, and no
// connector is a single space. Segment texts and connectors are trimmed,
// and segments with empty text are skipped.
func BuildReadable(b *ir.Bundle, segments []Segment) string {
	if len(segments) == 0 {
		return ""
	}

	var kept []Segment
	for _, s := range segments {
		if s.Meta != nil {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		texts := make([]string, len(segments))
		for i, s := range segments {
			texts[i] = s.Text
		}
		return strings.Join(texts, " ")
	}

	for _, s := range kept {
		if s.Meta.Slot == templateSlot {
			return s.Text
		}
	}

	order := DefaultSlotOrder
	if b != nil && b.Metadata.SlotOrder != nil {
		order = b.Metadata.SlotOrder
	}
	rank := make(map[string]int, len(order))
	for i, slot := range order {
		if _, dup := rank[slot]; !dup {
			rank[slot] = i
		}
	}
	rankOf := func(s Segment) int {
		if r, ok := rank[s.Meta.Slot]; ok {
			return r
		}
		return unlistedRank
	}
	slices.SortStableFunc(kept, func(x, y Segment) int {
		return rankOf(x) - rankOf(y)
	})

	var out strings.Builder
	last := ""
	for _, s := range kept {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		conn := strings.TrimSpace(s.Meta.Connector)
		if out.Len() > 0 {
			switch {
			case conn != "" && conn == last:
				out.WriteString(", ")
			case conn != "":
				out.WriteString(" " + conn + " ")
			default:
				out.WriteString(" ")
			}
		}
		out.WriteString(text)
		last = conn
	}
	return strings.TrimSpace(out.String())
}
