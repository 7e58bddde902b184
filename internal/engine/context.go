package engine

import "github.com/roach88/promptforge/internal/ir"

// Segment is one rule's expanded text and its ordering marker.
type Segment struct {
	Key  string   `json:"key"`
	Text string   `json:"text"`
	Meta *ir.Meta `json:"meta,omitempty"`
}

// generation is the state of one generate call.
type generation struct {
	engine *Engine
	bundle *ir.Bundle

	// vars are per-call values supplied by the caller. They shadow the
	// variable store and receive action writes for names they hold.
	vars map[string]ir.Value

	// segments is non-nil only for detailed generation.
	segments []Segment
	tracking bool
}

func (e *Engine) newGeneration(b *ir.Bundle, context map[string]any, tracking bool) *generation {
	g := &generation{
		engine:   e,
		bundle:   b,
		vars:     make(map[string]ir.Value, len(context)),
		tracking: tracking,
	}
	for k, raw := range context {
		if v, ok := ir.ValueOf(raw); ok {
			g.vars[k] = v
		}
	}
	return g
}

// Lookup implements Scope: per-call values first, then the store.
func (g *generation) Lookup(name string) (ir.Value, bool) {
	if v, ok := g.vars[name]; ok {
		return v, true
	}
	return g.engine.vars.Get(g.bundle.Name, name)
}

// Assign implements Scope. The store always receives the write so it
// survives the call.
func (g *generation) Assign(name string, v ir.Value) {
	if _, ok := g.vars[name]; ok {
		g.vars[name] = v
	}
	g.engine.vars.Set(g.bundle.Name, name, v)
}

// open appends an empty segment and returns its index, or -1 when
// segments are not tracked.
func (g *generation) open(key string, meta *ir.Meta) int {
	if !g.tracking {
		return -1
	}
	g.segments = append(g.segments, Segment{Key: key, Meta: meta})
	return len(g.segments) - 1
}

func (g *generation) fill(idx int, text string) {
	if idx >= 0 {
		g.segments[idx].Text = text
	}
}

func (g *generation) hasSegment(key string) bool {
	for _, s := range g.segments {
		if s.Key == key {
			return true
		}
	}
	return false
}
