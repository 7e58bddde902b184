package engine

import "github.com/roach88/promptforge/internal/ir"

// varKey qualifies a variable by the bundle that declared or mutated it.
type varKey struct {
	bundle string
	name   string
}

// VariableStore holds bundle variables across generate calls.
// Entries are created from declared defaults when a bundle is loaded,
// mutated only by rule actions, and removed when the bundle is unloaded.
type VariableStore struct {
	values map[varKey]ir.Value
}

// NewVariableStore creates an empty store.
func NewVariableStore() *VariableStore {
	return &VariableStore{values: make(map[varKey]ir.Value)}
}

// Get returns a variable's current value.
func (s *VariableStore) Get(bundle, name string) (ir.Value, bool) {
	v, ok := s.values[varKey{bundle, name}]
	return v, ok
}

// Set assigns a variable. A nil value removes it.
func (s *VariableStore) Set(bundle, name string, v ir.Value) {
	if v == nil {
		delete(s.values, varKey{bundle, name})
		return
	}
	s.values[varKey{bundle, name}] = v
}

// Snapshot copies every variable belonging to bundle.
func (s *VariableStore) Snapshot(bundle string) map[string]ir.Value {
	out := make(map[string]ir.Value)
	for k, v := range s.values {
		if k.bundle == bundle {
			out[k.name] = v
		}
	}
	return out
}

// Purge removes every variable belonging to bundle.
func (s *VariableStore) Purge(bundle string) {
	for k := range s.values {
		if k.bundle == bundle {
			delete(s.values, k)
		}
	}
}
