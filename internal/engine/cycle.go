package engine

import "strings"

// DefaultCycleLimit is how many times one rule may appear on the active
// expansion stack. Rules that occasionally re-invoke themselves stay
// under it; a reference loop with no base case hits it quickly.
const DefaultCycleLimit = 5

// callStack tracks the rules currently being expanded.
//
// The stack belongs to one engine and outlives individual generate calls,
// so every push must be matched by a pop on every return path. enter hands
// back the pop as a closure for the caller to defer.
type callStack struct {
	names  []string
	counts map[string]int
	limit  int
}

func newCallStack(limit int) *callStack {
	if limit <= 0 {
		limit = DefaultCycleLimit
	}
	return &callStack{counts: make(map[string]int), limit: limit}
}

// enter pushes name. ok is false, and nothing is pushed, when name is
// already on the stack limit times.
func (s *callStack) enter(name string) (leave func(), ok bool) {
	if s.counts[name] >= s.limit {
		return nil, false
	}
	s.names = append(s.names, name)
	s.counts[name]++
	return func() {
		s.names = s.names[:len(s.names)-1]
		if s.counts[name]--; s.counts[name] == 0 {
			delete(s.counts, name)
		}
	}, true
}

// depth is the number of active expansions.
func (s *callStack) depth() int {
	return len(s.names)
}

// path renders the active stack for diagnostics, outermost first.
func (s *callStack) path() string {
	return strings.Join(s.names, " -> ")
}
