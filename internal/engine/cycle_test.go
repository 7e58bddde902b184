package engine

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// callStack Unit Tests
// =============================================================================

func TestCallStack_DefaultLimit(t *testing.T) {
	s := newCallStack(0)
	assert.Equal(t, DefaultCycleLimit, s.limit)
	assert.Equal(t, 0, s.depth())
}

func TestCallStack_AllowsUpToLimit(t *testing.T) {
	s := newCallStack(3)

	var leaves []func()
	for i := 0; i < 3; i++ {
		leave, ok := s.enter("a")
		require.True(t, ok, "entry %d should be allowed", i)
		leaves = append(leaves, leave)
	}

	_, ok := s.enter("a")
	assert.False(t, ok, "fourth entry should trip the guard")
	assert.Equal(t, 3, s.depth(), "a refused entry pushes nothing")

	// Other rules are unaffected.
	leave, ok := s.enter("b")
	require.True(t, ok)
	leave()

	for i := len(leaves) - 1; i >= 0; i-- {
		leaves[i]()
	}
	assert.Equal(t, 0, s.depth())
	assert.Empty(t, s.counts)
}

func TestCallStack_PopRestoresAllowance(t *testing.T) {
	s := newCallStack(1)

	leave, ok := s.enter("a")
	require.True(t, ok)
	_, ok = s.enter("a")
	assert.False(t, ok)

	leave()
	_, ok = s.enter("a")
	assert.True(t, ok)
}

func TestCallStack_Path(t *testing.T) {
	s := newCallStack(5)
	s.enter("origin")
	s.enter("a")
	s.enter("b")
	assert.Equal(t, "origin -> a -> b", s.path())
}

// =============================================================================
// Cycle containment through the engine
// =============================================================================

func TestEngine_MutualRecursionTerminates(t *testing.T) {
	var logs bytes.Buffer
	e := New(WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	loadJSON(t, e, `{
		"metadata": {"name": "loop"},
		"grammar": {"origin": "#a#", "a": "#b#", "b": "#a#"},
		"entry_points": {"default": "origin"}
	}`)

	out, err := e.Generate("loop", GenerateOptions{})
	require.NoError(t, err)
	assert.Contains(t, out, "[CYCLE DETECTED: a]")
	assert.Contains(t, logs.String(), "cycle detected")
	assert.Equal(t, 0, e.stack.depth(), "stack must unwind after a cycle")
}

func TestEngine_SelfReferenceWithinLimitExpands(t *testing.T) {
	e := newTestEngine()
	loadJSON(t, e, `{
		"metadata": {"name": "nest"},
		"grammar": {"origin": "#x#", "x": "(#y#)", "y": "(#z#)", "z": "core"},
		"entry_points": {"default": "origin"}
	}`)

	out, err := e.Generate("nest", GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "((core))", out)
}

func TestEngine_CycleLimitOption(t *testing.T) {
	e := New(WithLogger(discardLogger()), WithCycleLimit(2))
	loadJSON(t, e, `{
		"metadata": {"name": "self"},
		"grammar": {"origin": "x#origin#"},
		"entry_points": {"default": "origin"}
	}`)

	out, err := e.Generate("self", GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "xx[CYCLE DETECTED: origin]", out)
	assert.Equal(t, 0, e.stack.depth())
}

func TestEngine_StackBalancedAcrossCalls(t *testing.T) {
	e := newTestEngine()
	loadJSON(t, e, `{
		"metadata": {"name": "b"},
		"grammar": {"origin": "#missing# #known#", "known": ["k"]},
		"entry_points": {"default": "origin"}
	}`)

	for i := 0; i < 10; i++ {
		_, err := e.Generate("b", GenerateOptions{})
		require.NoError(t, err)
		_, err = e.Generate("b", GenerateOptions{EntryPoint: "nope"})
		require.NoError(t, err)
		assert.Equal(t, 0, e.stack.depth())
	}
}
