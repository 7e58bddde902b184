package harness

import (
	"github.com/roach88/promptforge/internal/engine"
	"github.com/roach88/promptforge/internal/ir"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	// Seq is the history sequence number the step was recorded under.
	// Zero for failed steps, which are not recorded.
	Seq int64 `json:"seq"`

	// Step is the 1-based step index.
	Step int `json:"step"`

	Entry    string           `json:"entry,omitempty"`
	Target   string           `json:"target,omitempty"`
	Raw      string           `json:"raw"`
	Readable string           `json:"readable,omitempty"`
	Segments []engine.Segment `json:"segments,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Variables is the bundle's variable store after the last step.
	Variables map[string]ir.Value `json:"variables,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Trace:     []TraceEvent{},
		Errors:    []string{},
		Variables: make(map[string]ir.Value),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStepTrace appends a step event.
func (r *Result) AddStepTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}

// Outputs returns each step's raw output, in step order.
func (r *Result) Outputs() []string {
	out := make([]string, len(r.Trace))
	for i, event := range r.Trace {
		out[i] = event.Raw
	}
	return out
}
