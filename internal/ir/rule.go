package ir

// Rule is a sealed interface over the grammar rule shapes. The shape is
// decided once, when a bundle is compiled.
type Rule interface {
	rule() // Sealed

	// Meta returns the marker found on the rule's first meaningful entry.
	Meta() *Meta
}

// Literal is a template string, possibly containing #tokens#.
type Literal struct {
	Text string
}

func (Literal) rule() {}

func (Literal) Meta() *Meta { return nil }

// OptionList is the simple or weighted array form.
type OptionList struct {
	Options []Option

	// Marker is the meta carried by the array's leading entry.
	Marker *Meta

	// Lockable reports whether the first substantive entry is a bare string
	// or an object with text/value.
	Lockable bool

	// Invalid counts entries that are neither strings nor text-bearing
	// objects; they never become candidates.
	Invalid int
}

func (OptionList) rule() {}

func (l OptionList) Meta() *Meta { return l.Marker }

// FieldWrapped is the legacy `{ species: [...] }` shape. It is normalised
// to an OptionList at compile time; Field records the wrapping key.
type FieldWrapped struct {
	Field string
	List  OptionList
}

func (FieldWrapped) rule() {}

func (f FieldWrapped) Meta() *Meta { return f.List.Marker }

// ComplexKind enumerates the typed complex rule kinds.
type ComplexKind string

const (
	KindWeighted    ComplexKind = "weighted"
	KindConditional ComplexKind = "conditional"
	KindSequential  ComplexKind = "sequential"
	KindMarkov      ComplexKind = "markov"
)

// Complex is a rule with an explicit type field.
type Complex struct {
	Kind     ComplexKind
	Options  []Option
	Fallback *string
	Marker   *Meta
}

func (Complex) rule() {}

func (c Complex) Meta() *Meta { return c.Marker }

// Known reports whether Kind is one the engine can dispatch.
func (c Complex) Known() bool {
	switch c.Kind {
	case KindWeighted, KindConditional, KindSequential, KindMarkov:
		return true
	}
	return false
}

// Invalid is a rule whose shape matched nothing the engine understands.
// Reason is surfaced by validation; expansion renders a placeholder.
type Invalid struct {
	Reason string
	Marker *Meta
}

func (Invalid) rule() {}

func (i Invalid) Meta() *Meta { return i.Marker }
