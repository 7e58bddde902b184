package ir

// Bundle is a compiled grammar bundle. Immutable after compilation.
type Bundle struct {
	// Name identifies the bundle (metadata.name unless overridden at load).
	Name string `json:"name"`

	// Rules holds every grammar rule by name.
	Rules map[string]Rule `json:"-"`

	// RuleOrder lists rule names in authored order.
	RuleOrder []string `json:"rule_order"`

	// Variables holds declared defaults in authored order.
	Variables []Variable `json:"variables,omitempty"`

	EntryPoints EntryPoints       `json:"entry_points"`
	Targeting   map[string]Target `json:"targeting,omitempty"`
	Metadata    Metadata          `json:"metadata"`
	UIConfig    UIConfig          `json:"ui_config"`
}

// Rule looks up a grammar rule by name.
func (b *Bundle) Rule(name string) (Rule, bool) {
	if b == nil {
		return nil, false
	}
	r, ok := b.Rules[name]
	return r, ok
}

// Variable is a declared variable with its default value.
// Default is nil when the declaration carries no usable scalar.
type Variable struct {
	Name    string `json:"name"`
	Default Value  `json:"default,omitempty"`
}

// EntryPoints names the rule (or inline template) generation starts from.
type EntryPoints struct {
	Default      string   `json:"default"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// Target is an alternate output shape for a downstream consumer.
// ParameterMap maps rule name -> expanded value -> replacement.
type Target struct {
	Template     string                       `json:"template"`
	ParameterMap map[string]map[string]string `json:"parameter_map,omitempty"`
}

// Metadata is the free-form bundle metadata. The engine reads Name and
// SlotOrder; everything else is kept in Extra for presentation layers.
type Metadata struct {
	Name      string   `json:"name"`
	SlotOrder []string `json:"slot_order,omitempty"`
	Extra     *Object  `json:"-"`
}

// UIConfig filters which rules are offered as lockable.
// A nil Lockable means "no whitelist".
type UIConfig struct {
	Lockable        []string `json:"lockable,omitempty"`
	LockableExclude []string `json:"lockable_exclude,omitempty"`
}

// Meta is the slot/connector marker attached to a rule for readable prompt
// assembly. It never influences selection.
type Meta struct {
	Slot      string `json:"slot,omitempty"`
	Connector string `json:"connector,omitempty"`
	Priority  int    `json:"priority,omitempty"`
	UILabel   string `json:"ui_label,omitempty"`

	// HasPriority distinguishes an explicit priority 0 from an absent one.
	HasPriority bool `json:"-"`
}

// Option is one selectable alternative.
type Option struct {
	Text string `json:"text"`

	// Weight defaults to 1. A weight of 0 keeps the option out of weighted
	// draws while any positive-weight candidate exists.
	Weight float64 `json:"weight"`

	Conditions Condition `json:"-"`
	Actions    []Action  `json:"-"`

	// Joiner is used by sequential rules; nil means a single space.
	Joiner *string `json:"joiner,omitempty"`

	// Meta is the option's own marker, if it carries one.
	Meta *Meta `json:"meta,omitempty"`

	// Plain marks options authored as bare strings.
	Plain bool `json:"-"`

	// Malformed marks entries with neither text nor value. They are never
	// selected; sequential rules render a placeholder in their position.
	Malformed bool `json:"-"`
}

// Action is one action spec. Arrays of specs compile to []Action applied
// in order.
type Action struct {
	Set       []SetOp    `json:"set,omitempty"`
	Increment []AdjustOp `json:"increment,omitempty"`
	Decrement []AdjustOp `json:"decrement,omitempty"`
}

// SetOp assigns Value, or multiplies the current value by Multiply when
// Multiply is non-nil.
type SetOp struct {
	Var      string   `json:"var"`
	Value    Value    `json:"value,omitempty"`
	Multiply *float64 `json:"multiply,omitempty"`
}

// AdjustOp adds (increment) or subtracts (decrement) Amount.
type AdjustOp struct {
	Var    string `json:"var"`
	Amount Value  `json:"amount"`
}
