package engine

import (
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/promptforge/internal/compiler"
	"github.com/roach88/promptforge/internal/ir"
)

// Engine loads bundles and generates text from them.
//
// It owns the loaded bundles, the variable store, the override map and
// the random source. An Engine is not safe for concurrent use; hosts that
// serve several callers give each session its own Engine or serialize
// access.
type Engine struct {
	bundles map[string]*ir.Bundle
	order   []string // load order
	active  string

	vars      *VariableStore
	overrides map[string]string
	modifiers map[string]Modifier

	src    Source
	seed   string
	seeded bool

	stack     *callStack
	passLimit int
	logger    *slog.Logger
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithCycleLimit sets how many times a rule may be active at once.
//
// Default: 5 (DefaultCycleLimit)
func WithCycleLimit(limit int) EngineOption {
	return func(e *Engine) {
		e.stack = newCallStack(limit)
	}
}

// WithPassLimit sets the rule-expansion pass cap for one string.
//
// Default: 10 (DefaultPassLimit)
func WithPassLimit(limit int) EngineOption {
	return func(e *Engine) {
		if limit > 0 {
			e.passLimit = limit
		}
	}
}

// WithSource replaces the random source. Tests use it to script draws.
func WithSource(src Source) EngineOption {
	return func(e *Engine) {
		e.src = src
	}
}

// WithLogger sets the logger for authoring diagnostics.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithModifier registers an extra token modifier.
func WithModifier(name string, m Modifier) EngineOption {
	return func(e *Engine) {
		e.modifiers[name] = m
	}
}

// New creates an Engine with no bundles loaded and an unseeded source.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		bundles:   make(map[string]*ir.Bundle),
		vars:      NewVariableStore(),
		overrides: make(map[string]string),
		modifiers: builtinModifiers(),
		src:       unseededSource,
		stack:     newCallStack(DefaultCycleLimit),
		passLimit: DefaultPassLimit,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GenerateOptions selects how a generation starts.
type GenerateOptions struct {
	// EntryPoint overrides entry_points.default. A value containing '#' is
	// treated as an inline template.
	EntryPoint string

	// Context supplies per-call variable values that shadow the store.
	Context map[string]any

	// Target renders a targeting template instead of the grammar.
	// Ignored by GenerateDetailed.
	Target string
}

// Result is the output of GenerateDetailed.
type Result struct {
	Raw      string    `json:"raw"`
	Readable string    `json:"readable"`
	Segments []Segment `json:"segments"`
}

// LoadBundle compiles a decoded bundle document and registers it under
// name, or under metadata.name when name is empty. Reloading a name
// replaces the bundle and resets its variables to their defaults.
func (e *Engine) LoadBundle(doc any, name string) (string, error) {
	b, err := compiler.CompileBundle(doc, name)
	if err != nil {
		e.logger.Error("failed to load bundle", "bundle", name, "error", err)
		return "", err
	}
	e.Register(b)
	return b.Name, nil
}

// Register adds an already compiled bundle.
func (e *Engine) Register(b *ir.Bundle) {
	if _, exists := e.bundles[b.Name]; exists {
		e.vars.Purge(b.Name)
	} else {
		e.order = append(e.order, b.Name)
	}
	e.bundles[b.Name] = b
	for _, v := range b.Variables {
		e.vars.Set(b.Name, v.Name, v.Default)
	}
	e.logger.Info("loaded bundle", "bundle", b.Name, "rules", len(b.RuleOrder), "variables", len(b.Variables))
}

// UnloadBundle removes a bundle and its variables. Unloading the active
// bundle clears the selection.
func (e *Engine) UnloadBundle(name string) {
	if _, ok := e.bundles[name]; !ok {
		return
	}
	delete(e.bundles, name)
	e.order = slices.DeleteFunc(e.order, func(n string) bool { return n == name })
	e.vars.Purge(name)
	if e.active == name {
		e.active = ""
	}
	e.logger.Debug("unloaded bundle", "bundle", name)
}

// Bundles lists loaded bundle names in load order.
func (e *Engine) Bundles() []string {
	return slices.Clone(e.order)
}

// Bundle returns a loaded bundle.
func (e *Engine) Bundle(name string) (*ir.Bundle, bool) {
	b, ok := e.bundles[name]
	return b, ok
}

// SelectBundle makes name the active bundle. An unknown name is logged
// and clears the selection; check ActiveBundle afterwards.
func (e *Engine) SelectBundle(name string) {
	if _, ok := e.bundles[name]; !ok {
		e.logger.Warn("bundle not found", "bundle", name)
		e.active = ""
		return
	}
	e.active = name
	e.logger.Debug("selected bundle", "bundle", name)
}

// ActiveBundle returns the selected bundle name, or "" when none is.
func (e *Engine) ActiveBundle() string {
	return e.active
}

// BundleInfo returns a bundle's metadata.
func (e *Engine) BundleInfo(name string) (ir.Metadata, bool) {
	b, ok := e.bundles[name]
	if !ok {
		return ir.Metadata{}, false
	}
	return b.Metadata, true
}

// Variables snapshots a bundle's current variable values.
func (e *Engine) Variables(bundle string) map[string]ir.Value {
	return e.vars.Snapshot(bundle)
}

// VariableKeys lists a bundle's declared variables in authored order.
func (e *Engine) VariableKeys(bundle string) []string {
	b, ok := e.bundles[bundle]
	if !ok {
		return nil
	}
	keys := make([]string, len(b.Variables))
	for i, v := range b.Variables {
		keys[i] = v.Name
	}
	return keys
}

// SetSeed switches to a Mulberry32 source seeded from seed, so the same
// seed replays the same sequence of generations.
func (e *Engine) SetSeed(seed string) {
	e.seed = seed
	e.seeded = true
	e.src = NewSeededSource(seed)
}

// Seed returns the current seed, if one is set.
func (e *Engine) Seed() (string, bool) {
	return e.seed, e.seeded
}

// Reseed drops the seed and returns to the unseeded source.
func (e *Engine) Reseed() {
	e.seed = ""
	e.seeded = false
	e.src = unseededSource
}

// RegisterModifier adds or replaces a token modifier.
func (e *Engine) RegisterModifier(name string, m Modifier) {
	e.modifiers[name] = m
}

// SetOverride pins rule to value for every later generation.
func (e *Engine) SetOverride(rule, value string) {
	e.overrides[rule] = value
}

// ClearOverride unpins rule.
func (e *Engine) ClearOverride(rule string) {
	delete(e.overrides, rule)
}

// ClearOverrides unpins every rule.
func (e *Engine) ClearOverrides() {
	clear(e.overrides)
}

// ReplaceOverrides installs a copy of overrides, dropping the old map.
func (e *Engine) ReplaceOverrides(overrides map[string]string) {
	e.overrides = maps.Clone(overrides)
	if e.overrides == nil {
		e.overrides = make(map[string]string)
	}
}

// Overrides returns a copy of the override map.
func (e *Engine) Overrides() map[string]string {
	return maps.Clone(e.overrides)
}

// LockableRules lists, in authored order, the rules a user may pin: rules
// whose first substantive option is a plain string or carries text/value.
// uiConfig.lockable restricts the list and uiConfig.lockableExclude removes
// from it.
func (e *Engine) LockableRules(name string) []string {
	if name == "" {
		name = e.active
	}
	b, ok := e.bundles[name]
	if !ok {
		return nil
	}
	var out []string
	for _, rule := range b.RuleOrder {
		if b.UIConfig.Lockable != nil && !slices.Contains(b.UIConfig.Lockable, rule) {
			continue
		}
		if slices.Contains(b.UIConfig.LockableExclude, rule) {
			continue
		}
		if lockable(b.Rules[rule]) {
			out = append(out, rule)
		}
	}
	return out
}

func lockable(r ir.Rule) bool {
	list, ok := r.(ir.OptionList)
	return ok && list.Lockable
}

func (e *Engine) resolve(name string) (*ir.Bundle, error) {
	if name == "" {
		name = e.active
	}
	if name == "" {
		return nil, errNoBundleSelected()
	}
	b, ok := e.bundles[name]
	if !ok {
		return nil, errBundleNotFound(name)
	}
	return b, nil
}

// start expands the entry point: a rule name, or an inline template when
// it contains '#'.
func (g *generation) start(entry string) string {
	if strings.Contains(entry, "#") {
		return g.substitute(entry)
	}
	return g.expand(entry)
}

// Generate expands a bundle's entry point (or renders a target) and
// returns the raw text. name defaults to the active bundle.
func (e *Engine) Generate(name string, opts GenerateOptions) (string, error) {
	b, err := e.resolve(name)
	if err != nil {
		return "", err
	}
	g := e.newGeneration(b, opts.Context, false)
	if opts.Target != "" {
		return g.generateTarget(opts.Target)
	}
	entry := opts.EntryPoint
	if entry == "" {
		entry = b.EntryPoints.Default
	}
	return g.start(entry), nil
}

// GenerateDetailed is Generate plus the segment list and the readable,
// slot-ordered prompt. Without an explicit entry point, every slotOrder
// rule not already expanded is expanded too so the readable prompt
// covers all slots.
func (e *Engine) GenerateDetailed(name string, opts GenerateOptions) (*Result, error) {
	b, err := e.resolve(name)
	if err != nil {
		return nil, err
	}
	g := e.newGeneration(b, opts.Context, true)
	entry := opts.EntryPoint
	if entry == "" {
		entry = b.EntryPoints.Default
	}
	raw := g.start(entry)

	if opts.EntryPoint == "" {
		for _, slot := range b.Metadata.SlotOrder {
			if slot == entry {
				continue
			}
			if _, ok := b.Rule(slot); ok && !g.hasSegment(slot) {
				g.expand(slot)
			}
		}
	}

	segments := g.segments
	if segments == nil {
		segments = []Segment{}
	}
	return &Result{
		Raw:      raw,
		Readable: BuildReadable(b, segments),
		Segments: segments,
	}, nil
}
