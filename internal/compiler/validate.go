package compiler

import (
	"fmt"
	"slices"

	"github.com/roach88/promptforge/internal/ir"
)

// Validation codes (E210-E399). These are authoring warnings: the engine
// still expands a bundle that has them, substituting placeholders.
const (
	ErrInvalidRule         = "E210" // rule shape not understood
	ErrUnknownRuleType     = "E211" // complex rule with unknown type
	ErrNoOptions           = "E212" // rule with no selectable options
	ErrMalformedOption     = "E213" // option without text/value
	ErrUnknownEntryPoint   = "E214" // entry point names no rule
	ErrUnresolvedReference = "E215" // #token# matches no rule or variable
	ErrUnknownTargetRule   = "E216" // parameterMap names no rule

	ErrMissingMeta = "E301" // rule lacks _meta with slot and priority
)

// ValidationError represents one authoring problem in a bundle.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate reports authoring problems in a compiled bundle.
// Returns all errors found (does not fail-fast), in rule order.
func Validate(b *ir.Bundle) []ValidationError {
	var errs []ValidationError
	add := func(code, field, format string, args ...any) {
		errs = append(errs, ValidationError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	known := func(name string) bool {
		if _, ok := b.Rules[name]; ok {
			return true
		}
		return slices.ContainsFunc(b.Variables, func(v ir.Variable) bool { return v.Name == name })
	}
	checkRefs := func(field, text string) {
		for _, tok := range ir.Tokens(text) {
			if !known(tok.Name) {
				add(ErrUnresolvedReference, field, "#%s# matches no rule or variable", tok.Name)
			}
		}
	}
	checkOptions := func(field string, opts []ir.Option) {
		selectable := 0
		for i, opt := range opts {
			if opt.Malformed {
				add(ErrMalformedOption, fmt.Sprintf("%s[%d]", field, i), "option needs text or value")
				continue
			}
			selectable++
			checkRefs(fmt.Sprintf("%s[%d]", field, i), opt.Text)
		}
		if selectable == 0 {
			add(ErrNoOptions, field, "rule has no selectable options")
		}
	}

	for _, name := range b.RuleOrder {
		field := "grammar." + name
		switch r := b.Rules[name].(type) {
		case ir.Literal:
			checkRefs(field, r.Text)
		case ir.OptionList:
			checkOptions(field, r.Options)
		case ir.FieldWrapped:
			checkOptions(field+"."+r.Field, r.List.Options)
		case ir.Complex:
			if !r.Known() {
				add(ErrUnknownRuleType, field, "unknown rule type %q", r.Kind)
				continue
			}
			checkOptions(field+".options", r.Options)
			if r.Fallback != nil {
				checkRefs(field+".fallback", *r.Fallback)
			}
		case ir.Invalid:
			add(ErrInvalidRule, field, "%s", r.Reason)
		}
	}

	entry := b.EntryPoints.Default
	if len(ir.Tokens(entry)) > 0 {
		checkRefs("entry_points.default", entry)
	} else if _, ok := b.Rules[entry]; !ok {
		add(ErrUnknownEntryPoint, "entry_points.default", "no rule named %q", entry)
	}
	for i, alt := range b.EntryPoints.Alternatives {
		if _, ok := b.Rules[alt]; !ok && len(ir.Tokens(alt)) == 0 {
			add(ErrUnknownEntryPoint, fmt.Sprintf("entry_points.alternatives[%d]", i), "no rule named %q", alt)
		}
	}

	for _, target := range sortedKeys(b.Targeting) {
		t := b.Targeting[target]
		checkRefs("targeting."+target+".template", t.Template)
		for _, rule := range sortedKeys(t.ParameterMap) {
			if _, ok := b.Rules[rule]; !ok {
				add(ErrUnknownTargetRule, "targeting."+target+".parameterMap", "no rule named %q", rule)
			}
		}
	}

	return errs
}

// LintMetadata reports rules without a _meta marker carrying slot and
// priority. Connector is optional.
func LintMetadata(b *ir.Bundle) []ValidationError {
	var errs []ValidationError
	for _, name := range b.RuleOrder {
		meta := b.Rules[name].Meta()
		if meta == nil || meta.Slot == "" || !meta.HasPriority {
			errs = append(errs, ValidationError{
				Code:    ErrMissingMeta,
				Field:   "grammar." + name,
				Message: fmt.Sprintf("rule '%s' is missing _meta", name),
			})
		}
	}
	return errs
}

// Inventory lists prompt-visible names: the sorted union of grammar rules
// and declared variables (both can appear as #tokens#).
func Inventory(b *ir.Bundle) []string {
	names := slices.Clone(b.RuleOrder)
	for _, v := range b.Variables {
		names = append(names, v.Name)
	}
	slices.Sort(names)
	return slices.Compact(names)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
