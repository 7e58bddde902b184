package compiler

import (
	"fmt"

	"github.com/roach88/promptforge/internal/ir"
)

// metaKey marks UI/ordering metadata inside rules and options.
const metaKey = "_meta"

// CompileRule decides a rule's shape once:
//
//	"text #token#"                  -> ir.Literal
//	[ "a", {text, weight, ...} ]    -> ir.OptionList
//	{ type: "weighted", ... }       -> ir.Complex
//	{ species: [...], actions: {} } -> ir.FieldWrapped
//
// Anything else compiles to ir.Invalid.
func CompileRule(node any) ir.Rule {
	switch val := node.(type) {
	case string:
		return ir.Literal{Text: val}
	case []any:
		return compileOptionList(val, nil)
	}

	obj, ok := ir.AsObject(node)
	if !ok {
		return ir.Invalid{Reason: fmt.Sprintf("unsupported rule value %T", node)}
	}
	marker := metaOf(obj)

	if t, ok := obj.Get("type"); ok {
		kind, isStr := t.(string)
		if !isStr {
			return ir.Invalid{Reason: "rule type must be a string", Marker: marker}
		}
		return compileComplex(ir.ComplexKind(kind), obj, marker)
	}

	// Legacy shape: the option array sits one level down in a named field.
	for _, k := range obj.Keys() {
		if k == metaKey || k == "actions" {
			continue
		}
		v, _ := obj.Get(k)
		items, isArr := v.([]any)
		if !isArr {
			continue
		}
		actionsNode, _ := obj.Get("actions")
		list := compileOptionList(items, compileActions(actionsNode))
		if marker != nil {
			list.Marker = marker
		}
		return ir.FieldWrapped{Field: k, List: list}
	}

	return ir.Invalid{Reason: "object rule has neither a type nor an option array", Marker: marker}
}

// compileOptionList builds the array form. shared actions (from a
// field-wrapped sibling) are appended to every option's own actions.
func compileOptionList(items []any, shared []ir.Action) ir.OptionList {
	var list ir.OptionList
	if len(items) > 0 {
		if obj, ok := ir.AsObject(items[0]); ok {
			list.Marker = metaOf(obj)
		}
	}

	substantiveSeen := false
	for _, item := range items {
		if isMetaOnly(item) {
			continue
		}
		opt := compileOption(item)
		if len(shared) > 0 {
			opt.Actions = append(append([]ir.Action(nil), opt.Actions...), shared...)
		}
		if !substantiveSeen {
			substantiveSeen = true
			list.Lockable = !opt.Malformed
		}
		if opt.Malformed {
			list.Invalid++
		}
		list.Options = append(list.Options, opt)
	}
	return list
}

func compileComplex(kind ir.ComplexKind, obj *ir.Object, marker *ir.Meta) ir.Complex {
	c := ir.Complex{Kind: kind, Marker: marker}

	optionsNode, _ := obj.Get("options")
	items, _ := optionsNode.([]any)
	var weights []any
	if w, ok := obj.Get("weights"); ok {
		weights, _ = w.([]any)
	}
	for i, item := range items {
		if isMetaOnly(item) {
			continue
		}
		opt := compileOption(item)
		if i < len(weights) {
			if w, ok := number(weights[i]); ok {
				opt.Weight = clampWeight(w)
			}
		}
		c.Options = append(c.Options, opt)
	}

	if fb, ok := obj.Get("fallback"); ok {
		if s, isStr := fb.(string); isStr {
			c.Fallback = &s
		}
	}
	return c
}

// compileOption reads a bare string or a {text|value, weight, conditions,
// actions, joiner, _meta} object.
func compileOption(item any) ir.Option {
	if s, ok := item.(string); ok {
		return ir.Option{Text: s, Weight: 1, Plain: true}
	}
	obj, ok := ir.AsObject(item)
	if !ok {
		if v, isScalar := ir.ValueOf(item); isScalar {
			return ir.Option{Text: v.String(), Weight: 1, Plain: true}
		}
		return ir.Option{Weight: 1, Malformed: true}
	}

	opt := ir.Option{Weight: 1, Meta: metaOf(obj)}
	text, hasText := scalarText(obj, "text")
	if !hasText {
		text, hasText = scalarText(obj, "value")
	}
	if !hasText {
		opt.Malformed = true
		return opt
	}
	opt.Text = text

	if w, ok := obj.Get("weight"); ok {
		if f, isNum := number(w); isNum {
			opt.Weight = clampWeight(f)
		}
	}
	if c, ok := obj.Get("conditions"); ok {
		opt.Conditions = CompileCondition(c)
	}
	if a, ok := obj.Get("actions"); ok {
		opt.Actions = compileActions(a)
	}
	if j, ok := obj.Get("joiner"); ok {
		if s, isStr := j.(string); isStr {
			opt.Joiner = &s
		}
	}
	return opt
}

func scalarText(obj *ir.Object, key string) (string, bool) {
	v, ok := obj.Get(key)
	if !ok {
		return "", false
	}
	val, isScalar := ir.ValueOf(v)
	if !isScalar {
		return "", false
	}
	return val.String(), true
}

func isMetaOnly(item any) bool {
	obj, ok := ir.AsObject(item)
	return ok && obj.Len() == 1 && obj.Has(metaKey)
}

func metaOf(obj *ir.Object) *ir.Meta {
	node, ok := obj.Get(metaKey)
	if !ok {
		return nil
	}
	m, ok := ir.AsObject(node)
	if !ok {
		return nil
	}
	meta := &ir.Meta{}
	if v, ok := m.Get("slot"); ok {
		meta.Slot = metaString(v)
	}
	if v, ok := m.Get("connector"); ok {
		meta.Connector = metaString(v)
	}
	if v, ok := m.Get("priority"); ok {
		if f, isNum := number(v); isNum {
			meta.Priority = int(f)
			meta.HasPriority = true
		}
	}
	if v, ok := m.Get("uiLabel"); ok {
		meta.UILabel = metaString(v)
	}
	return meta
}

func metaString(v any) string {
	if v == nil {
		return ""
	}
	return ir.Format(v)
}

func number(v any) (float64, bool) {
	val, ok := ir.ValueOf(v)
	if !ok {
		return 0, false
	}
	n, isNum := val.(ir.Number)
	return float64(n), isNum
}

func clampWeight(w float64) float64 {
	if w < 0 || w != w {
		return 0
	}
	return w
}
