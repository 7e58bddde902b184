package compiler

import (
	"fmt"

	"github.com/roach88/promptforge/internal/ir"
)

// CompileBundle normalises a decoded bundle document into an *ir.Bundle.
//
// The document is either an *ir.Object tree (from the loader, key order
// preserved) or plain map[string]any values. name overrides metadata.name
// when non-empty.
//
// Only the required top-level fields can fail compilation: metadata.name
// (unless name is given), a non-empty grammar, and entry_points.default.
// Rule bodies never fail; unreadable shapes compile to ir.Invalid and are
// reported by Validate.
func CompileBundle(doc any, name string) (*ir.Bundle, error) {
	root, ok := ir.AsObject(doc)
	if !ok {
		return nil, &CompileError{Code: ErrMalformedBundle, Field: "$", Message: "bundle must be an object"}
	}

	b := &ir.Bundle{Rules: make(map[string]ir.Rule)}

	meta, err := compileMetadata(root)
	if err != nil {
		return nil, err
	}
	if meta.Name == "" {
		return nil, &CompileError{Code: ErrMissingName, Field: "metadata.name", Message: "bundle must have metadata with name"}
	}
	b.Metadata = meta
	b.Name = name
	if b.Name == "" {
		b.Name = meta.Name
	}

	grammarNode, ok := root.Get("grammar")
	if !ok {
		return nil, &CompileError{Code: ErrMissingGrammar, Field: "grammar", Message: "bundle must have grammar rules"}
	}
	grammar, ok := ir.AsObject(grammarNode)
	if !ok {
		return nil, &CompileError{Code: ErrMissingGrammar, Field: "grammar", Message: "grammar must be an object"}
	}
	if grammar.Len() == 0 {
		return nil, &CompileError{Code: ErrEmptyGrammar, Field: "grammar", Message: "grammar must not be empty"}
	}
	for _, ruleName := range grammar.Keys() {
		node, _ := grammar.Get(ruleName)
		b.Rules[ruleName] = CompileRule(node)
		b.RuleOrder = append(b.RuleOrder, ruleName)
	}

	if b.EntryPoints, err = compileEntryPoints(root); err != nil {
		return nil, err
	}
	if b.Variables, err = compileVariables(root); err != nil {
		return nil, err
	}
	if b.Targeting, err = compileTargeting(root); err != nil {
		return nil, err
	}
	if b.UIConfig, err = compileUIConfig(root); err != nil {
		return nil, err
	}

	return b, nil
}

func compileMetadata(root *ir.Object) (ir.Metadata, error) {
	var meta ir.Metadata
	node, ok := root.Get("metadata")
	if !ok {
		return meta, nil
	}
	obj, ok := ir.AsObject(node)
	if !ok {
		return meta, &CompileError{Code: ErrMalformedField, Field: "metadata", Message: "metadata must be an object"}
	}
	meta.Extra = obj
	if v, ok := obj.Get("name"); ok {
		s, isStr := v.(string)
		if !isStr {
			return meta, &CompileError{Code: ErrMalformedField, Field: "metadata.name", Message: "name must be a string"}
		}
		meta.Name = s
	}
	if v, ok := obj.Get("slotOrder"); ok {
		order, err := stringList(v, "metadata.slotOrder")
		if err != nil {
			return meta, err
		}
		meta.SlotOrder = order
	}
	return meta, nil
}

func compileEntryPoints(root *ir.Object) (ir.EntryPoints, error) {
	var ep ir.EntryPoints
	node, ok := root.Get("entry_points")
	if !ok {
		node, ok = root.Get("entryPoints")
	}
	obj, isObj := ir.AsObject(node)
	if !ok || !isObj {
		return ep, &CompileError{Code: ErrMissingEntryPoint, Field: "entry_points", Message: "bundle must have entry_points with default"}
	}
	def, _ := obj.Get("default")
	s, isStr := def.(string)
	if !isStr || s == "" {
		return ep, &CompileError{Code: ErrMissingEntryPoint, Field: "entry_points.default", Message: "bundle must have entry_points with default"}
	}
	ep.Default = s
	if alts, ok := obj.Get("alternatives"); ok {
		list, err := stringList(alts, "entry_points.alternatives")
		if err != nil {
			return ep, err
		}
		ep.Alternatives = list
	}
	return ep, nil
}

// compileVariables accepts `name: scalar` and `name: { default: scalar }`.
func compileVariables(root *ir.Object) ([]ir.Variable, error) {
	node, ok := root.Get("variables")
	if !ok || node == nil {
		return nil, nil
	}
	obj, ok := ir.AsObject(node)
	if !ok {
		return nil, &CompileError{Code: ErrMalformedField, Field: "variables", Message: "variables must be an object"}
	}
	vars := make([]ir.Variable, 0, obj.Len())
	for _, k := range obj.Keys() {
		raw, _ := obj.Get(k)
		if decl, isObj := ir.AsObject(raw); isObj {
			raw, _ = decl.Get("default")
		}
		def, _ := ir.ValueOf(raw)
		vars = append(vars, ir.Variable{Name: k, Default: def})
	}
	return vars, nil
}

func compileTargeting(root *ir.Object) (map[string]ir.Target, error) {
	node, ok := root.Get("targeting")
	if !ok || node == nil {
		return nil, nil
	}
	obj, ok := ir.AsObject(node)
	if !ok {
		return nil, &CompileError{Code: ErrMalformedField, Field: "targeting", Message: "targeting must be an object"}
	}
	targets := make(map[string]ir.Target, obj.Len())
	for _, name := range obj.Keys() {
		raw, _ := obj.Get(name)
		field := "targeting." + name
		tobj, ok := ir.AsObject(raw)
		if !ok {
			return nil, &CompileError{Code: ErrMalformedField, Field: field, Message: "target must be an object"}
		}
		tmpl, _ := tobj.Get("template")
		s, isStr := tmpl.(string)
		if !isStr {
			return nil, &CompileError{Code: ErrMalformedField, Field: field + ".template", Message: "template must be a string"}
		}
		target := ir.Target{Template: s}

		pm, ok := tobj.Get("parameterMap")
		if !ok {
			pm, ok = tobj.Get("parameter_map")
		}
		if ok {
			pmObj, isObj := ir.AsObject(pm)
			if !isObj {
				return nil, &CompileError{Code: ErrMalformedField, Field: field + ".parameterMap", Message: "parameterMap must be an object"}
			}
			target.ParameterMap = make(map[string]map[string]string, pmObj.Len())
			for _, rule := range pmObj.Keys() {
				mv, _ := pmObj.Get(rule)
				mapping, isObj := ir.AsObject(mv)
				if !isObj {
					return nil, &CompileError{Code: ErrMalformedField, Field: fmt.Sprintf("%s.parameterMap.%s", field, rule), Message: "mapping must be an object"}
				}
				m := make(map[string]string, mapping.Len())
				for _, from := range mapping.Keys() {
					to, _ := mapping.Get(from)
					m[from] = ir.Format(to)
				}
				target.ParameterMap[rule] = m
			}
		}
		targets[name] = target
	}
	return targets, nil
}

func compileUIConfig(root *ir.Object) (ir.UIConfig, error) {
	var cfg ir.UIConfig
	node, ok := root.Get("uiConfig")
	if !ok || node == nil {
		return cfg, nil
	}
	obj, ok := ir.AsObject(node)
	if !ok {
		return cfg, &CompileError{Code: ErrMalformedField, Field: "uiConfig", Message: "uiConfig must be an object"}
	}
	var err error
	if v, ok := obj.Get("lockable"); ok && v != nil {
		if cfg.Lockable, err = stringList(v, "uiConfig.lockable"); err != nil {
			return cfg, err
		}
		if cfg.Lockable == nil {
			cfg.Lockable = []string{}
		}
	}
	if v, ok := obj.Get("lockableExclude"); ok && v != nil {
		if cfg.LockableExclude, err = stringList(v, "uiConfig.lockableExclude"); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func stringList(v any, field string) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, &CompileError{Code: ErrMalformedField, Field: field, Message: "must be an array of strings"}
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, isStr := item.(string)
		if !isStr {
			return nil, &CompileError{Code: ErrMalformedField, Field: fmt.Sprintf("%s[%d]", field, i), Message: "must be a string"}
		}
		out = append(out, s)
	}
	return out, nil
}
