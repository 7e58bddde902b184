package compiler

import (
	"github.com/roach88/promptforge/internal/ir"
)

// CompileCondition turns a condition document into an ir.Condition.
//
// Accepted forms:
//
//	{ fuel: { $lt: 10, $gte: 2 } }         leaf, every comparator must hold
//	{ mood: "calm" }                       leaf shorthand for $eq
//	{ $and: [...] } { $or: [...] } { $not: {...} }
//
// An object with several keys holds when every key holds. A nil or empty
// document compiles to nil, which always holds. Unknown comparator names
// are ignored.
func CompileCondition(node any) ir.Condition {
	if node == nil {
		return nil
	}
	if items, ok := node.([]any); ok {
		return compileConditionList(items, func(cs []ir.Condition) ir.Condition { return ir.And(cs) })
	}
	obj, ok := ir.AsObject(node)
	if !ok || obj.Len() == 0 {
		return nil
	}

	var parts []ir.Condition
	for _, key := range obj.Keys() {
		v, _ := obj.Get(key)
		switch key {
		case "$and":
			items, _ := v.([]any)
			parts = append(parts, compileConditionList(items, func(cs []ir.Condition) ir.Condition { return ir.And(cs) }))
		case "$or":
			items, _ := v.([]any)
			parts = append(parts, compileConditionList(items, func(cs []ir.Condition) ir.Condition { return ir.Or(cs) }))
		case "$not":
			parts = append(parts, ir.Not{Child: CompileCondition(v)})
		default:
			parts = append(parts, compileLeaf(key, v))
		}
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return ir.And(parts)
}

func compileConditionList(items []any, wrap func([]ir.Condition) ir.Condition) ir.Condition {
	children := make([]ir.Condition, 0, len(items))
	for _, item := range items {
		children = append(children, CompileCondition(item))
	}
	return wrap(children)
}

func compileLeaf(varName string, spec any) ir.Condition {
	leaf := ir.Leaf{Var: varName}
	obj, ok := ir.AsObject(spec)
	if !ok {
		operand, _ := ir.ValueOf(spec)
		leaf.Comparisons = []ir.Comparison{{Op: ir.OpEQ, Operand: operand}}
		return leaf
	}
	for _, op := range obj.Keys() {
		if !ir.ValidOp(op) {
			continue
		}
		v, _ := obj.Get(op)
		operand, _ := ir.ValueOf(v)
		leaf.Comparisons = append(leaf.Comparisons, ir.Comparison{Op: ir.CompareOp(op), Operand: operand})
	}
	return leaf
}

// compileActions reads one action spec or an array of them.
func compileActions(node any) []ir.Action {
	if node == nil {
		return nil
	}
	if items, ok := node.([]any); ok {
		var out []ir.Action
		for _, item := range items {
			out = append(out, compileActions(item)...)
		}
		return out
	}
	obj, ok := ir.AsObject(node)
	if !ok {
		return nil
	}

	var act ir.Action
	if v, ok := obj.Get("set"); ok {
		if set, isObj := ir.AsObject(v); isObj {
			for _, name := range set.Keys() {
				raw, _ := set.Get(name)
				op := ir.SetOp{Var: name}
				if spec, isObj := ir.AsObject(raw); isObj {
					if m, has := spec.Get("$multiply"); has {
						f, _ := number(m)
						op.Multiply = &f
					}
				} else {
					op.Value, _ = ir.ValueOf(raw)
				}
				act.Set = append(act.Set, op)
			}
		}
	}
	act.Increment = compileAdjust(obj, "increment")
	act.Decrement = compileAdjust(obj, "decrement")

	if len(act.Set) == 0 && len(act.Increment) == 0 && len(act.Decrement) == 0 {
		return nil
	}
	return []ir.Action{act}
}

func compileAdjust(obj *ir.Object, key string) []ir.AdjustOp {
	v, ok := obj.Get(key)
	if !ok {
		return nil
	}
	m, ok := ir.AsObject(v)
	if !ok {
		return nil
	}
	ops := make([]ir.AdjustOp, 0, m.Len())
	for _, name := range m.Keys() {
		raw, _ := m.Get(name)
		amount, _ := ir.ValueOf(raw)
		ops = append(ops, ir.AdjustOp{Var: name, Amount: amount})
	}
	return ops
}
