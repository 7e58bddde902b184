package engine

import "github.com/roach88/promptforge/internal/ir"

// Lookup resolves a variable name for the generation in progress.
// A false result means the variable is undefined.
type Lookup func(name string) (ir.Value, bool)

// Evaluate reports whether cond holds. A nil condition always holds.
//
// An undefined variable is unordered and unequal to every operand, so it
// fails every comparator except $ne.
func Evaluate(cond ir.Condition, lookup Lookup) bool {
	switch c := cond.(type) {
	case nil:
		return true
	case ir.Leaf:
		v, _ := lookup(c.Var)
		for _, cmp := range c.Comparisons {
			if !compare(v, cmp) {
				return false
			}
		}
		return true
	case ir.And:
		for _, child := range c {
			if !Evaluate(child, lookup) {
				return false
			}
		}
		return true
	case ir.Or:
		for _, child := range c {
			if Evaluate(child, lookup) {
				return true
			}
		}
		return false
	case ir.Not:
		return !Evaluate(c.Child, lookup)
	}
	return true
}

func compare(v ir.Value, cmp ir.Comparison) bool {
	switch cmp.Op {
	case ir.OpEQ:
		return ir.Equal(v, cmp.Operand)
	case ir.OpNE:
		return !ir.Equal(v, cmp.Operand)
	}

	c, ok := ir.Compare(v, cmp.Operand)
	if !ok {
		return false
	}
	switch cmp.Op {
	case ir.OpLT:
		return c < 0
	case ir.OpLTE:
		return c <= 0
	case ir.OpGT:
		return c > 0
	case ir.OpGTE:
		return c >= 0
	}
	return false
}
