package engine

import "github.com/roach88/promptforge/internal/ir"

// Scope is the variable view an action executes against.
type Scope interface {
	Lookup(name string) (ir.Value, bool)
	Assign(name string, v ir.Value)
}

// Apply runs actions left to right against scope.
//
// Arithmetic coerces operands with ir.ToNumber; a variable that is unset
// counts as 0. A set entry with neither a value nor $multiply is ignored.
func Apply(actions []ir.Action, scope Scope) {
	for _, a := range actions {
		for _, op := range a.Set {
			switch {
			case op.Multiply != nil:
				scope.Assign(op.Var, ir.Number(current(scope, op.Var)*(*op.Multiply)))
			case op.Value != nil:
				scope.Assign(op.Var, op.Value)
			}
		}
		for _, op := range a.Increment {
			scope.Assign(op.Var, ir.Number(current(scope, op.Var)+ir.ToNumber(op.Amount)))
		}
		for _, op := range a.Decrement {
			scope.Assign(op.Var, ir.Number(current(scope, op.Var)-ir.ToNumber(op.Amount)))
		}
	}
}

func current(scope Scope, name string) float64 {
	v, ok := scope.Lookup(name)
	if !ok || v == nil {
		return 0
	}
	return ir.ToNumber(v)
}
