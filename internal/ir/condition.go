package ir

// Condition is a sealed interface over the condition tree.
// A nil Condition always holds.
type Condition interface {
	condition() // Sealed
}

// CompareOp is a leaf comparator.
type CompareOp string

const (
	OpLT  CompareOp = "$lt"
	OpLTE CompareOp = "$lte"
	OpGT  CompareOp = "$gt"
	OpGTE CompareOp = "$gte"
	OpEQ  CompareOp = "$eq"
	OpNE  CompareOp = "$ne"
)

// ValidOp reports whether op is part of the comparator vocabulary.
func ValidOp(op string) bool {
	switch CompareOp(op) {
	case OpLT, OpLTE, OpGT, OpGTE, OpEQ, OpNE:
		return true
	}
	return false
}

// Comparison is one comparator and its operand.
type Comparison struct {
	Op      CompareOp
	Operand Value
}

// Leaf compares one variable against every listed comparison; all must hold.
type Leaf struct {
	Var         string
	Comparisons []Comparison
}

func (Leaf) condition() {}

// And holds when every child holds.
type And []Condition

func (And) condition() {}

// Or holds when at least one child holds.
type Or []Condition

func (Or) condition() {}

// Not negates its child.
type Not struct {
	Child Condition
}

func (Not) condition() {}
