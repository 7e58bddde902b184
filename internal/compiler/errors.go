package compiler

import "fmt"

// Compile error codes (E200-E299). Any of these fails a bundle load.
const (
	ErrMissingName       = "E201" // metadata.name absent
	ErrMissingGrammar    = "E202" // grammar absent or not an object
	ErrEmptyGrammar      = "E203" // grammar has no rules
	ErrMissingEntryPoint = "E204" // entry_points.default absent or empty
	ErrMalformedField    = "E205" // a top-level field has the wrong shape
	ErrMalformedBundle   = "E206" // document root is not an object
)

// CompileError is a caller-contract violation found while compiling a
// bundle document. It identifies the offending field.
type CompileError struct {
	Code    string
	Field   string
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
}
