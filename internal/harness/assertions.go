package harness

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/promptforge/internal/ir"
	"github.com/roach88/promptforge/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
// This prevents SQL injection via identifier interpolation.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			if event.Error != "" {
				fmt.Fprintf(&buf, "  [%d] error: %s\n", event.Step, event.Error)
				continue
			}
			fmt.Fprintf(&buf, "  [%d] %q\n", event.Step, event.Raw)
		}
	}

	return buf.String()
}

// assertOutputContains checks that some step's output (or the named
// step's, when Step is set) contains the text.
func assertOutputContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if assertion.Step != 0 && event.Step != assertion.Step {
			continue
		}
		if event.Error == "" && strings.Contains(event.Raw, assertion.Text) {
			return nil
		}
	}

	where := "any step"
	if assertion.Step != 0 {
		where = fmt.Sprintf("step %d", assertion.Step)
	}
	return &AssertionError{
		Type:     AssertOutputContains,
		Expected: fmt.Sprintf("%q in the output of %s", assertion.Text, where),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// position locates the first occurrence of a text in the trace.
type position struct {
	step   int // 1-based, 0 when absent
	offset int
}

func (p position) before(q position) bool {
	if p.step != q.step {
		return p.step < q.step
	}
	return p.offset < q.offset
}

// assertOutputOrder checks that texts first appear in the specified order.
// Texts don't need to be adjacent, and two texts may share a step as long
// as their offsets are ordered.
func assertOutputOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]position, len(assertion.Texts))
	for _, text := range assertion.Texts {
		for _, event := range trace {
			if event.Error != "" {
				continue
			}
			if idx := strings.Index(event.Raw, text); idx >= 0 {
				positions[text] = position{step: event.Step, offset: idx}
				break
			}
		}
	}

	for _, text := range assertion.Texts {
		if positions[text].step == 0 {
			return &AssertionError{
				Type:     AssertOutputOrder,
				Expected: fmt.Sprintf("all texts present: %q", assertion.Texts),
				Actual:   fmt.Sprintf("missing text: %q", text),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Texts); i++ {
		prev := assertion.Texts[i-1]
		curr := assertion.Texts[i]

		if !positions[prev].before(positions[curr]) {
			return &AssertionError{
				Type:     AssertOutputOrder,
				Expected: fmt.Sprintf("texts in order: %q", assertion.Texts),
				Actual: fmt.Sprintf("%q (step %d) should be before %q (step %d)",
					prev, positions[prev].step, curr, positions[curr].step),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertOutputCount checks that exactly Count steps' outputs contain the text.
func assertOutputCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Error == "" && strings.Contains(event.Raw, assertion.Text) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertOutputCount,
			Expected: fmt.Sprintf("%d steps containing %q", assertion.Count, assertion.Text),
			Actual:   fmt.Sprintf("%d steps", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertVariable checks a bundle variable's final value. Comparison is
// strict: the number 5 does not equal the string "5".
func assertVariable(vars map[string]ir.Value, assertion Assertion) error {
	want, ok := ir.ValueOf(assertion.Value)
	if !ok {
		return fmt.Errorf("variable assertion on %q: unsupported expected value of type %T", assertion.Name, assertion.Value)
	}

	got, exists := vars[assertion.Name]
	if !exists {
		return &AssertionError{
			Type:     AssertVariable,
			Expected: fmt.Sprintf("%s = %s", assertion.Name, ir.Format(want)),
			Actual:   "variable not set",
		}
	}
	if !ir.Equal(got, want) {
		return &AssertionError{
			Type:     AssertVariable,
			Expected: fmt.Sprintf("%s = %s (%T)", assertion.Name, ir.Format(want), want),
			Actual:   fmt.Sprintf("%s = %s (%T)", assertion.Name, ir.Format(got), got),
		}
	}
	return nil
}

// assertFinalState checks if a store table contains expected values.
// Queries the table with parameterized SQL and validates expected values
// using subset semantics.
//
// Security: Table and column names are validated against a whitelist pattern
// to prevent SQL injection via identifier interpolation.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	if assertion.Table == "" {
		return fmt.Errorf("final_state assertion requires table name")
	}

	// Identifiers can't be parameterized
	if !validIdentifier.MatchString(assertion.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", assertion.Table, validIdentifier.String())
	}

	whereSQL, whereArgs, err := buildWhereClause(assertion.Where)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("SELECT * FROM %s", assertion.Table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	rows, err := st.Query(ctx, query, whereArgs...)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	if !rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "row not found",
		}
	}

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := rows.Scan(valuePtrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	// More than one match would make the assertion ambiguous
	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	actualRow := make(map[string]any, len(columns))
	for i, col := range columns {
		actualRow[col] = values[i]
	}

	// Sorted so the first reported mismatch is stable
	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		expectedValue := assertion.Expect[key]
		actualValue, exists := actualRow[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, columns),
			}
		}

		if !stateValuesEqual(expectedValue, actualValue) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}

	return nil
}

// buildWhereClause constructs parameterized WHERE clause from assertion.Where.
// Returns SQL fragment, arguments slice, and error. Keys are sorted for determinism.
//
// Security: Column names are validated against a whitelist pattern to prevent
// SQL injection via identifier interpolation.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))

	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", key))
		args = append(args, toSQLValue(where[key]))
	}

	return strings.Join(clauses, " AND "), args, nil
}

// toSQLValue converts a YAML-decoded value to a SQL-compatible value.
func toSQLValue(v any) any {
	switch val := v.(type) {
	case ir.String:
		return string(val)
	case ir.Number:
		return float64(val)
	case ir.Bool:
		return bool(val)
	case string, int, int64, float64, bool:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares expected and actual values from store tables.
// Handles type coercion for SQLite values which may be returned as different types.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil && actual == nil {
		return true
	}
	if expected == nil || actual == nil {
		return false
	}

	switch exp := expected.(type) {
	case string:
		switch act := actual.(type) {
		case string:
			return exp == act
		case []byte:
			return exp == string(act)
		}
		return false
	case int:
		return numericEqual(float64(exp), actual)
	case int64:
		return numericEqual(float64(exp), actual)
	case float64:
		return numericEqual(exp, actual)
	case bool:
		if actualBool, ok := actual.(bool); ok {
			return exp == actualBool
		}
		// SQLite stores booleans as integers
		if actualInt, ok := actual.(int64); ok {
			return exp == (actualInt != 0)
		}
		return false
	}

	return reflect.DeepEqual(expected, actual)
}

// numericEqual compares a number against an INTEGER or REAL column value.
func numericEqual(want float64, actual any) bool {
	switch act := actual.(type) {
	case int64:
		return want == float64(act)
	case int:
		return want == float64(act)
	case float64:
		return want == act || (math.IsNaN(want) && math.IsNaN(act))
	}
	return false
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertOutputContains:
			err = assertOutputContains(result.Trace, assertion)
		case AssertOutputOrder:
			err = assertOutputOrder(result.Trace, assertion)
		case AssertOutputCount:
			err = assertOutputCount(result.Trace, assertion)
		case AssertVariable:
			err = assertVariable(result.Variables, assertion)
		case AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
