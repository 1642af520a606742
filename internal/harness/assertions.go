package harness

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/roach88/carbonspin/internal/runner"
)

// defaultTolerance is the final_pool tolerance when none is given.
const defaultTolerance = 1e-9

// AssertionError is returned when an assertion fails.
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
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%s #%d] %s %d %s\n", ev.Unit, ev.Seq, ev.Phase, ev.Year, ev.Disturbance)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertFinalPool:
		return assertFinalPool(result, a)
	case AssertSpinup:
		return assertSpinup(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// filterTrace keeps the events matching the assertion's unit, phase and
// year filters.
func filterTrace(trace []TraceEvent, a Assertion) []TraceEvent {
	var out []TraceEvent
	for _, ev := range trace {
		if a.Unit != "" && ev.Unit != a.Unit {
			continue
		}
		if a.Phase != "" && ev.Phase != a.Phase {
			continue
		}
		if a.Year != nil && ev.Year != *a.Year {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func describeFilter(a Assertion) string {
	var parts []string
	if a.Unit != "" {
		parts = append(parts, "unit="+a.Unit)
	}
	if a.Phase != "" {
		parts = append(parts, "phase="+a.Phase)
	}
	if a.Year != nil {
		parts = append(parts, fmt.Sprintf("year=%d", *a.Year))
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range filterTrace(trace, a) {
		if ev.Disturbance == a.Disturbance {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("disturbance %s%s", a.Disturbance, describeFilter(a)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first occurrences of the disturbances
// appear in the given order. Intervening events are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	events := filterTrace(trace, a)
	positions := make(map[string]int)
	for i, ev := range events {
		if _, seen := positions[ev.Disturbance]; !seen {
			positions[ev.Disturbance] = i + 1
		}
	}

	for _, d := range a.Disturbances {
		if positions[d] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all disturbances present: %v%s", a.Disturbances, describeFilter(a)),
				Actual:   fmt.Sprintf("missing disturbance: %s", d),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Disturbances); i++ {
		prev, curr := a.Disturbances[i-1], a.Disturbances[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("disturbances in order: %v%s", a.Disturbances, describeFilter(a)),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range filterTrace(trace, a) {
		if ev.Disturbance == a.Disturbance {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s%s", a.Count, a.Disturbance, describeFilter(a)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertFinalPool(result *Result, a Assertion) error {
	u, err := unitFor(result, a)
	if err != nil {
		return err
	}
	got, ok := u.Pool(a.Pool)
	if !ok {
		return &AssertionError{
			Type:     AssertFinalPool,
			Expected: fmt.Sprintf("pool %s on unit %s", a.Pool, u.Unit),
			Actual:   "pool not found",
		}
	}
	tol := a.Tolerance
	if tol == 0 {
		tol = defaultTolerance
	}
	if math.Abs(got-*a.Value) > tol {
		return &AssertionError{
			Type:     AssertFinalPool,
			Expected: fmt.Sprintf("%s on unit %s = %g (±%g)", a.Pool, u.Unit, *a.Value, tol),
			Actual:   fmt.Sprintf("%g", got),
		}
	}
	return nil
}

// assertSpinup compares one field of the spin-up result by its JSON name.
func assertSpinup(result *Result, a Assertion) error {
	u, err := unitFor(result, a)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(u.Spinup)
	if err != nil {
		return fmt.Errorf("encode spinup result: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("decode spinup result: %w", err)
	}
	got, ok := fields[a.Field]
	if !ok {
		return fmt.Errorf("unknown spinup field %q", a.Field)
	}
	if fmt.Sprint(got) != fmt.Sprint(a.Expect) {
		return &AssertionError{
			Type:     AssertSpinup,
			Expected: fmt.Sprintf("%s on unit %s = %v", a.Field, u.Unit, a.Expect),
			Actual:   fmt.Sprint(got),
		}
	}
	return nil
}

// unitFor resolves the assertion's unit. The unit may be omitted when the
// run has exactly one.
func unitFor(result *Result, a Assertion) (*runner.UnitResult, error) {
	if a.Unit == "" {
		if len(result.Units) != 1 {
			return nil, fmt.Errorf("%s: unit is required when %d units ran", a.Type, len(result.Units))
		}
		return result.Units[0], nil
	}
	u, ok := result.Unit(a.Unit)
	if !ok {
		return nil, fmt.Errorf("%s: unit %q did not run", a.Type, a.Unit)
	}
	return u, nil
}
