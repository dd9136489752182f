package harness

import (
	"fmt"
	"strings"

	"github.com/seamlang/seam/internal/ir"
)

// AssertionError is returned when a trace assertion fails.
// It includes the full trace to help debug the failure.
type AssertionError struct {
	Type     string          // assertion type for categorization
	Expected string          // human-readable expected outcome
	Actual   string          // human-readable actual outcome
	Trace    []ir.TraceEvent // full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s", ev.Seq, ev.Kind, ev.Func)
		if ev.From != "" || ev.To != "" {
			fmt.Fprintf(&buf, " (%s -> %s)", ev.From, ev.To)
		}
		buf.WriteByte('\n')
	}

	return buf.String()
}

// EvaluateAssertions evaluates all assertions against a trace.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(trace []ir.TraceEvent, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(trace, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// assertTraceContains checks that some event in the trace matches the
// assertion's kind and, when given, its func/from/to fields (subset match).
func assertTraceContains(trace []ir.TraceEvent, assertion Assertion) error {
	for _, ev := range trace {
		if eventMatches(ev, assertion) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describeContains(assertion),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that event kinds appear in the given order.
// Kinds don't need to be adjacent; intervening events are allowed.
// Repeated kinds are matched greedily, so e.g. [RESUME, RESUME, COMPLETE]
// requires two distinct RESUME events before the COMPLETE.
func assertTraceOrder(trace []ir.TraceEvent, assertion Assertion) error {
	pos := 0
	for _, want := range assertion.Kinds {
		found := false
		for pos < len(trace) {
			ev := trace[pos]
			pos++
			if string(ev.Kind) == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("kinds in order: %v", assertion.Kinds),
				Actual:   fmt.Sprintf("no %s event after position %d", want, pos),
				Trace:    trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks that events of the kind appear exactly Count times.
func assertTraceCount(trace []ir.TraceEvent, assertion Assertion) error {
	count := 0
	for _, ev := range trace {
		if string(ev.Kind) == assertion.Kind {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Kind),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// eventMatches reports whether an event satisfies a trace_contains
// assertion. Unset assertion fields match anything.
func eventMatches(ev ir.TraceEvent, a Assertion) bool {
	if string(ev.Kind) != a.Kind {
		return false
	}
	if a.Func != "" && !funcMatches(ev.Func, a.Func) {
		return false
	}
	if a.From != "" && ev.From != a.From {
		return false
	}
	if a.To != "" && ev.To != a.To {
		return false
	}
	return true
}

// funcMatches compares an event's resolved signature against the
// asserted function. The assertion may give either the full signature
// ("fetch(url: Str) async -> Str") or just the bare name ("fetch").
func funcMatches(sig, want string) bool {
	if sig == want {
		return true
	}
	name, _, ok := strings.Cut(sig, "(")
	return ok && name == want
}

// describeContains renders a trace_contains assertion for error messages.
func describeContains(a Assertion) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "event kind=%s", a.Kind)
	if a.Func != "" {
		fmt.Fprintf(&buf, " func=%s", a.Func)
	}
	if a.From != "" {
		fmt.Fprintf(&buf, " from=%s", a.From)
	}
	if a.To != "" {
		fmt.Fprintf(&buf, " to=%s", a.To)
	}
	return buf.String()
}
