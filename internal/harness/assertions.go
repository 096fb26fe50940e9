package harness

import (
	"fmt"
	"slices"
	"strings"
)

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

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		switch {
		case event.Type != EventFind:
			fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Type, event.Path)
		case event.Error != "":
			fmt.Fprintf(&buf, "  [%d] find %s: error: %s\n", event.Seq, event.Path, event.Error)
		default:
			fmt.Fprintf(&buf, "  [%d] find %s: %s %s\n", event.Seq, event.Path, event.Kind, event.DigestPath)
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var msgs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return msgs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result, a)
	case AssertTraceCount:
		return assertTraceCount(result, a)
	case AssertBundleOrder:
		return assertBundleOrder(result, a)
	case AssertDigestChanged:
		return assertDigestChanged(result, a)
	case AssertDigestUnchanged:
		return assertDigestUnchanged(result, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertTraceContains checks that some find of path produced a kind asset.
func assertTraceContains(result *Result, a Assertion) error {
	for _, ev := range result.Finds(a.Path) {
		if ev.Error == "" && ev.Kind == a.Kind {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("find %s producing a %s asset", a.Path, a.Kind),
		Actual:   "not found in trace",
		Trace:    result.Trace,
	}
}

// assertTraceCount checks that path was looked up exactly a.Count times.
func assertTraceCount(result *Result, a Assertion) error {
	got := len(result.Finds(a.Path))
	if got == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%d finds of %s", a.Count, a.Path),
		Actual:   fmt.Sprintf("%d finds", got),
		Trace:    result.Trace,
	}
}

// assertBundleOrder checks the constituents of the last find of path.
func assertBundleOrder(result *Result, a Assertion) error {
	finds := result.Finds(a.Path)
	if len(finds) == 0 {
		return &AssertionError{
			Type:     AssertBundleOrder,
			Expected: fmt.Sprintf("%s built with %v", a.Path, a.Assets),
			Actual:   "never looked up",
			Trace:    result.Trace,
		}
	}
	last := finds[len(finds)-1]
	if slices.Equal(last.Constituents, a.Assets) {
		return nil
	}
	return &AssertionError{
		Type:     AssertBundleOrder,
		Expected: fmt.Sprintf("%v", a.Assets),
		Actual:   fmt.Sprintf("%v", last.Constituents),
		Trace:    result.Trace,
	}
}

// assertDigestChanged checks that the first and last successful finds of
// path differ in digest path.
func assertDigestChanged(result *Result, a Assertion) error {
	digests := successfulDigests(result, a.Path)
	if len(digests) >= 2 && digests[0] != digests[len(digests)-1] {
		return nil
	}
	return &AssertionError{
		Type:     AssertDigestChanged,
		Expected: fmt.Sprintf("digest of %s to change", a.Path),
		Actual:   fmt.Sprintf("digests %v", digests),
		Trace:    result.Trace,
	}
}

// assertDigestUnchanged checks that every successful find of path produced
// the same digest path.
func assertDigestUnchanged(result *Result, a Assertion) error {
	digests := successfulDigests(result, a.Path)
	if len(digests) > 0 && len(slices.Compact(slices.Clone(digests))) == 1 {
		return nil
	}
	return &AssertionError{
		Type:     AssertDigestUnchanged,
		Expected: fmt.Sprintf("digest of %s to stay the same", a.Path),
		Actual:   fmt.Sprintf("digests %v", digests),
		Trace:    result.Trace,
	}
}

func successfulDigests(result *Result, path string) []string {
	var out []string
	for _, ev := range result.Finds(path) {
		if ev.Error == "" {
			out = append(out, ev.DigestPath)
		}
	}
	return out
}
