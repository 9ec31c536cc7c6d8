package harness

import (
	"context"
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Requests []string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Requests) > 0 {
		fmt.Fprintf(&buf, "\nRequests:\n")
		for i, r := range e.Requests {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, r)
		}
	}
	return buf.String()
}

// stateSource answers the final-state assertions.
type stateSource interface {
	activePhase(ctx context.Context) (string, error)
	recordCount(ctx context.Context, collection string) (int, error)
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. An empty slice means all assertions held.
func EvaluateAssertions(ctx context.Context, result *Result, assertions []Assertion, state stateSource) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(ctx, result, a, state); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(ctx context.Context, result *Result, a Assertion, state stateSource) error {
	switch a.Type {
	case AssertRequestOrder:
		return assertRequestOrder(result.Requests, a.Requests)
	case AssertRequestCount:
		return assertRequestCount(result.Requests, a.Request, a.Count)
	case AssertQueueLength:
		return assertCount(AssertQueueLength, a.Count, result.Queue)
	case AssertDeadLetters:
		return assertCount(AssertDeadLetters, a.Count, result.DeadLetters)
	case AssertSessionPhase:
		phase, err := state.activePhase(ctx)
		if err != nil {
			return err
		}
		if phase != a.Phase {
			return &AssertionError{Type: a.Type, Expected: a.Phase, Actual: phase}
		}
		return nil
	case AssertRecordCount:
		n, err := state.recordCount(ctx, a.Collection)
		if err != nil {
			return err
		}
		return assertCount(AssertRecordCount+" "+a.Collection, a.Count, n)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertRequestOrder checks that want appears in requests in this
// relative order. Other requests may interleave; each expected request
// is matched after the previous match.
func assertRequestOrder(requests, want []string) error {
	pos := 0
	for _, w := range want {
		found := false
		for pos < len(requests) {
			pos++
			if requests[pos-1] == w {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertRequestOrder,
				Expected: fmt.Sprintf("requests in order: %v", want),
				Actual:   fmt.Sprintf("%s missing or out of order", w),
				Requests: requests,
			}
		}
	}
	return nil
}

func assertRequestCount(requests []string, want string, count int) error {
	n := 0
	for _, r := range requests {
		if r == want {
			n++
		}
	}
	if n != count {
		return &AssertionError{
			Type:     AssertRequestCount,
			Expected: fmt.Sprintf("%s sent %d times", want, count),
			Actual:   fmt.Sprintf("sent %d times", n),
			Requests: requests,
		}
	}
	return nil
}

func assertCount(kind string, want, got int) error {
	if want != got {
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("%d", want),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}
