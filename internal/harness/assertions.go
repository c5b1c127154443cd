package harness

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/fieldcheck/internal/app"
	"github.com/roach88/fieldcheck/internal/session"
	"github.com/roach88/fieldcheck/internal/testutil"
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

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Action, formatMap(event.Outcome))
		}
	}

	return buf.String()
}

// assertTraceContains checks if the trace contains a step matching the
// specified action and outcome (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Action == assertion.Action && len(mismatches(assertion.Outcome, event.Outcome)) == 0 {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("step %s with outcome %s", assertion.Action, formatMap(assertion.Outcome)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if actions appear in the specified order.
// Actions don't need to be consecutive (intervening steps are allowed), and a
// repeated action matches its next occurrence.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for _, want := range assertion.Actions {
		found := false
		for pos < len(trace) {
			pos++
			if trace[pos-1].Action == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual:   fmt.Sprintf("no %s after step %d", want, pos),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the action appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Action == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState checks the subject's state against assertion.Expect
// using subset semantics.
func assertFinalState(actx *AssertionContext, assertion Assertion) error {
	state, err := actx.snapshot(assertion.Subject, assertion.Where)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("read %s state", assertion.Subject),
			Actual:   err.Error(),
		}
	}

	if diffs := mismatches(assertion.Expect, state); len(diffs) > 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s %s", assertion.Subject, formatMap(assertion.Expect)),
			Actual:   strings.Join(diffs, "; "),
		}
	}
	return nil
}

// AssertionContext provides access to final state.
type AssertionContext struct {
	Ctx     context.Context
	App     *app.App
	Remote  *testutil.FakeRemote
	Session *session.Session
}

// snapshot reads the current state of subject as a flat map.
func (a *AssertionContext) snapshot(subject string, where map[string]interface{}) (map[string]interface{}, error) {
	out := map[string]interface{}{}

	switch subject {
	case SubjectQueue:
		entries, err := a.App.Queue.DequeueAll(a.Ctx)
		if err != nil {
			return nil, err
		}
		out["length"] = len(entries)
		if len(entries) > 0 {
			head := entries[0]
			out["head_asset_id"] = head.Request.AssetID
			out["head_status"] = string(head.Request.CheckStatus)
			out["head_attempts"] = head.AttemptCount
			out["head_last_error"] = head.LastError
		}

	case SubjectRemote:
		out["submitted"] = len(a.Remote.Accepted())
		out["submit_calls"] = a.Remote.CallCount("submit")
		out["get_calls"] = a.Remote.CallCount("get")
		out["search_calls"] = a.Remote.CallCount("search")

	case SubjectSession:
		snap := a.Session.Snapshot()
		out["state"] = snap.State.String()
		out["message"] = snap.Message

	case SubjectCache:
		id, ok := where["asset_id"]
		if !ok {
			n, err := a.App.Cache.Len(a.Ctx)
			if err != nil {
				return nil, err
			}
			out["size"] = n
			break
		}
		cached, found, err := a.App.Cache.Lookup(a.Ctx, fmt.Sprint(id))
		if err != nil {
			return nil, err
		}
		out["present"] = found
		if found {
			out["asset_name"] = cached.AssetName
			out["status"] = string(cached.Status)
		}

	default:
		return nil, fmt.Errorf("unknown subject %q", subject)
	}

	return out, nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides state access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.App == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires an app context", i)
			} else {
				err = assertFinalState(actx, assertion)
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

// mismatches lists every key of expected that actual lacks or disagrees
// with. Extra keys in actual are ignored. Keys are reported in sorted order.
func mismatches(expected, actual map[string]interface{}) []string {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []string
	for _, key := range keys {
		got, ok := actual[key]
		if !ok {
			out = append(out, fmt.Sprintf("%s: expected %v, got nothing", key, expected[key]))
			continue
		}
		if !valuesEqual(expected[key], got) {
			out = append(out, fmt.Sprintf("%s: expected %v, got %v", key, expected[key], got))
		}
	}
	return out
}

// valuesEqual compares an expected value decoded from YAML with an actual
// outcome value. Integers compare by value whatever their Go type.
func valuesEqual(expected, actual interface{}) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	if e, ok := asInt64(expected); ok {
		a, ok := asInt64(actual)
		return ok && e == a
	}

	return reflect.DeepEqual(expected, actual)
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

// formatMap renders a map with sorted keys.
func formatMap(m map[string]interface{}) string {
	if len(m) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
