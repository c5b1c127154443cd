package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/fieldcheck/internal/app"
	"github.com/roach88/fieldcheck/internal/asset"
	"github.com/roach88/fieldcheck/internal/config"
	"github.com/roach88/fieldcheck/internal/failure"
	"github.com/roach88/fieldcheck/internal/logging"
	"github.com/roach88/fieldcheck/internal/session"
	"github.com/roach88/fieldcheck/internal/syncer"
	"github.com/roach88/fieldcheck/internal/testutil"
)

// Epoch is the harness clock's starting instant. The clock advances one
// minute before every step.
var Epoch = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

const submitOp = "remote.submit_check"

var errTransient = failure.Transient(submitOp, 503, nil)

func rejection(msg string) error {
	return failure.ValidationRejected(submitOp, 400, msg)
}

// Harness is the scenario execution engine.
// It runs one scenario against a fresh app with deterministic clock and ids.
type Harness struct {
	app     *app.App
	remote  *testutil.FakeRemote
	signal  *testutil.FakeSignal
	clock   *testutil.ManualClock
	session *session.Session
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Step expectation and assertion failures are recorded in the result;
// the returned error is for scenarios that could not run at all.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	remote := testutil.NewFakeRemote()
	for _, f := range scenario.Remote.Assets {
		a := f.Asset()
		remote.Assets[a.AssetID] = a
	}
	for _, f := range scenario.Remote.Searchable {
		remote.Searchable = append(remote.Searchable, f.Asset())
	}

	signal := testutil.NewFakeSignal(scenario.Online)
	clock := testutil.NewManualClock(Epoch)

	cfg := config.Default()
	cfg.DatabasePath = ":memory:"

	a, err := app.New(ctx, cfg, logging.Discard(),
		app.WithRemote(remote),
		app.WithSignal(signal),
		app.WithIDGenerator(testutil.NewSequentialIDs("")),
		app.WithClock(clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start app: %w", err)
	}
	defer a.Close()

	for _, f := range scenario.Cache {
		if err := a.Cache.Store(ctx, f.Asset()); err != nil {
			return nil, fmt.Errorf("failed to seed cache: %w", err)
		}
	}

	h := &Harness{
		app:     a,
		remote:  remote,
		signal:  signal,
		clock:   clock,
		session: a.NewSession(),
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		clock.Advance(time.Minute)

		ev, err := h.execute(ctx, step, result)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		for _, diff := range mismatches(step.Expect, ev.Outcome) {
			result.AddError(fmt.Sprintf("steps[%d] %s: %s", i, step.Do, diff))
		}
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		App:     a,
		Remote:  remote,
		Session: h.session,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// execute runs one step and records it in the trace.
func (h *Harness) execute(ctx context.Context, step Step, result *Result) (TraceEvent, error) {
	input := map[string]interface{}{}
	var outcome map[string]interface{}

	switch step.Do {
	case StepScan:
		input["payload"] = step.Payload
		snap, err := h.session.Scan(ctx, step.Payload)
		outcome = sessionOutcome(snap, err)
		if err == nil && snap.Resolution != nil {
			outcome["asset_id"] = snap.Resolution.Asset.AssetID
			outcome["source"] = string(snap.Resolution.Source)
		}

	case StepSubmit:
		input["status"] = step.Status
		if step.Remark != "" {
			input["remark"] = step.Remark
		}
		date := asset.DateOf(h.clock.Now())
		if step.Date != "" {
			d, err := asset.ParseCheckDate(step.Date)
			if err != nil {
				return TraceEvent{}, err
			}
			date = d
		}
		input["date"] = date.String()

		snap, err := h.session.Submit(ctx, asset.ParseCheckStatus(step.Status), step.Remark, date)
		outcome = sessionOutcome(snap, err)
		if err == nil && snap.Receipt != nil {
			r := snap.Receipt
			outcome["disposition"] = string(r.Disposition)
			if r.Entry != nil {
				outcome["entry_id"] = r.Entry.EntryID
			}
			if r.Cause != "" {
				outcome["cause"] = r.Cause
			}
		}

	case StepReset:
		snap, err := h.session.Reset()
		outcome = sessionOutcome(snap, err)

	case StepDrain:
		res, err := h.app.Coordinator.Drain(ctx)
		outcome = map[string]interface{}{
			"sent":   res.SuccessCount,
			"failed": res.FailedCount,
		}
		if err != nil {
			outcome["error"] = errorCode(err)
		}
		n, err := h.app.Queue.Count(ctx)
		if err != nil {
			return TraceEvent{}, err
		}
		outcome["pending"] = n

	case StepGoOnline, StepGoOffline:
		h.signal.SetOnline(step.Do == StepGoOnline)
		outcome = map[string]interface{}{"connected": h.app.Monitor.IsConnected()}

	case StepFailSubmits:
		input["responses"] = step.Responses
		errs := make([]error, 0, len(step.Responses))
		for _, r := range step.Responses {
			e, err := parseResponse(r)
			if err != nil {
				return TraceEvent{}, err
			}
			errs = append(errs, e)
		}
		h.remote.FailSubmits(errs...)
		outcome = map[string]interface{}{"scripted": len(errs)}

	default:
		return TraceEvent{}, fmt.Errorf("unknown step %q", step.Do)
	}

	return result.addTrace(step.Do, input, outcome), nil
}

// sessionOutcome describes a session snapshot after a step.
func sessionOutcome(snap session.Snapshot, err error) map[string]interface{} {
	out := map[string]interface{}{"state": snap.State.String()}
	if snap.Message != "" {
		out["message"] = snap.Message
	}
	if err != nil {
		out["error"] = errorCode(err)
	}
	return out
}

// errorCode names err for traces: a failure code, or a short tag for the
// package sentinels.
func errorCode(err error) string {
	switch {
	case failure.CodeOf(err) != "":
		return string(failure.CodeOf(err))
	case errors.Is(err, session.ErrIgnored):
		return "IGNORED"
	case errors.Is(err, asset.ErrInvalidCheck):
		return "INVALID_CHECK"
	case errors.Is(err, syncer.ErrDrainInProgress):
		return "DRAIN_IN_PROGRESS"
	}
	return "ERROR"
}
