// Package session models one operator's scan-review-submit cycle as an
// explicit state machine.
//
// Transition is pure; Session drives it, calling the resolver and submitter
// and feeding their outcomes back as events. A UI only dispatches operator
// actions and renders Snapshot.
package session

import "fmt"

// State is a session state.
type State int

const (
	Idle State = iota
	Resolving
	Reviewing
	Submitting
	Queued
)

var stateNames = [...]string{"idle", "resolving", "reviewing", "submitting", "queued"}

// String returns the lower-case state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Event drives a transition.
type Event int

const (
	ScanReceived Event = iota
	Resolved
	ResolveFailed
	SubmitRequested
	Sent
	QueuedLocally
	Rejected
	SubmitFailed
	Reset
)

var eventNames = [...]string{
	"scan_received", "resolved", "resolve_failed", "submit_requested",
	"sent", "queued_locally", "rejected", "submit_failed", "reset",
}

// String returns the snake_case event name.
func (e Event) String() string {
	if e < 0 || int(e) >= len(eventNames) {
		return fmt.Sprintf("event(%d)", int(e))
	}
	return eventNames[e]
}

type edge struct {
	from State
	on   Event
}

var transitions = map[edge]State{
	{Idle, ScanReceived}: Resolving,
	{Idle, Reset}:        Idle,

	{Resolving, Resolved}:      Reviewing,
	{Resolving, ResolveFailed}: Idle,

	{Reviewing, SubmitRequested}: Submitting,
	{Reviewing, Reset}:           Idle,

	{Submitting, Sent}:          Idle,
	{Submitting, QueuedLocally}: Queued,
	{Submitting, Rejected}:      Reviewing,
	{Submitting, SubmitFailed}:  Reviewing,

	{Queued, Reset}: Idle,
}

// Transition returns the state reached from s on e. Events that are not
// valid in s leave it unchanged and report false.
func Transition(s State, e Event) (State, bool) {
	next, ok := transitions[edge{s, e}]
	if !ok {
		return s, false
	}
	return next, true
}
