package connectivity

import "context"

// StaticSignal reports a fixed state and never pushes changes.
// Used by one-shot CLI commands.
type StaticSignal struct {
	State State
	Err   error
}

// Fetch implements Signal.
func (s StaticSignal) Fetch(context.Context) (State, error) {
	return s.State, s.Err
}

// Watch implements Signal. There is nothing to watch.
func (s StaticSignal) Watch(func(State)) func() {
	return func() {}
}

// Online is a StaticSignal reporting a usable network.
var Online = StaticSignal{State: State{LinkUp: true, InternetReachable: true}}

// Offline is a StaticSignal reporting no network.
var Offline = StaticSignal{}
