package testutil

import (
	"context"
	"sync"

	"github.com/roach88/fieldcheck/internal/connectivity"
)

// FakeSignal is a connectivity.Signal driven by the test.
type FakeSignal struct {
	mu       sync.Mutex
	state    connectivity.State
	fetchErr error
	watchers map[int]func(connectivity.State)
	next     int
}

var _ connectivity.Signal = (*FakeSignal)(nil)

// NewFakeSignal creates a signal reporting online (true) or offline (false).
func NewFakeSignal(online bool) *FakeSignal {
	return &FakeSignal{
		state:    stateFor(online),
		watchers: make(map[int]func(connectivity.State)),
	}
}

// FailFetch makes Fetch return err.
func (s *FakeSignal) FailFetch(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchErr = err
}

// Fetch implements connectivity.Signal.
func (s *FakeSignal) Fetch(context.Context) (connectivity.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.fetchErr
}

// Watch implements connectivity.Signal.
func (s *FakeSignal) Watch(fn func(connectivity.State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.watchers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

// SetOnline pushes a state change to every watcher.
func (s *FakeSignal) SetOnline(online bool) {
	s.mu.Lock()
	s.state = stateFor(online)
	state := s.state
	fns := make([]func(connectivity.State), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

func stateFor(online bool) connectivity.State {
	return connectivity.State{LinkUp: online, InternetReachable: online}
}
