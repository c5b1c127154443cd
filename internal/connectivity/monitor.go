// Package connectivity tracks whether the device can reach the remote service
// and notifies subscribers when that changes.
package connectivity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// State is the platform's view of the network.
type State struct {
	LinkUp            bool `json:"link_up"`
	InternetReachable bool `json:"internet_reachable"`
}

// Usable reports whether requests to the remote service should be attempted.
func (s State) Usable() bool {
	return s.LinkUp && s.InternetReachable
}

// Signal is the platform connectivity feed: push-based changes plus an
// on-demand read.
type Signal interface {
	// Fetch reads the current state.
	Fetch(ctx context.Context) (State, error)

	// Watch registers fn for every pushed state change and returns a
	// function that unregisters it.
	Watch(fn func(State)) (stop func())
}

// Policy decides the state assumed when the initial Fetch fails.
type Policy string

const (
	// PolicyAssumeOnline keeps the app usable when the platform signal is
	// broken; remote calls then fail and fall back to the queue.
	PolicyAssumeOnline Policy = "assume_online"

	// PolicyAssumeOffline queues everything until the signal reports online.
	PolicyAssumeOffline Policy = "assume_offline"
)

// ParsePolicy validates a policy name. The empty string selects
// PolicyAssumeOnline.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyAssumeOnline:
		return PolicyAssumeOnline, nil
	case PolicyAssumeOffline:
		return PolicyAssumeOffline, nil
	}
	return "", fmt.Errorf("unknown connectivity policy %q", s)
}

func (p Policy) fallback() bool {
	return p != PolicyAssumeOffline
}

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("connectivity monitor already started")

// Monitor projects a Signal onto a single connected flag.
//
// Thread-safety: all methods are safe for concurrent use. Subscribers are
// notified while the monitor's lock is held, through buffered channels, so
// notification never blocks on a slow reader.
type Monitor struct {
	signal Signal
	policy Policy
	log    *slog.Logger

	mu        sync.Mutex
	connected bool
	pushes    uint64 // pushed events seen, for reconciling with Fetch
	started   bool
	stopWatch func()
	subs      map[*Subscription]struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) {
		m.log = l
	}
}

// New creates a Monitor over signal. Until Start completes, IsConnected
// reports the policy's fallback state.
func New(signal Signal, policy Policy, opts ...Option) *Monitor {
	m := &Monitor{
		signal: signal,
		policy: policy,
		log:    slog.Default(),
		subs:   make(map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.connected = policy.fallback()
	return m
}

// Start subscribes to the signal's push feed and then requests a fresh read.
// A pushed event that arrives while the read is in flight wins over the read.
// If the read fails, the policy's fallback state applies.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	before := m.pushes
	m.mu.Unlock()

	stop := m.signal.Watch(m.push)

	state, err := m.signal.Fetch(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopWatch = stop

	if m.pushes != before {
		// feed already delivered something newer
		return nil
	}
	if err != nil {
		m.log.Warn("connectivity fetch failed, applying policy",
			"policy", m.policy,
			"connected", m.policy.fallback(),
			"error", err,
		)
		m.setLocked(m.policy.fallback())
		return nil
	}
	m.setLocked(state.Usable())
	return nil
}

// Stop detaches from the signal and closes every subscription.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopWatch != nil {
		m.stopWatch()
		m.stopWatch = nil
	}
	for sub := range m.subs {
		sub.closeLocked()
	}
}

// IsConnected returns the current usable state.
func (m *Monitor) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Set forces the connected flag, as if the platform had pushed it.
// The CLI uses this for --offline.
func (m *Monitor) Set(connected bool) {
	m.push(State{LinkUp: connected, InternetReachable: connected})
}

// Subscribe returns a subscription that immediately receives the current
// state and then every change.
func (m *Monitor) Subscribe() *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub := &Subscription{m: m, ch: make(chan bool, 1)}
	m.subs[sub] = struct{}{}
	sub.deliver(m.connected)
	return sub
}

func (m *Monitor) push(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushes++
	m.setLocked(s.Usable())
}

func (m *Monitor) setLocked(connected bool) {
	if m.connected == connected {
		return
	}
	m.connected = connected
	m.log.Info("connectivity changed", "connected", connected)
	for sub := range m.subs {
		sub.deliver(connected)
	}
}

// Subscription receives connected-state notifications.
//
// The channel holds at most one pending value; a newer state replaces an
// unread older one, so a reader always sees the latest state.
type Subscription struct {
	m      *Monitor
	ch     chan bool
	closed bool
}

// C returns the notification channel. It is closed by Close or Monitor.Stop.
func (s *Subscription) C() <-chan bool {
	return s.ch
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.closeLocked()
}

func (s *Subscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	delete(s.m.subs, s)
	close(s.ch)
}

// deliver must be called with the monitor lock held.
func (s *Subscription) deliver(v bool) {
	if s.closed {
		return
	}
	select {
	case s.ch <- v:
		return
	default:
	}
	// drop the stale value, keep the latest
	select {
	case <-s.ch:
	default:
	}
	s.ch <- v
}
