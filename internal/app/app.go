// Package app constructs fieldcheck's components from configuration and
// manages their lifecycle. Nothing is global: every command builds its own
// App and passes the pieces explicitly.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/fieldcheck/internal/cache"
	"github.com/roach88/fieldcheck/internal/checkin"
	"github.com/roach88/fieldcheck/internal/config"
	"github.com/roach88/fieldcheck/internal/connectivity"
	"github.com/roach88/fieldcheck/internal/queue"
	"github.com/roach88/fieldcheck/internal/remote"
	"github.com/roach88/fieldcheck/internal/resolve"
	"github.com/roach88/fieldcheck/internal/session"
	"github.com/roach88/fieldcheck/internal/store"
	"github.com/roach88/fieldcheck/internal/syncer"
)

// App holds the wired components.
type App struct {
	cfg config.Config
	log *slog.Logger

	Store       *store.Store
	Cache       *cache.Cache
	Queue       *queue.Queue
	Remote      remote.Service
	Monitor     *connectivity.Monitor
	Resolver    *resolve.Resolver
	Submitter   *checkin.Submitter
	Coordinator *syncer.Coordinator

	mqtt *connectivity.MQTTSignal
}

// Option customizes construction.
type Option func(*options)

type options struct {
	offline bool
	remote  remote.Service
	signal  connectivity.Signal
	ids     queue.IDGenerator
	now     func() time.Time
}

// Offline forces the connectivity monitor to report disconnected.
func Offline() Option {
	return func(o *options) {
		o.offline = true
	}
}

// WithRemote replaces the HTTP client built from configuration.
func WithRemote(svc remote.Service) Option {
	return func(o *options) {
		o.remote = svc
	}
}

// WithSignal replaces the connectivity signal chosen from configuration.
func WithSignal(s connectivity.Signal) Option {
	return func(o *options) {
		o.signal = s
	}
}

// WithIDGenerator overrides queue entry ids.
func WithIDGenerator(g queue.IDGenerator) Option {
	return func(o *options) {
		o.ids = g
	}
}

// WithClock overrides the clock used for queue timestamps and drain stats.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New opens the store and builds every component. When an MQTT broker is
// configured New connects to it, waiting at most the configured connect
// timeout, so one-shot commands see the real state. The connectivity monitor
// is started before New returns. Call Close when done.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	policy, err := connectivity.ParsePolicy(cfg.Connectivity.OnFetchError)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, log: logger}

	a.Remote = o.remote
	if a.Remote == nil {
		a.Remote, err = a.buildRemote()
		if err != nil {
			return nil, err
		}
	}

	logger.Debug("opening store", "path", cfg.DatabasePath)
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.Store = st

	a.Cache = cache.New(st)

	qopts := []queue.Option{queue.WithLogger(logger), queue.WithClock(o.now)}
	if o.ids != nil {
		qopts = append(qopts, queue.WithIDGenerator(o.ids))
	}
	a.Queue = queue.New(st, qopts...)

	signal := a.buildSignal(o)
	if a.mqtt != nil {
		a.mqtt.Connect()
	}

	a.Monitor = connectivity.New(signal, policy, connectivity.WithLogger(logger))
	if err := a.Monitor.Start(ctx); err != nil {
		if a.mqtt != nil {
			a.mqtt.Close()
		}
		_ = st.Close()
		return nil, err
	}

	a.Resolver = resolve.New(a.Cache, a.Remote, a.Monitor, resolve.WithLogger(logger))
	a.Submitter = checkin.New(a.Remote, a.Queue, a.Monitor, checkin.WithLogger(logger))
	a.Coordinator = syncer.New(a.Remote, a.Queue, syncer.WithLogger(logger), syncer.WithClock(o.now))

	return a, nil
}

func (a *App) buildRemote() (remote.Service, error) {
	if a.cfg.Remote.BaseURL == "" {
		a.log.Warn("no remote base_url configured, working offline")
		return remote.Unavailable{}, nil
	}
	copts := []remote.ClientOption{remote.WithTimeout(a.cfg.Remote.TimeoutDuration())}
	if a.cfg.Remote.Token != "" {
		copts = append(copts, remote.WithToken(a.cfg.Remote.Token))
	}
	return remote.NewClient(a.cfg.Remote.BaseURL, copts...)
}

func (a *App) buildSignal(o *options) connectivity.Signal {
	switch {
	case o.offline:
		return connectivity.Offline
	case o.signal != nil:
		return o.signal
	case a.cfg.Remote.BaseURL == "" && o.remote == nil:
		return connectivity.Offline
	case a.cfg.Connectivity.MQTT.Broker != "":
		a.mqtt = connectivity.NewMQTTSignal(connectivity.MQTTOptions{
			Broker:         a.cfg.Connectivity.MQTT.Broker,
			ClientID:       a.cfg.Connectivity.MQTT.ClientID,
			ConnectTimeout: a.cfg.Connectivity.MQTT.ConnectTimeoutDuration(),
			Logger:         a.log,
		})
		return a.mqtt
	}
	return connectivity.Online
}

// NewSession starts an operator session over the app's resolver and submitter.
func (a *App) NewSession() *session.Session {
	return session.New(a.Resolver, a.Submitter, session.WithLogger(a.log))
}

// Run keeps fieldcheck running in the background: it drains on reconnect and
// on the cron schedule, and returns when ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Sync.Schedule != "" {
		sched := syncer.NewScheduler(a.Coordinator, a.Monitor)
		if err := sched.Add(a.cfg.Sync.Schedule); err != nil {
			return err
		}
		sched.Start()
		defer func() {
			<-sched.Stop().Done()
		}()
		a.log.Info("drain schedule active", "schedule", a.cfg.Sync.Schedule, "next", sched.Next())
	}

	watchErr := make(chan error, 1)
	if a.cfg.Sync.DrainOnReconnect {
		go func() { watchErr <- a.Coordinator.WatchConnectivity(ctx, a.Monitor) }()
	} else {
		close(watchErr)
	}

	<-ctx.Done()
	if err, ok := <-watchErr; ok && err != nil && !errors.Is(err, ctx.Err()) {
		return err
	}
	return nil
}

// Close stops the monitor, disconnects the MQTT probe and closes the store.
func (a *App) Close() error {
	a.Monitor.Stop()
	if a.mqtt != nil {
		a.mqtt.Close()
	}
	return a.Store.Close()
}
