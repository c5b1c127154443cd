package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Connectivity gates scheduled drains.
type Connectivity interface {
	IsConnected() bool
}

// Parser accepts standard five-field expressions and descriptors such as
// "@every 5m" or "@hourly".
var Parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler runs periodic drains while connected.
type Scheduler struct {
	coord *Coordinator
	conn  Connectivity
	cron  *cron.Cron
	id    cron.EntryID
}

// NewScheduler creates a Scheduler. Nothing runs until Add and Start.
func NewScheduler(coord *Coordinator, conn Connectivity) *Scheduler {
	return &Scheduler{
		coord: coord,
		conn:  conn,
		cron: cron.New(
			cron.WithParser(Parser),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
	}
}

// Add registers the drain job under expr. Only one job may be registered.
func (s *Scheduler) Add(expr string) error {
	if s.id != 0 {
		return errors.New("drain schedule already registered")
	}
	id, err := s.cron.AddFunc(expr, s.tick)
	if err != nil {
		return fmt.Errorf("invalid drain schedule %q: %w", expr, err)
	}
	s.id = id
	return nil
}

// Start begins running the schedule in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and returns a context that is done once a running
// drain has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Next returns the next scheduled run, or the zero time when no job is
// registered or the scheduler has not started.
func (s *Scheduler) Next() time.Time {
	if s.id == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.id).Next
}

// NextAfter computes the next run of expr after from without scheduling it.
func NextAfter(expr string, from time.Time) (time.Time, error) {
	sched, err := Parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid drain schedule %q: %w", expr, err)
	}
	return sched.Next(from), nil
}

func (s *Scheduler) tick() {
	if !s.conn.IsConnected() {
		s.coord.log.Debug("scheduled drain skipped: offline")
		return
	}
	_, err := s.coord.Drain(context.Background())
	switch {
	case errors.Is(err, ErrDrainInProgress):
		s.coord.log.Debug("scheduled drain skipped: drain running")
	case err != nil:
		s.coord.log.Error("scheduled drain failed", "error", err)
	}
}
