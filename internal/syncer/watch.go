package syncer

import (
	"context"
	"errors"

	"github.com/roach88/fieldcheck/internal/connectivity"
)

// Subscriber is implemented by connectivity.Monitor.
type Subscriber interface {
	Subscribe() *connectivity.Subscription
}

// WatchConnectivity drains every time the connected state becomes true,
// including when it is already true at subscription time. It blocks until
// ctx is done or the subscription is closed.
func (c *Coordinator) WatchConnectivity(ctx context.Context, m Subscriber) error {
	sub := m.Subscribe()
	defer sub.Close()

	connected := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now, ok := <-sub.C():
			if !ok {
				return nil
			}
			if now && !connected {
				c.drainOnReconnect(ctx)
			}
			connected = now
		}
	}
}

func (c *Coordinator) drainOnReconnect(ctx context.Context) {
	c.log.Info("connectivity restored, draining")
	_, err := c.Drain(ctx)
	switch {
	case errors.Is(err, ErrDrainInProgress):
		c.log.Debug("drain already running, skipping reconnect drain")
	case err != nil:
		c.log.Error("reconnect drain failed", "error", err)
	}
}
