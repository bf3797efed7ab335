package display

import (
	"context"
	"sync"
	"time"
)

// DefaultFlushInterval is the Loop tick used when none is given.
const DefaultFlushInterval = 16 * time.Millisecond

// Loop drives a Connection: on every tick it flushes pending work and
// services the socket. It implements Quitter, so it can be handed to a Host
// to stop once the last window closes.
type Loop struct {
	interval time.Duration
	quit     chan struct{}
	once     sync.Once
}

// NewLoop creates a loop ticking at interval.
func NewLoop(interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Loop{
		interval: interval,
		quit:     make(chan struct{}),
	}
}

// Quit stops Run. Calling it more than once is harmless.
func (l *Loop) Quit() {
	l.once.Do(func() { close(l.quit) })
}

// Done is closed once Quit has been called.
func (l *Loop) Done() <-chan struct{} {
	return l.quit
}

// Run services c until Quit is called, ctx ends or the connection fails.
func (l *Loop) Run(ctx context.Context, c *Connection) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		c.FlushTasks()
		c.ProcessEvents()
		if c.State() == StateFailed {
			return c.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.quit:
			return nil
		case <-ticker.C:
		}
	}
}
