package display

import (
	"errors"
	"fmt"
	"time"

	"github.com/bnema/wlclient"
	"github.com/bnema/wlclient/internal/logger"
)

type flushState int

const (
	flushIdle flushState = iota
	flushPreparingRead
	flushReading
	flushDispatching
)

func (s flushState) String() string {
	switch s {
	case flushIdle:
		return "idle"
	case flushPreparingRead:
		return "preparing-read"
	case flushReading:
		return "reading"
	case flushDispatching:
		return "dispatching"
	default:
		return "unknown"
	}
}

// FlushTasks flushes when window membership changed or tasks are queued.
func (c *Connection) FlushTasks() {
	if !c.needsFlush && len(c.tasks) == 0 {
		return
	}
	c.Flush()
}

// Flush runs the queued tasks, then sends buffered requests and reads and
// dispatches whatever the compositor has sent. It never blocks on the socket.
//
// Events already queued are dispatched before the read is prepared, and
// everything read is dispatched before Flush returns. Failures are logged.
func (c *Connection) Flush() {
	c.ProcessTasks()
	defer func() { c.needsFlush = false }()

	if c.state != StateConnected {
		return
	}
	d := c.display

	read := false
	state := flushPreparingRead
	for state != flushIdle {
		c.trace(state)

		switch state {
		case flushPreparingRead:
			err := d.PrepareRead()
			switch {
			case err == nil:
				state = flushReading
			case errors.Is(err, wlclient.ErrQueueNotEmpty):
				state = flushDispatching
			default:
				logger.Warn("prepare read failed", "error", err)
				state = flushIdle
			}

		case flushReading:
			if err := d.Flush(); err != nil {
				d.CancelRead()
				logger.Warn("failed to send requests", "error", err)
				state = flushIdle
				break
			}
			if err := d.ReadEvents(); err != nil {
				logger.Warn("failed to read events", "error", err)
			}
			read = true
			state = flushDispatching

		case flushDispatching:
			if _, err := d.DispatchPending(); err != nil {
				logger.Warn("dispatch failed", "error", err)
				state = flushIdle
				break
			}
			if read {
				state = flushIdle
			} else {
				state = flushPreparingRead
			}
		}
	}
	c.trace(flushIdle)
	_ = c.checkFatal()
}

func (c *Connection) trace(s flushState) {
	if c.traceFlush != nil {
		c.traceFlush(s)
	}
}

// ProcessEvents sends buffered requests, then flushes if the socket has data
// waiting. It reports whether it flushed.
func (c *Connection) ProcessEvents() bool {
	if c.state != StateConnected {
		return false
	}
	if err := c.display.Flush(); err != nil {
		logger.Warn("failed to send requests", "error", err)
		_ = c.checkFatal()
		return false
	}
	ready, err := c.display.Readable()
	if err != nil {
		logger.Warn("failed to poll display", "error", err)
		return false
	}
	if !ready {
		return false
	}
	c.Flush()
	return true
}

// SyncDisplay runs the queued tasks and blocks until the compositor has
// processed every request sent so far, dispatching the dedicated queue
// meanwhile. Events that arrived for the default queue are dispatched before
// it returns.
//
// It returns the number of events dispatched from the dedicated queue, or -1
// with an error when the connection never completed its handshake or the
// wait failed. Options.SyncTimeout bounds the wait.
func (c *Connection) SyncDisplay() (int, error) {
	if c.queue == nil {
		return -1, ErrNotConnected
	}

	c.ProcessTasks()
	c.needsFlush = false
	d := c.display

	cb, err := d.Sync()
	if err != nil {
		return -1, c.syncFailed(err)
	}
	done := false
	cb.OnDone = func(uint32) { done = true }
	cb.SetQueue(c.queue)

	if c.opts.SyncTimeout > 0 {
		if err := d.SetReadDeadline(time.Now().Add(c.opts.SyncTimeout)); err != nil {
			return -1, c.syncFailed(err)
		}
		defer func() { _ = d.SetReadDeadline(time.Time{}) }()
	}

	count := 0
	for !done {
		n, err := d.DispatchQueue(c.queue)
		if err != nil {
			return -1, c.syncFailed(err)
		}
		count += n
	}

	if _, err := d.DispatchPending(); err != nil {
		return -1, c.syncFailed(err)
	}
	return count, nil
}

func (c *Connection) syncFailed(err error) error {
	_ = c.checkFatal()
	return fmt.Errorf("sync display: %w", err)
}
