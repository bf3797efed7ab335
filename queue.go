package wlclient

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/bnema/wlclient/internal/logger"
)

// EventQueue holds events read from the socket until they are dispatched.
// Each proxy belongs to one queue; events for it are appended there.
type EventQueue struct {
	display   *Display
	events    []*Event
	destroyed bool
}

// CreateQueue creates a new, empty event queue.
func (d *Display) CreateQueue() *EventQueue {
	return &EventQueue{display: d}
}

// DefaultQueue returns the queue used by proxies that were not assigned one.
func (d *Display) DefaultQueue() *EventQueue {
	return d.defaultQueue
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int {
	q.display.mu.Lock()
	defer q.display.mu.Unlock()
	return len(q.events)
}

// Destroy drops the queued events. Proxies still assigned to q fall back to
// the default queue. The default queue cannot be destroyed.
func (q *EventQueue) Destroy() {
	d := q.display
	if q == d.defaultQueue {
		return
	}

	d.mu.Lock()
	events := q.events
	q.events = nil
	q.destroyed = true
	d.mu.Unlock()

	for _, ev := range events {
		ev.release()
	}
}

// queueFor returns the queue events for p go to. Called with d.mu held.
func (d *Display) queueFor(p Proxy) *EventQueue {
	q := p.Queue()
	if q == nil || q.destroyed {
		return d.defaultQueue
	}
	return q
}

// PrepareRead announces the intent to read from the socket. It fails with
// ErrQueueNotEmpty while the default queue holds events, which the caller
// must dispatch before trying again. A successful call must be followed by
// ReadEvents or CancelRead.
func (d *Display) PrepareRead() error {
	return d.PrepareReadQueue(d.defaultQueue)
}

// PrepareReadQueue is PrepareRead for a specific queue.
func (d *Display) PrepareReadQueue(q *EventQueue) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lastError != nil {
		return d.lastError
	}
	if len(q.events) > 0 {
		return ErrQueueNotEmpty
	}
	d.readers++
	return nil
}

// CancelRead withdraws a successful PrepareRead.
func (d *Display) CancelRead() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.readers > 0 {
		d.readers--
	}
}

// ReadEvents reads whatever the socket holds without blocking and queues the
// complete events it contains. An empty socket is not an error.
func (d *Display) ReadEvents() error {
	return d.readEvents(false)
}

func (d *Display) readEvents(block bool) error {
	d.mu.Lock()
	if d.readers == 0 {
		d.mu.Unlock()
		return ErrReadNotPrepared
	}
	d.readers--
	if err := d.lastError; err != nil {
		d.mu.Unlock()
		return err
	}
	d.mu.Unlock()

	n, err := d.recvmsgWithFDs(d.readBuf[:], block)
	switch {
	case errors.Is(err, errWouldBlock):
		return nil
	case errors.Is(err, os.ErrDeadlineExceeded):
		return err
	case err != nil:
		return d.fail(fmt.Errorf("failed to read events: %w", err))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.in = append(d.in, d.readBuf[:n]...)
	return d.queueMessages()
}

// queueMessages splits the input buffer into events and appends each one to
// its proxy's queue. A trailing partial message stays buffered. Called with
// d.mu held.
func (d *Display) queueMessages() error {
	off := 0
	defer func() {
		d.in = append(d.in[:0], d.in[off:]...)
	}()

	for len(d.in)-off >= 8 {
		objectID := binary.LittleEndian.Uint32(d.in[off:])
		sizeOpcode := binary.LittleEndian.Uint32(d.in[off+4:])
		// Upper 16 bits = size (includes header), lower 16 bits = opcode
		size := int(sizeOpcode >> 16)
		opcode := uint16(sizeOpcode & 0xffff)

		if size < 8 || size%4 != 0 {
			return d.failLocked(fmt.Errorf("malformed event: object %d, opcode %d, size %d", objectID, opcode, size))
		}
		if len(d.in)-off < size {
			break
		}
		body := d.in[off+8 : off+size]
		off += size

		if objectID == displayID {
			if err := d.handleDisplayEvent(opcode, body); err != nil {
				return err
			}
			continue
		}

		p, ok := d.objects[objectID]
		if !ok {
			logger.Debug("dropping event for unknown object", "object", objectID, "opcode", opcode)
			continue
		}

		ev := eventPool.Get().(*Event)
		ev.ProxyID = objectID
		ev.Opcode = opcode
		ev.data = append(ev.data[:0], body...) // Reuse backing array
		ev.offset = 0
		ev.proxy = p
		ev.fds = &d.fds

		q := d.queueFor(p)
		q.events = append(q.events, ev)
	}
	return nil
}

// DispatchPending dispatches the events already in the default queue
// without reading from the socket. It returns how many were dispatched.
func (d *Display) DispatchPending() (int, error) {
	return d.DispatchQueuePending(d.defaultQueue)
}

// DispatchQueuePending is DispatchPending for a specific queue.
func (d *Display) DispatchQueuePending(q *EventQueue) (int, error) {
	count := 0
	for {
		d.mu.Lock()
		if err := d.lastError; err != nil {
			d.mu.Unlock()
			return count, err
		}
		if len(q.events) == 0 {
			d.mu.Unlock()
			return count, nil
		}
		ev := q.events[0]
		q.events[0] = nil
		q.events = q.events[1:]
		live := d.objects[ev.ProxyID] == ev.proxy
		d.mu.Unlock()

		if live {
			d.listeners.Dispatch(ev)
			ev.offset = 0
			ev.proxy.Dispatch(ev)
			count++
		}
		ev.release()
	}
}

// Dispatch is DispatchQueue on the default queue.
func (d *Display) Dispatch() (int, error) {
	return d.DispatchQueue(d.defaultQueue)
}

// DispatchQueue flushes pending requests and dispatches q. When q is empty it
// blocks until the socket is readable (or the read deadline passes), reads,
// and dispatches whatever arrived for q, which may be nothing.
func (d *Display) DispatchQueue(q *EventQueue) (int, error) {
	if err := d.Flush(); err != nil {
		return 0, err
	}

	if err := d.PrepareReadQueue(q); err != nil {
		if errors.Is(err, ErrQueueNotEmpty) {
			return d.DispatchQueuePending(q)
		}
		return 0, err
	}

	if err := d.readEvents(true); err != nil {
		return 0, err
	}
	return d.DispatchQueuePending(q)
}
