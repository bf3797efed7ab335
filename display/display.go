// Package display manages the single connection a client holds to its
// compositor.
//
// A Host owns at most one Connection. The Connection discovers the
// compositor's globals, binds the ones it knows, tracks the windows built on
// top of it and runs deferred tasks at flush points, where it also performs
// the prepare/read/dispatch handshake on the socket. Everything here is meant
// to be driven from one goroutine, usually through a Loop.
package display

import (
	"errors"
	"sync"
	"time"
)

// ErrNotConnected is returned by operations that need a connection whose
// initial handshake succeeded.
var ErrNotConnected = errors.New("display: not connected")

// State describes how far a Connection got.
type State int

const (
	// StateDisconnected is a connection that was torn down on request.
	StateDisconnected State = iota
	// StateConnected is a connection that completed its initial round-trip.
	StateConnected
	// StateFailed is a connection that could not connect or lost the
	// compositor. It stays allocated until DestroyDisplay.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Quitter receives the stop signal sent when the last window goes away.
type Quitter interface {
	Quit()
}

// Options configures the connections a Host creates.
type Options struct {
	// Quitter is told to stop once the last window is removed. May be nil.
	Quitter Quitter

	// SyncTimeout bounds the wait in SyncDisplay. Zero waits forever.
	SyncTimeout time.Duration
}

// Host owns the process's connection to the compositor and guarantees there
// is never more than one.
type Host struct {
	opts Options

	mu   sync.Mutex
	conn *Connection
}

// NewHost creates a host without a connection.
func NewHost(opts Options) *Host {
	return &Host{opts: opts}
}

// Connect connects to the named display, or returns the existing connection
// if there is one. An empty name selects the default display.
//
// The returned Connection is never nil. Check its State to learn whether the
// connection works.
func (h *Host) Connect(name string) *Connection {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conn == nil {
		h.conn = newConnection(h.opts, name)
	}
	return h.conn
}

// Display returns the current connection, or nil.
func (h *Host) Display() *Connection {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn
}

// DestroyDisplay tears down the current connection. It does nothing when
// there is none.
func (h *Host) DestroyDisplay() {
	h.mu.Lock()
	conn := h.conn
	h.conn = nil
	h.mu.Unlock()

	if conn == nil {
		return
	}
	conn.terminate()
	conn.state = StateDisconnected
}
