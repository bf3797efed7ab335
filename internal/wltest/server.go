// Package wltest provides a minimal in-process compositor for tests.
//
// The server speaks just enough of the core protocol to drive a client
// through connection setup: it answers get_registry with its globals, replies
// to sync, and sends the initial events a compositor emits when wl_shm,
// wl_seat and wl_output are bound. Everything else is recorded and ignored.
package wltest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"sync"
	"testing"
)

// Global is a global the server advertises.
type Global struct {
	Name      uint32
	Interface string
	Version   uint32
}

// Request is a message received from the client.
type Request struct {
	ObjectID uint32
	Opcode   uint16
	Body     []byte
}

// Bound describes a bind request the server processed.
type Bound struct {
	Global
	ID uint32
}

// DefaultGlobals returns the globals of a small desktop compositor, plus one
// global the client does not know.
func DefaultGlobals() []Global {
	return []Global{
		{Name: 1, Interface: "wl_compositor", Version: 4},
		{Name: 2, Interface: "wl_shm", Version: 1},
		{Name: 3, Interface: "wl_output", Version: 3},
		{Name: 4, Interface: "wl_seat", Version: 5},
		{Name: 5, Interface: "wl_shell", Version: 1},
		{Name: 6, Interface: "wl_data_device_manager", Version: 3},
	}
}

// Option configures a Server.
type Option func(*Server)

// WithGlobals replaces the advertised globals.
func WithGlobals(globals ...Global) Option {
	return func(s *Server) {
		s.globals = globals
	}
}

// WithHangup makes the server close every connection right after accepting it.
func WithHangup() Option {
	return func(s *Server) {
		s.hangup = true
	}
}

// WithSyncReplies limits how many sync requests are answered. Later syncs
// never complete.
func WithSyncReplies(n int) Option {
	return func(s *Server) {
		s.syncLimit = n
	}
}

// Server is a fake compositor listening on a Unix socket.
type Server struct {
	t         testing.TB
	path      string
	ln        *net.UnixListener
	globals   []Global
	hangup    bool
	syncLimit int

	mu         sync.Mutex
	conn       *net.UnixConn
	registryID uint32
	bound      []Bound
	requests   []Request
	syncs      int
	serial     uint32

	closed    chan struct{}
	closeOnce sync.Once
}

// NewServer starts a server in a temporary directory. It is shut down when
// the test ends.
func NewServer(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		t:         t,
		path:      filepath.Join(t.TempDir(), "wayland-test"),
		globals:   DefaultGlobals(),
		syncLimit: -1,
		closed:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: s.path, Net: "unix"})
	if err != nil {
		t.Fatalf("wltest: listen: %v", err)
	}
	s.ln = ln

	go s.serve()
	t.Cleanup(s.Close)
	return s
}

// Path returns the socket path to pass to Connect.
func (s *Server) Path() string {
	return s.path
}

// Close stops the server and drops the client connection.
func (s *Server) Close() {
	_ = s.ln.Close()
	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.mu.Unlock()
}

// Disconnected is closed once the client connection has ended.
func (s *Server) Disconnected() <-chan struct{} {
	return s.closed
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Bound returns the binds processed so far for iface, or all binds when
// iface is empty.
func (s *Server) Bound(iface string) []Bound {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Bound
	for _, b := range s.bound {
		if iface == "" || b.Interface == iface {
			out = append(out, b)
		}
	}
	return out
}

// Announce advertises a new global on the client's registry.
func (s *Server) Announce(g Global) error {
	s.mu.Lock()
	s.globals = append(s.globals, g)
	registryID := s.registryID
	s.mu.Unlock()

	if registryID == 0 {
		return errors.New("wltest: client has no registry")
	}
	return s.SendEvent(registryID, 0, g.Name, g.Interface, g.Version)
}

// SendError sends wl_display.error.
func (s *Server) SendError(objectID, code uint32, message string) error {
	return s.SendEvent(1, 0, objectID, code, message)
}

// SendEvent sends an event. Arguments may be uint32, int32 or string.
func (s *Server) SendEvent(objectID uint32, opcode uint16, args ...interface{}) error {
	msg, err := encode(objectID, opcode, args...)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return errors.New("wltest: no client connected")
	}
	_, err = s.conn.Write(msg)
	return err
}

func (s *Server) serve() {
	defer s.closeOnce.Do(func() { close(s.closed) })

	conn, err := s.ln.AcceptUnix()
	if err != nil {
		return
	}
	if s.hangup {
		_ = conn.Close()
		return
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	var header [8]byte
	for {
		if _, err := io.ReadFull(conn, header[:]); err != nil {
			return
		}
		objectID := binary.LittleEndian.Uint32(header[0:4])
		sizeOpcode := binary.LittleEndian.Uint32(header[4:8])
		size := int(sizeOpcode >> 16)
		if size < 8 {
			s.t.Errorf("wltest: malformed request header: object %d, size %d", objectID, size)
			return
		}

		body := make([]byte, size-8)
		if _, err := io.ReadFull(conn, body); err != nil {
			return
		}

		req := Request{ObjectID: objectID, Opcode: uint16(sizeOpcode & 0xffff), Body: body}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()

		if err := s.handle(req); err != nil {
			return
		}
	}
}

func (s *Server) handle(req Request) error {
	r := reader{data: req.Body}

	switch {
	case req.ObjectID == 1 && req.Opcode == 0: // wl_display.sync
		callbackID := r.uint32()

		s.mu.Lock()
		s.syncs++
		answer := s.syncLimit < 0 || s.syncs <= s.syncLimit
		s.serial++
		serial := s.serial
		s.mu.Unlock()

		if !answer {
			return nil
		}
		if err := s.SendEvent(callbackID, 0, serial); err != nil {
			return err
		}
		return s.SendEvent(1, 1, callbackID) // delete_id

	case req.ObjectID == 1 && req.Opcode == 1: // wl_display.get_registry
		registryID := r.uint32()

		s.mu.Lock()
		s.registryID = registryID
		globals := append([]Global(nil), s.globals...)
		s.mu.Unlock()

		for _, g := range globals {
			if err := s.SendEvent(registryID, 0, g.Name, g.Interface, g.Version); err != nil {
				return err
			}
		}

	case req.ObjectID == s.registry() && req.Opcode == 0: // wl_registry.bind
		b := Bound{}
		b.Name = r.uint32()
		b.Interface = r.string()
		b.Version = r.uint32()
		b.ID = r.uint32()

		s.mu.Lock()
		s.bound = append(s.bound, b)
		s.mu.Unlock()

		return s.sendInitialEvents(b)
	}
	return nil
}

func (s *Server) registry() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registryID
}

// sendInitialEvents emits what a compositor sends right after a bind.
func (s *Server) sendInitialEvents(b Bound) error {
	switch b.Interface {
	case "wl_shm":
		if err := s.SendEvent(b.ID, 0, uint32(0)); err != nil { // ARGB8888
			return err
		}
		return s.SendEvent(b.ID, 0, uint32(1)) // XRGB8888

	case "wl_seat":
		if err := s.SendEvent(b.ID, 0, uint32(3)); err != nil { // pointer | keyboard
			return err
		}
		if b.Version >= 2 {
			return s.SendEvent(b.ID, 1, "seat0")
		}

	case "wl_output":
		err := s.SendEvent(b.ID, 0,
			int32(0), int32(0), int32(600), int32(340), int32(0), "wltest", "virtual-1", int32(0))
		if err != nil {
			return err
		}
		if err := s.SendEvent(b.ID, 1, uint32(3), int32(1920), int32(1080), int32(60000)); err != nil {
			return err
		}
		if b.Version >= 2 {
			if err := s.SendEvent(b.ID, 3, int32(2)); err != nil {
				return err
			}
			return s.SendEvent(b.ID, 2)
		}
	}
	return nil
}

func encode(objectID uint32, opcode uint16, args ...interface{}) ([]byte, error) {
	var body bytes.Buffer
	for _, arg := range args {
		switch v := arg.(type) {
		case uint32:
			_ = binary.Write(&body, binary.LittleEndian, v)
		case int32:
			_ = binary.Write(&body, binary.LittleEndian, v)
		case string:
			_ = binary.Write(&body, binary.LittleEndian, uint32(len(v)+1))
			body.WriteString(v)
			body.WriteByte(0)
			for body.Len()%4 != 0 {
				body.WriteByte(0)
			}
		default:
			return nil, fmt.Errorf("wltest: unsupported argument type %T", arg)
		}
	}

	msg := make([]byte, 8, 8+body.Len())
	binary.LittleEndian.PutUint32(msg[0:4], objectID)
	binary.LittleEndian.PutUint32(msg[4:8], uint32(8+body.Len())<<16|uint32(opcode))
	return append(msg, body.Bytes()...), nil
}

type reader struct {
	data []byte
	off  int
}

func (r *reader) uint32() uint32 {
	if r.off+4 > len(r.data) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

func (r *reader) string() string {
	n := int(r.uint32())
	if n == 0 || r.off+n > len(r.data) {
		return ""
	}
	str := string(r.data[r.off : r.off+n-1])
	r.off += (n + 3) &^ 3
	return str
}
