// Package wlclient is a pure-Go client for the Wayland wire protocol.
//
// It follows the libwayland client model: requests are buffered until Flush,
// incoming events are read into per-proxy event queues, and the Dispatch
// family of calls runs them. Reading is meant to happen on a single
// goroutine; listeners may issue requests while they are being dispatched.
package wlclient

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/bnema/wlclient/internal/logger"
)

// Pre-allocated buffer pool for request marshalling
var bufferPool = sync.Pool{
	New: func() interface{} {
		return &bytes.Buffer{}
	},
}

const (
	displayID = 1

	// wl_display requests
	displaySync        = 0
	displayGetRegistry = 1

	// wl_display events
	displayError    = 0
	displayDeleteID = 1

	// Outgoing data above this size is written without waiting for Flush.
	maxBufferedRequests = 4096
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("wlclient: display closed")
	// ErrQueueNotEmpty is returned by PrepareRead while the queue still holds
	// events that must be dispatched first.
	ErrQueueNotEmpty = errors.New("wlclient: event queue not empty")
	// ErrReadNotPrepared is returned by ReadEvents without a prior PrepareRead.
	ErrReadNotPrepared = errors.New("wlclient: read not prepared")
	// ErrProxyUnbound is returned by requests on a proxy that was never
	// registered with a Display.
	ErrProxyUnbound = errors.New("wlclient: proxy not bound to a display")
)

// Fixed represents a 24.8 fixed-point number
type Fixed int32

// Float64 converts Fixed to float64
func (f Fixed) Float64() float64 {
	return float64(f) / 256.0
}

// NewFixed creates a Fixed from float64
func NewFixed(v float64) Fixed {
	return Fixed(v * 256.0)
}

// FD is a file descriptor request argument. It is passed out of band with
// SCM_RIGHTS and takes no space in the message body.
type FD int

// Object represents a Wayland object
type Object interface {
	ID() uint32
}

// ProtocolError is the fatal error the compositor reports through
// wl_display.error. Once received, the Display is unusable.
type ProtocolError struct {
	ObjectID uint32
	Code     uint32
	Message  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: object %d, code %d: %s", e.ObjectID, e.Code, e.Message)
}

// Display represents a connection to the Wayland display
type Display struct {
	conn   *net.UnixConn
	raw    syscall.RawConn
	nextID uint32

	mu           sync.Mutex
	objects      map[uint32]Proxy
	defaultQueue *EventQueue
	readers      int
	in           []byte
	lastError    error

	sendMu sync.Mutex
	out    bytes.Buffer
	outFDs []int

	// Received descriptors, consumed in order by Event.Fd
	fds       fdQueue
	listeners *EventDispatcher
	registry  *Registry

	// Reused by the single reader
	readBuf [4096]byte
}

// Connect connects to the Wayland display.
//
// An empty name means $WAYLAND_DISPLAY, or "wayland-0" when unset. Relative
// names are resolved against $XDG_RUNTIME_DIR.
func Connect(name string) (*Display, error) {
	path, err := socketPath(name)
	if err != nil {
		return nil, err
	}

	conn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Wayland: %w", err)
	}

	raw, err := conn.SyscallConn()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to get raw socket: %w", err)
	}

	d := &Display{
		conn:      conn,
		raw:       raw,
		nextID:    2, // 1 is reserved for wl_display
		objects:   make(map[uint32]Proxy),
		listeners: NewEventDispatcher(),
	}
	d.defaultQueue = &EventQueue{display: d}

	logger.Debug("connected", "socket", path)
	return d, nil
}

func socketPath(name string) (string, error) {
	if name == "" {
		name = os.Getenv("WAYLAND_DISPLAY")
		if name == "" {
			name = "wayland-0"
		}
	}
	if filepath.IsAbs(name) {
		return name, nil
	}

	runDir := os.Getenv("XDG_RUNTIME_DIR")
	if runDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR not set")
	}
	return filepath.Join(runDir, name), nil
}

// Close closes the display connection. Received descriptors that no event
// claimed are closed as well.
func (d *Display) Close() error {
	d.mu.Lock()
	if d.lastError == nil {
		d.lastError = ErrClosed
	}
	d.mu.Unlock()

	d.fds.closeAll()
	return d.conn.Close()
}

// ID returns the display's object ID (always 1)
func (d *Display) ID() uint32 {
	return displayID
}

// Err returns the error that made the display unusable, if any.
func (d *Display) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastError
}

func (d *Display) fail(err error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failLocked(err)
}

func (d *Display) failLocked(err error) error {
	if d.lastError == nil {
		d.lastError = err
	}
	return err
}

// AddListener registers a raw handler that runs before the proxy's own
// Dispatch for every event matching objectID and opcode.
func (d *Display) AddListener(objectID uint32, opcode uint16, handler EventHandler) {
	d.listeners.RegisterHandler(objectID, opcode, handler)
}

// allocateID allocates a new object ID
func (d *Display) allocateID() uint32 {
	return atomic.AddUint32(&d.nextID, 1) - 1
}

// AllocateID allocates a new object ID (public method)
func (d *Display) AllocateID() uint32 {
	return d.allocateID()
}

// register assigns an ID to p when it has none and makes it reachable by
// incoming events. A proxy without a queue joins queue (nil means default).
func (d *Display) register(p Proxy, queue *EventQueue) {
	if p.ID() == 0 {
		p.SetID(d.allocateID())
	}
	p.setDisplay(d)
	if p.Queue() == nil {
		p.SetQueue(queue)
	}

	d.mu.Lock()
	d.objects[p.ID()] = p
	d.mu.Unlock()
}

// forget destroys p on the client side. Events already queued for it are
// dropped at dispatch time.
func (d *Display) forget(p Proxy) {
	d.mu.Lock()
	if cur, ok := d.objects[p.ID()]; ok && cur == p {
		delete(d.objects, p.ID())
	}
	d.mu.Unlock()
	d.listeners.Unregister(p.ID())
}

// Object returns the live proxy registered under id.
func (d *Display) Object(id uint32) (Proxy, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.objects[id]
	return p, ok
}

// SendRequest marshals a request into the outgoing buffer. FD arguments are
// collected and sent with the next Flush.
func (d *Display) SendRequest(objectID uint32, opcode uint16, args ...interface{}) error {
	if err := d.Err(); err != nil {
		return err
	}

	buf := bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		bufferPool.Put(buf)
	}()

	// Header placeholder
	var header [8]byte
	_, _ = buf.Write(header[:])

	var fds []int
	for _, arg := range args {
		if fd, ok := arg.(FD); ok {
			fds = append(fds, int(fd))
			continue
		}
		if err := d.marshalArg(buf, arg); err != nil {
			return fmt.Errorf("failed to marshal argument: %w", err)
		}
	}

	bufLen := buf.Len()
	if bufLen > 0xFFFF {
		return fmt.Errorf("message too large: %d bytes", bufLen)
	}
	data := buf.Bytes()
	binary.LittleEndian.PutUint32(data[0:4], objectID)
	// Upper 16 bits = size, lower 16 bits = opcode
	binary.LittleEndian.PutUint32(data[4:8], uint32(bufLen)<<16|uint32(opcode))

	d.sendMu.Lock()
	defer d.sendMu.Unlock()

	_, _ = d.out.Write(data)
	d.outFDs = append(d.outFDs, fds...)
	logger.Debug("request", "object", objectID, "opcode", opcode, "size", bufLen)

	if d.out.Len() >= maxBufferedRequests {
		return d.flushLocked()
	}
	return nil
}

// marshalArg marshals a single argument
func (d *Display) marshalArg(buf *bytes.Buffer, arg interface{}) error {
	switch v := arg.(type) {
	case uint32:
		return binary.Write(buf, binary.LittleEndian, v)
	case int32:
		return binary.Write(buf, binary.LittleEndian, v)
	case Fixed:
		return binary.Write(buf, binary.LittleEndian, int32(v))
	case string:
		// String format: length (including null) + string + null + padding
		strlen := len(v) + 1
		if err := binary.Write(buf, binary.LittleEndian, uint32(strlen)); err != nil {
			return err
		}
		_, _ = buf.WriteString(v)
		_ = buf.WriteByte(0)
		writePadding(buf, strlen)
	case []byte:
		// Array format: length + data + padding
		if err := binary.Write(buf, binary.LittleEndian, uint32(len(v))); err != nil {
			return err
		}
		_, _ = buf.Write(v)
		writePadding(buf, len(v))
	case Object:
		return binary.Write(buf, binary.LittleEndian, v.ID())
	case nil:
		// Null object
		return binary.Write(buf, binary.LittleEndian, uint32(0))
	default:
		return fmt.Errorf("unsupported argument type: %T", arg)
	}
	return nil
}

// writePadding pads to a 32-bit boundary
func writePadding(buf *bytes.Buffer, n int) {
	for i := 0; i < (4-n%4)%4; i++ {
		_ = buf.WriteByte(0)
	}
}

// Flush writes all buffered requests to the socket.
func (d *Display) Flush() error {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()
	return d.flushLocked()
}

func (d *Display) flushLocked() error {
	if d.out.Len() == 0 {
		return nil
	}
	if err := d.sendmsgWithFDs(d.out.Bytes(), d.outFDs); err != nil {
		return d.fail(fmt.Errorf("failed to flush requests: %w", err))
	}
	d.out.Reset()
	d.outFDs = d.outFDs[:0]
	return nil
}

// handleDisplayEvent handles events on the display object. Called with d.mu held.
func (d *Display) handleDisplayEvent(opcode uint16, body []byte) error {
	e := Event{ProxyID: displayID, Opcode: opcode, data: body}

	switch opcode {
	case displayError:
		perr := &ProtocolError{
			ObjectID: e.Uint32(),
			Code:     e.Uint32(),
			Message:  e.String(),
		}
		logger.Error("compositor reported a protocol error", "object", perr.ObjectID, "code", perr.Code, "message", perr.Message)
		return d.failLocked(perr)

	case displayDeleteID:
		// IDs are never reused, so the acknowledgement needs no bookkeeping.
		logger.Debug("delete_id", "id", e.Uint32())
	}

	return nil
}

// Registry represents the global registry
type Registry struct {
	BaseProxy

	mu             sync.RWMutex
	globals        map[uint32]Global
	handlers       map[string]GlobalHandler
	globalHandlers []RegistryGlobalHandler
	removeHandlers []RegistryGlobalRemoveHandler
}

// Global represents a global object
type Global struct {
	Name      uint32
	Interface string
	Version   uint32
}

// GlobalHandler is called when a global is announced
type GlobalHandler func(registry *Registry, name uint32, version uint32)

// GetRegistry sends wl_display.get_registry. The registry is created once per
// display; later calls return the same proxy.
func (d *Display) GetRegistry() (*Registry, error) {
	if d.registry != nil {
		return d.registry, nil
	}

	r := &Registry{
		globals:  make(map[uint32]Global),
		handlers: make(map[string]GlobalHandler),
	}
	d.register(r, nil)

	if err := d.SendRequest(displayID, displayGetRegistry, r.ID()); err != nil {
		d.forget(r)
		return nil, fmt.Errorf("failed to get registry: %w", err)
	}

	d.registry = r
	return r, nil
}

// Registry returns the registry created by GetRegistry, or nil.
func (d *Display) Registry() *Registry {
	return d.registry
}

// Dispatch handles global and global_remove
func (r *Registry) Dispatch(event *Event) {
	switch event.Opcode {
	case 0: // global
		g := Global{
			Name:      event.Uint32(),
			Interface: event.String(),
			Version:   event.Uint32(),
		}
		logger.Debug("global announced", "interface", g.Interface, "version", g.Version, "name", g.Name)

		r.mu.Lock()
		r.globals[g.Name] = g
		handler := r.handlers[g.Interface]
		wildcard := r.handlers["*"]
		listeners := append([]RegistryGlobalHandler(nil), r.globalHandlers...)
		r.mu.Unlock()

		if handler != nil {
			handler(r, g.Name, g.Version)
		}
		if wildcard != nil {
			wildcard(r, g.Name, g.Version)
		}
		for _, l := range listeners {
			l.HandleRegistryGlobal(RegistryGlobalEvent{
				Registry:  r,
				Name:      g.Name,
				Interface: g.Interface,
				Version:   g.Version,
			})
		}

	case 1: // global_remove
		name := event.Uint32()

		r.mu.Lock()
		delete(r.globals, name)
		listeners := append([]RegistryGlobalRemoveHandler(nil), r.removeHandlers...)
		r.mu.Unlock()

		for _, l := range listeners {
			l.HandleRegistryGlobalRemove(RegistryGlobalRemoveEvent{Registry: r, Name: name})
		}
	}
}

// AddHandler adds a handler for a specific interface. "*" matches every
// interface.
func (r *Registry) AddHandler(iface string, handler GlobalHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[iface] = handler
}

// AddGlobalHandler adds a handler called for every announced global
func (r *Registry) AddGlobalHandler(handler RegistryGlobalHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.globalHandlers = append(r.globalHandlers, handler)
}

// AddGlobalRemoveHandler adds a handler called for every removed global
func (r *Registry) AddGlobalRemoveHandler(handler RegistryGlobalRemoveHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeHandlers = append(r.removeHandlers, handler)
}

// Bind binds proxy to the global name. The proxy joins the registry's queue
// unless it already has one.
func (r *Registry) Bind(name uint32, iface string, version uint32, proxy Proxy) error {
	if r.display == nil {
		return ErrProxyUnbound
	}
	r.display.register(proxy, r.queue)

	// Untyped new_id: interface, version, id
	if err := r.send(0, name, iface, version, proxy.ID()); err != nil {
		r.display.forget(proxy)
		return err
	}

	logger.Debug("bound global", "interface", iface, "version", version, "name", name, "id", proxy.ID())
	return nil
}

// Destroy destroys the registry proxy. wl_registry has no destructor request.
func (r *Registry) Destroy() {
	if r.display == nil {
		return
	}
	if r.display.registry == r {
		r.display.registry = nil
	}
	r.display.forget(r)
}

// GetGlobals returns all announced globals
func (r *Registry) GetGlobals() map[uint32]Global {
	r.mu.RLock()
	defer r.mu.RUnlock()

	globals := make(map[uint32]Global, len(r.globals))
	for k, v := range r.globals {
		globals[k] = v
	}
	return globals
}

// FindGlobal finds a global by interface name
func (r *Registry) FindGlobal(iface string) (Global, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, global := range r.globals {
		if global.Interface == iface {
			return global, true
		}
	}
	return Global{}, false
}

// FindGlobalByName finds a global by its name ID
func (r *Registry) FindGlobalByName(name uint32) (Global, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	global, ok := r.globals[name]
	return global, ok
}

// RegistryGlobalHandler interface
type RegistryGlobalHandler interface {
	HandleRegistryGlobal(event RegistryGlobalEvent)
}

// RegistryGlobalRemoveHandler interface
type RegistryGlobalRemoveHandler interface {
	HandleRegistryGlobalRemove(event RegistryGlobalRemoveEvent)
}

// RegistryGlobalEvent represents a registry global announcement
type RegistryGlobalEvent struct {
	Registry  *Registry
	Name      uint32
	Interface string
	Version   uint32
}

// RegistryGlobalRemoveEvent represents a registry global removal
type RegistryGlobalRemoveEvent struct {
	Registry *Registry
	Name     uint32
}

// Callback represents a wl_callback object
type Callback struct {
	BaseProxy

	// OnDone runs once when the callback fires. The callback is already
	// destroyed by then.
	OnDone func(data uint32)
}

// Dispatch handles callback events (opcode 0 = done)
func (c *Callback) Dispatch(event *Event) {
	if event.Opcode != 0 {
		return
	}
	data := event.Uint32()
	c.display.forget(c)
	if c.OnDone != nil {
		c.OnDone(data)
	}
}

// Sync sends wl_display.sync. The returned callback fires once the
// compositor has processed every request sent before it.
func (d *Display) Sync() (*Callback, error) {
	cb := &Callback{}
	d.register(cb, nil)

	if err := d.SendRequest(displayID, displaySync, cb.ID()); err != nil {
		d.forget(cb)
		return nil, err
	}
	return cb, nil
}

// Roundtrip blocks until the compositor has processed all requests sent so
// far, dispatching the default queue meanwhile.
func (d *Display) Roundtrip() error {
	return d.RoundtripQueue(d.defaultQueue)
}

// RoundtripQueue is Roundtrip on a specific queue.
func (d *Display) RoundtripQueue(q *EventQueue) error {
	cb, err := d.Sync()
	if err != nil {
		return err
	}

	done := false
	cb.OnDone = func(uint32) { done = true }
	cb.SetQueue(q)

	for !done {
		if _, err := d.DispatchQueue(q); err != nil {
			return fmt.Errorf("roundtrip failed: %w", err)
		}
	}
	return nil
}
