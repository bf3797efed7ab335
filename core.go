package wlclient

import (
	"encoding/binary"
)

// Proxy is a client-side protocol object
type Proxy interface {
	Object
	SetID(uint32)
	Display() *Display
	Queue() *EventQueue
	SetQueue(*EventQueue)
	Dispatch(*Event)

	setDisplay(*Display)
}

// BaseProxy provides base implementation for protocol objects
type BaseProxy struct {
	id      uint32
	display *Display
	queue   *EventQueue
}

// Event represents a Wayland protocol event
type Event struct {
	ProxyID uint32
	Opcode  uint16
	data    []byte
	offset  int

	proxy Proxy
	fds   *fdQueue
}

// Data returns the raw event data
func (e *Event) Data() []byte {
	return e.data
}

// Offset returns the current read offset
func (e *Event) Offset() int {
	return e.offset
}

// BaseProxy methods

// ID returns the proxy's object ID
func (p *BaseProxy) ID() uint32 {
	return p.id
}

// SetID sets the proxy's object ID
func (p *BaseProxy) SetID(id uint32) {
	p.id = id
}

// Display returns the display the proxy is registered with
func (p *BaseProxy) Display() *Display {
	return p.display
}

func (p *BaseProxy) setDisplay(d *Display) {
	p.display = d
}

// Queue returns the proxy's event queue; nil means the default queue
func (p *BaseProxy) Queue() *EventQueue {
	return p.queue
}

// SetQueue moves the proxy to q. Events already queued elsewhere stay there.
func (p *BaseProxy) SetQueue(q *EventQueue) {
	if p.display != nil {
		p.display.mu.Lock()
		defer p.display.mu.Unlock()
	}
	p.queue = q
}

// Dispatch default implementation (does nothing)
func (p *BaseProxy) Dispatch(event *Event) {}

func (p *BaseProxy) send(opcode uint16, args ...interface{}) error {
	if p.display == nil {
		return ErrProxyUnbound
	}
	return p.display.SendRequest(p.id, opcode, args...)
}

// newChild registers child on the parent's queue and sends the request
// creating it. The new_id is always the first argument.
func (p *BaseProxy) newChild(child Proxy, opcode uint16, args ...interface{}) error {
	if p.display == nil {
		return ErrProxyUnbound
	}
	p.display.register(child, p.queue)

	if err := p.send(opcode, append([]interface{}{child.ID()}, args...)...); err != nil {
		p.display.forget(child)
		return err
	}
	return nil
}

// destroy forgets the proxy without sending anything
func (p *BaseProxy) destroy(self Proxy) {
	if p.display != nil {
		p.display.forget(self)
	}
}

// Event methods for extracting data

// Uint32 reads a uint32 from the event
func (e *Event) Uint32() uint32 {
	if e.offset+4 > len(e.data) {
		return 0
	}
	val := binary.LittleEndian.Uint32(e.data[e.offset:])
	e.offset += 4
	return val
}

// Int32 reads an int32 from the event
func (e *Event) Int32() int32 {
	return int32(e.Uint32())
}

// Fixed reads a fixed-point value from the event
func (e *Event) Fixed() Fixed {
	return Fixed(e.Int32())
}

// String reads a string from the event
func (e *Event) String() string {
	if e.offset+4 > len(e.data) {
		return ""
	}
	strlen := e.Uint32()
	if strlen == 0 || e.offset+int(strlen) > len(e.data) {
		return ""
	}
	// String includes null terminator in length
	str := string(e.data[e.offset : e.offset+int(strlen)-1])
	padding := (4 - (strlen % 4)) % 4
	e.offset += int(strlen + padding)
	return str
}

// Array reads a byte array from the event
func (e *Event) Array() []byte {
	if e.offset+4 > len(e.data) {
		return nil
	}
	arrlen := e.Uint32()
	if arrlen == 0 || e.offset+int(arrlen) > len(e.data) {
		return nil
	}
	arr := make([]byte, arrlen)
	copy(arr, e.data[e.offset:e.offset+int(arrlen)])
	padding := (4 - (arrlen % 4)) % 4
	e.offset += int(arrlen + padding)
	return arr
}

// Fd takes the next received file descriptor. File descriptors travel out of
// band, so they are claimed in the order events reference them. Returns -1
// when none is available.
func (e *Event) Fd() int {
	if e.fds == nil {
		return -1
	}
	fd, _ := e.fds.pop()
	return fd
}

// Seat capability constants
const (
	SeatCapabilityPointer  = 1
	SeatCapabilityKeyboard = 2
	SeatCapabilityTouch    = 4
)

// Seat represents a wl_seat
type Seat struct {
	BaseProxy
	capabilities uint32
	name         string

	OnCapabilities func(capabilities uint32)
	OnName         func(name string)
}

// NewSeat creates a new, unbound seat proxy
func NewSeat() *Seat {
	return &Seat{}
}

// GetPointer gets the pointer device
func (s *Seat) GetPointer() (*Pointer, error) {
	pointer := &Pointer{}
	if err := s.newChild(pointer, 0); err != nil {
		return nil, err
	}
	return pointer, nil
}

// GetKeyboard gets the keyboard device
func (s *Seat) GetKeyboard() (*Keyboard, error) {
	keyboard := &Keyboard{}
	if err := s.newChild(keyboard, 1); err != nil {
		return nil, err
	}
	return keyboard, nil
}

// GetTouch gets the touch device
func (s *Seat) GetTouch() (*Touch, error) {
	touch := &Touch{}
	if err := s.newChild(touch, 2); err != nil {
		return nil, err
	}
	return touch, nil
}

// Release releases the seat (version 5)
func (s *Seat) Release() error {
	err := s.send(3)
	if err == nil {
		s.destroy(s)
	}
	return err
}

// Destroy destroys the seat proxy without telling the compositor
func (s *Seat) Destroy() {
	s.destroy(s)
}

// Capabilities returns the seat capabilities
func (s *Seat) Capabilities() uint32 {
	return s.capabilities
}

// Name returns the seat name
func (s *Seat) Name() string {
	return s.name
}

// Dispatch handles events for the seat
func (s *Seat) Dispatch(event *Event) {
	switch event.Opcode {
	case 0: // capabilities
		s.capabilities = event.Uint32()
		if s.OnCapabilities != nil {
			s.OnCapabilities(s.capabilities)
		}
	case 1: // name
		s.name = event.String()
		if s.OnName != nil {
			s.OnName(s.name)
		}
	}
}

// Pointer represents a wl_pointer
type Pointer struct {
	BaseProxy
}

// Destroy destroys the proxy without telling the compositor. Seats below
// version 3 have no release request.
func (p *Pointer) Destroy() {
	p.destroy(p)
}

// Release releases the pointer (version 3)
func (p *Pointer) Release() error {
	err := p.send(1)
	if err == nil {
		p.destroy(p)
	}
	return err
}

// Keyboard represents a wl_keyboard
type Keyboard struct {
	BaseProxy
}

// Destroy destroys the proxy without telling the compositor
func (k *Keyboard) Destroy() {
	k.destroy(k)
}

// Release releases the keyboard (version 3)
func (k *Keyboard) Release() error {
	err := k.send(0)
	if err == nil {
		k.destroy(k)
	}
	return err
}

// Touch represents a wl_touch
type Touch struct {
	BaseProxy
}

// Destroy destroys the proxy without telling the compositor
func (t *Touch) Destroy() {
	t.destroy(t)
}

// Release releases the touch device (version 3)
func (t *Touch) Release() error {
	err := t.send(0)
	if err == nil {
		t.destroy(t)
	}
	return err
}

// Output mode flags
const (
	OutputModeCurrent   = 1
	OutputModePreferred = 2
)

// OutputGeometry is the wl_output.geometry event
type OutputGeometry struct {
	X, Y           int32
	PhysicalWidth  int32 // mm
	PhysicalHeight int32 // mm
	Subpixel       int32
	Make           string
	Model          string
	Transform      int32
}

// OutputMode is the wl_output.mode event
type OutputMode struct {
	Flags   uint32
	Width   int32
	Height  int32
	Refresh int32 // mHz
}

// Output represents a wl_output
type Output struct {
	BaseProxy
	geometry OutputGeometry
	mode     OutputMode
	scale    int32

	// OnDone runs after each atomic batch of output properties (version 2)
	OnDone func()
}

// NewOutput creates a new, unbound output proxy
func NewOutput() *Output {
	return &Output{scale: 1}
}

// Geometry returns the last geometry received
func (o *Output) Geometry() OutputGeometry {
	return o.geometry
}

// Mode returns the current mode
func (o *Output) Mode() OutputMode {
	return o.mode
}

// Scale returns the output scale factor
func (o *Output) Scale() int32 {
	return o.scale
}

// Release releases the output (version 3)
func (o *Output) Release() error {
	err := o.send(0)
	if err == nil {
		o.destroy(o)
	}
	return err
}

// Destroy destroys the output proxy without telling the compositor
func (o *Output) Destroy() {
	o.destroy(o)
}

// Dispatch handles output events
func (o *Output) Dispatch(event *Event) {
	switch event.Opcode {
	case 0: // geometry
		o.geometry = OutputGeometry{
			X:              event.Int32(),
			Y:              event.Int32(),
			PhysicalWidth:  event.Int32(),
			PhysicalHeight: event.Int32(),
			Subpixel:       event.Int32(),
			Make:           event.String(),
			Model:          event.String(),
			Transform:      event.Int32(),
		}
	case 1: // mode
		mode := OutputMode{
			Flags:   event.Uint32(),
			Width:   event.Int32(),
			Height:  event.Int32(),
			Refresh: event.Int32(),
		}
		if mode.Flags&OutputModeCurrent != 0 {
			o.mode = mode
		}
	case 2: // done
		if o.OnDone != nil {
			o.OnDone()
		}
	case 3: // scale
		o.scale = event.Int32()
	}
}

// Surface represents a wl_surface
type Surface struct {
	BaseProxy
}

// Destroy destroys the surface
func (s *Surface) Destroy() error {
	err := s.send(0)
	if err == nil {
		s.destroy(s)
	}
	return err
}

// Attach attaches a buffer to the surface
func (s *Surface) Attach(buffer Object, x, y int32) error {
	if buffer == nil {
		return s.send(1, nil, x, y)
	}
	return s.send(1, buffer, x, y)
}

// Damage marks a region of the surface as damaged
func (s *Surface) Damage(x, y, width, height int32) error {
	return s.send(2, x, y, width, height)
}

// Frame requests a frame callback
func (s *Surface) Frame() (*Callback, error) {
	callback := &Callback{}
	if err := s.newChild(callback, 3); err != nil {
		return nil, err
	}
	return callback, nil
}

// SetOpaqueRegion sets the opaque region; nil clears it
func (s *Surface) SetOpaqueRegion(region *Region) error {
	if region == nil {
		return s.send(4, nil)
	}
	return s.send(4, region)
}

// SetInputRegion sets the input region; nil means the whole surface
func (s *Surface) SetInputRegion(region *Region) error {
	if region == nil {
		return s.send(5, nil)
	}
	return s.send(5, region)
}

// Commit commits pending surface state
func (s *Surface) Commit() error {
	return s.send(6)
}

// SetBufferTransform sets the buffer transform
func (s *Surface) SetBufferTransform(transform int32) error {
	return s.send(7, transform)
}

// SetBufferScale sets the buffer scale
func (s *Surface) SetBufferScale(scale int32) error {
	return s.send(8, scale)
}

// DamageBuffer marks a region of the buffer as damaged
func (s *Surface) DamageBuffer(x, y, width, height int32) error {
	return s.send(9, x, y, width, height)
}

// Dispatch handles surface events
func (s *Surface) Dispatch(event *Event) {
	// enter/leave are left to the window layer
}

// Region represents a wl_region
type Region struct {
	BaseProxy
}

// Add adds a rectangle to the region
func (r *Region) Add(x, y, width, height int32) error {
	return r.send(1, x, y, width, height)
}

// Subtract subtracts a rectangle from the region
func (r *Region) Subtract(x, y, width, height int32) error {
	return r.send(2, x, y, width, height)
}

// Destroy destroys the region
func (r *Region) Destroy() error {
	err := r.send(0)
	if err == nil {
		r.destroy(r)
	}
	return err
}

// Compositor represents a wl_compositor
type Compositor struct {
	BaseProxy
}

// NewCompositor creates a new, unbound compositor proxy
func NewCompositor() *Compositor {
	return &Compositor{}
}

// CreateSurface creates a new surface
func (c *Compositor) CreateSurface() (*Surface, error) {
	surface := &Surface{}
	if err := c.newChild(surface, 0); err != nil {
		return nil, err
	}
	return surface, nil
}

// CreateRegion creates a new region
func (c *Compositor) CreateRegion() (*Region, error) {
	region := &Region{}
	if err := c.newChild(region, 1); err != nil {
		return nil, err
	}
	return region, nil
}

// Destroy destroys the compositor proxy. wl_compositor has no destructor
// request.
func (c *Compositor) Destroy() {
	c.destroy(c)
}

// Shell represents a wl_shell
type Shell struct {
	BaseProxy
}

// NewShell creates a new, unbound shell proxy
func NewShell() *Shell {
	return &Shell{}
}

// GetShellSurface creates a shell surface role for surface
func (s *Shell) GetShellSurface(surface *Surface) (*ShellSurface, error) {
	shellSurface := &ShellSurface{}
	if err := s.newChild(shellSurface, 0, surface); err != nil {
		return nil, err
	}
	return shellSurface, nil
}

// Destroy destroys the shell proxy. wl_shell has no destructor request.
func (s *Shell) Destroy() {
	s.destroy(s)
}

// ShellSurface represents a wl_shell_surface
type ShellSurface struct {
	BaseProxy

	// OnPing replaces the automatic pong when set
	OnPing      func(serial uint32)
	OnConfigure func(edges uint32, width, height int32)
	OnPopupDone func()
}

// Pong answers a ping
func (s *ShellSurface) Pong(serial uint32) error {
	return s.send(0, serial)
}

// Move starts an interactive move
func (s *ShellSurface) Move(seat *Seat, serial uint32) error {
	return s.send(1, seat, serial)
}

// SetToplevel makes the surface a toplevel window
func (s *ShellSurface) SetToplevel() error {
	return s.send(3)
}

// SetTitle sets the window title
func (s *ShellSurface) SetTitle(title string) error {
	return s.send(8, title)
}

// SetClass sets the window class
func (s *ShellSurface) SetClass(class string) error {
	return s.send(9, class)
}

// Destroy destroys the shell surface proxy. The role ends with its surface.
func (s *ShellSurface) Destroy() {
	s.destroy(s)
}

// Dispatch handles shell surface events
func (s *ShellSurface) Dispatch(event *Event) {
	switch event.Opcode {
	case 0: // ping
		serial := event.Uint32()
		if s.OnPing != nil {
			s.OnPing(serial)
			return
		}
		_ = s.Pong(serial)
	case 1: // configure
		edges := event.Uint32()
		width := event.Int32()
		height := event.Int32()
		if s.OnConfigure != nil {
			s.OnConfigure(edges, width, height)
		}
	case 2: // popup_done
		if s.OnPopupDone != nil {
			s.OnPopupDone()
		}
	}
}
