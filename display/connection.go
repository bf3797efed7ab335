package display

import (
	"fmt"

	"github.com/bnema/wlclient"
	"github.com/bnema/wlclient/internal/logger"
)

// Connection is a client's session with the compositor.
type Connection struct {
	opts  Options
	state State
	err   error

	display  *wlclient.Display
	registry *wlclient.Registry
	// Dedicated queue for SyncDisplay and registry events
	queue *wlclient.EventQueue

	compositor *wlclient.Compositor
	shell      *wlclient.Shell
	shm        *wlclient.Shm

	screens  arena[*Screen]
	inputs   arena[*InputDevice]
	imFilter *InputMethodFilter

	windows    []Window
	tasks      []Task
	needsFlush bool
	terminated bool

	// traceFlush observes flush state transitions in tests
	traceFlush func(flushState)
}

func newConnection(opts Options, name string) *Connection {
	c := &Connection{opts: opts, state: StateDisconnected}

	d, err := wlclient.Connect(name)
	if err != nil {
		c.state = StateFailed
		c.err = fmt.Errorf("connect to display: %w", err)
		logger.Error("failed to connect to display", "name", name, "error", err)
		return c
	}
	c.display = d
	c.imFilter = NewInputMethodFilter()

	registry, err := d.GetRegistry()
	if err != nil {
		c.initFailed(err)
		return c
	}
	c.registry = registry
	registry.AddGlobalHandler(c)
	registry.AddGlobalRemoveHandler(c)

	if err := d.Roundtrip(); err != nil {
		c.initFailed(err)
		return c
	}

	c.queue = d.CreateQueue()
	registry.SetQueue(c.queue)
	c.state = StateConnected

	logger.Info("connected to display",
		"screens", c.screens.len(),
		"seats", c.inputs.len(),
		"compositor", c.compositor != nil,
		"shell", c.shell != nil,
		"shm", c.shm != nil)
	return c
}

func (c *Connection) initFailed(err error) {
	logger.Error("display initialization failed", "error", err)
	c.terminate()
	c.state = StateFailed
	c.err = fmt.Errorf("initialize display: %w", err)
}

// checkFatal moves the connection to StateFailed once the display reports a
// fatal error. It returns that error.
func (c *Connection) checkFatal() error {
	if c.display == nil {
		return ErrNotConnected
	}
	err := c.display.Err()
	if err != nil && c.state == StateConnected {
		logger.Error("lost connection to display", "error", err)
		c.state = StateFailed
		c.err = err
	}
	return err
}

// HandleRegistryGlobal binds the globals the connection knows and ignores the
// rest.
func (c *Connection) HandleRegistryGlobal(ev wlclient.RegistryGlobalEvent) {
	var err error

	kind := ParseGlobalKind(ev.Interface)
	switch kind {
	case GlobalCompositor:
		compositor := wlclient.NewCompositor()
		if err = ev.Registry.Bind(ev.Name, ev.Interface, 1, compositor); err == nil {
			c.compositor = compositor
		}
	case GlobalOutput:
		var screen *Screen
		if screen, err = newScreen(c, ev.Registry, ev.Name, ev.Version); err == nil {
			c.screens.insert(ev.Name, screen)
		}
	case GlobalSeat:
		var dev *InputDevice
		if dev, err = newInputDevice(c, ev.Registry, ev.Name, ev.Version); err == nil {
			c.inputs.insert(ev.Name, dev)
		}
	case GlobalShell:
		shell := wlclient.NewShell()
		if err = ev.Registry.Bind(ev.Name, ev.Interface, 1, shell); err == nil {
			c.shell = shell
		}
	case GlobalShm:
		shm := wlclient.NewShm()
		if err = ev.Registry.Bind(ev.Name, ev.Interface, 1, shm); err == nil {
			c.shm = shm
		}
	default:
		return
	}

	if err != nil {
		logger.Error("failed to bind global", "kind", kind, "name", ev.Name, "error", err)
	}
}

// HandleRegistryGlobalRemove logs removed globals. Screens and input devices
// live until the connection is torn down.
func (c *Connection) HandleRegistryGlobalRemove(ev wlclient.RegistryGlobalRemoveEvent) {
	if _, ok := c.screens.get(ev.Name); ok {
		logger.Warn("output removed", "name", ev.Name)
		return
	}
	if _, ok := c.inputs.get(ev.Name); ok {
		logger.Warn("seat removed", "name", ev.Name)
	}
}

// terminate releases everything the connection owns, in the order the
// compositor expects. It runs once.
func (c *Connection) terminate() {
	if c.terminated {
		return
	}
	c.terminated = true

	if len(c.windows) > 0 {
		logger.Warn("windows exist", "count", len(c.windows))
	}
	if len(c.tasks) > 0 {
		logger.Warn("deferred tasks exist", "count", len(c.tasks))
		c.tasks = nil
	}

	c.inputs.drain(func(dev *InputDevice) { dev.destroy() })
	c.screens.drain(func(s *Screen) { s.destroy() })

	if c.queue != nil {
		c.queue.Destroy()
		c.queue = nil
	}
	if c.compositor != nil {
		c.compositor.Destroy()
		c.compositor = nil
	}
	if c.shell != nil {
		c.shell.Destroy()
		c.shell = nil
	}
	if c.shm != nil {
		c.shm.Destroy()
		c.shm = nil
	}
	if c.registry != nil {
		c.registry.Destroy()
		c.registry = nil
	}
	if c.imFilter != nil {
		c.imFilter.destroy()
		c.imFilter = nil
	}

	if c.display != nil {
		if err := c.display.Flush(); err != nil {
			logger.Debug("final flush failed", "error", err)
		}
		if err := c.display.Close(); err != nil {
			logger.Debug("failed to close display", "error", err)
		}
	}
}

// State returns the connection state.
func (c *Connection) State() State {
	return c.state
}

// Err returns why the connection failed, or nil.
func (c *Connection) Err() error {
	return c.err
}

// Display returns the wire-level display, nil if the connection never opened.
func (c *Connection) Display() *wlclient.Display {
	return c.display
}

// Compositor returns the bound compositor, or nil.
func (c *Connection) Compositor() *wlclient.Compositor {
	return c.compositor
}

// Shell returns the bound shell, or nil.
func (c *Connection) Shell() *wlclient.Shell {
	return c.shell
}

// Shm returns the bound shared-memory global, or nil.
func (c *Connection) Shm() *wlclient.Shm {
	return c.shm
}

// Screens returns the screens in announcement order.
func (c *Connection) Screens() []*Screen {
	return c.screens.values()
}

// InputDevices returns the input devices in announcement order.
func (c *Connection) InputDevices() []*InputDevice {
	return c.inputs.values()
}

// InputMethod returns the input method, nil when the connection never opened
// or was torn down.
func (c *Connection) InputMethod() *InputMethod {
	if c.imFilter == nil {
		return nil
	}
	return c.imFilter.InputMethod()
}

// NeedsFlush reports whether window membership changed since the last flush.
func (c *Connection) NeedsFlush() bool {
	return c.needsFlush
}
