package display

import "github.com/bnema/wlclient/internal/logger"

// Window is a window registered with a Connection. Implementations must be
// comparable, which pointer types are.
type Window interface {
	ID() uint32
}

// Task is work deferred to the next flush point on behalf of a window.
type Task interface {
	Run()
	Window() Window
}

type funcTask struct {
	window Window
	fn     func()
}

// NewTask wraps fn as a Task targeting w.
func NewTask(w Window, fn func()) Task {
	return &funcTask{window: w, fn: fn}
}

func (t *funcTask) Run()           { t.fn() }
func (t *funcTask) Window() Window { return t.window }

// AddWindow registers w. Adding a window twice registers it twice.
func (c *Connection) AddWindow(w Window) {
	if w == nil {
		return
	}
	c.windows = append(c.windows, w)
	c.needsFlush = true
}

// RemoveWindow drops every pending task targeting w and unregisters one
// entry for w. When that leaves no window, the Quitter is told to stop.
func (c *Connection) RemoveWindow(w Window) {
	if w == nil {
		return
	}
	c.needsFlush = true

	kept := c.tasks[:0]
	for _, t := range c.tasks {
		if t.Window() != w {
			kept = append(kept, t)
		}
	}
	clear(c.tasks[len(kept):])
	c.tasks = kept

	removed := false
	for i, win := range c.windows {
		if win == w {
			c.windows = append(c.windows[:i], c.windows[i+1:]...)
			removed = true
			break
		}
	}

	if removed && len(c.windows) == 0 {
		logger.Debug("last window removed")
		if c.opts.Quitter != nil {
			c.opts.Quitter.Quit()
		}
	}
}

// IsWindow reports whether w is registered.
func (c *Connection) IsWindow(w Window) bool {
	for _, win := range c.windows {
		if win == w {
			return true
		}
	}
	return false
}

// Windows returns the registered windows in registration order.
func (c *Connection) Windows() []Window {
	return append([]Window(nil), c.windows...)
}

// AddTask queues t for the next flush.
func (c *Connection) AddTask(t Task) {
	if t == nil {
		return
	}
	c.tasks = append(c.tasks, t)
}

// PendingTasks returns the number of queued tasks.
func (c *Connection) PendingTasks() int {
	return len(c.tasks)
}

// ProcessTasks runs the queued tasks in order, including tasks they queue.
// It reports whether there was anything to run.
func (c *Connection) ProcessTasks() bool {
	if len(c.tasks) == 0 {
		return false
	}
	for len(c.tasks) > 0 {
		t := c.tasks[0]
		c.tasks[0] = nil
		c.tasks = c.tasks[1:]
		t.Run()
	}
	return true
}
