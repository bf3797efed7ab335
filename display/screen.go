package display

import (
	"fmt"

	"github.com/bnema/wlclient"
)

// outputVersion is the highest wl_output version a Screen understands.
const outputVersion = 2

// Screen is a bound wl_output. It is created when the registry announces the
// output and destroyed with its Connection.
type Screen struct {
	conn   *Connection
	name   uint32
	output *wlclient.Output
	done   bool
}

func newScreen(c *Connection, registry *wlclient.Registry, name, version uint32) (*Screen, error) {
	s := &Screen{
		conn:   c,
		name:   name,
		output: wlclient.NewOutput(),
	}
	// Version 1 outputs never send done
	s.done = version < 2
	s.output.OnDone = func() { s.done = true }

	if err := registry.Bind(name, "wl_output", min(version, outputVersion), s.output); err != nil {
		return nil, fmt.Errorf("bind wl_output %d: %w", name, err)
	}
	return s, nil
}

// Connection returns the connection that owns the screen.
func (s *Screen) Connection() *Connection {
	return s.conn
}

// ID returns the server's global name for the output.
func (s *Screen) ID() uint32 {
	return s.name
}

// Output returns the underlying proxy.
func (s *Screen) Output() *wlclient.Output {
	return s.output
}

// Ready reports whether the compositor has finished describing the output.
func (s *Screen) Ready() bool {
	return s.done
}

// Geometry returns the position and physical description of the output.
func (s *Screen) Geometry() wlclient.OutputGeometry {
	return s.output.Geometry()
}

// Mode returns the current mode.
func (s *Screen) Mode() wlclient.OutputMode {
	return s.output.Mode()
}

// Scale returns the output scale factor.
func (s *Screen) Scale() int32 {
	return s.output.Scale()
}

func (s *Screen) destroy() {
	s.output.Destroy()
}
