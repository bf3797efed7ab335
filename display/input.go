package display

import (
	"fmt"

	"github.com/bnema/wlclient"
	"github.com/bnema/wlclient/internal/logger"
)

// seatVersion is the highest wl_seat version an InputDevice understands.
const seatVersion = 2

// InputDevice is a bound wl_seat. It holds a pointer, keyboard and touch
// proxy for each capability the seat currently advertises.
type InputDevice struct {
	conn *Connection
	name uint32
	seat *wlclient.Seat

	pointer  *wlclient.Pointer
	keyboard *wlclient.Keyboard
	touch    *wlclient.Touch
}

func newInputDevice(c *Connection, registry *wlclient.Registry, name, version uint32) (*InputDevice, error) {
	dev := &InputDevice{
		conn: c,
		name: name,
		seat: wlclient.NewSeat(),
	}
	dev.seat.OnCapabilities = dev.updateCapabilities

	if err := registry.Bind(name, "wl_seat", min(version, seatVersion), dev.seat); err != nil {
		return nil, fmt.Errorf("bind wl_seat %d: %w", name, err)
	}
	return dev, nil
}

// Connection returns the connection that owns the device.
func (dev *InputDevice) Connection() *Connection {
	return dev.conn
}

// ID returns the server's global name for the seat.
func (dev *InputDevice) ID() uint32 {
	return dev.name
}

// Seat returns the underlying proxy.
func (dev *InputDevice) Seat() *wlclient.Seat {
	return dev.seat
}

// Name returns the seat name, empty until the compositor sends it.
func (dev *InputDevice) Name() string {
	return dev.seat.Name()
}

// Capabilities returns the wl_seat capability bitmask.
func (dev *InputDevice) Capabilities() uint32 {
	return dev.seat.Capabilities()
}

// Pointer returns the pointer proxy, or nil without the capability.
func (dev *InputDevice) Pointer() *wlclient.Pointer {
	return dev.pointer
}

// Keyboard returns the keyboard proxy, or nil without the capability.
func (dev *InputDevice) Keyboard() *wlclient.Keyboard {
	return dev.keyboard
}

// Touch returns the touch proxy, or nil without the capability.
func (dev *InputDevice) Touch() *wlclient.Touch {
	return dev.touch
}

func (dev *InputDevice) updateCapabilities(caps uint32) {
	var err error

	switch has := caps&wlclient.SeatCapabilityPointer != 0; {
	case has && dev.pointer == nil:
		dev.pointer, err = dev.seat.GetPointer()
	case !has && dev.pointer != nil:
		dev.pointer.Destroy()
		dev.pointer = nil
	}
	if err != nil {
		logger.Error("failed to get pointer", "seat", dev.name, "error", err)
	}

	err = nil
	switch has := caps&wlclient.SeatCapabilityKeyboard != 0; {
	case has && dev.keyboard == nil:
		dev.keyboard, err = dev.seat.GetKeyboard()
	case !has && dev.keyboard != nil:
		dev.keyboard.Destroy()
		dev.keyboard = nil
	}
	if err != nil {
		logger.Error("failed to get keyboard", "seat", dev.name, "error", err)
	}

	err = nil
	switch has := caps&wlclient.SeatCapabilityTouch != 0; {
	case has && dev.touch == nil:
		dev.touch, err = dev.seat.GetTouch()
	case !has && dev.touch != nil:
		dev.touch.Destroy()
		dev.touch = nil
	}
	if err != nil {
		logger.Error("failed to get touch", "seat", dev.name, "error", err)
	}

	logger.Debug("seat capabilities", "seat", dev.name, "caps", caps)
}

func (dev *InputDevice) destroy() {
	if dev.pointer != nil {
		dev.pointer.Destroy()
		dev.pointer = nil
	}
	if dev.keyboard != nil {
		dev.keyboard.Destroy()
		dev.keyboard = nil
	}
	if dev.touch != nil {
		dev.touch.Destroy()
		dev.touch = nil
	}
	dev.seat.Destroy()
}
