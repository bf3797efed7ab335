package wlclient

import (
	"sync"
)

// Event pool for queued events. An event goes back to the pool once
// dispatched, so handlers must not keep it.
var eventPool = sync.Pool{
	New: func() interface{} {
		return &Event{
			data: make([]byte, 0, 256),
		}
	},
}

func (e *Event) release() {
	e.proxy = nil
	e.fds = nil
	eventPool.Put(e)
}

// EventHandler is a function type for handling raw events
type EventHandler func(event *Event)

// EventDispatcher maps (object ID, opcode) pairs to raw handlers
type EventDispatcher struct {
	mu       sync.RWMutex
	handlers map[uint32]map[uint16][]EventHandler
}

// NewEventDispatcher creates an empty dispatcher
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[uint32]map[uint16][]EventHandler),
	}
}

// RegisterHandler adds handler for events on objectID with the given opcode.
// Handlers for the same pair run in registration order.
func (d *EventDispatcher) RegisterHandler(objectID uint32, opcode uint16, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	byOpcode, ok := d.handlers[objectID]
	if !ok {
		byOpcode = make(map[uint16][]EventHandler)
		d.handlers[objectID] = byOpcode
	}
	byOpcode[opcode] = append(byOpcode[opcode], handler)
}

// Unregister removes every handler of objectID
func (d *EventDispatcher) Unregister(objectID uint32) {
	d.mu.Lock()
	delete(d.handlers, objectID)
	d.mu.Unlock()
}

// Dispatch runs the handlers matching event and returns how many ran. Each
// handler reads the arguments from the start.
func (d *EventDispatcher) Dispatch(event *Event) int {
	d.mu.RLock()
	handlers := d.handlers[event.ProxyID][event.Opcode]
	d.mu.RUnlock()

	for _, handler := range handlers {
		event.offset = 0
		handler(event)
	}
	return len(handlers)
}
