// Package hub is a synchronous publish/subscribe registry keyed by event
// name. Components announce state changes through it instead of reaching
// into each other.
package hub

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// Event names emitted by the device and preview packages. The set is open.
const (
	Connected    = "connected"
	Disconnected = "disconnected"
	Captured     = "captured"  // payload: filename
	Error        = "error"     // payload: message
	Status       = "status"    // payload: client.DeviceState
	Degraded     = "degraded"  // payload: consecutive failure count
	Recovered    = "recovered" // no payload
)

// Event is one emission. It only lives for the duration of a dispatch.
type Event struct {
	Name    string
	Payload any
}

// Text returns the payload when it is a string, otherwise "".
func (e Event) Text() string {
	s, _ := e.Payload.(string)
	return s
}

// Handler receives events.
type Handler func(Event)

// Hub maps event names to ordered handler lists.
type Hub struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *log.Logger
}

// New returns a Hub with no subscribers.
func New(logger *log.Logger) *Hub {
	return &Hub{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe appends h to the handlers for name. A handler added while an
// emission of name is being dispatched runs from the next emission on.
func (h *Hub) Subscribe(name string, fn Handler) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[name] = append(h.handlers[name], fn)
}

// Emit calls every handler for name in registration order and returns once
// all of them have run. A panicking handler is logged and skipped.
func (h *Hub) Emit(name string, payload any) {
	h.mu.RLock()
	list := h.handlers[name]
	h.mu.RUnlock()
	if len(list) == 0 {
		return
	}

	ev := Event{Name: name, Payload: payload}
	// list is a snapshot: append in Subscribe never writes into the
	// portion of the backing array visible through it.
	for i, fn := range list {
		h.call(i, fn, ev)
	}
}

// Subscribers reports how many handlers are registered for name.
func (h *Hub) Subscribers(name string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers[name])
}

func (h *Hub) call(i int, fn Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("handler panic", "event", ev.Name, "handler", i, "err", fmt.Sprint(r))
		}
	}()
	fn(ev)
}
