package chat

import (
	"encoding/json"
	"sync"

	"campuschat/logger"
)

// HandlerFunc consumes one inbound frame payload.
type HandlerFunc func(payload json.RawMessage)

// Bus fans inbound frames out to the components that subscribed to each
// event. Publish runs handlers synchronously on the session's dispatch
// goroutine, so subscriber state only ever mutates from one place and in
// arrival order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]HandlerFunc
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]HandlerFunc)}
}

// Subscribe registers fn for event. Multiple subscribers per event are
// invoked in registration order.
func (b *Bus) Subscribe(event string, fn HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], fn)
}

// Publish dispatches a payload to every subscriber of event. Unknown
// events are logged and dropped, not treated as errors: the gateway may be
// newer than the client.
func (b *Bus) Publish(event string, payload json.RawMessage) {
	b.mu.RLock()
	hs := b.handlers[event]
	b.mu.RUnlock()

	if len(hs) == 0 {
		logger.Debugf("[bus] no subscriber for event=%s", event)
		return
	}
	for _, h := range hs {
		h(payload)
	}
}
