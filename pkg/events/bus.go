// Package events is the in-process notification channel between the
// swap engine and whatever presentation layer subscribes to it.
package events

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Type names a lifecycle event.
type Type string

const (
	SwapInitiated        Type = "SWAP_INITIATED"
	SwapStatusUpdated    Type = "SWAP_STATUS_UPDATED"
	AutoShieldingStarted Type = "AUTO_SHIELDING_STARTED"
	AutoShieldComplete   Type = "AUTO_SHIELD_COMPLETE"
	SwapCompleted        Type = "SWAP_COMPLETED"
	SwapFailed           Type = "SWAP_FAILED"
	QuoteFetched         Type = "QUOTE_FETCHED"
)

// Event is one lifecycle notification.
type Event struct {
	Type      Type      `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

// Handler consumes events. Handlers run on the publisher's goroutine;
// a panicking handler is isolated and logged, never propagated.
type Handler func(Event)

// Bus is a minimal publish/subscribe fan-out.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
	log      *logrus.Logger
}

// NewBus creates an event bus.
func NewBus(log *logrus.Logger) *Bus {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Bus{handlers: make(map[int]Handler), log: log}
}

// Subscribe registers a handler and returns its unsubscribe function.
// Unsubscribing twice is harmless.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

// Publish delivers the event to every subscriber. One subscriber's
// panic does not affect the others or the publisher.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(h, ev)
	}
}

func (b *Bus) deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.WithFields(logrus.Fields{
				"event": ev.Type,
				"panic": r,
			}).Error("event handler panicked")
		}
	}()
	h(ev)
}
