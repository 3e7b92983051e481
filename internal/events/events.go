package events

import (
	"errors"
	"sync"
	"time"

	"medbook/internal/models"
)

// Booking outcome event types.
const (
	TypeBooked   = "booking.booked"
	TypeRejected = "booking.rejected"
	TypeFailed   = "booking.failed"
)

// TypeForOutcome maps an attempt outcome to its event type.
func TypeForOutcome(o models.Outcome) string {
	switch o {
	case models.OutcomeBooked:
		return TypeBooked
	case models.OutcomeRejected:
		return TypeRejected
	default:
		return TypeFailed
	}
}

// Event is a finished booking attempt.
type Event struct {
	Type      string
	Attempt   models.Attempt
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for booking events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// SubscribeOutcomes registers handler for every booking outcome.
func (b *EventBus) SubscribeOutcomes(handler EventHandler) {
	b.Subscribe(handler, TypeBooked, TypeRejected, TypeFailed)
}

// PublishAttempt publishes a finished attempt under its outcome type.
func (b *EventBus) PublishAttempt(attempt models.Attempt) error {
	return b.Publish(Event{Type: TypeForOutcome(attempt.Outcome), Attempt: attempt})
}

// Publish notifies subscribers of the event type and returns their joined errors.
func (b *EventBus) Publish(event Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	// Handlers run synchronously; every handler runs even if an earlier one fails.
	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
