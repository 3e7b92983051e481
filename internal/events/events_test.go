package events

import (
	"errors"
	"testing"

	"medbook/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestTypeForOutcome(t *testing.T) {
	assert.Equal(t, TypeBooked, TypeForOutcome(models.OutcomeBooked))
	assert.Equal(t, TypeRejected, TypeForOutcome(models.OutcomeRejected))
	assert.Equal(t, TypeFailed, TypeForOutcome(models.OutcomeFailed))
	assert.Equal(t, TypeFailed, TypeForOutcome(""))
}

func TestEventBus_PublishAttempt(t *testing.T) {
	bus := NewEventBus()

	var booked, all []Event
	bus.Subscribe(func(e Event) error {
		booked = append(booked, e)
		return nil
	}, TypeBooked)
	bus.SubscribeOutcomes(func(e Event) error {
		all = append(all, e)
		return nil
	})

	assert.NoError(t, bus.PublishAttempt(models.Attempt{ID: "a", Outcome: models.OutcomeBooked}))
	assert.NoError(t, bus.PublishAttempt(models.Attempt{ID: "b", Outcome: models.OutcomeRejected}))

	assert.Len(t, booked, 1)
	assert.Equal(t, "a", booked[0].Attempt.ID)
	assert.False(t, booked[0].CreatedAt.IsZero())
	assert.Len(t, all, 2)
	assert.Equal(t, TypeRejected, all[1].Type)
}

func TestEventBus_HandlerErrors(t *testing.T) {
	bus := NewEventBus()
	errFirst := errors.New("first")
	called := false

	bus.Subscribe(func(Event) error { return errFirst }, TypeFailed)
	bus.Subscribe(func(Event) error {
		called = true
		return nil
	}, TypeFailed)

	err := bus.Publish(Event{Type: TypeFailed})
	assert.ErrorIs(t, err, errFirst)
	assert.True(t, called, "later handlers still run")
}

func TestEventBus_NoSubscribers(t *testing.T) {
	assert.NoError(t, NewEventBus().Publish(Event{Type: "unknown"}))
}
