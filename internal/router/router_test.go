package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/courtside/internal/events"
)

func TestRouter_DispatchesTypedPayloads(t *testing.T) {
	r := New()

	var queues []events.QueueUpdatedPayload
	r.Subscribe(events.TopicQueueUpdated, func(payload any) {
		queues = append(queues, payload.(events.QueueUpdatedPayload))
	})

	var errors []events.ErrorPayload
	r.Subscribe(events.TopicError, func(payload any) {
		errors = append(errors, payload.(events.ErrorPayload))
	})

	r.Route([]byte(`{"topic":"queue-updated","data":{"teams":[],"totalTeams":0,"availableSlots":10}}`))
	r.Route([]byte(`{"topic":"error","data":{"code":"QUEUE_FULL","message":"queue is full"}}`))

	require.Len(t, queues, 1)
	assert.Equal(t, 10, queues[0].AvailableSlots)
	require.Len(t, errors, 1)
	assert.Equal(t, events.CodeQueueFull, errors[0].Code)
	assert.EqualValues(t, 2, r.DeliveredCount())
	assert.EqualValues(t, 0, r.MalformedCount())
}

func TestRouter_DropsMalformedMessages(t *testing.T) {
	r := New()

	var delivered int
	r.Subscribe(events.TopicQueueUpdated, func(any) { delivered++ })
	r.Subscribe(events.TopicMatchUpdated, func(any) { delivered++ })

	malformed := [][]byte{
		[]byte(`not json at all`),
		[]byte(`{"data":{}}`),                                             // missing topic
		[]byte(`{"topic":"unknown-topic","data":{}}`),                     // unknown topic
		[]byte(`{"topic":"queue-updated","data":{"totalTeams":3}}`),       // missing teams
		[]byte(`{"topic":"match-updated","data":{"event":"bogus_event","match":{"id":"m1"}}}`), // unknown event
		[]byte(`{"topic":"match-updated","data":{"event":"match_started","match":{}}}`),        // missing match id
	}
	for _, raw := range malformed {
		r.Route(raw)
	}

	assert.Zero(t, delivered, "malformed messages never reach handlers")
	assert.EqualValues(t, len(malformed), r.MalformedCount())
	assert.EqualValues(t, 0, r.DeliveredCount())
}

func TestRouter_PanickingHandlerDoesNotStopDelivery(t *testing.T) {
	r := New()

	var order []string
	r.Subscribe(events.TopicCourtStatus, func(any) {
		order = append(order, "first")
		panic("handler bug")
	})
	r.Subscribe(events.TopicCourtStatus, func(any) {
		order = append(order, "second")
	})

	r.Route([]byte(`{"topic":"court-status","data":{"isOpen":true}}`))
	r.Route([]byte(`{"topic":"court-status","data":{"isOpen":false}}`))

	assert.Equal(t, []string{"first", "second", "first", "second"}, order)
	assert.EqualValues(t, 2, r.DeliveredCount())
}

func TestRouter_HandlersRunInRegistrationOrder(t *testing.T) {
	r := New()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		r.Subscribe(events.TopicNotification, func(any) { order = append(order, i) })
	}

	r.Route([]byte(`{"topic":"notification","data":{"type":"info","title":"hi","message":"there"}}`))

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}
