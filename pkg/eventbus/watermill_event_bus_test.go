package eventbus_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finwatch/sentinel/pkg/channels/gochannel"
	"github.com/finwatch/sentinel/pkg/eventbus"
	"github.com/finwatch/sentinel/pkg/events"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NewSlogLogger(slog.Default()))
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	t.Cleanup(func() {
		require.NoError(t, bus.Close())
	})

	return bus
}

func TestWatermillEventBusDeliversTypedEvent(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan *events.FraudAlertCreated, 1)

	require.NoError(t, bus.Handle(events.FraudAlertCreatedEvent, func(_ context.Context, event any) error {
		alert, ok := event.(*events.FraudAlertCreated)
		if !ok {
			t.Errorf("unexpected event payload type %T", event)

			return nil
		}

		received <- alert

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	err := bus.Publish(ctx, "tx-1", events.FraudAlertCreated{
		BaseEvent:     events.NewBaseEvent(events.FraudAlertCreatedEvent, "policy-1"),
		AlertID:       "alert-1",
		TransactionID: "tx-1",
		ModelID:       "model-velocity",
		Confidence:    0.8,
	})
	require.NoError(t, err)

	select {
	case alert := <-received:
		assert.Equal(t, "alert-1", alert.AlertID)
		assert.Equal(t, "tx-1", alert.TransactionID)
		assert.Equal(t, "model-velocity", alert.ModelID)
		assert.InDelta(t, 0.8, alert.Confidence, 0.001)
		assert.Equal(t, "policy-1", alert.PolicyID)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered to the handler")
	}
}

func TestWatermillEventBusIgnoresUnhandledTypes(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan *events.PolicyActivated, 1)

	require.NoError(t, bus.Handle(events.PolicyActivatedEvent, func(_ context.Context, event any) error {
		activated, ok := event.(*events.PolicyActivated)
		if ok {
			received <- activated
		}

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// An event without a registered handler is acked and dropped.
	require.NoError(t, bus.Publish(ctx, "policy-1", events.PolicyArchived{
		BaseEvent: events.NewBaseEvent(events.PolicyArchivedEvent, "policy-1"),
	}))

	require.NoError(t, bus.Publish(ctx, "policy-1", events.PolicyActivated{
		BaseEvent: events.NewBaseEvent(events.PolicyActivatedEvent, "policy-1"),
	}))

	select {
	case activated := <-received:
		assert.Equal(t, "policy-1", activated.PolicyID)
	case <-time.After(5 * time.Second):
		t.Fatal("activation event was not delivered")
	}
}

func TestWatermillEventBusGenerateID(t *testing.T) {
	bus := newTestBus(t)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
