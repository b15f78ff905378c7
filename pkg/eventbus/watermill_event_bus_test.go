package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-hq/custodia/pkg/channels/gochannel"
	"github.com/custodia-hq/custodia/pkg/eventbus"
	"github.com/custodia-hq/custodia/pkg/events"
	"github.com/custodia-hq/custodia/pkg/models"
)

func newTestBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_PublishSubscribe(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan any, 1)

	require.NoError(t, bus.Handle(events.IssueCreatedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	published := events.IssueCreated{
		BaseEvent: events.BaseEvent{
			ID:        "evt-1",
			Type:      events.IssueCreatedEvent,
			Timestamp: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
		},
		IssueID:  "i1",
		Severity: models.SeverityCritical,
		RuleID:   "dq-001",
	}

	require.NoError(t, bus.Publish(ctx, "i1", published))

	select {
	case event := <-received:
		created, ok := event.(*events.IssueCreated)
		require.True(t, ok)
		assert.Equal(t, "i1", created.IssueID)
		assert.Equal(t, models.SeverityCritical, created.Severity)
		assert.Equal(t, "dq-001", created.RuleID)
		assert.Equal(t, events.IssueCreatedEvent, created.GetType())
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillEventBus_UnhandledTypesAreDropped(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan any, 2)

	require.NoError(t, bus.Handle(events.CyclePausedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for cycle.started; it must be acked and dropped.
	require.NoError(t, bus.Publish(ctx, "c1", events.CycleStarted{
		BaseEvent: events.BaseEvent{ID: "evt-1", Type: events.CycleStartedEvent, Timestamp: time.Now()},
		CycleID:   "c1",
	}))
	require.NoError(t, bus.Publish(ctx, "c1", events.CyclePaused{
		BaseEvent: events.BaseEvent{ID: "evt-2", Type: events.CyclePausedEvent, Timestamp: time.Now()},
		CycleID:   "c1",
	}))

	select {
	case event := <-received:
		paused, ok := event.(*events.CyclePaused)
		require.True(t, ok)
		assert.Equal(t, "c1", paused.CycleID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	assert.Empty(t, received)
}

func TestWatermillEventBus_DuplicateHandlerRejected(t *testing.T) {
	bus := newTestBus(t)

	handler := func(_ context.Context, _ any) error { return nil }

	require.NoError(t, bus.Handle(events.TaskEscalatedEvent, handler))
	assert.Error(t, bus.Handle(events.TaskEscalatedEvent, handler))
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newTestBus(t)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
