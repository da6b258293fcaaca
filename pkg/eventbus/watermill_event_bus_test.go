package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diligince/closeout/pkg/channels/gochannel"
	"github.com/diligince/closeout/pkg/eventbus"
	"github.com/diligince/closeout/pkg/events"
)

func TestWatermillEventBus_PublishAndSubscribe(t *testing.T) {
	t.Parallel()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	t.Cleanup(func() {
		_ = bus.Close()
	})

	received := make(chan any, 1)

	err = bus.Handle(events.CloseoutInitiatedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, bus.Subscribe(ctx))

	err = bus.Publish(ctx, "wf-1", events.CloseoutInitiated{
		BaseEvent: events.BaseEvent{
			ID:         "ev-1",
			Type:       events.CloseoutInitiatedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: "wf-1",
		},
		ItemCount: 5,
	})
	require.NoError(t, err)

	select {
	case event := <-received:
		initiated, ok := event.(*events.CloseoutInitiated)
		require.True(t, ok)
		assert.Equal(t, "wf-1", initiated.WorkflowID)
		assert.Equal(t, 5, initiated.ItemCount)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	t.Parallel()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	t.Cleanup(func() {
		_ = bus.Close()
	})

	assert.NotEmpty(t, bus.GenerateID())
	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}
