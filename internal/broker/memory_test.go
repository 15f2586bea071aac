package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBrokerQueueFIFO(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	require.NoError(t, b.Push(ctx, "order", []byte("first")))
	require.NoError(t, b.Push(ctx, "order", []byte("second")))

	first, err := b.Pop(ctx, "order")
	require.NoError(t, err)
	assert.Equal(t, "first", string(first))

	second, err := b.Pop(ctx, "order")
	require.NoError(t, err)
	assert.Equal(t, "second", string(second))
}

func TestMemoryBrokerPopBlocksUntilPush(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()
	result := make(chan []byte, 1)

	go func() {
		payload, err := b.Pop(ctx, "order")
		require.NoError(t, err)
		result <- payload
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Push(ctx, "order", []byte("late")))

	select {
	case payload := <-result:
		assert.Equal(t, "late", string(payload))
	case <-time.After(time.Second):
		t.Fatal("Pop did not unblock after Push")
	}
}

func TestMemoryBrokerSubscribeBeforePublish(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, "market_updates")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, b.Publish(ctx, "market_updates", []byte("update")))

	msg, err := sub.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "market_updates", msg.Topic)
	assert.Equal(t, "update", string(msg.Payload))
}

func TestMemoryBrokerPublishWithNoSubscriberIsDropped(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()
	// No subscriber yet: Publish must not block or error.
	require.NoError(t, b.Publish(ctx, "market_updates", []byte("nobody home")))
}

func TestMemoryBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := NewMemoryBroker()
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, "market_updates")
	require.NoError(t, err)
	require.NoError(t, sub.Close())

	_, err = sub.Receive(ctx)
	assert.Error(t, err)
}
