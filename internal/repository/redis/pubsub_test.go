package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoyagesPubSubDeliversChanges(t *testing.T) {
	rdb, _ := newTestClient(t)
	ps := NewVoyagesPubSub(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan int64, 16)
	done := make(chan error, 1)
	go func() {
		done <- ps.Subscribe(ctx, func(_ context.Context, voyageID int64) { got <- voyageID })
	}()

	// Malformed payloads on the channel are skipped.
	require.NoError(t, rdb.Publish(context.Background(), ChannelVoyagesChanged(), "not json").Err())

	// The subscription is established asynchronously, so keep publishing
	// until the handler sees a change.
	require.Eventually(t, func() bool {
		if err := ps.PublishVoyageChanged(context.Background(), 42); err != nil {
			return false
		}
		select {
		case id := <-got:
			return id == 42
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestNotificationPublisherUsesNotificationChannel(t *testing.T) {
	rdb, _ := newTestClient(t)
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, ChannelNotifications())
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, NewNotificationPublisher(rdb).Publish(ctx, []byte(`{"kind":"ticket_archived"}`)))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"ticket_archived"}`, msg.Payload)
}
