package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherRecordsInOrder(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "sync-events", map[string]string{"stage": "SYNC_DONE"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "other", "payload")
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "memory-2", msgs[1].ID)
	require.Equal(t, 1, pub.Count("sync-events"))
	require.Zero(t, pub.Count("missing"))

	msgs[0].Topic = "modified"
	require.Equal(t, "sync-events", pub.Messages()[0].Topic)
}

func TestPublisherCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pub := New()
	_, err := pub.Publish(ctx, "sync-events", "x")
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, pub.Messages())
}
