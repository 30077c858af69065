package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "problems/1.json", "application/json", payload)
	require.NoError(t, err)
	require.Equal(t, "memory://problems/1.json", uri)

	payload[0] = 'C'
	got, ok := store.Object("problems/1.json")
	require.True(t, ok)
	require.Equal(t, "content", string(got))
	require.Equal(t, []string{"problems/1.json"}, store.Paths())

	_, ok = store.Object("missing")
	require.False(t, ok)
}
