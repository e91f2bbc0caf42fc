package target

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/apps/pipes-service/internal/pipes"
)

func TestEventsStoreResolveDestinationNotFound(t *testing.T) {
	store := NewEventsStore()
	_, err := store.ResolveDestination(context.Background(), "arn:aws:events:us-east-1:111122223333:api-destination/missing")
	require.Error(t, err)
	var nfErr *pipes.NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestEventsStoreResolveConnectionMissingIsNilNotError(t *testing.T) {
	store := NewEventsStore()
	conn, err := store.ResolveConnection(context.Background(), "arn:aws:events:us-east-1:111122223333:connection/missing")
	require.NoError(t, err)
	assert.Nil(t, conn)
}

func TestEventsStorePutAndResolve(t *testing.T) {
	store := NewEventsStore()
	dest := &Destination{HttpMethod: "POST", InvocationEndpoint: "https://example.com"}
	store.PutDestination("arn:dest", dest)

	resolved, err := store.ResolveDestination(context.Background(), "arn:dest")
	require.NoError(t, err)
	assert.Same(t, dest, resolved)
}
