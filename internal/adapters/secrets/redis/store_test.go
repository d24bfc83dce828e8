package redis

import (
	"context"
	"os"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ansible-wisdom/wca-pipeline/internal/credentials"
)

// newTestStore connects to the Redis named by WCA_TEST_REDIS_ADDR, skipping
// the test when none is available.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("WCA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("WCA_TEST_REDIS_ADDR not set")
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr, DB: 15})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return NewWithClient(client)
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, 1, credentials.SuffixAPIKey)
	assert.ErrorIs(t, err, credentials.ErrSecretNotFound)

	require.NoError(t, s.Set(ctx, 1, credentials.SuffixAPIKey, "k-1"))
	require.NoError(t, s.Set(ctx, 2, credentials.SuffixModelID, "m-2"))

	secret, err := s.Get(ctx, 1, credentials.SuffixAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "k-1", secret.Value)

	ok, err := s.Exists(ctx, 1, credentials.SuffixAPIKey)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, 1, credentials.SuffixModelID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Delete(ctx, 1, credentials.SuffixAPIKey))
	_, err = s.Get(ctx, 1, credentials.SuffixAPIKey)
	assert.ErrorIs(t, err, credentials.ErrSecretNotFound)
}

func TestSecretKeyFormat(t *testing.T) {
	assert.Equal(t, "wca:secret:42:api_key", secretKey(42, credentials.SuffixAPIKey))
}
