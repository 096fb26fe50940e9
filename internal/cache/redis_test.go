package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	url := os.Getenv("ASSETMILL_REDIS_URL")
	if url == "" {
		t.Skip("ASSETMILL_REDIS_URL not set")
	}

	s, err := NewRedisStore(context.Background(), url, time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	exerciseStore(t, s)
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "not-a-url", 0)
	require.Error(t, err)
}
