package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edgecomet/domfilter/internal/common/configtypes"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(&configtypes.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestNewClient_Errors(t *testing.T) {
	tests := []struct {
		name      string
		config    *configtypes.RedisConfig
		logger    *zap.Logger
		errorText string
	}{
		{name: "nil config", logger: zap.NewNop(), errorText: "redis config is required"},
		{name: "nil logger", config: &configtypes.RedisConfig{Addr: "localhost:6379"}, errorText: "logger is required"},
		{
			name:      "unreachable",
			config:    &configtypes.RedisConfig{Addr: "127.0.0.1:1"},
			logger:    zap.NewNop(),
			errorText: "failed to connect to Redis",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.config, tt.logger)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorText)
			assert.Nil(t, client)
		})
	}
}

func TestClient_SetGetDel(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	_, found, err := client.GetBytes(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, client.Set(ctx, "doc", []byte("<p>hi</p>"), time.Minute))
	value, found, err := client.GetBytes(ctx, "doc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("<p>hi</p>"), value)

	assert.Equal(t, time.Minute, mr.TTL("doc"))

	mr.FastForward(2 * time.Minute)
	_, found, err = client.GetBytes(ctx, "doc")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, client.Set(ctx, "a", "1", 0))
	require.NoError(t, client.Del(ctx, "a"))
	assert.False(t, mr.Exists("a"))
	assert.NoError(t, client.Del(ctx))
}

func TestClient_ErrorsWhenServerGone(t *testing.T) {
	client, mr := newTestClient(t)
	mr.Close()

	ctx := context.Background()
	assert.Error(t, client.Ping(ctx))
	_, _, err := client.GetBytes(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, client.Set(ctx, "k", "v", time.Second))
}
