package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/polyrabbit/cross-ticker/config"
	"github.com/polyrabbit/cross-ticker/exchange/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := config.Default().Redis
	cfg.Addr = mr.Addr()
	s, err := NewRedisStore(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()

	t.Run("latest before publish", func(t *testing.T) {
		s, _ := newTestRedisStore(t)
		_, err := s.Latest(ctx)
		assert.ErrorIs(t, err, ErrNoSnapshot)
	})

	t.Run("publish round trip", func(t *testing.T) {
		s, mr := newTestRedisStore(t)
		snapshot := testSnapshot(t, "0.0341234567")

		require.NoError(t, s.Publish(ctx, snapshot))

		assert.Equal(t, 300*time.Second, mr.TTL(s.key))
		latest, err := s.Latest(ctx)
		require.NoError(t, err)
		assert.True(t, snapshot.TakenAt.Equal(latest.TakenAt))
		quote, ok := latest.Quote(model.Coincap, model.ETH)
		require.True(t, ok)
		assert.Equal(t, "0.03412", quote.PriceString())
		assert.Equal(t, model.Timeout, latest.BySource[model.Exmo].Failure.Kind)
	})

	t.Run("snapshot expires", func(t *testing.T) {
		s, mr := newTestRedisStore(t)
		require.NoError(t, s.Publish(ctx, testSnapshot(t, "0.034")))

		mr.FastForward(301 * time.Second)

		_, err := s.Latest(ctx)
		assert.ErrorIs(t, err, ErrNoSnapshot)
	})

	t.Run("announces on the channel", func(t *testing.T) {
		s, mr := newTestRedisStore(t)
		subscriber := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer subscriber.Close()
		pubsub := subscriber.Subscribe(ctx, s.channel)
		defer pubsub.Close()
		_, err := pubsub.Receive(ctx)
		require.NoError(t, err)

		require.NoError(t, s.Publish(ctx, testSnapshot(t, "0.034")))

		select {
		case msg := <-pubsub.Channel():
			assert.Contains(t, msg.Payload, `"price":"0.03400"`)
		case <-time.After(2 * time.Second):
			t.Fatalf("Expecting a message on %s", s.channel)
		}
	})
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	cfg := config.Default().Redis
	cfg.Addr = "127.0.0.1:1"
	_, err := NewRedisStore(context.Background(), cfg)
	assert.Error(t, err)
}
