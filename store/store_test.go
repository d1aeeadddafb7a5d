package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/polyrabbit/cross-ticker/exchange/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(t *testing.T, price string) *model.Snapshot {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	quote, err := model.NewPriceQuote(model.Coincap, model.ETH, decimal.RequireFromString(price), now)
	require.NoError(t, err)
	return &model.Snapshot{
		TakenAt: now,
		BySource: map[model.SourceID]model.SourceResult{
			model.Coincap: {Source: model.Coincap, Quotes: map[model.AssetSymbol]model.PriceQuote{model.ETH: quote}},
			model.Exmo:    model.NewFailedResult(model.Exmo, model.NewFailure(model.Timeout, "", errors.New("not settled"))),
		},
	}
}

func TestMemoryStore(t *testing.T) {

	t.Run("latest before publish", func(t *testing.T) {
		_, err := NewMemoryStore().Latest()
		assert.ErrorIs(t, err, ErrNoSnapshot)
	})

	t.Run("publish and subscribe", func(t *testing.T) {
		s := NewMemoryStore()
		ch, unsubscribe := s.Subscribe(1)
		defer unsubscribe()
		snapshot := testSnapshot(t, "0.034")

		require.NoError(t, s.Publish(context.Background(), snapshot))

		latest, err := s.Latest()
		require.NoError(t, err)
		assert.Same(t, snapshot, latest)
		select {
		case got := <-ch:
			assert.Same(t, snapshot, got)
		case <-time.After(time.Second):
			t.Fatalf("Subscriber should be notified")
		}
	})

	t.Run("lagging subscriber never blocks publishing", func(t *testing.T) {
		s := NewMemoryStore()
		_, unsubscribe := s.Subscribe(1)
		defer unsubscribe()

		done := make(chan struct{})
		go func() {
			for i := 0; i < 5; i++ {
				s.Publish(context.Background(), testSnapshot(t, "0.034"))
			}
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("Publish blocked on a lagging subscriber")
		}
	})

	t.Run("unsubscribe closes the channel", func(t *testing.T) {
		s := NewMemoryStore()
		ch, unsubscribe := s.Subscribe(1)
		unsubscribe()
		unsubscribe()

		_, ok := <-ch
		assert.False(t, ok)
		require.NoError(t, s.Publish(context.Background(), testSnapshot(t, "0.034")))
	})

	t.Run("concurrent access", func(t *testing.T) {
		s := NewMemoryStore()
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				s.Publish(context.Background(), testSnapshot(t, "0.034"))
			}()
			go func() {
				defer wg.Done()
				s.Latest()
			}()
		}
		wg.Wait()
	})
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) Publish(ctx context.Context, snapshot *model.Snapshot) error {
	p.calls++
	return errors.New("disk full")
}

func TestMulti(t *testing.T) {
	failing := &failingPublisher{}
	memory := NewMemoryStore()
	snapshot := testSnapshot(t, "0.034")

	err := Multi(failing, memory).Publish(context.Background(), snapshot)

	assert.EqualError(t, err, "disk full")
	assert.Equal(t, 1, failing.calls)
	latest, err := memory.Latest()
	require.NoError(t, err)
	assert.Same(t, snapshot, latest)
}
