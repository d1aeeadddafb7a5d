package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/polyrabbit/cross-ticker/exchange/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect_PerAsset(t *testing.T) {

	t.Run("all assets succeed", func(t *testing.T) {
		client := &fakeAssetClient{name: model.Coincap, prices: allPrices}
		result := Collect(context.Background(), client, model.AllAssets())

		require.True(t, result.OK())
		assert.Len(t, result.Quotes, 3)
		assert.Empty(t, result.Failures)
		assert.Equal(t, "0.03412", result.Quotes[model.ETH].PriceString())
		assert.EqualValues(t, 3, client.calls)
	})

	t.Run("partial failure keeps the other assets", func(t *testing.T) {
		client := &fakeAssetClient{
			name:   model.Bleutrade,
			prices: allPrices,
			errs:   map[model.AssetSymbol]error{model.LTC: errors.New("connection reset")},
		}
		result := Collect(context.Background(), client, model.AllAssets())

		require.True(t, result.OK())
		assert.Len(t, result.Quotes, 2)
		require.Contains(t, result.Failures, model.LTC)
		assert.Equal(t, model.TransportError, result.Failures[model.LTC].Kind)
		assert.Equal(t, model.LTC, result.Failures[model.LTC].Asset)
	})

	t.Run("malformed values", func(t *testing.T) {
		client := &fakeAssetClient{
			name:   model.Coincap,
			prices: map[model.AssetSymbol]string{model.ETH: "not-a-number", model.LTC: "-5"},
		}
		result := Collect(context.Background(), client, []model.AssetSymbol{model.ETH, model.LTC})

		assert.Empty(t, result.Quotes)
		assert.Equal(t, model.MalformedResponse, result.Failures[model.ETH].Kind)
		assert.Equal(t, model.MalformedResponse, result.Failures[model.LTC].Kind)
		require.False(t, result.OK())
		assert.Equal(t, model.MalformedResponse, result.Failure.Kind)
	})

	t.Run("every asset fails", func(t *testing.T) {
		client := &fakeAssetClient{
			name: model.Coincap,
			errs: map[model.AssetSymbol]error{
				model.ETH: model.NewFailure(model.MalformedResponse, model.ETH, errors.New("bad")),
				model.LTC: errors.New("refused"),
			},
		}
		result := Collect(context.Background(), client, []model.AssetSymbol{model.ETH, model.LTC})

		require.False(t, result.OK())
		assert.Equal(t, model.MalformedResponse, result.Failure.Kind, "first asset in request order decides the kind")
		assert.Empty(t, result.Failure.Asset)
		assert.Len(t, result.Failures, 2)
	})

	t.Run("deadline turns into timeout", func(t *testing.T) {
		client := &fakeAssetClient{
			name:   model.Coincap,
			prices: allPrices,
			hang:   map[model.AssetSymbol]bool{model.DASH: true},
		}
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		result := Collect(ctx, client, model.AllAssets())

		assert.Len(t, result.Quotes, 2)
		require.Contains(t, result.Failures, model.DASH)
		assert.True(t, errors.Is(result.Failures[model.DASH], model.ErrTimeout))
	})

	t.Run("cancelled", func(t *testing.T) {
		client := &fakeAssetClient{name: model.Coincap, hang: map[model.AssetSymbol]bool{model.ETH: true}}
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		result := Collect(ctx, client, []model.AssetSymbol{model.ETH})

		assert.True(t, errors.Is(result.Failure, model.ErrCancelled))
	})
}

func TestCollect_Batch(t *testing.T) {

	t.Run("one call for every asset", func(t *testing.T) {
		client := &fakeBatchClient{name: model.Exmo, prices: allPrices}
		result := Collect(context.Background(), client, model.AllAssets())

		require.True(t, result.OK())
		assert.Len(t, result.Quotes, 3)
		assert.EqualValues(t, 1, client.calls)
	})

	t.Run("bad pair is reported against the source", func(t *testing.T) {
		client := &fakeBatchClient{name: model.Exmo, prices: map[model.AssetSymbol]string{model.ETH: "0.034"}}
		result := Collect(context.Background(), client, []model.AssetSymbol{model.ETH, model.LTC})

		require.False(t, result.OK())
		assert.Empty(t, result.Failure.Asset)
		assert.Equal(t, model.MalformedResponse, result.Failure.Kind)
		assert.Contains(t, result.Failure.Error(), "LTC")
		assert.Empty(t, result.Quotes)
	})

	t.Run("failure covers the whole source", func(t *testing.T) {
		client := &fakeBatchClient{name: model.Exmo, err: errors.New("dial tcp: connection refused")}
		result := Collect(context.Background(), client, model.AllAssets())

		require.False(t, result.OK())
		assert.Empty(t, result.Quotes)
		assert.Equal(t, model.TransportError, result.Failure.Kind)
		assert.EqualValues(t, 1, client.calls)
	})
}
