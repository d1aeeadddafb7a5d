package exchange

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/polyrabbit/cross-ticker/exchange/model"
	"github.com/shopspring/decimal"
)

// fakeAssetClient answers from prices, errs wins over prices, hang blocks until ctx is done
type fakeAssetClient struct {
	name   model.SourceID
	prices map[model.AssetSymbol]string
	errs   map[model.AssetSymbol]error
	hang   map[model.AssetSymbol]bool
	delay  time.Duration
	calls  int32
}

func (c *fakeAssetClient) GetName() model.SourceID {
	return c.name
}

func (c *fakeAssetClient) GetAssetPrice(ctx context.Context, asset model.AssetSymbol) (*model.PriceQuote, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.hang[asset] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := c.errs[asset]; ok {
		return nil, err
	}
	raw, ok := c.prices[asset]
	if !ok {
		return nil, malformed(asset, ErrMissingField)
	}
	price, err := parsePrice(raw)
	if err != nil {
		return nil, malformed(asset, err)
	}
	return newQuote(c.name, asset, price)
}

// fakeBatchClient counts calls to prove batched sources are asked once per cycle
type fakeBatchClient struct {
	name   model.SourceID
	prices map[model.AssetSymbol]string
	err    error
	calls  int32
}

func (c *fakeBatchClient) GetName() model.SourceID {
	return c.name
}

func (c *fakeBatchClient) GetAssetPrices(ctx context.Context, assets []model.AssetSymbol) (map[model.AssetSymbol]model.PriceQuote, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.err != nil {
		return nil, c.err
	}
	quotes := make(map[model.AssetSymbol]model.PriceQuote, len(assets))
	for _, asset := range assets {
		raw, ok := c.prices[asset]
		if !ok {
			return nil, malformed(asset, ErrMissingField)
		}
		quote, err := model.NewPriceQuote(c.name, asset, decimal.RequireFromString(raw), time.Now())
		if err != nil {
			return nil, err
		}
		quotes[asset] = quote
	}
	return quotes, nil
}

// hangingClient ignores ctx entirely and never answers
type hangingClient struct {
	name    model.SourceID
	release chan struct{}
}

func (c *hangingClient) GetName() model.SourceID {
	return c.name
}

func (c *hangingClient) GetAssetPrice(ctx context.Context, asset model.AssetSymbol) (*model.PriceQuote, error) {
	<-c.release
	return nil, errors.New("released")
}

var allPrices = map[model.AssetSymbol]string{
	model.ETH:  "0.0341234567",
	model.LTC:  "0.008312",
	model.DASH: "0.0212",
}
