package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/polyrabbit/cross-ticker/exchange/model"
	"github.com/polyrabbit/cross-ticker/http"
	"github.com/sirupsen/logrus"
)

type assetOutcome struct {
	asset model.AssetSymbol
	quote *model.PriceQuote
	err   error
}

// Collect fetches assets from one source and settles every request before returning.
// It never fails itself, problems are recorded on the returned SourceResult.
func Collect(ctx context.Context, client ExchangeClient, assets []model.AssetSymbol) model.SourceResult {
	switch c := client.(type) {
	case BatchPriceClient:
		return collectBatch(ctx, c, assets)
	case AssetPriceClient:
		return collectPerAsset(ctx, c, assets)
	}
	return model.NewFailedResult(client.GetName(), model.NewFailure(model.MalformedResponse, "",
		errors.New("client can fetch neither single nor batched prices")))
}

func collectBatch(ctx context.Context, client BatchPriceClient, assets []model.AssetSymbol) model.SourceResult {
	start := time.Now()
	quotes, err := client.GetAssetPrices(ctx, assets)
	if err != nil {
		failure := classify(ctx, err, "")
		logFailure(client.GetName(), failure, time.Since(start))
		// One bad pair fails the batch, the failure belongs to the source
		return model.NewFailedResult(client.GetName(), failure.ForSource())
	}
	result := model.SourceResult{Source: client.GetName(), Quotes: make(map[model.AssetSymbol]model.PriceQuote, len(assets))}
	for _, asset := range assets {
		if quote, ok := quotes[asset]; ok {
			result.Quotes[asset] = quote
		}
	}
	return result
}

func collectPerAsset(ctx context.Context, client AssetPriceClient, assets []model.AssetSymbol) model.SourceResult {
	// Use slice to hold the waiting chans in order to keep requested order
	waitingChans := make([]chan assetOutcome, 0, len(assets))
	for _, asset := range assets {
		doneCh := make(chan assetOutcome, 1)
		waitingChans = append(waitingChans, doneCh)
		go func(asset model.AssetSymbol) {
			start := time.Now()
			quote, err := client.GetAssetPrice(ctx, asset)
			if err != nil {
				failure := classify(ctx, err, asset)
				logFailure(client.GetName(), failure, time.Since(start))
				err = failure
			}
			doneCh <- assetOutcome{asset: asset, quote: quote, err: err}
		}(asset)
	}

	result := model.SourceResult{Source: client.GetName()}
	var firstFailure *model.Failure
	for _, doneCh := range waitingChans {
		outcome := <-doneCh
		if outcome.err != nil {
			failure := outcome.err.(*model.Failure)
			if result.Failures == nil {
				result.Failures = make(map[model.AssetSymbol]*model.Failure)
			}
			result.Failures[outcome.asset] = failure
			if firstFailure == nil {
				firstFailure = failure
			}
			continue
		}
		if result.Quotes == nil {
			result.Quotes = make(map[model.AssetSymbol]model.PriceQuote)
		}
		result.Quotes[outcome.asset] = *outcome.quote
	}
	if len(result.Quotes) == 0 && firstFailure != nil {
		result.Failure = firstFailure.ForSource()
	}
	return result
}

// classify turns any adapter error into a typed failure, the state of ctx wins over what the adapter reported
func classify(ctx context.Context, err error, asset model.AssetSymbol) *model.Failure {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return model.NewFailure(model.Timeout, asset, err)
	case context.Canceled:
		return model.NewFailure(model.Cancelled, asset, err)
	}
	return model.AsFailure(err, asset)
}

func logFailure(source model.SourceID, failure *model.Failure, elapsed time.Duration) {
	logEntry := logrus.WithError(failure).WithField("source", source)
	if failure.Asset != "" {
		logEntry = logEntry.WithField("asset", failure.Asset)
	}
	timedOut := failure.Kind == model.Timeout || http.IsTimeout(failure.Err)
	if timedOut {
		logEntry = logEntry.WithField("elapsed", elapsed.String())
	}
	logEntry.Warnf("Failed to get price from %s", source)
}
