package metrics

import (
	"errors"
	"testing"

	"github.com/polyrabbit/cross-ticker/exchange/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOutcome(t *testing.T) {
	failure := model.NewFailure(model.TransportError, model.LTC, errors.New("refused"))

	assert.Equal(t, OutcomeOK, Outcome(model.SourceResult{Quotes: map[model.AssetSymbol]model.PriceQuote{model.ETH: {}}}))
	assert.Equal(t, OutcomePartial, Outcome(model.SourceResult{
		Quotes:   map[model.AssetSymbol]model.PriceQuote{model.ETH: {}},
		Failures: map[model.AssetSymbol]*model.Failure{model.LTC: failure},
	}))
	assert.Equal(t, OutcomeFailed, Outcome(model.NewFailedResult(model.Exmo, failure)))
}

func TestRecordSourceResult(t *testing.T) {
	Init()
	Init()

	RecordSourceResult(model.SourceResult{
		Source: "Recorded",
		Quotes: map[model.AssetSymbol]model.PriceQuote{model.ETH: {}},
		Failures: map[model.AssetSymbol]*model.Failure{
			model.DASH: model.NewFailure(model.MalformedResponse, model.DASH, errors.New("not a number")),
		},
	})
	RecordSourceResult(model.NewFailedResult("Recorded", model.NewFailure(model.Timeout, "", nil)))

	assert.Equal(t, 1.0, testutil.ToFloat64(SourceResultsTotal.WithLabelValues("Recorded", OutcomePartial)))
	assert.Equal(t, 1.0, testutil.ToFloat64(SourceResultsTotal.WithLabelValues("Recorded", OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(QuotesTotal.WithLabelValues("Recorded", "ETH")))
	assert.Equal(t, 1.0, testutil.ToFloat64(SourceFailuresTotal.WithLabelValues("Recorded", "MalformedResponse")))
	assert.Equal(t, 1.0, testutil.ToFloat64(SourceFailuresTotal.WithLabelValues("Recorded", "Timeout")))
	assert.Equal(t, 0.0, testutil.ToFloat64(SourceHealth.WithLabelValues("Recorded")))
}
