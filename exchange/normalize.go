package exchange

import (
	"fmt"
	"time"

	"github.com/buger/jsonparser"
	"github.com/polyrabbit/cross-ticker/exchange/model"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Longest textual price accepted, real quotes are a few dozen characters at most
const maxPriceLength = 64

// parsePrice accepts the textual form of a JSON number, sources disagree on quoting it
func parsePrice(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w: empty string", ErrNotANumber)
	}
	if len(raw) > maxPriceLength {
		return decimal.Zero, fmt.Errorf("%w: %d characters", model.ErrPriceOutOfRange, len(raw))
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotANumber, raw)
	}
	return price, nil
}

// priceFromGJSON reads a price located by gjson, only numbers and numeric strings are accepted
func priceFromGJSON(v gjson.Result, field string) (decimal.Decimal, error) {
	switch v.Type {
	case gjson.Number:
		return parsePrice(v.Raw)
	case gjson.String:
		return parsePrice(v.Str)
	case gjson.Null:
		if !v.Exists() {
			return decimal.Zero, fmt.Errorf("%w: %s", ErrMissingField, field)
		}
		return decimal.Zero, fmt.Errorf("%w: %s is null", ErrNotANumber, field)
	}
	return decimal.Zero, fmt.Errorf("%w: %s is %s", ErrNotANumber, field, v.Raw)
}

// priceFromJSONParser is the jsonparser counterpart of priceFromGJSON
func priceFromJSONParser(value []byte, dataType jsonparser.ValueType, field string) (decimal.Decimal, error) {
	switch dataType {
	case jsonparser.Number:
		return parsePrice(string(value))
	case jsonparser.String:
		return parsePrice(string(value))
	case jsonparser.NotExist:
		return decimal.Zero, fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	return decimal.Zero, fmt.Errorf("%w: %s is %s", ErrNotANumber, field, dataType)
}

// newQuote builds a rounded quote stamped now, anything wrong with price is a MalformedResponse
func newQuote(source model.SourceID, asset model.AssetSymbol, price decimal.Decimal) (*model.PriceQuote, error) {
	quote, err := model.NewPriceQuote(source, asset, price, time.Now())
	if err != nil {
		return nil, model.AsFailure(err, asset)
	}
	return &quote, nil
}

func malformed(asset model.AssetSymbol, err error) *model.Failure {
	return model.NewFailure(model.MalformedResponse, asset, err)
}

func transportFailure(asset model.AssetSymbol, err error) *model.Failure {
	return model.NewFailure(model.TransportError, asset, err)
}
