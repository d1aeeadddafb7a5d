package exchange

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/polyrabbit/cross-ticker/config"
	"github.com/polyrabbit/cross-ticker/exchange/model"
	"github.com/polyrabbit/cross-ticker/http"
	"github.com/shopspring/decimal"
)

// https://api.exmo.com/v1/ticker/ returns every pair in one object keyed by pair name
const exmoBaseApi = "https://api.exmo.com"

type exmoClient struct {
	*exchangeBaseClient
}

func NewExmoClient(queries map[string]config.SourceQuery, httpClient *http.Client) ExchangeClient {
	return &exmoClient{newExchangeBase(model.Exmo, exmoBaseApi, queries, httpClient)}
}

func (client *exmoClient) GetName() model.SourceID {
	return model.Exmo
}

// Exmo answers errors with 200 and {"result":false,"error":"..."}
func (client *exmoClient) extractError(respBytes []byte) error {
	result, err := jsonparser.GetBoolean(respBytes, "result")
	if err != nil || result {
		return nil
	}
	msg, _ := jsonparser.GetString(respBytes, "error")
	return fmt.Errorf("%w: %s", ErrAPIError, msg)
}

// GetAssetPrices fails as a whole, a quote for every requested asset or none at all
func (client *exmoClient) GetAssetPrices(ctx context.Context, assets []model.AssetSymbol) (map[model.AssetSymbol]model.PriceQuote, error) {
	respBytes, err := client.Get(ctx, client.buildURL("v1", "ticker/"))
	if err != nil {
		return nil, transportFailure("", err)
	}
	if err := client.extractError(respBytes); err != nil {
		return nil, malformed("", err)
	}

	wanted := make(map[string]model.AssetSymbol, len(assets))
	for _, asset := range assets {
		wanted[asset.Pair()] = asset
	}
	prices := make(map[model.AssetSymbol]decimal.Decimal, len(assets))
	var parseErr error
	err = jsonparser.ObjectEach(respBytes, func(key []byte, value []byte, dataType jsonparser.ValueType, offset int) error {
		asset, ok := wanted[strings.ToUpper(string(key))]
		if !ok {
			return nil
		}
		if dataType != jsonparser.Object {
			parseErr = malformed(asset, fmt.Errorf("%w: %s is %s", ErrNotANumber, key, dataType))
			return parseErr
		}
		raw, rawType, _, err := jsonparser.Get(value, "buy_price")
		if err != nil && rawType != jsonparser.NotExist {
			parseErr = malformed(asset, err)
			return parseErr
		}
		price, err := priceFromJSONParser(raw, rawType, string(key)+".buy_price")
		if err != nil {
			parseErr = malformed(asset, err)
			return parseErr
		}
		prices[asset] = price
		return nil
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if err != nil {
		return nil, malformed("", fmt.Errorf("%w from exmo ticker: %v", ErrInvalidJSON, err))
	}

	now := time.Now()
	quotes := make(map[model.AssetSymbol]model.PriceQuote, len(assets))
	for _, asset := range assets {
		price, ok := prices[asset]
		if !ok {
			return nil, malformed(asset, fmt.Errorf("%w: %s", ErrMissingField, asset.Pair()))
		}
		quote, err := model.NewPriceQuote(client.GetName(), asset, price, now)
		if err != nil {
			return nil, model.AsFailure(err, asset)
		}
		quotes[asset] = quote
	}
	return quotes, nil
}

func init() {
	Register(NewExmoClient)
}
