package exchange

import (
	"context"
	"fmt"

	"github.com/polyrabbit/cross-ticker/config"
	"github.com/polyrabbit/cross-ticker/exchange/model"
	"github.com/polyrabbit/cross-ticker/http"
	"github.com/tidwall/gjson"
)

// https://bleutrade.com/api/v2/public/getticker?market=ETH_BTC
const bleutradeBaseApi = "https://bleutrade.com"

type bleutradeClient struct {
	*exchangeBaseClient
}

func NewBleutradeClient(queries map[string]config.SourceQuery, httpClient *http.Client) ExchangeClient {
	return &bleutradeClient{newExchangeBase(model.Bleutrade, bleutradeBaseApi, queries, httpClient)}
}

func (client *bleutradeClient) GetName() model.SourceID {
	return model.Bleutrade
}

// Check to see if we have error in the response
func (client *bleutradeClient) extractError(respBytes []byte) error {
	success := gjson.GetBytes(respBytes, "success")
	// Older replies carry success as a string
	if success.Type == gjson.True || success.String() == "true" {
		return nil
	}
	if msg := gjson.GetBytes(respBytes, "message").String(); msg != "" {
		return fmt.Errorf("%w: %s", ErrAPIError, msg)
	}
	return fmt.Errorf("%w: bleutrade reports no success", ErrAPIError)
}

func (client *bleutradeClient) GetAssetPrice(ctx context.Context, asset model.AssetSymbol) (*model.PriceQuote, error) {
	respBytes, err := client.Get(ctx, client.buildURL("api", "v2", "public", "getticker"),
		http.WithQuery(map[string]string{"market": asset.Pair()}))
	if err != nil {
		return nil, transportFailure(asset, err)
	}
	if !gjson.ValidBytes(respBytes) {
		return nil, malformed(asset, fmt.Errorf("%w from bleutrade ticker", ErrInvalidJSON))
	}
	if err := client.extractError(respBytes); err != nil {
		return nil, malformed(asset, err)
	}

	price, err := priceFromGJSON(gjson.GetBytes(respBytes, "result.0.Last"), "result.0.Last")
	if err != nil {
		return nil, malformed(asset, err)
	}
	return newQuote(client.GetName(), asset, price)
}

func init() {
	Register(NewBleutradeClient)
}
