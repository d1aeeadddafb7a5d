package exchange

import (
	"context"
	"fmt"

	"github.com/polyrabbit/cross-ticker/config"
	"github.com/polyrabbit/cross-ticker/exchange/model"
	"github.com/polyrabbit/cross-ticker/http"
	"github.com/tidwall/gjson"
)

// http://coincap.io/page/ETH
const coincapBaseApi = "http://coincap.io"

type coincapClient struct {
	*exchangeBaseClient
}

func NewCoincapClient(queries map[string]config.SourceQuery, httpClient *http.Client) ExchangeClient {
	return &coincapClient{newExchangeBase(model.Coincap, coincapBaseApi, queries, httpClient)}
}

func (client *coincapClient) GetName() model.SourceID {
	return model.Coincap
}

func (client *coincapClient) GetAssetPrice(ctx context.Context, asset model.AssetSymbol) (*model.PriceQuote, error) {
	respBytes, err := client.Get(ctx, client.buildURL("page", string(asset)))
	if err != nil {
		return nil, transportFailure(asset, err)
	}
	if !gjson.ValidBytes(respBytes) {
		return nil, malformed(asset, fmt.Errorf("%w from coincap page", ErrInvalidJSON))
	}

	// The page quotes the asset in BTC directly, no need to divide by the BTC price
	price, err := priceFromGJSON(gjson.GetBytes(respBytes, "price_btc"), "price_btc")
	if err != nil {
		return nil, malformed(asset, err)
	}
	return newQuote(client.GetName(), asset, price)
}

func init() {
	Register(NewCoincapClient)
}
