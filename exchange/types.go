package exchange

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/polyrabbit/cross-ticker/config"
	"github.com/polyrabbit/cross-ticker/exchange/model"
	"github.com/polyrabbit/cross-ticker/http"
	"github.com/sirupsen/logrus"
)

type ExchangeClient interface {
	GetName() model.SourceID
}

// AssetPriceClient issues one request per asset
type AssetPriceClient interface {
	ExchangeClient
	GetAssetPrice(ctx context.Context, asset model.AssetSymbol) (*model.PriceQuote, error)
}

// BatchPriceClient fetches every asset in a single request and splits the reply
type BatchPriceClient interface {
	ExchangeClient
	GetAssetPrices(ctx context.Context, assets []model.AssetSymbol) (map[model.AssetSymbol]model.PriceQuote, error)
}

type exchangeBaseClient struct {
	*http.Client
	BaseURL *url.URL
}

// newExchangeBase picks the base URL configured for name, falling back to defaultURL
func newExchangeBase(name model.SourceID, defaultURL string, queries map[string]config.SourceQuery,
	httpClient *http.Client) *exchangeBaseClient {
	rawURL := defaultURL
	if query, ok := queries[strings.ToUpper(string(name))]; ok && query.BaseURL != "" {
		rawURL = query.BaseURL
	}
	baseURL, err := url.Parse(rawURL)
	if err != nil || baseURL.Host == "" {
		logrus.WithField("source", name).Warnf("Invalid base url %q, using %s", rawURL, defaultURL)
		baseURL, _ = url.Parse(defaultURL)
	}
	return &exchangeBaseClient{Client: httpClient, BaseURL: baseURL}
}

func (client *exchangeBaseClient) buildURL(endpoint ...string) string {
	baseURL := *client.BaseURL
	elems := append([]string{baseURL.Path}, endpoint...)
	baseURL.Path = path.Join(elems...)
	if len(endpoint) != 0 && strings.HasSuffix(endpoint[len(endpoint)-1], "/") {
		baseURL.Path += "/"
	}
	return baseURL.String()
}
