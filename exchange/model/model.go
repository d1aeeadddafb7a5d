package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PriceDigits is the number of fractional digits every quote is rounded to
const PriceDigits = 5

// Every tracked asset is quoted against BTC
const BaseCurrency = "BTC"

// Prices outside these bounds are rejected before rounding
const (
	MaxPriceExponent  = 30
	maxPriceCoeffBits = 256
)

type AssetSymbol string

const (
	ETH  AssetSymbol = "ETH"
	LTC  AssetSymbol = "LTC"
	DASH AssetSymbol = "DASH"
)

var (
	ErrUnknownAsset    = errors.New("unknown asset")
	ErrPriceOutOfRange = errors.New("price out of range")
)

// AllAssets returns the tracked assets in display order
func AllAssets() []AssetSymbol {
	return []AssetSymbol{ETH, LTC, DASH}
}

func ParseAssetSymbol(s string) (AssetSymbol, error) {
	asset := AssetSymbol(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllAssets() {
		if asset == known {
			return asset, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAsset, s)
}

// Pair returns the market name of this asset against the base currency, eg. ETH_BTC
func (a AssetSymbol) Pair() string {
	return string(a) + "_" + BaseCurrency
}

func (a AssetSymbol) order() int {
	for i, known := range AllAssets() {
		if a == known {
			return i
		}
	}
	return len(AllAssets())
}

type SourceID string

const (
	Coincap   SourceID = "Coincap"
	Exmo      SourceID = "Exmo"
	Bleutrade SourceID = "Bleutrade"
)

// PriceQuote is immutable once built, use NewPriceQuote to get one
type PriceQuote struct {
	Source    SourceID
	Asset     AssetSymbol
	Price     decimal.Decimal
	FetchedAt time.Time
}

// NewPriceQuote rounds price to PriceDigits. Negative prices and prices whose exponent or
// coefficient is out of range are rejected as a malformed response.
func NewPriceQuote(source SourceID, asset AssetSymbol, price decimal.Decimal, fetchedAt time.Time) (PriceQuote, error) {
	if exp := price.Exponent(); exp > MaxPriceExponent || exp < -MaxPriceExponent {
		return PriceQuote{}, &Failure{Kind: MalformedResponse, Asset: asset,
			Err: fmt.Errorf("%w: exponent %d", ErrPriceOutOfRange, exp)}
	}
	if bits := price.Coefficient().BitLen(); bits > maxPriceCoeffBits {
		return PriceQuote{}, &Failure{Kind: MalformedResponse, Asset: asset,
			Err: fmt.Errorf("%w: %d bit coefficient", ErrPriceOutOfRange, bits)}
	}
	if price.Sign() < 0 {
		return PriceQuote{}, &Failure{Kind: MalformedResponse, Asset: asset,
			Err: fmt.Errorf("negative price %s", price)}
	}
	return PriceQuote{
		Source:    source,
		Asset:     asset,
		Price:     price.Round(PriceDigits),
		FetchedAt: fetchedAt,
	}, nil
}

// PriceString always carries exactly PriceDigits fractional digits
func (q PriceQuote) PriceString() string {
	return q.Price.StringFixed(PriceDigits)
}

func (q PriceQuote) String() string {
	return fmt.Sprintf("%s %s %s", q.Source, q.Asset, q.PriceString())
}

type priceQuoteJSON struct {
	Source    SourceID    `json:"source"`
	Asset     AssetSymbol `json:"asset"`
	Price     string      `json:"price"`
	FetchedAt time.Time   `json:"fetched_at"`
}

func (q PriceQuote) MarshalJSON() ([]byte, error) {
	return json.Marshal(priceQuoteJSON{
		Source:    q.Source,
		Asset:     q.Asset,
		Price:     q.PriceString(),
		FetchedAt: q.FetchedAt,
	})
}

func (q *PriceQuote) UnmarshalJSON(data []byte) error {
	var raw priceQuoteJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	price, err := decimal.NewFromString(raw.Price)
	if err != nil {
		return fmt.Errorf("decode price of %s/%s: %w", raw.Source, raw.Asset, err)
	}
	quote, err := NewPriceQuote(raw.Source, raw.Asset, price, raw.FetchedAt)
	if err != nil {
		return err
	}
	*q = quote
	return nil
}

// SourceResult is what one collector run produces for one source. Quotes holds the
// assets that succeeded, Failures the ones that did not. Failure is set when the
// source as a whole has no data this cycle.
type SourceResult struct {
	Source   SourceID                   `json:"source"`
	Quotes   map[AssetSymbol]PriceQuote `json:"quotes,omitempty"`
	Failures map[AssetSymbol]*Failure   `json:"failures,omitempty"`
	Failure  *Failure                   `json:"failure,omitempty"`
}

func NewFailedResult(source SourceID, failure *Failure) SourceResult {
	return SourceResult{Source: source, Failure: failure}
}

// OK reports whether the source delivered at least part of its data
func (r SourceResult) OK() bool {
	return r.Failure == nil
}

type Snapshot struct {
	TakenAt  time.Time                 `json:"taken_at"`
	BySource map[SourceID]SourceResult `json:"by_source"`
}

// Quote looks up a single price, ok is false when the source failed or lacks the asset
func (s *Snapshot) Quote(source SourceID, asset AssetSymbol) (PriceQuote, bool) {
	result, ok := s.BySource[source]
	if !ok {
		return PriceQuote{}, false
	}
	quote, ok := result.Quotes[asset]
	return quote, ok
}

// Sources returns the sources of this snapshot sorted by name
func (s *Snapshot) Sources() []SourceID {
	sources := make([]SourceID, 0, len(s.BySource))
	for source := range s.BySource {
		sources = append(sources, source)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	return sources
}

// Assets returns every asset mentioned by any source, quoted or failed, in display order
func (s *Snapshot) Assets() []AssetSymbol {
	seen := make(map[AssetSymbol]bool)
	for _, result := range s.BySource {
		for asset := range result.Quotes {
			seen[asset] = true
		}
		for asset := range result.Failures {
			seen[asset] = true
		}
	}
	assets := make([]AssetSymbol, 0, len(seen))
	for asset := range seen {
		assets = append(assets, asset)
	}
	sort.Slice(assets, func(i, j int) bool {
		if assets[i].order() != assets[j].order() {
			return assets[i].order() < assets[j].order()
		}
		return assets[i] < assets[j]
	})
	return assets
}

// ByAsset returns the price of one asset from every source that quoted it
func (s *Snapshot) ByAsset(asset AssetSymbol) map[SourceID]PriceQuote {
	quotes := make(map[SourceID]PriceQuote)
	for source, result := range s.BySource {
		if quote, ok := result.Quotes[asset]; ok {
			quotes[source] = quote
		}
	}
	return quotes
}

// Merge returns a new snapshot holding every source of s, with the sources of newer taking precedence
func (s *Snapshot) Merge(newer *Snapshot) *Snapshot {
	merged := &Snapshot{TakenAt: newer.TakenAt, BySource: make(map[SourceID]SourceResult, len(s.BySource)+len(newer.BySource))}
	for source, result := range s.BySource {
		merged.BySource[source] = result
	}
	for source, result := range newer.BySource {
		merged.BySource[source] = result
	}
	return merged
}
