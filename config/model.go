package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/polyrabbit/cross-ticker/exchange/model"
)

const (
	ColumnSymbol  = "Symbol"
	ColumnPrice   = "Price"
	ColumnSource  = "Source"
	ColumnUpdated = "Updated"
)

func supportedColumns() []string {
	return []string{ColumnSymbol, ColumnPrice, ColumnSource, ColumnUpdated}
}

var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrUnknownColumn = errors.New("unknown column")
)

// SourceQuery selects one price source, BaseURL overrides the source's default endpoint
type SourceQuery struct {
	Name    string   `mapstructure:"name" yaml:"name"`
	BaseURL string   `mapstructure:"base_url" yaml:"base_url,omitempty"`
	Assets  []string `mapstructure:"assets" yaml:"assets,omitempty"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Key      string `mapstructure:"key" yaml:"key"`
	Channel  string `mapstructure:"channel" yaml:"channel"`
	TTL      int    `mapstructure:"ttl" yaml:"ttl"` // seconds
}

type Config struct {
	Timeout      int            `mapstructure:"timeout" yaml:"timeout"`
	CycleTimeout int            `mapstructure:"cycle_timeout" yaml:"cycle_timeout"`
	Proxy        string         `mapstructure:"proxy" yaml:"proxy,omitempty"`
	Refresh      int            `mapstructure:"refresh" yaml:"refresh"`
	Columns      []string       `mapstructure:"show" yaml:"show"`
	Debug        bool           `mapstructure:"debug" yaml:"debug"`
	Listen       string         `mapstructure:"listen" yaml:"listen,omitempty"`
	Assets       []string       `mapstructure:"assets" yaml:"assets"`
	Queries      []*SourceQuery `mapstructure:"exchanges" yaml:"exchanges"`
	Redis        RedisConfig    `mapstructure:"redis" yaml:"redis"`

	ListExchanges bool `mapstructure:"list-exchanges" yaml:"-"`
}

// Default returns the configuration used when nothing is specified
func Default() *Config {
	return &Config{
		Timeout:      20,
		CycleTimeout: 30,
		Refresh:      60,
		Columns:      supportedColumns(),
		Assets:       []string{"ETH", "LTC", "DASH"},
		Queries: []*SourceQuery{
			{Name: "Coincap"},
			{Name: "Exmo"},
			{Name: "Bleutrade"},
		},
		Redis: RedisConfig{
			Key:     "cross-ticker:snapshot",
			Channel: "cross-ticker:snapshots",
			TTL:     300,
		},
	}
}

func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative, got %d", ErrInvalidConfig, c.Timeout)
	}
	if c.CycleTimeout <= 0 {
		return fmt.Errorf("%w: cycle_timeout must be positive, got %d", ErrInvalidConfig, c.CycleTimeout)
	}
	if c.Refresh < 0 {
		return fmt.Errorf("%w: refresh must not be negative, got %d", ErrInvalidConfig, c.Refresh)
	}
	if len(c.Queries) == 0 {
		return fmt.Errorf("%w: no exchanges configured", ErrInvalidConfig)
	}
	for _, query := range c.Queries {
		if query == nil || strings.TrimSpace(query.Name) == "" {
			return fmt.Errorf("%w: exchange without a name", ErrInvalidConfig)
		}
	}
	if len(c.AllAssets()) == 0 {
		return fmt.Errorf("%w: no assets configured", ErrInvalidConfig)
	}
	for _, a := range c.AllAssets() {
		if _, err := model.ParseAssetSymbol(a); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	for _, col := range c.Columns {
		if !isSupportedColumn(col) {
			return fmt.Errorf("%w: %s", ErrUnknownColumn, col)
		}
	}
	return nil
}

func isSupportedColumn(col string) bool {
	for _, supported := range supportedColumns() {
		if strings.EqualFold(col, supported) {
			return true
		}
	}
	return false
}

func (c *Config) GroupQueryByExchange() map[string]SourceQuery {
	exchangeMap := make(map[string]SourceQuery, len(c.Queries))
	for _, query := range c.Queries {
		exchangeMap[strings.ToUpper(query.Name)] = *query
	}
	return exchangeMap
}

// ExchangeNames returns the configured source names in the order they were given
func (c *Config) ExchangeNames() []string {
	names := make([]string, 0, len(c.Queries))
	for _, query := range c.Queries {
		names = append(names, query.Name)
	}
	return names
}

// AllAssets merges the global asset list with assets given per exchange, first occurrence wins the order
func (c *Config) AllAssets() []string {
	seen := make(map[string]bool)
	var assets []string
	add := func(list []string) {
		for _, a := range list {
			a = strings.ToUpper(strings.TrimSpace(a))
			if a != "" && !seen[a] {
				seen[a] = true
				assets = append(assets, a)
			}
		}
	}
	add(c.Assets)
	for _, query := range c.Queries {
		add(query.Assets)
	}
	return assets
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func (c *Config) CycleDeadline() time.Duration {
	return time.Duration(c.CycleTimeout) * time.Second
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Refresh) * time.Second
}
