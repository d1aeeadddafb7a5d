package writer

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/gosuri/uilive"
	"github.com/mattn/go-colorable"
	"github.com/olekukonko/tablewriter"
	"github.com/polyrabbit/cross-ticker/config"
	"github.com/polyrabbit/cross-ticker/exchange/model"
)

var faint = color.New(color.Faint).SprintFunc()

// TableWriter renders every snapshot as one live-refreshing table
type TableWriter struct {
	*uilive.Writer
	mu      sync.Mutex
	table   *tablewriter.Table
	columns []string
	assets  []model.AssetSymbol
}

// NewTableWriter writes to the terminal, logs should go through the returned writer too so they don't break the table
func NewTableWriter(cfg *config.Config) *TableWriter {
	return newTableWriter(colorable.NewColorableStdout(), cfg) // For Windows
}

func newTableWriter(out io.Writer, cfg *config.Config) *TableWriter {
	tw := &TableWriter{Writer: uilive.New(), columns: cfg.Columns}
	tw.Writer.Out = out
	for _, raw := range cfg.AllAssets() {
		if asset, err := model.ParseAssetSymbol(raw); err == nil {
			tw.assets = append(tw.assets, asset)
		}
	}

	// Set up ascii table writer
	tw.table = tablewriter.NewWriter(tw.Writer)
	tw.table.SetAutoFormatHeaders(false)
	tw.table.SetAutoWrapText(false)
	formattedHeaders := make([]string, len(tw.columns))
	for i, hdr := range tw.columns {
		formattedHeaders[i] = color.YellowString(hdr)
	}
	tw.table.SetHeader(formattedHeaders)
	tw.table.SetRowLine(true)
	tw.table.SetCenterSeparator(faint("-"))
	tw.table.SetColumnSeparator(faint("|"))
	tw.table.SetRowSeparator(faint("-"))
	return tw
}

// rowAssets lists the configured assets first, then anything else the snapshot mentions
func (tw *TableWriter) rowAssets(snapshot *model.Snapshot) []model.AssetSymbol {
	seen := make(map[model.AssetSymbol]bool)
	var assets []model.AssetSymbol
	for _, list := range [][]model.AssetSymbol{tw.assets, snapshot.Assets()} {
		for _, asset := range list {
			if !seen[asset] {
				seen[asset] = true
				assets = append(assets, asset)
			}
		}
	}
	return assets
}

// failureOf finds why source has no price for asset, nil when it simply wasn't asked
func failureOf(result model.SourceResult, asset model.AssetSymbol) *model.Failure {
	if failure, ok := result.Failures[asset]; ok {
		return failure
	}
	if len(result.Quotes) == 0 && len(result.Failures) == 0 {
		return result.Failure
	}
	return nil
}

func (tw *TableWriter) Publish(ctx context.Context, snapshot *model.Snapshot) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	tw.table.ClearRows()
	// Fill in data
	for _, asset := range tw.rowAssets(snapshot) {
		for _, source := range snapshot.Sources() {
			result := snapshot.BySource[source]
			quote, quoted := result.Quotes[asset]
			failure := failureOf(result, asset)
			if !quoted && failure == nil {
				continue
			}
			var columns []string
			for _, hdr := range tw.columns {
				switch strings.ToLower(hdr) {
				case strings.ToLower(config.ColumnSymbol):
					columns = append(columns, string(asset))
				case strings.ToLower(config.ColumnPrice):
					if quoted {
						columns = append(columns, quote.PriceString())
					} else {
						// Never show a failed source as a price
						columns = append(columns, color.RedString(failure.Kind.String()))
					}
				case strings.ToLower(config.ColumnSource):
					columns = append(columns, string(source))
				case strings.ToLower(config.ColumnUpdated):
					updated := snapshot.TakenAt
					if quoted {
						updated = quote.FetchedAt
					}
					columns = append(columns, updated.Local().Format("15:04:05"))
				default:
					columns = append(columns, "")
				}
			}
			tw.table.Append(columns)
		}
	}

	tw.table.Render()
	return tw.Flush()
}
