package exchange

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/polyrabbit/cross-ticker/config"
	"github.com/polyrabbit/cross-ticker/exchange/model"
	"github.com/polyrabbit/cross-ticker/http"
	"github.com/polyrabbit/cross-ticker/metrics"
	"github.com/sirupsen/logrus"
)

type ExchangeClientProvider func(queries map[string]config.SourceQuery, httpClient *http.Client) ExchangeClient

var providers []ExchangeClientProvider

func Register(p ExchangeClientProvider) {
	providers = append(providers, p)
}

// sourcePlan is one source and the assets asked from it in a cycle
type sourcePlan struct {
	client ExchangeClient
	assets []model.AssetSymbol
}

// Registry holds the read-only set of clients and coordinates aggregation cycles.
// Nothing is carried from one cycle to the next.
type Registry struct {
	clients       map[string]ExchangeClient
	officialNames []string
	hasProxy      bool
	cycleTimeout  time.Duration
	assets        []model.AssetSymbol
	queries       []config.SourceQuery
}

func NewRegistry(cfg *config.Config, httpClient *http.Client) *Registry {
	exchangeMap := cfg.GroupQueryByExchange()
	clients := make([]ExchangeClient, 0, len(providers))
	for _, p := range providers {
		clients = append(clients, p(exchangeMap, httpClient))
	}
	r := newRegistry(cfg.CycleDeadline(), clients...)
	r.hasProxy = httpClient.HasProxy()
	r.assets = parseAssets(cfg.Assets)
	for _, query := range cfg.Queries {
		r.queries = append(r.queries, *query)
	}
	return r
}

func newRegistry(cycleTimeout time.Duration, clients ...ExchangeClient) *Registry {
	r := &Registry{clients: make(map[string]ExchangeClient), cycleTimeout: cycleTimeout}
	for _, eClient := range clients {
		r.officialNames = append(r.officialNames, string(eClient.GetName()))
		upperName := strings.ToUpper(string(eClient.GetName()))
		if _, exist := r.clients[upperName]; exist {
			panic(fmt.Errorf("%q already exists in exchange registry", upperName))
		}
		r.clients[upperName] = eClient
	}
	sort.Strings(r.officialNames)
	return r
}

func (r *Registry) GetAllNames() []string {
	names := make([]string, len(r.officialNames))
	copy(names, r.officialNames)
	return names
}

func (r *Registry) getClient(exchangeName string) ExchangeClient {
	exchangeName = strings.ToUpper(exchangeName)
	if client, ok := r.clients[exchangeName]; ok {
		return client
	}
	return nil
}

// RunCycle asks every named source for assets and aggregates whatever settles within the
// cycle timeout. Sources still pending at the deadline are recorded as timed out.
// Only a cancelled ctx aborts the cycle, in which case no snapshot is returned.
func (r *Registry) RunCycle(ctx context.Context, assets []model.AssetSymbol, sources []string) (*model.Snapshot, error) {
	assets = uniqueAssets(assets)
	var plans []sourcePlan
	seen := make(map[model.SourceID]bool)
	for _, name := range sources {
		client := r.getClient(name)
		if client == nil {
			logrus.WithError(fmt.Errorf("%w: %s", ErrUnknownExchange, name)).Warn("Skipping exchange")
			continue
		}
		if seen[client.GetName()] {
			continue
		}
		seen[client.GetName()] = true
		plans = append(plans, sourcePlan{client: client, assets: assets})
	}
	return r.runCycle(ctx, plans)
}

// Refresh runs a cycle over the configured sources, a source with its own asset list only gets those.
// Non-empty sources narrows the cycle to those names, a registered source that isn't configured gets the global asset list.
func (r *Registry) Refresh(ctx context.Context, sources []string) (*model.Snapshot, error) {
	queries := r.queries
	if len(sources) != 0 {
		queries = nil
		for _, name := range sources {
			matched := false
			for _, query := range r.queries {
				if strings.EqualFold(query.Name, name) {
					queries = append(queries, query)
					matched = true
				}
			}
			if !matched {
				queries = append(queries, config.SourceQuery{Name: name})
			}
		}
	}

	var plans []sourcePlan
	seen := make(map[model.SourceID]int)
	for _, query := range queries {
		client := r.getClient(query.Name)
		if client == nil {
			logrus.WithError(fmt.Errorf("%w: %s", ErrUnknownExchange, query.Name)).Warn("Skipping exchange")
			continue
		}
		assets := r.assets
		if len(query.Assets) != 0 {
			assets = parseAssets(query.Assets)
		}
		if i, ok := seen[client.GetName()]; ok {
			plans[i].assets = uniqueAssets(append(plans[i].assets, assets...))
			continue
		}
		seen[client.GetName()] = len(plans)
		plans = append(plans, sourcePlan{client: client, assets: uniqueAssets(assets)})
	}
	return r.runCycle(ctx, plans)
}

func (r *Registry) runCycle(ctx context.Context, plans []sourcePlan) (*model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.NewFailure(model.Cancelled, "", err)
	}
	start := time.Now()
	logger := logrus.WithField("cycle", uuid.NewString())
	logger.Debugf("Querying %d exchanges", len(plans))

	cycleCtx, cancel := context.WithTimeout(ctx, r.cycleTimeout)
	defer cancel()

	// Buffered so collectors finishing after the deadline never block
	resultCh := make(chan model.SourceResult, len(plans))
	for _, plan := range plans {
		go func(plan sourcePlan) {
			resultCh <- Collect(cycleCtx, plan.client, plan.assets)
		}(plan)
	}

	bySource := make(map[model.SourceID]model.SourceResult, len(plans))
	pending := len(plans)
waitLoop:
	for pending > 0 {
		select {
		case result := <-resultCh:
			bySource[result.Source] = result
			pending--
		case <-cycleCtx.Done():
			break waitLoop
		}
	}
	if err := ctx.Err(); err != nil {
		logger.WithField("elapsed", time.Since(start).String()).Info("Cycle cancelled")
		return nil, model.NewFailure(model.Cancelled, "", err)
	}
	// Pick up results that raced with the deadline
	for pending > 0 {
		select {
		case result := <-resultCh:
			bySource[result.Source] = result
			pending--
			continue
		default:
		}
		break
	}
	for _, plan := range plans {
		if _, ok := bySource[plan.client.GetName()]; !ok {
			failure := model.NewFailure(model.Timeout, "", fmt.Errorf("not settled within %s", r.cycleTimeout))
			logger.WithError(failure).WithField("source", plan.client.GetName()).Warn("Gave up waiting for exchange")
			bySource[plan.client.GetName()] = model.NewFailedResult(plan.client.GetName(), failure)
		}
	}

	snapshot := &model.Snapshot{TakenAt: time.Now(), BySource: bySource}
	elapsed := time.Since(start)
	metrics.RecordCycle(elapsed)
	timedOut := false
	for _, result := range bySource {
		metrics.RecordSourceResult(result)
		timedOut = timedOut || hasTimeout(result)
	}
	if timedOut && !r.hasProxy {
		logger.Info("Maybe you are blocked by a firewall, try using --proxy to go through a proxy?")
	}
	logger.WithField("elapsed", elapsed.String()).Debugf("Cycle settled with %d sources", len(bySource))
	return snapshot, nil
}

func hasTimeout(result model.SourceResult) bool {
	isTimeout := func(f *model.Failure) bool {
		return f != nil && (f.Kind == model.Timeout || http.IsTimeout(f.Err))
	}
	if isTimeout(result.Failure) {
		return true
	}
	for _, f := range result.Failures {
		if isTimeout(f) {
			return true
		}
	}
	return false
}

func uniqueAssets(assets []model.AssetSymbol) []model.AssetSymbol {
	seen := make(map[model.AssetSymbol]bool, len(assets))
	unique := make([]model.AssetSymbol, 0, len(assets))
	for _, asset := range assets {
		if !seen[asset] {
			seen[asset] = true
			unique = append(unique, asset)
		}
	}
	return unique
}

func parseAssets(raw []string) []model.AssetSymbol {
	assets := make([]model.AssetSymbol, 0, len(raw))
	for _, s := range raw {
		asset, err := model.ParseAssetSymbol(s)
		if err != nil {
			logrus.WithError(err).Warn("Skipping asset")
			continue
		}
		assets = append(assets, asset)
	}
	return uniqueAssets(assets)
}
