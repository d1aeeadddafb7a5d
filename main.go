package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-colorable"
	"github.com/polyrabbit/cross-ticker/api"
	"github.com/polyrabbit/cross-ticker/config"
	"github.com/polyrabbit/cross-ticker/exchange"
	"github.com/polyrabbit/cross-ticker/http"
	"github.com/polyrabbit/cross-ticker/metrics"
	"github.com/polyrabbit/cross-ticker/scheduler"
	"github.com/polyrabbit/cross-ticker/store"
	"github.com/polyrabbit/cross-ticker/writer"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Parse()
	httpClient := http.New(cfg)
	registry := exchange.NewRegistry(cfg, httpClient)
	if cfg.ListExchanges {
		config.ListExchangesAndExit(registry.GetAllNames())
	}
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	memory := store.NewMemoryStore()
	publishers := []store.Publisher{memory}
	if cfg.Redis.Addr != "" {
		redisStore, err := store.NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			logrus.WithError(err).Warn("Proceeding without Redis")
		} else {
			defer redisStore.Close()
			publishers = append(publishers, redisStore)
		}
	}

	tableWriter := writer.NewTableWriter(cfg)
	publishers = append(publishers, tableWriter)
	logrus.SetOutput(tableWriter)
	defer logrus.SetOutput(colorable.NewColorableStderr())

	sched := scheduler.New(cfg.RefreshInterval(), registry.Refresh, store.Multi(publishers...))

	if cfg.Listen != "" && cfg.Refresh != 0 {
		server := api.NewServer(memory, sched, registry.GetAllNames(), cfg.Debug)
		go func() {
			if err := server.Run(ctx, cfg.Listen); err != nil {
				logrus.WithError(err).Error("API server stopped")
				stop()
			}
		}()
	} else if cfg.Listen != "" {
		logrus.Warn("Ignoring --listen, there is nothing to serve with --refresh 0")
	}

	sched.Run(ctx)
}
