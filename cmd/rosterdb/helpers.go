package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/duelhq/rosterdb/internal/config"
	"github.com/duelhq/rosterdb/internal/observability"
	"github.com/duelhq/rosterdb/internal/rosterstore"
	"github.com/duelhq/rosterdb/internal/rosterstore/legacy"
	"github.com/duelhq/rosterdb/internal/storage"
	"github.com/duelhq/rosterdb/pkg/logging"

	// Registers the badger backend.
	_ "github.com/duelhq/rosterdb/internal/rosterstore/physical/badger"
)

// openStore builds a store from the resolved configuration. The returned
// cleanup closes the store.
func openStore(v *viper.Viper) (*rosterstore.Store, func(), error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Tenant == "" {
		return nil, nil, fmt.Errorf("--tenant is required")
	}

	logging.Setup(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	metrics := observability.NewMetrics()

	var shutdownTracer func()
	if cfg.Observability.OTLPEndpoint != "" {
		tp, err := observability.InitTracer(context.Background(), observability.TracerConfig{
			Endpoint:       cfg.Observability.OTLPEndpoint,
			ServiceName:    cfg.Observability.ServiceName,
			ServiceVersion: cfg.Observability.ServiceVersion,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init tracer: %w", err)
		}
		shutdownTracer = func() { _ = tp.Shutdown(context.Background()) }
	}

	ttl, err := storage.GetDuration(map[string]string{"ttl": cfg.Aggregation.TTL}, "ttl", 60*time.Second)
	if err != nil {
		return nil, nil, err
	}

	backendConfig := map[string]string{"path": cfg.DataDir}
	for k, val := range cfg.Storage.Config {
		backendConfig[k] = val
	}

	store, err := rosterstore.New(rosterstore.Config{
		Tenant:         cfg.Tenant,
		Backend:        cfg.Storage.Backend,
		BackendConfig:  backendConfig,
		RecentCapacity: cfg.Cache.RecentCapacity,
		AggregationTTL: ttl,
		Legacy:         legacy.NewSource(cfg.Legacy.Path),
	}, metrics)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = store.Close()
		if shutdownTracer != nil {
			shutdownTracer()
		}
	}
	return store, cleanup, nil
}
