// Package service holds the registry engine (sole writer) and the read-only
// query service. All mutation flows through RegistryService inside a storage
// transaction; QueryService observes only committed state.
package service

import (
	"context"
	"log/slog"

	registrymetrics "provenance/internal/registry/metrics"
	"provenance/internal/registry/notify"
	"provenance/internal/registry/store"
)

// Notifier delivers committed registry events to external subscribers.
type Notifier interface {
	Emit(ctx context.Context, event notify.Event) error
}

type serviceConfig struct {
	logger   *slog.Logger
	notifier Notifier
	metrics  *registrymetrics.Metrics
}

type Option func(c *serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) {
		c.logger = logger
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(c *serviceConfig) {
		c.notifier = notifier
	}
}

func WithMetrics(m *registrymetrics.Metrics) Option {
	return func(c *serviceConfig) {
		c.metrics = m
	}
}

func applyOptions(opts []Option) *serviceConfig {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	return cfg
}

// Stores bundles the three registry stores plus the transaction boundary so
// constructors stay readable. The memory and postgres backends each implement
// all four.
type Stores struct {
	Products store.ProductStore
	Trails   store.TrailStore
	Owners   store.OwnershipStore
	Tx       store.Tx
}
