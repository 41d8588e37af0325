// Package cmd provides shared construction helpers for flowmesh binaries.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flowmesh/flowmesh/pkg/config"
	"github.com/flowmesh/flowmesh/pkg/eventstore"
	filestore "github.com/flowmesh/flowmesh/pkg/eventstore/file"
	memorystore "github.com/flowmesh/flowmesh/pkg/eventstore/memory"
	redisstore "github.com/flowmesh/flowmesh/pkg/eventstore/redis"
	"github.com/flowmesh/flowmesh/pkg/router"
)

// NewEventStore builds the configured event store backend.
func NewEventStore(ctx context.Context, logger *slog.Logger, cfg config.StoreConfig) (eventstore.Store, error) {
	switch cfg.Type {
	case "memory":
		logger.Warn("using in-memory event store, streams will not survive restarts")

		return memorystore.NewStore(), nil
	case "file":
		store, err := filestore.NewStore(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open file event store: %w", err)
		}

		return store, nil
	case "redis":
		store, err := redisstore.NewStore(ctx, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis event store: %w", err)
		}

		return store, nil
	default:
		return nil, fmt.Errorf("unknown event store type: %s", cfg.Type)
	}
}

// NewRouter builds a subject router from configuration.
func NewRouter(logger *slog.Logger, cfg config.RouterConfig) *router.Router {
	opts := []router.Option{
		router.WithDefaultCapacity(cfg.ChannelCapacity),
	}

	if cfg.DeadLetterCapacity > 0 {
		opts = append(opts, router.WithDeadLetter(cfg.DeadLetterCapacity))
	}

	return router.NewRouter(logger, opts...)
}
