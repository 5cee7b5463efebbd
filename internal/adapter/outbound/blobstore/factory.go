package blobstore

import (
	"context"
	"fmt"

	"github.com/trusted-programming/tree-grepper/internal/application/common/retry"
	"github.com/trusted-programming/tree-grepper/internal/application/common/slogger"
	"github.com/trusted-programming/tree-grepper/internal/config"
	"github.com/trusted-programming/tree-grepper/internal/domain/errors/domain"
	"github.com/trusted-programming/tree-grepper/internal/port/outbound"
)

// Open creates the backend selected by cfg.Backend, wrapped in cfg.Namespace.
func Open(ctx context.Context, cfg config.StoreConfig) (outbound.BlobStore, error) {
	var (
		store outbound.BlobStore
		err   error
	)
	switch cfg.Backend {
	case config.StoreBackendFile:
		store, err = NewFileStore(cfg.File.Root)
	case config.StoreBackendSQLite:
		store, err = NewSQLiteStore(ctx, cfg.SQLite.Path)
	case config.StoreBackendPostgres:
		err = retry.Do(ctx, "open postgres store", connectPolicy(cfg.Connect), nil, func(ctx context.Context) error {
			var openErr error
			store, openErr = NewPostgresStore(ctx, cfg.Postgres)
			return openErr
		})
	case config.StoreBackendNATS:
		err = retry.Do(ctx, "open nats store", connectPolicy(cfg.Connect), nil, func(context.Context) error {
			var openErr error
			store, openErr = NewNATSStore(cfg.NATS)
			return openErr
		})
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedStoreKind, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	slogger.Debug(ctx, "blob store opened", slogger.Fields{
		"backend":   cfg.Backend,
		"namespace": cfg.Namespace,
	})
	return NewNamespacedStore(store, cfg.Namespace), nil
}

func connectPolicy(cfg config.ConnectConfig) retry.Policy {
	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.MaxRetries
	if cfg.InitialDelay > 0 {
		policy.InitialDelay = cfg.InitialDelay
	}
	if cfg.MaxDelay > 0 {
		policy.MaxDelay = cfg.MaxDelay
	}
	return policy
}
