package infra

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/ahakem/bluemind-members-sub000/internal/config"
	"github.com/ahakem/bluemind-members-sub000/internal/docstore"
	"github.com/ahakem/bluemind-members-sub000/internal/docstore/firestore"
	"github.com/ahakem/bluemind-members-sub000/internal/docstore/memory"
	"github.com/ahakem/bluemind-members-sub000/internal/docstore/postgres"
)

// OpenStore connects the document store selected by cfg.StoreBackend. The
// returned close function releases the backend's connections. cache, when
// set, carries the postgres change feed.
func OpenStore(ctx context.Context, cfg config.Config, cache *redis.Client, logger *slog.Logger) (docstore.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StoreBackend {
	case config.BackendMemory:
		logger.Warn("using in-memory document store; data is lost on restart")
		return memory.New(), noop, nil

	case config.BackendPostgres:
		db, err := NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store := postgres.New(db, cache, logger)
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil

	case config.BackendFirestore:
		client, err := NewFirestore(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		return firestore.New(client), client.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
