// Package backend opens the document store selected by DOCSTORE_BACKEND.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace_backend/internal/docstore"
	"marketplace_backend/internal/docstore/memstore"
	"marketplace_backend/internal/docstore/mongostore"
	"marketplace_backend/internal/docstore/pgstore"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/db"
	"marketplace_backend/platform/logger"
	"marketplace_backend/platform/mongodb"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	connectAttempts  = 5
	connectBaseDelay = 2 * time.Second
)

// Backend is an open document store with its health check and shutdown hook.
type Backend struct {
	Store docstore.Store
	ping  func(ctx context.Context) error
	close func()
}

// Ping reports whether the backing database answers. The memory backend always does.
func (b *Backend) Ping(ctx context.Context) error {
	if b.ping == nil {
		return nil
	}
	return b.ping(ctx)
}

// Close releases the connection.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// Open connects the configured backend. Postgres runs the embedded migrations
// first when migrate is set.
func Open(ctx context.Context, cfg config.DocumentStoreConfig, migrate bool, log *logger.Logger) (*Backend, error) {
	switch cfg.GetDocumentStoreBackend() {
	case config.BackendMemory:
		log.Warn("using the in-memory document store; data is lost on restart")
		return &Backend{Store: memstore.New()}, nil
	case config.BackendMongo:
		return openMongo(ctx, cfg, log)
	case config.BackendPostgres, "":
		return openPostgres(ctx, cfg, migrate, log)
	default:
		return nil, fmt.Errorf("unknown document store backend %q", cfg.GetDocumentStoreBackend())
	}
}

func openPostgres(ctx context.Context, cfg config.DocumentStoreConfig, migrate bool, log *logger.Logger) (*Backend, error) {
	var pool *pgxpool.Pool
	if err := WithRetry(ctx, log, "database connection", connectAttempts, connectBaseDelay, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	log.Info("database connection established")

	if migrate {
		if err := WithRetry(ctx, log, "database migrations", connectAttempts, connectBaseDelay, func() error {
			return db.RunMigrations(ctx, pool)
		}); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run database migrations: %w", err)
		}
		log.Info("database migrations complete")
	}

	return &Backend{Store: pgstore.New(pool), ping: pool.Ping, close: pool.Close}, nil
}

func openMongo(ctx context.Context, cfg config.DocumentStoreConfig, log *logger.Logger) (*Backend, error) {
	var (
		client   *mongo.Client
		database *mongo.Database
	)
	if err := WithRetry(ctx, log, "mongo connection", connectAttempts, connectBaseDelay, func() error {
		c, d, err := mongodb.Connect(ctx, cfg)
		if err != nil {
			return err
		}
		client, database = c, d
		return nil
	}); err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	log.Info("mongo connection established", "database", cfg.GetMongoDatabase())

	return &Backend{
		Store: mongostore.New(database),
		ping: func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		},
		close: func() {
			if err := mongodb.Disconnect(client); err != nil {
				log.Warn("mongo disconnect failed", "error", err)
			}
		},
	}, nil
}

// WithRetry runs fn until it succeeds, backing off quadratically between attempts.
func WithRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
