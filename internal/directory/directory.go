package directory

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"bookflow/internal/config"
	"bookflow/internal/logger"
	"bookflow/pkg/metrics"
	"bookflow/pkg/models"
	"bookflow/pkg/tracing"
)

// Directory completes organizer records for the workflow engine.
type Directory struct {
	source Source
	logger logger.Logger
}

func New(source Source, log logger.Logger) *Directory {
	return &Directory{source: source, logger: log}
}

// NewFromStores chains MongoDB, the circuit breaker and (when redis is not nil) the Redis cache.
func NewFromStores(db *mongo.Database, client *redis.Client, cfg config.DirectoryConfig, cbCfg config.CircuitBreakerConfig, log logger.Logger) *Directory {
	var source Source = WrapWithCircuitBreaker(NewMongoSource(db), "mongodb-directory", cbCfg)
	if client != nil {
		ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
		source = NewCachedSource(NewRedisCache(client), source, ttl, log)
	}
	return New(source, log)
}

// Lookup returns nil without error when the organizer is unknown.
func (d *Directory) Lookup(ctx context.Context, organizerID string) (*models.Organizer, error) {
	ctx, span := tracing.GetTracer("workflow-service").Start(ctx, "directory.lookup")
	defer span.End()

	start := time.Now()
	org, err := d.source.Lookup(ctx, organizerID)
	switch {
	case errors.Is(err, ErrNotFound):
		metrics.ObserveDirectoryLookup("directory", "not_found", time.Since(start))
		d.logger.DebugwCtx(ctx, "Organizer not in directory", "organizer_id", organizerID)
		return nil, nil
	case err != nil:
		metrics.ObserveDirectoryLookup("directory", "error", time.Since(start))
		return nil, err
	}

	metrics.ObserveDirectoryLookup("directory", "found", time.Since(start))
	return org, nil
}
