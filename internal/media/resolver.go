// Package media resolves opaque media identifiers attached to
// questions into fetchable URLs, keeping question content separate
// from binary asset storage.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/prepstation/capture-service/internal/cache"
	"github.com/prepstation/capture-service/internal/models"
)

// Resolver turns a media id into a fetchable URL. An empty URL with a
// nil error means the asset is unresolved; renderers show a
// placeholder rather than fail.
type Resolver interface {
	Resolve(ctx context.Context, mediaID uint) (string, error)
}

// ResolveFunc adapts a function to Resolver.
type ResolveFunc func(ctx context.Context, mediaID uint) (string, error)

func (f ResolveFunc) Resolve(ctx context.Context, mediaID uint) (string, error) {
	return f(ctx, mediaID)
}

const cacheTTL = 15 * time.Minute

// StoreResolver reads asset URLs from the media table with a Redis
// cache in front.
type StoreResolver struct {
	db     *gorm.DB
	cache  cache.CacheService
	logger *slog.Logger
}

func NewStoreResolver(db *gorm.DB, cacheSvc cache.CacheService, logger *slog.Logger) *StoreResolver {
	return &StoreResolver{
		db:     db,
		cache:  cacheSvc,
		logger: logger,
	}
}

func (r *StoreResolver) Resolve(ctx context.Context, mediaID uint) (string, error) {
	key := cacheKey(mediaID)

	if r.cache != nil {
		var url string
		err := r.cache.Get(ctx, key, &url)
		if err == nil {
			return url, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			r.logger.Warn("media cache read failed", "media_id", mediaID, "error", err)
		}
	}

	var m models.Media
	if err := r.db.WithContext(ctx).First(&m, mediaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Unresolved, not an error: renderers show a placeholder.
			return "", nil
		}
		return "", fmt.Errorf("resolve media %d: %w", mediaID, err)
	}

	if r.cache != nil && m.URL != "" {
		if err := r.cache.Set(ctx, key, m.URL, cacheTTL); err != nil {
			r.logger.Warn("media cache write failed", "media_id", mediaID, "error", err)
		}
	}

	return m.URL, nil
}

func cacheKey(mediaID uint) string {
	return fmt.Sprintf("media:url:%d", mediaID)
}
