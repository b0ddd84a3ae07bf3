package organizations

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/glidebook/glidebook/internal/cache"
	"github.com/glidebook/glidebook/pkg/logging"
)

const cacheKey = "organization"

type orgSource interface {
	Create(ctx context.Context, name, billingEmail string) (*Organization, error)
	Get(ctx context.Context, id uuid.UUID) (*Organization, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	LinkGatewayAccount(ctx context.Context, id uuid.UUID, externalAccountID, status string) error
}

// CachedRepository is a read-through cache in front of the repository. Org
// lookups sit on every request path via the tenant middleware, so they are
// served from Redis when possible.
type CachedRepository struct {
	repo   orgSource
	cache  *cache.TenantCache
	logger *logging.Logger
}

// NewCachedRepository wraps a repository with the tenant cache.
func NewCachedRepository(repo orgSource, c *cache.TenantCache, logger *logging.Logger) *CachedRepository {
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedRepository{repo: repo, cache: c, logger: logger}
}

// Create inserts an organization and primes the cache.
func (r *CachedRepository) Create(ctx context.Context, name, billingEmail string) (*Organization, error) {
	o, err := r.repo.Create(ctx, name, billingEmail)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Put(ctx, o.ID.String(), cacheKey, o); err != nil {
		r.logger.Warn("failed to prime organization cache", "error", err, "org_id", o.ID)
	}
	return o, nil
}

// Get serves from cache, falling back to the repository on a miss.
func (r *CachedRepository) Get(ctx context.Context, id uuid.UUID) (*Organization, error) {
	var cached Organization
	err := r.cache.Get(ctx, id.String(), cacheKey, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		r.logger.Warn("organization cache read failed", "error", err, "org_id", id)
	}

	o, err := r.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Put(ctx, id.String(), cacheKey, o); err != nil {
		r.logger.Warn("failed to fill organization cache", "error", err, "org_id", id)
	}
	return o, nil
}

// Deactivate suspends the tenant and invalidates the cached entry.
func (r *CachedRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := r.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	if err := r.cache.Forget(ctx, id.String(), cacheKey); err != nil {
		r.logger.Warn("failed to invalidate organization cache", "error", err, "org_id", id)
	}
	return nil
}

// LinkGatewayAccount writes through and invalidates the cached entry.
func (r *CachedRepository) LinkGatewayAccount(ctx context.Context, id uuid.UUID, externalAccountID, status string) error {
	if err := r.repo.LinkGatewayAccount(ctx, id, externalAccountID, status); err != nil {
		return err
	}
	if err := r.cache.Forget(ctx, id.String(), cacheKey); err != nil {
		r.logger.Warn("failed to invalidate organization cache", "error", err, "org_id", id)
	}
	return nil
}
