package services

import (
	"context"
	"time"

	"github.com/desertthunder/ytrelay/internal/models"
	"github.com/patrickmn/go-cache"
)

// DefaultResultTTL is how long a resolved record is reused.
const DefaultResultTTL = 5 * time.Minute

// CachingResolver remembers successful resolutions for a short window. Failures are never
// cached. The window is kept well under the lifetime of a signed stream URL.
type CachingResolver struct {
	next    Resolver
	results *cache.Cache
}

// NewCachingResolver wraps next. A non-positive ttl uses [DefaultResultTTL].
func NewCachingResolver(next Resolver, ttl time.Duration) *CachingResolver {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	return &CachingResolver{
		next:    next,
		results: cache.New(ttl, 2*ttl),
	}
}

func (c *CachingResolver) Name() string { return c.next.Name() }

func (c *CachingResolver) Resolve(ctx context.Context, sourceID string) (*models.MediaRecord, error) {
	if v, ok := c.results.Get(sourceID); ok {
		record := *v.(*models.MediaRecord)
		return &record, nil
	}

	record, err := c.next.Resolve(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	stored := *record
	c.results.SetDefault(sourceID, &stored)
	return record, nil
}

// Len reports how many results are currently held, including expired ones not yet swept.
func (c *CachingResolver) Len() int { return c.results.ItemCount() }

// Flush drops every cached result.
func (c *CachingResolver) Flush() { c.results.Flush() }
