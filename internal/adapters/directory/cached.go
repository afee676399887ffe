package directory

import (
	"context"
	"time"

	"github.com/dkeye/Multiview/internal/auth"
	"github.com/dkeye/Multiview/internal/domain"
	"github.com/patrickmn/go-cache"
)

// Cached keeps resolved identities for ttl. Misses and failures are not cached.
type Cached struct {
	next  auth.Directory
	cache *cache.Cache
}

func NewCached(next auth.Directory, ttl time.Duration) *Cached {
	return &Cached{next: next, cache: cache.New(ttl, 2*ttl)}
}

func (c *Cached) LoadIdentity(ctx context.Context, subject string) (domain.Identity, error) {
	if v, ok := c.cache.Get(subject); ok {
		return v.(domain.Identity), nil
	}
	identity, err := c.next.LoadIdentity(ctx, subject)
	if err != nil {
		return domain.Identity{}, err
	}
	c.cache.SetDefault(subject, identity)
	return identity, nil
}

// Forget drops a cached subject, e.g. after its privilege changed.
func (c *Cached) Forget(subject string) {
	c.cache.Delete(subject)
}
