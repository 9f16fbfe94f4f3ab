package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// CachedVersionChecker remembers successful token version checks for ttl so
// every request does not hit the directory. A bumped version takes effect
// once the cached entry expires.
type CachedVersionChecker struct {
	next  TokenVersionChecker
	cache *gocache.Cache
}

func NewCachedVersionChecker(next TokenVersionChecker, ttl time.Duration) *CachedVersionChecker {
	return &CachedVersionChecker{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *CachedVersionChecker) CheckTokenVersion(ctx context.Context, userID uuid.UUID, tokenVersion int) (bool, error) {
	key := userID.String() + ":" + strconv.Itoa(tokenVersion)
	if _, ok := c.cache.Get(key); ok {
		return true, nil
	}

	valid, err := c.next.CheckTokenVersion(ctx, userID, tokenVersion)
	if err != nil {
		return false, err
	}
	// only positive answers are cached so a fixed token works immediately
	if valid {
		c.cache.SetDefault(key, true)
	}
	return valid, nil
}
