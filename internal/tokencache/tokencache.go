// Package tokencache provides a single-slot cache for short-lived access
// tokens.
//
// A Cache holds one value and its expiry. Get returns the cached value while
// it is outside the safety margin and calls the refresh function otherwise.
// Concurrent callers that miss may refresh at the same time; the last one to
// finish wins. No lock is held across the refresh.
package tokencache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// DefaultMargin is how long before expiry a token is considered stale.
const DefaultMargin = 5 * time.Minute

// Token is a cached value with its absolute expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// RefreshFunc fetches a new token.
type RefreshFunc func(ctx context.Context) (Token, error)

// Option configures a Cache.
type Option func(*Cache)

// WithMargin overrides DefaultMargin.
func WithMargin(d time.Duration) Option {
	return func(c *Cache) { c.margin = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// Cache is a single-slot token cache. It is safe for concurrent use.
type Cache struct {
	refresh RefreshFunc
	margin  time.Duration
	now     func() time.Time
	current atomic.Pointer[Token]
	fetches atomic.Int64
}

// New returns an empty Cache backed by refresh.
func New(refresh RefreshFunc, opts ...Option) *Cache {
	c := &Cache{
		refresh: refresh,
		margin:  DefaultMargin,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get returns a valid token value, refreshing it when missing or within the
// margin of its expiry.
func (c *Cache) Get(ctx context.Context) (string, error) {
	if tok := c.current.Load(); tok != nil && c.fresh(tok) {
		return tok.Value, nil
	}

	tok, err := c.refresh(ctx)
	if err != nil {
		return "", err
	}

	c.fetches.Add(1)

	if tok.Value == "" {
		return "", errors.New("refresh returned an empty token")
	}

	c.current.Store(&tok)

	return tok.Value, nil
}

// Invalidate drops the cached token so the next Get refreshes.
func (c *Cache) Invalidate() {
	c.current.Store(nil)
}

// Refreshes returns the number of successful refresh calls.
func (c *Cache) Refreshes() int64 {
	return c.fetches.Load()
}

func (c *Cache) fresh(tok *Token) bool {
	return c.now().Add(c.margin).Before(tok.ExpiresAt)
}
