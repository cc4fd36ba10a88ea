// Package tokencache keeps recently used refresh-token rows in memory, keyed
// by token hash, in front of the persistent store.
//
// The cache is best effort. Every hit re-validates insertion TTL, the
// revoked flag and expiresAt, so a decayed entry turns into a miss and never
// into a false positive. Capacity is enforced by least-recently-accessed
// eviction. A single mutex guards the whole structure.
package tokencache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
)

// Eviction reasons reported to the Observer.
const (
	ReasonLRU        = "lru"
	ReasonTTL        = "ttl"
	ReasonRevoked    = "revoked"
	ReasonExpired    = "expired"
	ReasonRemoved    = "removed"
	ReasonInvalidate = "invalidated"
)

// Observer receives cache statistics. *metrics.Metrics implements it.
type Observer interface {
	CacheHit()
	CacheMiss()
	CacheEvicted(reason string)
	CacheEntries(n int)
}

// Source loads active tokens for warm-up.
type Source interface {
	ListActive(ctx context.Context, now time.Time, limit int) ([]*models.RefreshToken, error)
}

type Config struct {
	Capacity        int
	TTL             time.Duration
	CleanupInterval time.Duration
}

// Entry is the cached view of one token.
type Entry struct {
	Token       models.RefreshToken
	InsertedAt  time.Time
	LastAccess  time.Time
	AccessCount int64
}

type Cache struct {
	cfg Config
	log logging.Logger
	obs Observer
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*list.Element
	// lru is ordered by LastAccess, most recent at the front.
	lru *list.List

	lifecycleMu sync.Mutex
	stop        chan struct{}
	done        chan struct{}
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(c *Cache) {
		if obs != nil {
			c.obs = obs
		}
	}
}

func New(cfg Config, log logging.Logger, opts ...Option) *Cache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1
	}
	c := &Cache{
		cfg:     cfg,
		log:     log.With("module", "token_cache"),
		obs:     nopObserver{},
		now:     time.Now,
		entries: make(map[string]*list.Element),
		lru:     list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached token for hash. Entries that fail re-validation are
// evicted and reported as a miss.
func (c *Cache) Get(hash string) (models.RefreshToken, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[hash]
	if !ok {
		c.obs.CacheMiss()
		return models.RefreshToken{}, false
	}

	e := el.Value.(*Entry)
	now := c.now()
	if reason := c.staleReason(e, now); reason != "" {
		c.removeElement(el, reason)
		c.obs.CacheMiss()
		return models.RefreshToken{}, false
	}

	e.AccessCount++
	e.LastAccess = now
	c.lru.MoveToFront(el)
	c.obs.CacheHit()

	return e.Token, true
}

// Set inserts or replaces the entry for token.TokenHash, evicting the least
// recently accessed entry when full.
func (c *Cache) Set(token models.RefreshToken) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.entries[token.TokenHash]; ok {
		e := el.Value.(*Entry)
		e.Token = token
		e.InsertedAt = now
		e.LastAccess = now
		c.lru.MoveToFront(el)
		return
	}

	if c.lru.Len() >= c.cfg.Capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest, ReasonLRU)
		}
	}

	c.entries[token.TokenHash] = c.lru.PushFront(&Entry{
		Token:      token,
		InsertedAt: now,
		LastAccess: now,
	})
	c.obs.CacheEntries(c.lru.Len())
}

// Remove deletes hash unconditionally.
func (c *Cache) Remove(hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[hash]; ok {
		c.removeElement(el, ReasonRemoved)
	}
}

// Len returns the number of entries, including ones not yet swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Sweep removes every entry that is TTL-expired, revoked or past expiresAt
// and returns how many were dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for el := c.lru.Front(); el != nil; {
		next := el.Next()
		if reason := c.staleReason(el.Value.(*Entry), now); reason != "" {
			c.removeElement(el, reason)
			removed++
		}
		el = next
	}
	return removed
}

func (c *Cache) staleReason(e *Entry, now time.Time) string {
	switch {
	case c.cfg.TTL > 0 && now.Sub(e.InsertedAt) > c.cfg.TTL:
		return ReasonTTL
	case e.Token.Revoked:
		return ReasonRevoked
	case e.Token.ExpiredAt(now):
		return ReasonExpired
	}
	return ""
}

// removeElement must be called with mu held.
func (c *Cache) removeElement(el *list.Element, reason string) {
	e := c.lru.Remove(el).(*Entry)
	delete(c.entries, e.Token.TokenHash)
	c.obs.CacheEvicted(reason)
	c.obs.CacheEntries(c.lru.Len())
}

type nopObserver struct{}

func (nopObserver) CacheHit()           {}
func (nopObserver) CacheMiss()          {}
func (nopObserver) CacheEvicted(string) {}
func (nopObserver) CacheEntries(int)    {}
