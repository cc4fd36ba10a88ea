package bruteforce

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
)

// Record is the failure counter of one source key.
type Record struct {
	Count         int
	WindowResetAt time.Time
}

type MemoryGuard struct {
	cfg Config
	log logging.Logger
	now func() time.Time

	mu      sync.Mutex
	records map[string]*Record

	stop chan struct{}
	done chan struct{}
}

type Option func(*MemoryGuard)

func WithClock(now func() time.Time) Option {
	return func(g *MemoryGuard) {
		if now != nil {
			g.now = now
		}
	}
}

func NewMemoryGuard(cfg Config, log logging.Logger, opts ...Option) *MemoryGuard {
	g := &MemoryGuard{
		cfg:     cfg,
		log:     log.With("module", "brute_force"),
		now:     time.Now,
		records: make(map[string]*Record),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *MemoryGuard) IsBlocked(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[key]
	if !ok {
		return false, nil
	}
	if g.now().After(rec.WindowResetAt) {
		delete(g.records, key)
		return false, nil
	}
	return rec.Count >= g.cfg.MaxAttempts, nil
}

func (g *MemoryGuard) RecordFailure(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	rec, ok := g.records[key]
	if !ok || now.After(rec.WindowResetAt) {
		rec = &Record{WindowResetAt: now.Add(g.cfg.Window)}
		g.records[key] = rec
	}
	rec.Count++

	if rec.Count == g.cfg.MaxAttempts {
		g.log.Warn(ctx, "source blocked", "key", key, "until", rec.WindowResetAt)
	}
	return nil
}

// Prune drops records whose window has elapsed and returns how many were
// removed.
func (g *MemoryGuard) Prune() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	removed := 0
	for key, rec := range g.records {
		if now.After(rec.WindowResetAt) {
			delete(g.records, key)
			removed++
		}
	}
	return removed
}

// Start prunes stale records once per window until Stop or ctx is done.
func (g *MemoryGuard) Start(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stop != nil || g.cfg.Window <= 0 {
		return
	}
	g.stop = make(chan struct{})
	g.done = make(chan struct{})

	go func(stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		ticker := time.NewTicker(g.cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				g.Prune()
			}
		}
	}(g.stop, g.done)
}

// Stop halts pruning and forgets all records.
func (g *MemoryGuard) Stop() {
	g.mu.Lock()
	stop, done := g.stop, g.done
	g.stop, g.done = nil, nil
	g.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	g.mu.Lock()
	g.records = make(map[string]*Record)
	g.mu.Unlock()
}
