package tokencache

import (
	"context"
	"fmt"
	"time"
)

// Warm loads up to Capacity active tokens from src. Rows come newest first
// and are inserted oldest first so the newest end up most recently used.
func (c *Cache) Warm(ctx context.Context, src Source) (int, error) {
	tokens, err := src.ListActive(ctx, c.now(), c.cfg.Capacity)
	if err != nil {
		return 0, fmt.Errorf("warm token cache: %w", err)
	}

	for i := len(tokens) - 1; i >= 0; i-- {
		c.Set(*tokens[i])
	}

	c.log.Info(ctx, "cache warmed", "entries", len(tokens))
	return len(tokens), nil
}

// Start launches the periodic sweeper. Calling Start on a running cache is a
// no-op.
func (c *Cache) Start(ctx context.Context) {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	if c.stop != nil || c.cfg.CleanupInterval <= 0 {
		return
	}

	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.cleanupLoop(ctx, c.cfg.CleanupInterval, c.stop, c.done)
}

// Stop halts the sweeper, waits for it to exit and drops all entries.
func (c *Cache) Stop() {
	c.lifecycleMu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.lifecycleMu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	c.Invalidate(InvalidateAll, Target{})
}

func (c *Cache) cleanupLoop(ctx context.Context, interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.log.Debug(ctx, "cache swept", "removed", n)
			}
		}
	}
}
