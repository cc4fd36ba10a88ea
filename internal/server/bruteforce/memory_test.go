package bruteforce

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newMemoryGuard() (*MemoryGuard, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	g := NewMemoryGuard(Config{MaxAttempts: 5, Window: 15 * time.Minute},
		logging.NewNopLogger(), WithClock(clock.Now))
	return g, clock
}

func TestMemoryGuard_BlocksAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	g, _ := newMemoryGuard()

	for i := 0; i < 4; i++ {
		require.NoError(t, g.RecordFailure(ctx, "10.0.0.1"))
	}
	blocked, err := g.IsBlocked(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, g.RecordFailure(ctx, "10.0.0.1"))
	blocked, err = g.IsBlocked(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, blocked)

	other, err := g.IsBlocked(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.False(t, other)
}

func TestMemoryGuard_UnblocksAfterWindow(t *testing.T) {
	ctx := context.Background()
	g, clock := newMemoryGuard()

	for i := 0; i < 5; i++ {
		require.NoError(t, g.RecordFailure(ctx, "ip"))
	}

	clock.Advance(15 * time.Minute)
	blocked, _ := g.IsBlocked(ctx, "ip")
	assert.True(t, blocked, "the reset instant itself is still inside the window")

	clock.Advance(time.Second)
	blocked, _ = g.IsBlocked(ctx, "ip")
	assert.False(t, blocked)

	g.mu.Lock()
	_, kept := g.records["ip"]
	g.mu.Unlock()
	assert.False(t, kept, "elapsed record is cleared")
}

func TestMemoryGuard_NewWindowAfterExpiry(t *testing.T) {
	ctx := context.Background()
	g, clock := newMemoryGuard()

	for i := 0; i < 4; i++ {
		require.NoError(t, g.RecordFailure(ctx, "ip"))
	}
	clock.Advance(16 * time.Minute)

	require.NoError(t, g.RecordFailure(ctx, "ip"))
	blocked, _ := g.IsBlocked(ctx, "ip")
	assert.False(t, blocked, "old failures do not carry into the new window")

	g.mu.Lock()
	rec := *g.records["ip"]
	g.mu.Unlock()
	assert.Equal(t, 1, rec.Count)
	assert.Equal(t, clock.Now().Add(15*time.Minute), rec.WindowResetAt)
}

func TestMemoryGuard_Prune(t *testing.T) {
	ctx := context.Background()
	g, clock := newMemoryGuard()

	require.NoError(t, g.RecordFailure(ctx, "old"))
	clock.Advance(10 * time.Minute)
	require.NoError(t, g.RecordFailure(ctx, "new"))
	clock.Advance(6 * time.Minute)

	assert.Equal(t, 1, g.Prune())
	g.mu.Lock()
	_, ok := g.records["new"]
	g.mu.Unlock()
	assert.True(t, ok)
}

func TestMemoryGuard_ConcurrentFailures(t *testing.T) {
	ctx := context.Background()
	g, _ := newMemoryGuard()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.RecordFailure(ctx, "ip")
		}()
	}
	wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	assert.Equal(t, 50, g.records["ip"].Count)
}

func TestMemoryGuard_StartStop(t *testing.T) {
	g := NewMemoryGuard(Config{MaxAttempts: 1, Window: 5 * time.Millisecond}, logging.NewNopLogger())
	require.NoError(t, g.RecordFailure(context.Background(), "ip"))

	g.Start(context.Background())
	assert.Eventually(t, func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		return len(g.records) == 0
	}, time.Second, 5*time.Millisecond)

	g.Stop()
	g.Stop()
}
