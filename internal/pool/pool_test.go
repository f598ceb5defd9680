package pool

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/typewriter/internal/fault"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeConn struct {
	id     int
	broken atomic.Bool
	closed atomic.Bool
	held   atomic.Bool
	hang   atomic.Bool
}

func (c *fakeConn) Ping(ctx context.Context) error {
	if c.hang.Load() {
		<-ctx.Done()
		return ctx.Err()
	}
	if c.broken.Load() {
		return errors.New("connection reset")
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

type fakeBackend struct {
	mu    sync.Mutex
	conns []*fakeConn
	fail  atomic.Bool
}

func (b *fakeBackend) dial(context.Context) (Conn, error) {
	if b.fail.Load() {
		return nil, &fault.ConnectFailureError{Backend: "fake", Err: errors.New("refused")}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c := &fakeConn{id: len(b.conns)}
	b.conns = append(b.conns, c)
	return c, nil
}

func (b *fakeBackend) dialed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

func newTestPool(t *testing.T, cfg Config) (*Pool, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{}
	p, err := New(cfg, backend.dial, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p, backend
}

func testConfig(name string) Config {
	cfg := DefaultConfig(name)
	cfg.AcquireTimeout = 50 * time.Millisecond
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("main")
	assert.Equal(t, 8, cfg.MaxSize)
	assert.Equal(t, 2, cfg.MinIdle)
	assert.Equal(t, 10*time.Second, cfg.AcquireTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max", func(c *Config) { c.MaxSize = 0 }},
		{"negative min", func(c *Config) { c.MinIdle = -1 }},
		{"min above max", func(c *Config) { c.MinIdle = c.MaxSize + 1 }},
		{"no timeout", func(c *Config) { c.AcquireTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("bad")
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
			_, err := New(cfg, nil)
			assert.Error(t, err)
		})
	}
}

func TestStartOpensMinIdle(t *testing.T) {
	p, backend := newTestPool(t, testConfig("start"))
	require.NoError(t, p.Start(context.Background()))

	assert.Equal(t, Stats{Idle: 2}, p.Stats())
	assert.Equal(t, 2, backend.dialed())
	assert.Equal(t, float64(2), testutil.ToFloat64(idleGauge.WithLabelValues("start")))
}

func TestStartFailureClosesOpened(t *testing.T) {
	backend := &fakeBackend{}
	calls := 0
	dial := func(ctx context.Context) (Conn, error) {
		calls++
		if calls == 2 {
			return nil, &fault.ConnectFailureError{Backend: "fake", Err: errors.New("refused")}
		}
		return backend.dial(ctx)
	}
	p, err := New(testConfig("startfail"), dial)
	require.NoError(t, err)

	err = p.Start(context.Background())
	assert.True(t, fault.IsConnectFailure(err))
	require.Len(t, backend.conns, 1)
	assert.True(t, backend.conns[0].closed.Load())
	assert.Equal(t, Stats{}, p.Stats())
}

func TestAcquireReusesReleasedConnection(t *testing.T) {
	cfg := testConfig("reuse")
	cfg.MinIdle = 0
	p, backend := newTestPool(t, cfg)
	ctx := context.Background()

	first, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{InUse: 1}, p.Stats())
	id := first.ID()
	first.Release()
	first.Release()
	assert.Equal(t, Stats{Idle: 1}, p.Stats())

	second, err := p.Acquire(ctx)
	require.NoError(t, err)
	defer second.Release()
	assert.Equal(t, id, second.ID())
	assert.Equal(t, 1, backend.dialed())
}

func TestAcquireTimesOutWhenExhausted(t *testing.T) {
	cfg := testConfig("exhausted")
	cfg.MaxSize = 1
	cfg.MinIdle = 0
	p, _ := newTestPool(t, cfg)
	ctx := context.Background()

	held, err := p.Acquire(ctx)
	require.NoError(t, err)

	before := testutil.ToFloat64(timeoutCounter.WithLabelValues("exhausted"))
	_, err = p.Acquire(ctx)
	require.Error(t, err)
	assert.True(t, fault.IsPoolTimeout(err))
	var timeout *fault.PoolTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 1, timeout.MaxSize)
	assert.GreaterOrEqual(t, timeout.Waited, cfg.AcquireTimeout)
	assert.Equal(t, before+1, testutil.ToFloat64(timeoutCounter.WithLabelValues("exhausted")))

	held.Release()
	again, err := p.Acquire(ctx)
	require.NoError(t, err)
	again.Release()
}

func TestAcquireHonorsContext(t *testing.T) {
	cfg := testConfig("cancel")
	cfg.MaxSize = 1
	cfg.MinIdle = 0
	cfg.AcquireTimeout = time.Minute
	p, _ := newTestPool(t, cfg)

	held, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFailedProbeReplacesConnection(t *testing.T) {
	cfg := testConfig("probe")
	cfg.MinIdle = 1
	p, backend := newTestPool(t, cfg)
	require.NoError(t, p.Start(context.Background()))
	backend.conns[0].broken.Store(true)

	before := testutil.ToFloat64(discardCounter.WithLabelValues("probe"))
	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer lease.Release()

	assert.Equal(t, 2, backend.dialed())
	assert.True(t, backend.conns[0].closed.Load())
	assert.Same(t, backend.conns[1], lease.Conn())
	assert.Equal(t, before+1, testutil.ToFloat64(discardCounter.WithLabelValues("probe")))
}

func TestCancelledProbeKeepsConnections(t *testing.T) {
	cfg := testConfig("cancelprobe")
	cfg.ProbeTimeout = time.Second
	cfg.AcquireTimeout = time.Second
	p, backend := newTestPool(t, cfg)
	require.NoError(t, p.Start(context.Background()))
	for _, c := range backend.conns {
		c.hang.Store(true)
	}

	before := testutil.ToFloat64(discardCounter.WithLabelValues("cancelprobe"))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, Stats{Idle: 2}, p.Stats())
	assert.Equal(t, 2, backend.dialed())
	for _, c := range backend.conns {
		assert.False(t, c.closed.Load())
		c.hang.Store(false)
	}
	assert.Equal(t, before, testutil.ToFloat64(discardCounter.WithLabelValues("cancelprobe")))

	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)
	lease.Release()
	assert.Equal(t, 2, backend.dialed())
}

func TestDialFailureFreesSlot(t *testing.T) {
	cfg := testConfig("dialfail")
	cfg.MaxSize = 1
	cfg.MinIdle = 0
	p, backend := newTestPool(t, cfg)
	backend.fail.Store(true)

	_, err := p.Acquire(context.Background())
	assert.True(t, fault.IsConnectFailure(err))
	assert.Equal(t, Stats{}, p.Stats())

	backend.fail.Store(false)
	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)
	lease.Release()
}

func TestConcurrentAcquireNeverSharesConnection(t *testing.T) {
	cfg := testConfig("concurrent")
	cfg.MaxSize = 3
	cfg.MinIdle = 1
	cfg.AcquireTimeout = 5 * time.Second
	p, backend := newTestPool(t, cfg)
	require.NoError(t, p.Start(context.Background()))

	var active, peak atomic.Int32
	g, ctx := errgroup.WithContext(context.Background())
	for range 24 {
		g.Go(func() error {
			lease, err := p.Acquire(ctx)
			if err != nil {
				return err
			}
			defer lease.Release()

			conn := lease.Conn().(*fakeConn)
			if !conn.held.CompareAndSwap(false, true) {
				return errors.New("connection leased twice")
			}
			n := active.Add(1)
			for {
				cur := peak.Load()
				if n <= cur || peak.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
			conn.held.Store(false)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.LessOrEqual(t, backend.dialed(), 3)
	assert.Equal(t, 0, p.Stats().InUse)
}

func TestCloseDestroysEntries(t *testing.T) {
	cfg := testConfig("close")
	p, backend := newTestPool(t, cfg)
	require.NoError(t, p.Start(context.Background()))

	lease, err := p.Acquire(context.Background())
	require.NoError(t, err)
	leased := lease.Conn().(*fakeConn)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	for _, c := range backend.conns {
		if c != leased {
			assert.True(t, c.closed.Load())
		}
	}
	assert.False(t, leased.closed.Load())

	lease.Release()
	assert.True(t, leased.closed.Load())

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, p.Start(context.Background()), ErrClosed)
}
