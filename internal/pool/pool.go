// Package pool provides the bounded connection pool shared by executors.
//
// A pool hands out at most MaxSize connections at a time. Acquire waits for
// a free slot until AcquireTimeout elapses; idle connections are probed
// before reuse and replaced lazily when the probe fails.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/typewriter/internal/fault"
)

// Conn is a backend connection the pool manages.
type Conn interface {
	// Ping checks that the connection is still usable.
	Ping(ctx context.Context) error
	Close() error
}

// Dialer opens a new connection. Failures should be *fault.ConnectFailureError.
type Dialer func(ctx context.Context) (Conn, error)

// ErrClosed is returned by Acquire after Close.
var ErrClosed = errors.New("pool is closed")

// Config bounds a pool.
type Config struct {
	// Name labels log lines and metrics.
	Name string

	MaxSize        int
	MinIdle        int
	AcquireTimeout time.Duration
	ProbeTimeout   time.Duration
}

// DefaultConfig returns the stock pool settings.
func DefaultConfig(name string) Config {
	return Config{
		Name:           name,
		MaxSize:        8,
		MinIdle:        2,
		AcquireTimeout: 10 * time.Second,
		ProbeTimeout:   2 * time.Second,
	}
}

// Validate checks the bounds of c.
func (c Config) Validate() error {
	if c.MaxSize < 1 {
		return fmt.Errorf("pool %q: max size %d must be at least 1", c.Name, c.MaxSize)
	}
	if c.MinIdle < 0 || c.MinIdle > c.MaxSize {
		return fmt.Errorf("pool %q: min idle %d must be between 0 and max size %d", c.Name, c.MinIdle, c.MaxSize)
	}
	if c.AcquireTimeout <= 0 {
		return fmt.Errorf("pool %q: acquire timeout must be positive", c.Name)
	}
	return nil
}

// entry is one pooled connection.
type entry struct {
	id       uuid.UUID
	conn     Conn
	busy     bool
	lastUsed time.Time
}

// Pool is a bounded set of connections. It is safe for concurrent use.
//
// The slots channel holds one token per busy entry, so at most MaxSize
// entries are ever handed out; mu guards the idle list and the closed flag.
type Pool struct {
	cfg    Config
	dial   Dialer
	logger *slog.Logger

	slots chan struct{}

	mu     sync.Mutex
	idle   []*entry
	closed bool
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the pool logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// New creates a pool. No connection is opened until Start or Acquire.
func New(cfg Config, dial Dialer, opts ...Option) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = cfg.AcquireTimeout
	}
	p := &Pool{
		cfg:    cfg,
		dial:   dial,
		logger: slog.Default(),
		slots:  make(chan struct{}, cfg.MaxSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("pool", cfg.Name)
	return p, nil
}

// Config returns the pool bounds.
func (p *Pool) Config() Config { return p.cfg }

// Start opens MinIdle connections. A failure closes the ones already opened.
func (p *Pool) Start(ctx context.Context) error {
	opened := make([]*entry, 0, p.cfg.MinIdle)
	for range p.cfg.MinIdle {
		e, err := p.open(ctx)
		if err != nil {
			for _, o := range opened {
				_ = o.conn.Close()
			}
			return err
		}
		opened = append(opened, e)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		for _, o := range opened {
			_ = o.conn.Close()
		}
		return ErrClosed
	}
	p.idle = append(p.idle, opened...)
	p.reportLocked()
	p.logger.Debug("pool started", "idle", len(p.idle))
	return nil
}

func (p *Pool) open(ctx context.Context) (*entry, error) {
	conn, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	return &entry{id: uuid.New(), conn: conn, lastUsed: time.Now()}, nil
}

// Acquire returns a connection for exclusive use. It waits until a slot is
// free, AcquireTimeout elapses (*fault.PoolTimeoutError) or ctx is done.
// Every successful Acquire must be paired with Lease.Release.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	start := time.Now()
	timer := time.NewTimer(p.cfg.AcquireTimeout)
	defer timer.Stop()

	select {
	case p.slots <- struct{}{}:
	case <-timer.C:
		timeoutCounter.WithLabelValues(p.cfg.Name).Inc()
		waited := time.Since(start)
		p.logger.Warn("acquire timed out", "waited", waited, "max_size", p.cfg.MaxSize)
		return nil, &fault.PoolTimeoutError{Pool: p.cfg.Name, Waited: waited, MaxSize: p.cfg.MaxSize}
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire from pool %q: %w", p.cfg.Name, ctx.Err())
	}

	e, err := p.take(ctx)
	if err != nil {
		<-p.slots
		return nil, err
	}
	return &Lease{pool: p, entry: e}, nil
}

// take pops an idle entry that passes the probe, or opens a new one.
// The caller holds a slot.
func (p *Pool) take(ctx context.Context) (*entry, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrClosed
		}
		n := len(p.idle)
		if n == 0 {
			p.mu.Unlock()
			break
		}
		e := p.idle[n-1]
		p.idle = p.idle[:n-1]
		e.busy = true
		p.reportLocked()
		p.mu.Unlock()

		if err := p.probe(ctx, e); err != nil {
			if ctx.Err() != nil {
				// The caller gave up; the connection is not at fault.
				p.restore(e)
				return nil, fmt.Errorf("acquire from pool %q: %w", p.cfg.Name, ctx.Err())
			}
			discardCounter.WithLabelValues(p.cfg.Name).Inc()
			p.logger.Warn("discarding connection", "conn", e.id, "err", err)
			_ = e.conn.Close()
			p.mu.Lock()
			p.reportLocked()
			p.mu.Unlock()
			continue
		}
		return e, nil
	}

	e, err := p.open(ctx)
	if err != nil {
		return nil, err
	}
	e.busy = true
	p.logger.Debug("opened connection", "conn", e.id)
	return e, nil
}

// restore returns an untouched entry to the idle set.
func (p *Pool) restore(e *entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e.busy = false
	if p.closed {
		_ = e.conn.Close()
		return
	}
	p.idle = append(p.idle, e)
	p.reportLocked()
}

func (p *Pool) probe(ctx context.Context, e *entry) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()
	return e.conn.Ping(ctx)
}

func (p *Pool) release(e *entry) {
	p.mu.Lock()
	e.busy = false
	e.lastUsed = time.Now()
	closed := p.closed
	if !closed {
		p.idle = append(p.idle, e)
	}
	p.mu.Unlock()

	if closed {
		_ = e.conn.Close()
	}
	<-p.slots
	p.mu.Lock()
	p.reportLocked()
	p.mu.Unlock()
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Idle  int
	InUse int
}

// Stats reports the current idle and in-use counts.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statsLocked()
}

func (p *Pool) statsLocked() Stats {
	return Stats{Idle: len(p.idle), InUse: len(p.slots)}
}

func (p *Pool) reportLocked() {
	s := p.statsLocked()
	idleGauge.WithLabelValues(p.cfg.Name).Set(float64(s.Idle))
	inUseGauge.WithLabelValues(p.cfg.Name).Set(float64(s.InUse))
}

// Close closes every idle connection. Leased connections are closed when
// they are released. Close is idempotent.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.reportLocked()
	p.mu.Unlock()

	var errs []error
	for _, e := range idle {
		if err := e.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection %s: %w", e.id, err))
		}
	}
	p.logger.Debug("pool closed", "closed", len(idle))
	return errors.Join(errs...)
}

// Lease is an acquired connection.
type Lease struct {
	pool  *Pool
	entry *entry
	once  sync.Once
}

// Conn returns the leased connection.
func (l *Lease) Conn() Conn { return l.entry.conn }

// ID identifies the pooled connection.
func (l *Lease) ID() uuid.UUID { return l.entry.id }

// Release returns the connection to the pool. Calls after the first are
// no-ops.
func (l *Lease) Release() {
	l.once.Do(func() { l.pool.release(l.entry) })
}
