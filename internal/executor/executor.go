package executor

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/roach88/typewriter/internal/dialect"
	"github.com/roach88/typewriter/internal/fault"
	"github.com/roach88/typewriter/internal/field"
	"github.com/roach88/typewriter/internal/ir"
	"github.com/roach88/typewriter/internal/pool"
	"github.com/roach88/typewriter/internal/querydoc"
	"github.com/roach88/typewriter/internal/queryir"
	"github.com/roach88/typewriter/internal/querysql"
)

// Executor runs plans over one model. It is safe for concurrent use; the
// pool bounds how many calls run at once.
type Executor struct {
	model   *field.Model
	pool    *pool.Pool
	backend backend
	logger  *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// NewSQL creates an executor for a SQL backend speaking d. The pool must
// dial *store.SQLConn connections.
func NewSQL(m *field.Model, d *dialect.Dialect, p *pool.Pool, opts ...Option) *Executor {
	e := newExecutor(m, p, opts)
	e.backend = &sqlBackend{
		coder:  querysql.NewCoder(d, m.Codecs()),
		codecs: m.Codecs(),
		logger: e.logger,
	}
	return e
}

// NewDocument creates an executor for a document store. The pool must dial
// store.DocumentConn connections.
func NewDocument(m *field.Model, p *pool.Pool, opts ...Option) *Executor {
	e := newExecutor(m, p, opts)
	e.backend = &docBackend{
		compiler: querydoc.NewCompiler(m.Codecs()),
		codecs:   m.Codecs(),
		logger:   e.logger,
	}
	return e
}

func newExecutor(m *field.Model, p *pool.Pool, opts []Option) *Executor {
	e := &Executor{model: m, pool: p, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Model returns the executor's model.
func (e *Executor) Model() *field.Model { return e.model }

// Execute runs p and yields its records lazily. The plan is compiled when
// iteration starts, before a connection is acquired; the connection is
// released when iteration ends, however it ends.
//
// A failure ends the sequence with a single error; a record that fails to
// decode is never yielded. The sequence is single use.
func (e *Executor) Execute(ctx context.Context, p queryir.Plan) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		p, err := e.prepare(p)
		if err != nil {
			yield(Record{}, err)
			return
		}
		acc, isAcc := p.Accumulation()
		step, err := e.backend.query(p)
		if err != nil {
			yield(Record{}, err)
			return
		}

		lease, err := e.pool.Acquire(ctx)
		if err != nil {
			yield(Record{}, err)
			return
		}
		defer lease.Release()
		ctx := context.WithoutCancel(ctx)

		rows, err := step(ctx, lease.Conn())
		if err != nil {
			yield(Record{}, err)
			return
		}
		defer rows.Close()

		n := 0
		for rows.Next() {
			raw, err := rows.Scan()
			if err != nil {
				yield(Record{}, err)
				return
			}
			rec, err := e.decode(rows.Columns(), raw)
			if err != nil {
				yield(Record{}, err)
				return
			}
			if isAcc {
				rec = normalize(acc, rec)
			}
			n++
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(Record{}, fmt.Errorf("read %s: %w", p.Source(), err))
			return
		}
		if n == 0 && isAcc && scalar(acc) && !emptyPage(p) {
			yield(emptyAccumulation(acc), nil)
		}
	}
}

// Collect runs p and returns all records.
func (e *Executor) Collect(ctx context.Context, p queryir.Plan) ([]Record, error) {
	var out []Record
	for rec, err := range e.Execute(ctx, p) {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// First returns the first record of p, and false when there is none.
func (e *Executor) First(ctx context.Context, p queryir.Plan) (Record, bool, error) {
	limit, hasLimit := p.Limit()
	if !hasLimit || limit > 1 {
		var err error
		if p, err = p.Builder().Limit(1).Build(); err != nil {
			return Record{}, false, err
		}
	}
	for rec, err := range e.Execute(ctx, p) {
		if err != nil {
			return Record{}, false, err
		}
		return rec, true, nil
	}
	return Record{}, false, nil
}

// Count returns the number of records matching the filter of p. Sorting,
// pagination and projection are ignored.
func (e *Executor) Count(ctx context.Context, p queryir.Plan) (int64, error) {
	if err := e.checkSource(p); err != nil {
		return 0, err
	}
	step, err := e.backend.count(p)
	if err != nil {
		return 0, err
	}
	var n int64
	err = e.withConn(ctx, func(ctx context.Context, conn pool.Conn) error {
		var err error
		n, err = step(ctx, conn)
		return err
	})
	return n, err
}

// Exists reports whether any record matches the filter of p.
func (e *Executor) Exists(ctx context.Context, p queryir.Plan) (bool, error) {
	if err := e.checkSource(p); err != nil {
		return false, err
	}
	step, err := e.backend.exists(p)
	if err != nil {
		return false, err
	}
	var found bool
	err = e.withConn(ctx, func(ctx context.Context, conn pool.Conn) error {
		var err error
		found, err = step(ctx, conn)
		return err
	})
	return found, err
}

// Accumulate runs an accumulation plan and returns its rows: one per group,
// one for an ungrouped accumulation, or one per distinct value.
func (e *Executor) Accumulate(ctx context.Context, p queryir.Plan) ([]Record, error) {
	if _, ok := p.Accumulation(); !ok {
		return nil, fault.InvalidQuery("plan over %s has no accumulation", p.Source())
	}
	return e.Collect(ctx, p)
}

// AccumulateValue runs an ungrouped accumulation and returns its value.
func (e *Executor) AccumulateValue(ctx context.Context, p queryir.Plan) (ir.IRValue, error) {
	acc, ok := p.Accumulation()
	if !ok || !scalar(acc) {
		return nil, fault.InvalidQuery("plan over %s has no scalar accumulation", p.Source())
	}
	rows, err := e.Collect(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return emptyAccumulation(acc).Values[0], nil
	}
	v, _ := rows[0].Get(queryir.ValueColumn)
	return v, nil
}

// Delete removes the records matching the filter of p and reports how many
// were removed.
func (e *Executor) Delete(ctx context.Context, p queryir.Plan) (int64, error) {
	if err := e.checkSource(p); err != nil {
		return 0, err
	}
	step, err := e.backend.delete(p)
	if err != nil {
		return 0, err
	}
	var n int64
	err = e.withConn(ctx, func(ctx context.Context, conn pool.Conn) error {
		var err error
		n, err = step(ctx, conn)
		return err
	})
	if err == nil {
		e.logger.Debug("deleted records", "source", p.Source(), "count", n)
	}
	return n, err
}

// Save inserts rec, or replaces the stored record with the same identity.
// rec must hold a value for every model field.
func (e *Executor) Save(ctx context.Context, rec Record) error {
	fields := e.model.Fields()
	values := make([]ir.IRValue, len(fields))
	for i, f := range fields {
		v, ok := rec.Get(f.Name)
		if !ok {
			return fault.InvalidQuery("record for %s has no value for %q", e.model.Source(), f.Name)
		}
		values[i] = v
	}
	step, err := e.backend.save(e.model.Source(), e.model.Identity(), fields, values)
	if err != nil {
		return err
	}
	return e.withConn(ctx, step)
}

// withConn runs fn on a leased connection. Plans are compiled before
// withConn is called, so compilation errors never wait on the pool.
func (e *Executor) withConn(ctx context.Context, fn func(ctx context.Context, conn pool.Conn) error) error {
	lease, err := e.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()
	return fn(context.WithoutCancel(ctx), lease.Conn())
}

func (e *Executor) checkSource(p queryir.Plan) error {
	if p.Source() != e.model.Source() {
		return fault.InvalidQuery("plan over %s run on %s executor", p.Source(), e.model.Source())
	}
	return nil
}

// prepare selects the model fields when p asks for whole records.
func (e *Executor) prepare(p queryir.Plan) (queryir.Plan, error) {
	if err := e.checkSource(p); err != nil {
		return queryir.Plan{}, err
	}
	if _, ok := p.Accumulation(); ok || len(p.Projection()) > 0 {
		return p, nil
	}
	b := p.Builder()
	for _, f := range e.model.Fields() {
		b.Select(f)
	}
	return b.Build()
}

func (e *Executor) decode(columns []queryir.Field, raw []any) (Record, error) {
	if len(raw) != len(columns) {
		return Record{}, fmt.Errorf("row has %d values for %d columns", len(raw), len(columns))
	}
	values := make([]ir.IRValue, len(columns))
	for i, f := range columns {
		v, err := e.model.Codecs().Decode(f, raw[i])
		if err != nil {
			return Record{}, err
		}
		values[i] = v
	}
	return Record{Fields: columns, Values: values}, nil
}

// scalar reports whether acc produces exactly one row.
func scalar(acc queryir.Accumulation) bool {
	return !acc.Grouped() && acc.Func != queryir.AccDistinct
}

// emptyPage reports whether pagination alone removes the single row of a
// scalar accumulation.
func emptyPage(p queryir.Plan) bool {
	limit, hasLimit := p.Limit()
	return p.Skip() > 0 || (hasLimit && limit == 0)
}

// normalize makes SUM over no values read 0 on every backend.
func normalize(acc queryir.Accumulation, rec Record) Record {
	if acc.Func != queryir.AccSum || len(rec.Values) == 0 {
		return rec
	}
	last := len(rec.Values) - 1
	if ir.IsNull(rec.Values[last]) {
		rec.Values[last] = ir.IRInt(0)
	}
	return rec
}

// emptyAccumulation is the row of an ungrouped accumulation over no records.
func emptyAccumulation(acc queryir.Accumulation) Record {
	var v ir.IRValue = ir.IRNull{}
	if acc.Func == queryir.AccCount || acc.Func == queryir.AccSum {
		v = ir.IRInt(0)
	}
	return Record{Fields: acc.Columns(), Values: []ir.IRValue{v}}
}
