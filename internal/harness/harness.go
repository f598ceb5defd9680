package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/typewriter/internal/dialect"
	"github.com/roach88/typewriter/internal/executor"
	"github.com/roach88/typewriter/internal/fault"
	"github.com/roach88/typewriter/internal/field"
	"github.com/roach88/typewriter/internal/ir"
	"github.com/roach88/typewriter/internal/planfile"
	"github.com/roach88/typewriter/internal/pool"
	"github.com/roach88/typewriter/internal/querysql"
	"github.com/roach88/typewriter/internal/store"
)

// Backends a scenario can run on.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Backends lists every backend in run order.
var Backends = []string{BackendSQLite, BackendMemory}

// Harness is one scenario run on one backend.
type Harness struct {
	model  *field.Model
	exec   *executor.Executor
	pool   *pool.Pool
	dir    string
	logger *slog.Logger
}

// Run executes a scenario on backend and returns the result.
//
// Each run gets a fresh store: a SQLite file in a temporary directory, or an
// empty in-memory document store.
//
// Execution flow:
// 1. Declare the scenario model
// 2. Create the store and its table
// 3. Save the seed records
// 4. Run every step and check its expect clause
func Run(ctx context.Context, scenario *Scenario, backend string) (*Result, error) {
	m, err := scenario.model()
	if err != nil {
		return nil, fmt.Errorf("failed to declare model: %w", err)
	}

	h, err := open(ctx, backend, m)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", backend, err)
	}
	defer h.close()

	if err := h.seed(ctx, scenario.Seed); err != nil {
		return nil, fmt.Errorf("failed to seed: %w", err)
	}

	result := NewResult(backend)
	for i, step := range scenario.Steps {
		h.executeStep(ctx, int64(i+1), step, result)
	}
	return result, nil
}

// RunAll executes a scenario on each of its backends.
func RunAll(ctx context.Context, scenario *Scenario) ([]*Result, error) {
	var results []*Result
	for _, backend := range scenario.backends() {
		r, err := Run(ctx, scenario, backend)
		if err != nil {
			return nil, fmt.Errorf("%s on %s: %w", scenario.Name, backend, err)
		}
		results = append(results, r)
	}
	return results, nil
}

func open(ctx context.Context, backend string, m *field.Model) (*Harness, error) {
	h := &Harness{
		model:  m,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in runs
	}

	cfg := pool.DefaultConfig("harness-" + backend)
	cfg.MaxSize = 2
	cfg.MinIdle = 0
	cfg.AcquireTimeout = 5 * time.Second

	var dial pool.Dialer
	switch backend {
	case BackendSQLite:
		dir, err := os.MkdirTemp("", "typewriter-harness-*")
		if err != nil {
			return nil, err
		}
		h.dir = dir
		path := filepath.Join(dir, "scenario.db")
		if err := createTable(ctx, m, path); err != nil {
			h.close()
			return nil, err
		}
		dial = store.Dialer(dialect.SQLite, path)
	case BackendMemory:
		dial = store.NewMemoryStore().Dial
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}

	p, err := pool.New(cfg, dial, pool.WithLogger(h.logger))
	if err != nil {
		h.close()
		return nil, err
	}
	h.pool = p

	if backend == BackendSQLite {
		h.exec = executor.NewSQL(m, dialect.SQLite, p, executor.WithLogger(h.logger))
	} else {
		h.exec = executor.NewDocument(m, p, executor.WithLogger(h.logger))
	}
	return h, nil
}

func createTable(ctx context.Context, m *field.Model, path string) error {
	conn, err := store.Open(ctx, dialect.SQLite, path)
	if err != nil {
		return err
	}
	defer conn.Close()

	ddl, err := querysql.NewCoder(dialect.SQLite, m.Codecs()).CompileCreateTable(m.Source(), m.Identity(), m.Fields())
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, ddl.SQL, ddl.Params...)
	return err
}

func (h *Harness) close() {
	if h.pool != nil {
		_ = h.pool.Close()
	}
	if h.dir != "" {
		_ = os.RemoveAll(h.dir)
	}
}

// seed saves the seed records. Keys missing from a record read as null.
func (h *Harness) seed(ctx context.Context, seed []map[string]any) error {
	fields := h.model.Fields()
	for i, raw := range seed {
		for key := range raw {
			if _, ok := h.model.Lookup(key); !ok {
				return fmt.Errorf("seed %d: unknown field %q", i, key)
			}
		}
		values := make([]ir.IRValue, len(fields))
		for j, f := range fields {
			v, err := planfile.Value(f, raw[f.Name])
			if err != nil {
				return fmt.Errorf("seed %d: %s: %w", i, f.Name, err)
			}
			values[j] = v
		}
		if err := h.exec.Save(ctx, executor.Record{Fields: fields, Values: values}); err != nil {
			return fmt.Errorf("seed %d: %w", i, err)
		}
	}
	h.logger.Debug("seeded", "source", h.model.Source(), "records", len(seed))
	return nil
}

// executeStep runs one step, traces it and checks its expect clause.
func (h *Harness) executeStep(ctx context.Context, seq int64, step Step, result *Result) {
	out := h.runStep(ctx, step)

	ev := TraceEvent{
		Seq:     seq,
		Step:    step.Name,
		Run:     step.kind(),
		Records: renderRecords(out.records),
		Count:   out.count,
		Exists:  out.exists,
	}
	if out.value != nil {
		ev.Value = ir.Format(out.value)
	}
	if out.err != nil {
		ev.Error = errorText(out.err)
	}
	result.AddTrace(ev)

	if step.Expect == nil {
		if out.err != nil {
			result.AddError(fmt.Sprintf("step %s: %v", step.Name, out.err))
		}
		return
	}
	for _, msg := range checkExpect(step, out) {
		result.AddError(fmt.Sprintf("step %s: %s", step.Name, msg))
	}
}

func (h *Harness) runStep(ctx context.Context, step Step) outcome {
	plan, err := step.Plan.Build(planfile.ModelSchema(h.model))
	if err != nil {
		return outcome{err: err}
	}

	var out outcome
	switch step.kind() {
	case RunCount:
		var n int64
		if n, out.err = h.exec.Count(ctx, plan); out.err == nil {
			out.count = &n
		}
	case RunExists:
		var found bool
		if found, out.err = h.exec.Exists(ctx, plan); out.err == nil {
			out.exists = &found
		}
	case RunValue:
		if acc, ok := plan.Accumulation(); ok {
			cols := acc.Columns()
			out.column = cols[len(cols)-1]
		}
		out.value, out.err = h.exec.AccumulateValue(ctx, plan)
	case RunDelete:
		var n int64
		if n, out.err = h.exec.Delete(ctx, plan); out.err == nil {
			out.count = &n
		}
	default:
		out.records, out.err = h.exec.Collect(ctx, plan)
	}
	return out
}

// errorText is the fault code of err, or its message when err carries none.
func errorText(err error) string {
	if code := fault.CodeOf(err); code != fault.CodeUnknown {
		return string(code)
	}
	return err.Error()
}
