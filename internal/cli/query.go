package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/typewriter/internal/config"
	"github.com/roach88/typewriter/internal/dialect"
	"github.com/roach88/typewriter/internal/executor"
	"github.com/roach88/typewriter/internal/field"
	"github.com/roach88/typewriter/internal/ir"
	"github.com/roach88/typewriter/internal/pool"
	"github.com/roach88/typewriter/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Backend string
	Model   string
	Count   bool
	Exists  bool
}

// QueryResult is the JSON payload of a query.
type QueryResult struct {
	Backend string           `json:"backend"`
	Records []map[string]any `json:"records"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <plan-file>",
		Short: "Run a plan file against a configured backend",
		Long: `Run a YAML plan file against one backend of the config file.

The plan names its model; the model's fields type every operand. The
backend may be omitted when the config declares only one.

Example:
  typewriter query --backend local plans/adults.yaml
  typewriter query --backend docs --count plans/adults.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Backend, "backend", "b", "", "backend name from the config file")
	cmd.Flags().StringVarP(&opts.Model, "model", "m", "", "model to run against (overrides the plan)")
	cmd.Flags().BoolVar(&opts.Count, "count", false, "print the number of matching records")
	cmd.Flags().BoolVar(&opts.Exists, "exists", false, "print whether any record matches")
	cmd.MarkFlagsMutuallyExclusive("count", "exists")

	return cmd
}

func runQuery(opts *QueryOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return fail(formatter, "cannot load config", err)
	}
	logger, err := commandLogger(cfg, opts.RootOptions, cmd)
	if err != nil {
		return fail(formatter, "cannot configure logger", err)
	}

	pf, err := LoadPlan(path)
	if err != nil {
		return fail(formatter, "cannot load plan", err)
	}
	if len(pf.Fields) > 0 {
		return fail(formatter, "cannot run plan", &LoadError{
			Code: ErrCodeInvalidPlan, Message: "a plan run against a backend must name a model", Path: path,
		})
	}
	schema, model, err := pf.ResolveSchema(cfg, opts.Model)
	if err != nil {
		return fail(formatter, "cannot resolve plan", &LoadError{Code: ErrCodeInvalidPlan, Message: err.Error(), Path: path})
	}
	plan, err := pf.Build(schema)
	if err != nil {
		return fail(formatter, "cannot build plan", err)
	}

	backend, err := pickBackend(cfg, opts.Backend)
	if err != nil {
		return fail(formatter, "cannot pick backend", err)
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exec, closePool, err := OpenExecutor(ctx, cfg, backend, model, logger)
	if err != nil {
		return fail(formatter, "cannot open backend "+backend, err)
	}
	defer closePool()
	formatter.VerboseLog("Running %s plan on backend %s", model.Source(), backend)

	switch {
	case opts.Count:
		n, err := exec.Count(ctx, plan)
		if err != nil {
			return fail(formatter, "count failed", err)
		}
		return formatter.Success(n)
	case opts.Exists:
		ok, err := exec.Exists(ctx, plan)
		if err != nil {
			return fail(formatter, "exists failed", err)
		}
		return formatter.Success(ok)
	}

	records, err := exec.Collect(ctx, plan)
	if err != nil {
		return fail(formatter, "query failed", err)
	}
	if formatter.Format == "json" {
		result := QueryResult{Backend: backend, Records: make([]map[string]any, len(records))}
		for i, rec := range records {
			result.Records[i] = jsonRecord(rec)
		}
		return formatter.Success(result)
	}
	lines := make([]string, len(records))
	for i, rec := range records {
		lines[i] = rec.String()
	}
	lines = append(lines, fmt.Sprintf("(%d record(s))", len(records)))
	return formatter.Success(strings.Join(lines, "\n"))
}

// loadConfig reads the config file, mapping a missing file to E005.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: "config file not found", Path: path}
	}
	return cfg, err
}

// commandLogger builds the configured logger on stderr. --verbose forces
// debug level.
func commandLogger(cfg *config.Config, opts *RootOptions, cmd *cobra.Command) (*slog.Logger, error) {
	lc := cfg.Logger
	if opts.Verbose {
		lc.Level = "debug"
	}
	return lc.NewLogger(cmd.ErrOrStderr())
}

// pickBackend resolves the backend flag. An empty name selects the only
// backend of the config.
func pickBackend(cfg *config.Config, name string) (string, error) {
	if name != "" {
		if _, ok := cfg.Backends[name]; !ok {
			return "", &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("unknown backend %q", name)}
		}
		return name, nil
	}
	if len(cfg.Backends) == 1 {
		for only := range cfg.Backends {
			return only, nil
		}
	}
	names := make([]string, 0, len(cfg.Backends))
	for n := range cfg.Backends {
		names = append(names, n)
	}
	sort.Strings(names)
	return "", &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("choose a backend with --backend: %v", names)}
}

// OpenExecutor starts the pool of the named backend and returns an
// executor for m over it. The returned func closes the pool.
func OpenExecutor(ctx context.Context, cfg *config.Config, backend string, m *field.Model, logger *slog.Logger) (*executor.Executor, func() error, error) {
	b, ok := cfg.Backends[backend]
	if !ok {
		return nil, nil, fmt.Errorf("unknown backend %q", backend)
	}

	var (
		dial pool.Dialer
		d    *dialect.Dialect
		err  error
	)
	switch b.Kind {
	case config.KindSQL:
		if d, err = dialect.Lookup(b.Dialect); err != nil {
			return nil, nil, err
		}
		dial = store.Dialer(d, b.DSN)
	case config.KindMongo:
		dial = store.MongoDialer(b.DSN, b.Database)
	case config.KindMemory:
		dial = store.NewMemoryStore().Dial
	default:
		return nil, nil, fmt.Errorf("backend %s: unknown kind %q", backend, b.Kind)
	}

	p, err := pool.New(cfg.PoolConfig(backend), dial, pool.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	if err := p.Start(ctx); err != nil {
		_ = p.Close()
		return nil, nil, err
	}

	if d != nil {
		return executor.NewSQL(m, d, p, executor.WithLogger(logger)), p.Close, nil
	}
	return executor.NewDocument(m, p, executor.WithLogger(logger)), p.Close, nil
}

// jsonRecord converts a record to JSON-ready values.
func jsonRecord(rec executor.Record) map[string]any {
	out := make(map[string]any, len(rec.Fields))
	for i, f := range rec.Fields {
		out[f.Name] = jsonValue(rec.Values[i])
	}
	return out
}

func jsonValue(v ir.IRValue) any {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return nil
	case ir.IRInt:
		return int64(val)
	case ir.IRFloat:
		return float64(val)
	case ir.IRString:
		return string(val)
	case ir.IRBool:
		return bool(val)
	case ir.IRChar:
		return string(rune(val))
	case ir.IRList:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = jsonValue(elem)
		}
		return out
	default:
		return ir.Format(v)
	}
}
