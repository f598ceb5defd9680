package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/typewriter/internal/config"
	"github.com/roach88/typewriter/internal/dialect"
	"github.com/roach88/typewriter/internal/querysql"
	"github.com/roach88/typewriter/internal/store"
)

// SchemaOptions holds flags for the schema command.
type SchemaOptions struct {
	*RootOptions
	Dialect string
	Apply   string
}

// SchemaResult is the schema command payload.
type SchemaResult struct {
	Dialect string `json:"dialect"`
	SQL     string `json:"sql"`
	Applied string `json:"applied,omitempty"`
}

func (r SchemaResult) String() string {
	if r.Applied != "" {
		return r.SQL + "\n✓ Applied to " + r.Applied
	}
	return r.SQL
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SchemaOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "schema <model>",
		Short: "Print or apply the table definition of a model",
		Long: `Render the CREATE TABLE statement of a config model for a SQL dialect.

With --apply the statement runs against the named SQL backend, using
that backend's dialect. Tables are created only if missing; altering
existing tables is left to migration tools.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Dialect, "dialect", "d", "sqlite", "SQL dialect name or alias")
	cmd.Flags().StringVar(&opts.Apply, "apply", "", "SQL backend to create the table on")

	return cmd
}

func runSchema(opts *SchemaOptions, model string, cmd *cobra.Command) error {
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
	m, err := cfg.BuildModel(model, nil)
	if err != nil {
		return fail(formatter, "cannot build model", &LoadError{Code: ErrCodeInvalidConfig, Message: err.Error()})
	}

	name := opts.Dialect
	var backend config.Backend
	if opts.Apply != "" {
		b, ok := cfg.Backends[opts.Apply]
		if !ok || b.Kind != config.KindSQL {
			return fail(formatter, "cannot apply schema", &LoadError{Code: ErrCodeNotFound, Message: "no SQL backend named " + opts.Apply})
		}
		backend, name = b, b.Dialect
	}
	d, err := dialect.Lookup(name)
	if err != nil {
		return fail(formatter, "unknown dialect", &LoadError{Code: ErrCodeNotFound, Message: err.Error()})
	}

	ddl, err := querysql.NewCoder(d, m.Codecs()).CompileCreateTable(m.Source(), m.Identity(), m.Fields())
	if err != nil {
		return fail(formatter, "cannot render table", err)
	}
	result := SchemaResult{Dialect: d.Name, SQL: ddl.SQL}
	if opts.Apply == "" {
		return formatter.Success(result)
	}

	formatter.VerboseLog("Creating %s on %s", m.Source(), opts.Apply)
	conn, err := store.Open(cmd.Context(), d, backend.DSN)
	if err != nil {
		return fail(formatter, "cannot open backend", err)
	}
	defer conn.Close()
	if _, err := conn.Exec(cmd.Context(), ddl.SQL, ddl.Params...); err != nil {
		return fail(formatter, "cannot create table", err)
	}
	result.Applied = opts.Apply
	return formatter.Success(result)
}
