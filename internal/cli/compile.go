package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/typewriter/internal/config"
	"github.com/roach88/typewriter/internal/dialect"
	"github.com/roach88/typewriter/internal/querydoc"
	"github.com/roach88/typewriter/internal/queryir"
	"github.com/roach88/typewriter/internal/querysql"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Dialect  string
	Document bool
	Model    string
}

// SQLOutput is the compile result for a SQL dialect.
type SQLOutput struct {
	Dialect     string `json:"dialect"`
	SQL         string `json:"sql"`
	Params      []any  `json:"params"`
	StatementID string `json:"statement_id"`
	Fingerprint string `json:"fingerprint"`
}

func (o SQLOutput) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "-- %s\n%s\n", o.Dialect, o.SQL)
	for i, p := range o.Params {
		fmt.Fprintf(&sb, "-- $%d = %v\n", i+1, p)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// DocumentOutput is the compile result for a document store. Documents are
// relaxed Extended JSON.
type DocumentOutput struct {
	Collection  string            `json:"collection"`
	Filter      json.RawMessage   `json:"filter"`
	Sort        json.RawMessage   `json:"sort,omitempty"`
	Projection  json.RawMessage   `json:"projection,omitempty"`
	Skip        int64             `json:"skip,omitempty"`
	Limit       *int64            `json:"limit,omitempty"`
	Pipeline    []json.RawMessage `json:"pipeline,omitempty"`
	Fingerprint string            `json:"fingerprint"`
}

func (o DocumentOutput) String() string {
	var sb strings.Builder
	if o.Pipeline != nil {
		fmt.Fprintf(&sb, "db.%s.aggregate([\n", o.Collection)
		for _, stage := range o.Pipeline {
			fmt.Fprintf(&sb, "  %s,\n", stage)
		}
		sb.WriteString("])")
		return sb.String()
	}
	fmt.Fprintf(&sb, "db.%s.find(%s", o.Collection, o.Filter)
	if o.Projection != nil {
		fmt.Fprintf(&sb, ", %s", o.Projection)
	}
	sb.WriteString(")")
	if o.Sort != nil {
		fmt.Fprintf(&sb, ".sort(%s)", o.Sort)
	}
	if o.Skip > 0 {
		fmt.Fprintf(&sb, ".skip(%d)", o.Skip)
	}
	if o.Limit != nil {
		fmt.Fprintf(&sb, ".limit(%d)", *o.Limit)
	}
	return sb.String()
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <plan-file>",
		Short: "Compile a plan file without running it",
		Long: `Compile a YAML plan file to a SQL statement or a document command.

Fields come from the plan's inline fields map, or from the named model
of the config file. Operands are always sent as parameters.

Example:
  typewriter compile --dialect postgresql plans/adults.yaml
  typewriter compile --document --config typewriter.yaml plans/adults.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Dialect, "dialect", "d", "sqlite", "SQL dialect name or alias")
	cmd.Flags().BoolVar(&opts.Document, "document", false, "compile for a document store instead of SQL")
	cmd.Flags().StringVarP(&opts.Model, "model", "m", "", "model to resolve fields against (overrides the plan)")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	plan, err := loadPlan(opts.RootOptions, path, opts.Model, formatter)
	if err != nil {
		return fail(formatter, "cannot build plan", err)
	}
	fingerprint, err := plan.Fingerprint()
	if err != nil {
		return fail(formatter, "cannot fingerprint plan", err)
	}
	formatter.VerboseLog("Plan %s over %s", fingerprint, plan.Source())

	if opts.Document {
		out, err := compileDocument(plan)
		if err != nil {
			return fail(formatter, "compilation failed", err)
		}
		out.Fingerprint = fingerprint
		return formatter.Success(out)
	}

	d, err := dialect.Lookup(opts.Dialect)
	if err != nil {
		return fail(formatter, "unknown dialect", &LoadError{Code: ErrCodeNotFound, Message: err.Error()})
	}
	compiled, err := querysql.NewCoder(d, nil).Compile(plan)
	if err != nil {
		return fail(formatter, "compilation failed", err)
	}
	params := compiled.Params
	if params == nil {
		params = []any{}
	}
	return formatter.Success(SQLOutput{
		Dialect:     d.Name,
		SQL:         compiled.SQL,
		Params:      params,
		StatementID: compiled.StatementID(d),
		Fingerprint: fingerprint,
	})
}

// loadPlan reads a plan file and builds it. The config file is only read
// when the plan does not declare its own fields.
func loadPlan(opts *RootOptions, path, model string, formatter *OutputFormatter) (queryir.Plan, error) {
	pf, err := LoadPlan(path)
	if err != nil {
		return queryir.Plan{}, err
	}
	var cfg *config.Config
	if len(pf.Fields) == 0 {
		formatter.VerboseLog("Loading config %s", opts.Config)
		if cfg, err = loadConfig(opts.Config); err != nil {
			return queryir.Plan{}, err
		}
	}
	schema, _, err := pf.ResolveSchema(cfg, model)
	if err != nil {
		return queryir.Plan{}, &LoadError{Code: ErrCodeInvalidPlan, Message: err.Error(), Path: path}
	}
	return pf.Build(schema)
}

func compileDocument(plan queryir.Plan) (DocumentOutput, error) {
	c, err := querydoc.NewCompiler(nil).Compile(plan)
	if err != nil {
		return DocumentOutput{}, err
	}
	out := DocumentOutput{Collection: c.Collection}
	if out.Filter, err = extJSON(c.Filter); err != nil {
		return DocumentOutput{}, err
	}
	if c.IsAggregate() {
		out.Pipeline = make([]json.RawMessage, len(c.Pipeline))
		for i, stage := range c.Pipeline {
			if out.Pipeline[i], err = extJSON(stage); err != nil {
				return DocumentOutput{}, err
			}
		}
		return out, nil
	}
	if len(c.Sort) > 0 {
		if out.Sort, err = extJSON(c.Sort); err != nil {
			return DocumentOutput{}, err
		}
	}
	if len(c.Projection) > 0 {
		if out.Projection, err = extJSON(c.Projection); err != nil {
			return DocumentOutput{}, err
		}
	}
	out.Skip = c.Skip
	if c.HasLimit {
		limit := c.Limit
		out.Limit = &limit
	}
	return out, nil
}

func extJSON(doc bson.D) (json.RawMessage, error) {
	if doc == nil {
		doc = bson.D{}
	}
	data, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return data, nil
}
