package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/typewriter/internal/config"
	"github.com/roach88/typewriter/internal/dialect"
)

// ValidationError is one problem found in a config file.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Backends int               `json:"backends,omitempty"`
	Models   int               `json:"models,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate a config file without connecting",
		Long: `Validate a typewriter config file.

Checks the file against the config schema, then declares every model and
resolves the dialect of every SQL backend. No connection is opened.
Without an argument the --config path is validated.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.Config
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message)
		}
		var cfgErr *config.Error
		if errors.As(err, &cfgErr) {
			return outputValidationErrors(formatter, []ValidationError{{
				Field:   "config",
				Message: cfgErr.Message,
				Code:    ErrCodeInvalidConfig,
				Line:    line(cfgErr),
			}})
		}
		return outputValidateError(formatter, ErrCodeInvalidConfig, err.Error())
	}

	formatter.VerboseLog("Loaded %s: %d backend(s), %d model(s)", path, len(cfg.Backends), len(cfg.Models))

	if errs := validateConfig(cfg, formatter); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}
	return outputValidateSuccess(formatter, ValidationResult{
		Valid:    true,
		Backends: len(cfg.Backends),
		Models:   len(cfg.Models),
	})
}

// validateConfig runs the checks the schema cannot express.
func validateConfig(cfg *config.Config, formatter *OutputFormatter) []ValidationError {
	var errs []ValidationError

	for _, name := range sortedKeys(cfg.Backends) {
		b := cfg.Backends[name]
		if b.Kind != config.KindSQL {
			continue
		}
		formatter.VerboseLog("Checking backend: %s", name)
		d, err := dialect.Lookup(b.Dialect)
		if err != nil {
			errs = append(errs, ValidationError{Field: "backends." + name + ".dialect", Message: err.Error(), Code: ErrCodeNotFound})
			continue
		}
		if d.Driver == "" {
			errs = append(errs, ValidationError{
				Field:   "backends." + name + ".dialect",
				Message: fmt.Sprintf("dialect %s compiles but has no Go driver to run on", d.Name),
				Code:    ErrCodeUnsupported,
			})
		}
	}

	for _, name := range sortedKeys(cfg.Models) {
		formatter.VerboseLog("Checking model: %s", name)
		if _, err := cfg.BuildModel(name, nil); err != nil {
			errs = append(errs, ValidationError{Field: "models." + name, Message: err.Error(), Code: ErrCodeInvalidConfig})
		}
	}

	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func line(err *config.Error) int {
	if err.Pos.IsValid() {
		return err.Pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Config valid: %d backend(s), %d model(s)\n", result.Backends, result.Models)
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Unreadable configs are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
