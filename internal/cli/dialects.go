package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/typewriter/internal/dialect"
	"github.com/roach88/typewriter/internal/queryir"
)

// DialectInfo describes one registered dialect.
type DialectInfo struct {
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases,omitempty"`
	Driver      string   `json:"driver,omitempty"`
	Operators   []string `json:"operators"`
	Unsupported []string `json:"unsupported,omitempty"`
}

// DialectList is the dialects command payload.
type DialectList []DialectInfo

func (l DialectList) String() string {
	var sb strings.Builder
	for i, d := range l {
		if i > 0 {
			sb.WriteByte('\n')
		}
		driver := d.Driver
		if driver == "" {
			driver = "none"
		}
		fmt.Fprintf(&sb, "%-12s driver=%-10s operators=%d", d.Name, driver, len(d.Operators))
		if len(d.Aliases) > 0 {
			fmt.Fprintf(&sb, " aliases=%s", strings.Join(d.Aliases, ","))
		}
		if len(d.Unsupported) > 0 {
			fmt.Fprintf(&sb, " missing=%s", strings.Join(d.Unsupported, ","))
		}
	}
	return sb.String()
}

// NewDialectsCommand creates the dialects command.
func NewDialectsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "dialects",
		Short:         "List SQL dialects and the operators they render",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:  rootOpts.Format,
				Writer:  cmd.OutOrStdout(),
				Verbose: rootOpts.Verbose,
			}
			return formatter.Success(listDialects())
		},
	}
}

func listDialects() DialectList {
	var all []queryir.Op
	for op := queryir.OpEq; op <= queryir.OpSizeGt; op++ {
		all = append(all, op)
	}

	var out DialectList
	for _, d := range dialect.All() {
		info := DialectInfo{Name: d.Name, Aliases: d.Aliases, Driver: d.Driver, Operators: []string{}}
		for _, op := range all {
			if _, err := d.Operator(op); err != nil {
				info.Unsupported = append(info.Unsupported, op.String())
				continue
			}
			info.Operators = append(info.Operators, op.String())
		}
		out = append(out, info)
	}
	return out
}
