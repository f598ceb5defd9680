// Package dialect describes SQL backends as data.
//
// A Dialect is a static descriptor: identifier quoting, placeholder style,
// the column type of every value domain, one SQL fragment per supported
// operator, aggregate function names and pagination templates. The single
// generic coder in querysql consumes it; there is no per-backend code path.
//
// Operator templates use two tokens:
//
//	{col}  the quoted column
//	?      the next operand, rendered in the dialect's placeholder style
//	?...   every remaining operand, comma separated
//
// Pagination templates use {limit} and {offset}.
package dialect

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/typewriter/internal/fault"
	"github.com/roach88/typewriter/internal/ir"
	"github.com/roach88/typewriter/internal/queryir"
)

// Placeholder is a bind parameter style.
type Placeholder uint8

const (
	// Question renders every parameter as ?.
	Question Placeholder = iota
	// Dollar renders numbered parameters $1, $2, ...
	Dollar
)

// Render returns the placeholder for the n-th parameter, counting from 1.
func (p Placeholder) Render(n int) string {
	if p == Dollar {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Fragment renders one operator.
type Fragment struct {
	Template string

	// Rewrite, when set, transforms each operand before it is bound.
	Rewrite func(ir.IRValue) ir.IRValue
}

// Pagination holds the clause templates for skip and limit.
type Pagination struct {
	Both      string
	LimitOnly string
	SkipOnly  string

	// Inline renders the values as literals instead of parameters.
	Inline bool
}

// DefaultCreateTable is the table definition most dialects accept.
const DefaultCreateTable = "CREATE TABLE IF NOT EXISTS {table} ({definitions})"

// Dialect is the descriptor of one SQL backend. Descriptors are shared and
// must not be modified.
type Dialect struct {
	Name        string
	Aliases     []string
	Driver      string
	Quote       byte
	Placeholder Placeholder
	Types       map[ir.Domain]string
	Operators   map[queryir.Op]Fragment
	Functions   map[queryir.AccFunc]string
	Pagination  Pagination

	// Upsert is the insert-or-replace statement template. Tokens:
	// {table}, {columns}, {values} (placeholders), {key} (identity column)
	// and {updates} (col = EXCLUDED.col for every non-key column).
	Upsert string

	// CreateTable is the table definition template, with {table},
	// {definitions} and {key}. Empty selects DefaultCreateTable.
	CreateTable string
}

// QuoteIdent quotes an identifier, doubling any embedded quote character.
func (d *Dialect) QuoteIdent(name string) string {
	q := string(d.Quote)
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// ColumnType returns the storage type of a domain, for schema tooling.
func (d *Dialect) ColumnType(dom ir.Domain) (string, error) {
	t, ok := d.Types[dom]
	if !ok {
		return "", &fault.UnsupportedDialectFeatureError{Dialect: d.Name, Feature: "column type " + dom.String()}
	}
	return t, nil
}

// Operator returns the fragment for op.
func (d *Dialect) Operator(op queryir.Op) (Fragment, error) {
	frag, ok := d.Operators[op]
	if !ok {
		return Fragment{}, &fault.UnsupportedDialectFeatureError{Dialect: d.Name, Feature: "operator " + op.String()}
	}
	return frag, nil
}

// Function returns the aggregate function name for fn.
func (d *Dialect) Function(fn queryir.AccFunc) (string, error) {
	name, ok := d.Functions[fn]
	if !ok {
		return "", &fault.UnsupportedDialectFeatureError{Dialect: d.Name, Feature: "function " + fn.String()}
	}
	return name, nil
}

// SupportedOps lists the operators d renders, in operator order.
func (d *Dialect) SupportedOps() []queryir.Op {
	ops := make([]queryir.Op, 0, len(d.Operators))
	for op := range d.Operators {
		ops = append(ops, op)
	}
	slices.Sort(ops)
	return ops
}

var registry = map[string]*Dialect{}

func register(d *Dialect) *Dialect {
	registry[d.Name] = d
	for _, alias := range d.Aliases {
		registry[alias] = d
	}
	return d
}

// Lookup finds a dialect by name or alias.
func Lookup(name string) (*Dialect, error) {
	d, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown dialect %q", name)
	}
	return d, nil
}

// All returns every dialect sorted by name.
func All() []*Dialect {
	seen := map[*Dialect]bool{}
	var out []*Dialect
	for _, d := range registry {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
