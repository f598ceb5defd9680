package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/typewriter/internal/codec"
	"github.com/roach88/typewriter/internal/dialect"
	"github.com/roach88/typewriter/internal/fault"
	"github.com/roach88/typewriter/internal/ir"
	"github.com/roach88/typewriter/internal/queryir"
)

// ValueColumn is the result column of an aggregate.
const ValueColumn = queryir.ValueColumn

// Compiled is a statement ready for execution.
type Compiled struct {
	SQL    string
	Params []any

	// Columns lists the result columns in order. It is empty for SELECT *
	// and for statements that return no rows.
	Columns []queryir.Field
}

// StatementID identifies the statement text for prepared-statement caches.
func (c Compiled) StatementID(d *dialect.Dialect) string {
	return ir.StatementID(d.Name, c.SQL)
}

// Coder compiles plans for one dialect. It holds no mutable state and is
// safe for concurrent use.
type Coder struct {
	dialect *dialect.Dialect
	codecs  *codec.Registry
}

// NewCoder creates a coder for d. A nil registry selects codec.Default.
func NewCoder(d *dialect.Dialect, reg *codec.Registry) *Coder {
	if reg == nil {
		reg = codec.Default
	}
	return &Coder{dialect: d, codecs: reg}
}

// Dialect returns the coder's dialect.
func (c *Coder) Dialect() *dialect.Dialect { return c.dialect }

// Compile renders the plan as a SELECT statement, or as an aggregate query
// when the plan carries an accumulation.
func (c *Coder) Compile(p queryir.Plan) (Compiled, error) {
	if acc, ok := p.Accumulation(); ok {
		return c.compileAccumulation(p, acc)
	}

	st := c.newStatement()
	projection := p.Projection()
	st.sb.WriteString("SELECT ")
	if len(projection) == 0 {
		st.sb.WriteString("*")
	} else {
		st.columnList(projection)
	}
	if err := st.fromWhere(p); err != nil {
		return Compiled{}, err
	}
	st.orderBy(p.Sorts())
	st.paginate(p)
	return st.compiled(projection), nil
}

// CompileCount renders SELECT COUNT(*) over the plan's filter. Sorting,
// pagination and projection do not apply.
func (c *Coder) CompileCount(p queryir.Plan) (Compiled, error) {
	fn, err := c.dialect.Function(queryir.AccCount)
	if err != nil {
		return Compiled{}, err
	}
	st := c.newStatement()
	st.sb.WriteString("SELECT " + fn + "(*) AS " + st.quote(ValueColumn))
	if err := st.fromWhere(p); err != nil {
		return Compiled{}, err
	}
	return st.compiled(queryir.Count().Columns()), nil
}

// CompileExists renders a statement that returns at most one row when any
// record matches the plan's filter.
func (c *Coder) CompileExists(p queryir.Plan) (Compiled, error) {
	st := c.newStatement()
	st.sb.WriteString("SELECT 1")
	if err := st.fromWhere(p); err != nil {
		return Compiled{}, err
	}
	st.pagination(0, 1, true)
	return st.compiled(nil), nil
}

// CompileDelete renders DELETE over the plan's filter. Plans with sorting,
// pagination, projection or accumulation are rejected.
func (c *Coder) CompileDelete(p queryir.Plan) (Compiled, error) {
	_, hasLimit := p.Limit()
	_, hasAcc := p.Accumulation()
	if hasLimit || p.Skip() > 0 || len(p.Sorts()) > 0 || len(p.Projection()) > 0 || hasAcc {
		return Compiled{}, fault.InvalidQuery("delete takes a filter only")
	}
	st := c.newStatement()
	st.sb.WriteString("DELETE")
	if err := st.fromWhere(p); err != nil {
		return Compiled{}, err
	}
	return st.compiled(nil), nil
}

func (c *Coder) compileAccumulation(p queryir.Plan, acc queryir.Accumulation) (Compiled, error) {
	st := c.newStatement()

	if acc.Func == queryir.AccDistinct {
		st.sb.WriteString("SELECT DISTINCT " + st.quote(acc.Field.Name))
		if err := st.fromWhere(p); err != nil {
			return Compiled{}, err
		}
		st.paginate(p)
		return st.compiled(acc.Columns()), nil
	}

	fn, err := c.dialect.Function(acc.Func)
	if err != nil {
		return Compiled{}, err
	}
	st.sb.WriteString("SELECT ")
	if acc.Grouped() {
		st.columnList(acc.GroupBy)
		st.sb.WriteString(", ")
	}
	st.sb.WriteString(fn + "(")
	switch {
	case acc.CountAll():
		st.sb.WriteString("*")
	case acc.Distinct:
		st.sb.WriteString("DISTINCT " + st.quote(acc.Field.Name))
	default:
		st.sb.WriteString(st.quote(acc.Field.Name))
	}
	st.sb.WriteString(") AS " + st.quote(ValueColumn))
	if err := st.fromWhere(p); err != nil {
		return Compiled{}, err
	}
	if acc.Grouped() {
		st.sb.WriteString(" GROUP BY ")
		st.columnList(acc.GroupBy)
	}
	st.orderBy(p.Sorts())
	st.paginate(p)
	return st.compiled(acc.Columns()), nil
}

// statement accumulates text and parameters during one traversal.
type statement struct {
	*Coder
	sb     strings.Builder
	params []any
}

func (c *Coder) newStatement() *statement {
	return &statement{Coder: c}
}

func (st *statement) quote(name string) string {
	return st.dialect.QuoteIdent(name)
}

func (st *statement) compiled(columns []queryir.Field) Compiled {
	return Compiled{SQL: st.sb.String(), Params: st.params, Columns: columns}
}

// bind appends a parameter and returns its placeholder.
func (st *statement) bind(v any) string {
	st.params = append(st.params, v)
	return st.dialect.Placeholder.Render(len(st.params))
}

func (st *statement) columnList(fields []queryir.Field) {
	for i, f := range fields {
		if i > 0 {
			st.sb.WriteString(", ")
		}
		st.sb.WriteString(st.quote(f.Name))
	}
}

func (st *statement) fromWhere(p queryir.Plan) error {
	st.sb.WriteString(" FROM " + st.quote(p.Source()))
	if p.Filter() == nil {
		return nil
	}
	st.sb.WriteString(" WHERE ")
	if err := st.constraint(p.Filter()); err != nil {
		return fmt.Errorf("compile filter: %w", err)
	}
	return nil
}

func (st *statement) orderBy(sorts []queryir.Sort) {
	if len(sorts) == 0 {
		return
	}
	st.sb.WriteString(" ORDER BY ")
	for i, s := range sorts {
		if i > 0 {
			st.sb.WriteString(", ")
		}
		st.sb.WriteString(st.quote(s.Field.Name))
		if s.Direction == queryir.Desc {
			st.sb.WriteString(" DESC")
		} else {
			st.sb.WriteString(" ASC")
		}
	}
}

func (st *statement) paginate(p queryir.Plan) {
	limit, hasLimit := p.Limit()
	st.pagination(p.Skip(), limit, hasLimit)
}

func (st *statement) pagination(skip, limit int, hasLimit bool) {
	pg := st.dialect.Pagination
	var tmpl string
	switch {
	case hasLimit && skip > 0:
		tmpl = pg.Both
	case hasLimit:
		tmpl = pg.LimitOnly
	case skip > 0:
		tmpl = pg.SkipOnly
	default:
		return
	}

	value := func(n int) string {
		if pg.Inline {
			return strconv.Itoa(n)
		}
		return st.bind(int64(n))
	}

	st.sb.WriteByte(' ')
	rest := tmpl
	for rest != "" {
		i := strings.IndexByte(rest, '{')
		if i < 0 {
			st.sb.WriteString(rest)
			break
		}
		st.sb.WriteString(rest[:i])
		rest = rest[i:]
		switch {
		case strings.HasPrefix(rest, "{limit}"):
			st.sb.WriteString(value(limit))
			rest = rest[len("{limit}"):]
		case strings.HasPrefix(rest, "{offset}"):
			st.sb.WriteString(value(skip))
			rest = rest[len("{offset}"):]
		default:
			st.sb.WriteByte('{')
			rest = rest[1:]
		}
	}
}

// constraint renders one node. Composite nodes are always parenthesized.
func (st *statement) constraint(c queryir.Constraint) error {
	switch node := c.(type) {
	case *queryir.Leaf:
		return st.leaf(node)
	case *queryir.Composite:
		children := node.Children()
		if node.Kind() == queryir.CombineNot {
			st.sb.WriteString("NOT (")
			if err := st.constraint(children[0]); err != nil {
				return err
			}
			st.sb.WriteByte(')')
			return nil
		}
		sep := " " + node.Kind().String() + " "
		st.sb.WriteByte('(')
		for i, child := range children {
			if i > 0 {
				st.sb.WriteString(sep)
			}
			if err := st.constraint(child); err != nil {
				return err
			}
		}
		st.sb.WriteByte(')')
		return nil
	default:
		return fmt.Errorf("unsupported constraint node: %T", c)
	}
}

// leaf renders the dialect fragment of a leaf, binding operands in order.
func (st *statement) leaf(l *queryir.Leaf) error {
	frag, err := st.dialect.Operator(l.Op())
	if err != nil {
		return err
	}

	operands := l.Operands()
	next := 0
	bindNext := func() (string, error) {
		if next >= len(operands) {
			return "", fmt.Errorf("template %q for %s needs more than %d operand(s)", frag.Template, l.Op(), len(operands))
		}
		v := operands[next]
		next++
		if frag.Rewrite != nil {
			v = frag.Rewrite(v)
		}
		enc, err := st.codecs.EncodeSQL(v)
		if err != nil {
			return "", fmt.Errorf("encode operand of %s on %q: %w", l.Op(), l.Field().Name, err)
		}
		return st.bind(enc), nil
	}

	col := st.quote(l.Field().Name)
	tmpl := frag.Template
	for i := 0; i < len(tmpl); {
		switch {
		case strings.HasPrefix(tmpl[i:], "{col}"):
			st.sb.WriteString(col)
			i += len("{col}")
		case strings.HasPrefix(tmpl[i:], "?..."):
			for j := 0; next < len(operands); j++ {
				if j > 0 {
					st.sb.WriteString(", ")
				}
				ph, err := bindNext()
				if err != nil {
					return err
				}
				st.sb.WriteString(ph)
			}
			i += len("?...")
		case tmpl[i] == '?':
			ph, err := bindNext()
			if err != nil {
				return err
			}
			st.sb.WriteString(ph)
			i++
		default:
			st.sb.WriteByte(tmpl[i])
			i++
		}
	}
	if next != len(operands) {
		return fmt.Errorf("template %q for %s left %d operand(s) unbound", frag.Template, l.Op(), len(operands)-next)
	}
	return nil
}
