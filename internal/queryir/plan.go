package queryir

import (
	"fmt"
	"slices"

	"github.com/roach88/typewriter/internal/fault"
	"github.com/roach88/typewriter/internal/ir"
)

// Direction is a sort direction.
type Direction uint8

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// ParseDirection resolves "asc" or "desc".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "asc", "ASC", "":
		return Asc, nil
	case "desc", "DESC":
		return Desc, nil
	default:
		return Asc, fmt.Errorf("unknown sort direction %q", s)
	}
}

// Sort is one ORDER BY entry.
type Sort struct {
	Field     Field
	Direction Direction
}

// AccFunc is an aggregate function.
type AccFunc uint8

const (
	AccCount AccFunc = iota + 1
	AccDistinct
	AccMin
	AccMax
	AccAvg
	AccSum
)

var accNames = map[AccFunc]string{
	AccCount:    "count",
	AccDistinct: "distinct",
	AccMin:      "min",
	AccMax:      "max",
	AccAvg:      "avg",
	AccSum:      "sum",
}

func (a AccFunc) String() string {
	if name, ok := accNames[a]; ok {
		return name
	}
	return fmt.Sprintf("AccFunc(%d)", uint8(a))
}

// ParseAccFunc resolves an aggregate function name.
func ParseAccFunc(s string) (AccFunc, error) {
	for fn, name := range accNames {
		if name == s {
			return fn, nil
		}
	}
	return 0, fmt.Errorf("unknown accumulation %q", s)
}

// Accumulation is an aggregation request.
//
// Field is the zero Field for COUNT(*). Distinct aggregates over distinct
// values only (COUNT, AVG and SUM). GroupBy lists the grouping keys; an
// empty GroupBy produces a single scalar result.
type Accumulation struct {
	Func     AccFunc
	Field    Field
	Distinct bool
	GroupBy  []Field
}

// Count counts matching records.
func Count() Accumulation { return Accumulation{Func: AccCount} }

// CountOf counts non-null values of f.
func CountOf(f FieldRef) Accumulation { return Accumulation{Func: AccCount, Field: f.Ref()} }

// DistinctValues lists the distinct values of f.
func DistinctValues(f FieldRef) Accumulation { return Accumulation{Func: AccDistinct, Field: f.Ref()} }

// Min finds the smallest value of f.
func Min(f FieldRef) Accumulation { return Accumulation{Func: AccMin, Field: f.Ref()} }

// Max finds the largest value of f.
func Max(f FieldRef) Accumulation { return Accumulation{Func: AccMax, Field: f.Ref()} }

// Avg averages f.
func Avg(f FieldRef) Accumulation { return Accumulation{Func: AccAvg, Field: f.Ref()} }

// Sum totals f.
func Sum(f FieldRef) Accumulation { return Accumulation{Func: AccSum, Field: f.Ref()} }

// WithDistinct aggregates over distinct values only.
func (a Accumulation) WithDistinct() Accumulation {
	a.Distinct = true
	return a
}

// GroupedBy adds grouping keys.
func (a Accumulation) GroupedBy(keys ...FieldRef) Accumulation {
	a.GroupBy = slices.Clone(a.GroupBy)
	for _, k := range keys {
		a.GroupBy = append(a.GroupBy, k.Ref())
	}
	return a
}

// CountAll reports whether a is COUNT(*).
func (a Accumulation) CountAll() bool {
	return a.Func == AccCount && a.Field.Name == ""
}

// Grouped reports whether a has grouping keys.
func (a Accumulation) Grouped() bool { return len(a.GroupBy) > 0 }

// ValueColumn names the aggregate result column.
const ValueColumn = "value"

// Columns describes the rows an accumulation yields: the grouping keys
// followed by the aggregate value, or the field itself for distinct values.
func (a Accumulation) Columns() []Field {
	if a.Func == AccDistinct {
		return []Field{a.Field}
	}
	out := slices.Clone(a.GroupBy)
	switch a.Func {
	case AccMin, AccMax:
		return append(out, Field{Name: ValueColumn, Domain: a.Field.Domain, Elem: a.Field.Elem})
	default:
		return append(out, Field{Name: ValueColumn, Domain: ir.DomainNumeric})
	}
}

func (a Accumulation) validate() error {
	if _, ok := accNames[a.Func]; !ok {
		return fault.InvalidQuery("unknown accumulation %s", a.Func)
	}
	if a.CountAll() {
		if a.Distinct {
			return fault.InvalidQuery("count(*) cannot be distinct")
		}
	} else if err := a.Field.Validate(); err != nil {
		return err
	}

	d := a.Field.Domain
	switch a.Func {
	case AccAvg, AccSum:
		if d != ir.DomainNumeric {
			return fault.InvalidQuery("%s needs a numeric field, %q is %s", a.Func, a.Field.Name, d)
		}
	case AccMin, AccMax:
		if d == ir.DomainBool || d == ir.DomainList {
			return fault.InvalidQuery("%s needs an ordered field, %q is %s", a.Func, a.Field.Name, d)
		}
	case AccDistinct:
		if d == ir.DomainList {
			return fault.InvalidQuery("distinct values of list field %q are not supported", a.Field.Name)
		}
		if a.Grouped() {
			return fault.InvalidQuery("distinct values cannot be grouped")
		}
	}
	if a.Distinct && a.Func != AccCount && a.Func != AccAvg && a.Func != AccSum {
		return fault.InvalidQuery("the distinct option applies to count, avg and sum, not %s", a.Func)
	}
	for _, k := range a.GroupBy {
		if err := k.Validate(); err != nil {
			return err
		}
		if k.Domain == ir.DomainList {
			return fault.InvalidQuery("cannot group by list field %q", k.Name)
		}
	}
	return nil
}

// Plan is an immutable, validated query. Plans only come from Builder.Build.
type Plan struct {
	source     string
	filter     Constraint
	sorts      []Sort
	skip       int
	limit      int
	hasLimit   bool
	acc        *Accumulation
	projection []Field
}

// Source returns the table or collection name.
func (p Plan) Source() string { return p.source }

// Filter returns the root constraint, or nil when every record matches.
func (p Plan) Filter() Constraint { return p.filter }

// Sorts returns the sort entries in builder order.
func (p Plan) Sorts() []Sort { return slices.Clone(p.sorts) }

// Skip returns the number of leading records to drop.
func (p Plan) Skip() int { return p.skip }

// Limit returns the maximum record count and whether one was set.
func (p Plan) Limit() (int, bool) { return p.limit, p.hasLimit }

// Accumulation returns the aggregation request, if any.
func (p Plan) Accumulation() (Accumulation, bool) {
	if p.acc == nil {
		return Accumulation{}, false
	}
	a := *p.acc
	a.GroupBy = slices.Clone(a.GroupBy)
	return a, true
}

// Projection returns the selected fields; empty means every column.
func (p Plan) Projection() []Field { return slices.Clone(p.projection) }

// Builder returns a builder seeded with p, for deriving related plans.
func (p Plan) Builder() *Builder {
	b := &Builder{plan: p}
	b.plan.sorts = slices.Clone(p.sorts)
	b.plan.projection = slices.Clone(p.projection)
	if p.acc != nil {
		acc, _ := p.Accumulation()
		b.plan.acc = &acc
	}
	return b
}
