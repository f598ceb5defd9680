// Package planfile reads queries written as YAML and builds them into
// validated plans. Operands are typed by the fields the plan resolves
// against, either a declared model or the plan's inline fields map.
package planfile

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/typewriter/internal/config"
	"github.com/roach88/typewriter/internal/fault"
	"github.com/roach88/typewriter/internal/field"
	"github.com/roach88/typewriter/internal/ir"
	"github.com/roach88/typewriter/internal/queryir"
)

// PlanFile is a query written as YAML.
//
//	model: person
//	where:
//	  and:
//	    - {field: age, op: gte, value: 18}
//	    - not: {field: name, op: startsWith, value: x}
//	sort: [{field: name, dir: desc}]
//	limit: 10
//
// Fields are resolved against the named model of the config file, or
// against an inline fields map when the plan declares its own source.
type PlanFile struct {
	Model      string            `yaml:"model"`
	Source     string            `yaml:"source"`
	Fields     map[string]string `yaml:"fields"`
	Where      *ConstraintNode   `yaml:"where"`
	Sort       []SortEntry       `yaml:"sort"`
	Skip       int               `yaml:"skip"`
	Limit      *int              `yaml:"limit"`
	Select     []string          `yaml:"select"`
	Accumulate *AccumulateEntry  `yaml:"accumulate"`
}

// ConstraintNode is one node of a plan file filter. Exactly one of And, Or,
// Not or Field is set.
type ConstraintNode struct {
	And   []ConstraintNode `yaml:"and"`
	Or    []ConstraintNode `yaml:"or"`
	Not   *ConstraintNode  `yaml:"not"`
	Field string           `yaml:"field"`
	Op    string           `yaml:"op"`
	Value any              `yaml:"value"`
}

// SortEntry is one sort key.
type SortEntry struct {
	Field string `yaml:"field"`
	Dir   string `yaml:"dir"`
}

// AccumulateEntry is the accumulation of a plan file. An empty Field with
// func count counts records.
type AccumulateEntry struct {
	Func     string   `yaml:"func"`
	Field    string   `yaml:"field"`
	Distinct bool     `yaml:"distinct"`
	GroupBy  []string `yaml:"group_by"`
}

// Decode reads one plan file from r. Unknown keys are rejected. An empty
// document yields an error wrapping io.EOF.
func Decode(r io.Reader) (*PlanFile, error) {
	var pf PlanFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil {
		return nil, err
	}
	return &pf, nil
}

// Parse decodes a plan file held in memory.
func Parse(data []byte) (*PlanFile, error) {
	return Decode(bytes.NewReader(data))
}

// Schema is the source and the fields a plan is built against.
type Schema struct {
	Source string
	Lookup func(name string) (queryir.Field, bool)
}

// InlineSchema builds the schema a plan declares for itself.
func (pf *PlanFile) InlineSchema() (Schema, error) {
	if pf.Source == "" {
		return Schema{}, fmt.Errorf("a plan with inline fields needs a source")
	}
	fields := make(map[string]queryir.Field, len(pf.Fields))
	for name, typ := range pf.Fields {
		f, err := field.Parse(name, typ)
		if err != nil {
			return Schema{}, err
		}
		fields[name] = f
	}
	return Schema{
		Source: pf.Source,
		Lookup: func(name string) (queryir.Field, bool) {
			f, ok := fields[name]
			return f, ok
		},
	}, nil
}

// ModelSchema builds the schema of a declared model.
func ModelSchema(m *field.Model) Schema {
	return Schema{Source: m.Source(), Lookup: m.Lookup}
}

// ResolveSchema picks the inline schema when the plan declares fields and
// the config model otherwise. model overrides the plan's model key.
func (pf *PlanFile) ResolveSchema(cfg *config.Config, model string) (Schema, *field.Model, error) {
	if len(pf.Fields) > 0 {
		s, err := pf.InlineSchema()
		return s, nil, err
	}
	if model == "" {
		model = pf.Model
	}
	if model == "" {
		return Schema{}, nil, fmt.Errorf("plan names no model and declares no fields")
	}
	if cfg == nil {
		return Schema{}, nil, fmt.Errorf("model %q needs a config file", model)
	}
	m, err := cfg.BuildModel(model, nil)
	if err != nil {
		return Schema{}, nil, err
	}
	if pf.Source != "" && pf.Source != m.Source() {
		return Schema{}, nil, fmt.Errorf("plan source %q is not the source %q of model %s", pf.Source, m.Source(), model)
	}
	return ModelSchema(m), m, nil
}

// Build turns the plan file into a validated plan. Every failure is an
// invalid query.
func (pf *PlanFile) Build(s Schema) (queryir.Plan, error) {
	p, err := pf.build(s)
	if err != nil && fault.CodeOf(err) == fault.CodeUnknown {
		return queryir.Plan{}, fault.InvalidQuery("%v", err)
	}
	return p, err
}

func (pf *PlanFile) build(s Schema) (queryir.Plan, error) {
	lookup := func(name string) (queryir.Field, error) {
		f, ok := s.Lookup(name)
		if !ok {
			return queryir.Field{}, fmt.Errorf("unknown field %q", name)
		}
		return f, nil
	}

	b := queryir.From(s.Source)
	if pf.Where != nil {
		c, err := pf.Where.constraint(lookup)
		if err != nil {
			return queryir.Plan{}, fmt.Errorf("where: %w", err)
		}
		b.Filter(c)
	}
	for i, e := range pf.Sort {
		f, err := lookup(e.Field)
		if err != nil {
			return queryir.Plan{}, fmt.Errorf("sort[%d]: %w", i, err)
		}
		dir, err := queryir.ParseDirection(e.Dir)
		if err != nil {
			return queryir.Plan{}, fmt.Errorf("sort[%d]: %w", i, err)
		}
		b.SortBy(f, dir)
	}
	if pf.Skip != 0 {
		b.Skip(pf.Skip)
	}
	if pf.Limit != nil {
		b.Limit(*pf.Limit)
	}
	if len(pf.Select) > 0 {
		refs := make([]queryir.FieldRef, len(pf.Select))
		for i, name := range pf.Select {
			f, err := lookup(name)
			if err != nil {
				return queryir.Plan{}, fmt.Errorf("select: %w", err)
			}
			refs[i] = f
		}
		b.Select(refs...)
	}
	if pf.Accumulate != nil {
		acc, err := pf.Accumulate.accumulation(lookup)
		if err != nil {
			return queryir.Plan{}, fmt.Errorf("accumulate: %w", err)
		}
		b.Accumulate(acc)
	}
	return b.Build()
}

func (a *AccumulateEntry) accumulation(lookup func(string) (queryir.Field, error)) (queryir.Accumulation, error) {
	fn, err := queryir.ParseAccFunc(a.Func)
	if err != nil {
		return queryir.Accumulation{}, err
	}
	acc := queryir.Accumulation{Func: fn, Distinct: a.Distinct}
	if a.Field != "" {
		if acc.Field, err = lookup(a.Field); err != nil {
			return queryir.Accumulation{}, err
		}
	}
	for _, name := range a.GroupBy {
		k, err := lookup(name)
		if err != nil {
			return queryir.Accumulation{}, err
		}
		acc.GroupBy = append(acc.GroupBy, k)
	}
	return acc, nil
}

func (n *ConstraintNode) constraint(lookup func(string) (queryir.Field, error)) (queryir.Constraint, error) {
	set := 0
	for _, present := range []bool{n.And != nil, n.Or != nil, n.Not != nil, n.Field != ""} {
		if present {
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("a node needs exactly one of and, or, not, field")
	}

	switch {
	case n.Not != nil:
		c, err := n.Not.constraint(lookup)
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		return queryir.Not(c), nil
	case n.And != nil, n.Or != nil:
		kind, nodes := "and", n.And
		if n.Or != nil {
			kind, nodes = "or", n.Or
		}
		if len(nodes) < 2 {
			return nil, fmt.Errorf("%s needs at least two constraints", kind)
		}
		children := make([]queryir.Constraint, len(nodes))
		for i := range nodes {
			c, err := nodes[i].constraint(lookup)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", kind, i, err)
			}
			children[i] = c
		}
		if kind == "and" {
			return queryir.And(children[0], children[1], children[2:]...), nil
		}
		return queryir.Or(children[0], children[1], children[2:]...), nil
	}

	f, err := lookup(n.Field)
	if err != nil {
		return nil, err
	}
	op, err := queryir.ParseOp(n.Op)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", n.Field, err)
	}
	operands, err := operands(f, op, n.Value)
	if err != nil {
		return nil, fmt.Errorf("field %s %s: %w", n.Field, op, err)
	}
	leaf, err := queryir.NewLeaf(f, op, operands...)
	if err != nil {
		return nil, err
	}
	return leaf, nil
}

// operands converts the YAML value of a leaf to the operands op takes.
func operands(f queryir.Field, op queryir.Op, raw any) ([]ir.IRValue, error) {
	switch op {
	case queryir.OpIsNull, queryir.OpIsNotNull:
		if raw != nil {
			return nil, fmt.Errorf("takes no value")
		}
		return nil, nil
	case queryir.OpBetween, queryir.OpIn:
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("value must be a list")
		}
		if op == queryir.OpBetween && len(list) != 2 {
			return nil, fmt.Errorf("value must hold a lower and an upper bound")
		}
		out := make([]ir.IRValue, len(list))
		for i, elem := range list {
			v, err := scalarValue(f.Domain, elem)
			if err != nil {
				return nil, fmt.Errorf("value[%d]: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	case queryir.OpLike, queryir.OpStartsWith, queryir.OpContains, queryir.OpRegex:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("pattern must be a string")
		}
		return []ir.IRValue{ir.IRString(s)}, nil
	case queryir.OpLengthLt, queryir.OpLengthLte, queryir.OpLengthGt, queryir.OpLengthGte,
		queryir.OpSizeEq, queryir.OpSizeGt:
		n, ok := raw.(int)
		if !ok {
			return nil, fmt.Errorf("count must be an integer")
		}
		return []ir.IRValue{ir.IRInt(n)}, nil
	case queryir.OpListContains:
		v, err := scalarValue(f.Elem, raw)
		if err != nil {
			return nil, err
		}
		return []ir.IRValue{v}, nil
	default:
		v, err := scalarValue(f.Domain, raw)
		if err != nil {
			return nil, err
		}
		return []ir.IRValue{v}, nil
	}
}

// Value converts a YAML value to a value of f. Null reads as IRNull and a
// list field takes a YAML sequence of its element domain.
func Value(f queryir.Field, raw any) (ir.IRValue, error) {
	if raw == nil {
		return ir.IRNull{}, nil
	}
	if f.Domain != ir.DomainList {
		return scalarValue(f.Domain, raw)
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%v (%T) is not a list", raw, raw)
	}
	elems := make([]ir.IRValue, len(list))
	for i, elem := range list {
		v, err := scalarValue(f.Elem, elem)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		elems[i] = v
	}
	return ir.NewIRList(elems...), nil
}

// scalarValue converts one YAML scalar to a value of domain d.
func scalarValue(d ir.Domain, raw any) (ir.IRValue, error) {
	if raw == nil {
		return nil, fmt.Errorf("null is not a value, use isNull")
	}
	switch d {
	case ir.DomainNumeric:
		switch n := raw.(type) {
		case int:
			return ir.IRInt(n), nil
		case int64:
			return ir.IRInt(n), nil
		case uint64:
			if n > 1<<63-1 {
				return nil, fmt.Errorf("%d overflows int64", n)
			}
			return ir.IRInt(int64(n)), nil
		case float64:
			return ir.NewIRFloat(n)
		}
	case ir.DomainString:
		if s, ok := raw.(string); ok {
			return ir.IRString(s), nil
		}
	case ir.DomainBool:
		if b, ok := raw.(bool); ok {
			return ir.IRBool(b), nil
		}
	case ir.DomainChar:
		if s, ok := raw.(string); ok {
			r := []rune(s)
			if len(r) != 1 {
				return nil, fmt.Errorf("char %q must be exactly one character", s)
			}
			return ir.IRChar(r[0]), nil
		}
	default:
		if d.IsTemporal() {
			return temporalValue(d, raw)
		}
	}
	return nil, fmt.Errorf("%v (%T) is not a %s value", raw, raw, d)
}

var temporalLayouts = map[ir.Domain][]string{
	ir.DomainDate:           {time.RFC3339Nano, time.DateOnly},
	ir.DomainLocalDate:      {time.DateOnly},
	ir.DomainLocalTime:      {time.TimeOnly},
	ir.DomainLocalDateTime:  {"2006-01-02T15:04:05", time.DateTime},
	ir.DomainOffsetDateTime: {time.RFC3339Nano},
	ir.DomainZonedDateTime:  {time.RFC3339Nano},
}

func temporalValue(d ir.Domain, raw any) (ir.IRValue, error) {
	switch v := raw.(type) {
	case time.Time:
		return ir.NewTime(d, v)
	case string:
		for _, layout := range temporalLayouts[d] {
			if t, err := time.Parse(layout, v); err == nil {
				return ir.NewTime(d, t)
			}
		}
		return nil, fmt.Errorf("cannot read %q as %s", v, d)
	default:
		return nil, fmt.Errorf("%v (%T) is not a %s value", raw, raw, d)
	}
}
