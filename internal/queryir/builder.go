package queryir

import (
	"slices"

	"github.com/roach88/typewriter/internal/fault"
)

// Builder assembles a Plan. It is owned by a single goroutine; every check
// runs in Build.
type Builder struct {
	plan Plan
}

// From starts a plan over the given table or collection.
func From(source string) *Builder {
	return &Builder{plan: Plan{source: source}}
}

// Filter ANDs c with the existing root constraint.
func (b *Builder) Filter(c Constraint) *Builder {
	if b.plan.filter == nil {
		b.plan.filter = c
	} else {
		b.plan.filter = And(b.plan.filter, c)
	}
	return b
}

// SortBy appends a sort entry. Earlier entries take precedence.
func (b *Builder) SortBy(f FieldRef, dir Direction) *Builder {
	b.plan.sorts = append(b.plan.sorts, Sort{Field: f.Ref(), Direction: dir})
	return b
}

// Skip drops the first n records. The last call wins.
func (b *Builder) Skip(n int) *Builder {
	b.plan.skip = n
	return b
}

// Limit caps the record count. The last call wins; zero yields no records.
func (b *Builder) Limit(n int) *Builder {
	b.plan.limit = n
	b.plan.hasLimit = true
	return b
}

// Accumulate requests an aggregation instead of records.
func (b *Builder) Accumulate(acc Accumulation) *Builder {
	acc.GroupBy = slices.Clone(acc.GroupBy)
	b.plan.acc = &acc
	return b
}

// Select restricts retrieved records to the given fields.
func (b *Builder) Select(fields ...FieldRef) *Builder {
	for _, f := range fields {
		b.plan.projection = append(b.plan.projection, f.Ref())
	}
	return b
}

// Build validates the collected request and returns an immutable Plan.
func (b *Builder) Build() (Plan, error) {
	p := b.plan

	if p.source == "" {
		return Plan{}, fault.InvalidQuery("plan has no source")
	}
	if p.skip < 0 {
		return Plan{}, fault.InvalidQuery("skip %d is negative", p.skip)
	}
	if p.hasLimit && p.limit < 0 {
		return Plan{}, fault.InvalidQuery("limit %d is negative", p.limit)
	}
	if p.filter != nil {
		if err := checkTree(p.filter); err != nil {
			return Plan{}, err
		}
	}
	for _, s := range p.sorts {
		if err := s.Field.Validate(); err != nil {
			return Plan{}, err
		}
	}
	for _, f := range p.projection {
		if err := f.Validate(); err != nil {
			return Plan{}, err
		}
	}
	if p.acc != nil {
		if len(p.projection) > 0 {
			return Plan{}, fault.InvalidQuery("accumulation cannot be combined with a field selection")
		}
		if err := p.acc.validate(); err != nil {
			return Plan{}, err
		}
		if len(p.sorts) > 0 && !p.acc.Grouped() {
			return Plan{}, fault.InvalidQuery("an ungrouped accumulation cannot be sorted")
		}
		for _, s := range p.sorts {
			if !slices.ContainsFunc(p.acc.GroupBy, func(k Field) bool { return k.Name == s.Field.Name }) {
				return Plan{}, fault.InvalidQuery("sort field %q is not a grouping key", s.Field.Name)
			}
		}
	}

	out := p
	out.sorts = slices.Clone(p.sorts)
	out.projection = slices.Clone(p.projection)
	if p.acc != nil {
		acc := *p.acc
		acc.GroupBy = slices.Clone(p.acc.GroupBy)
		out.acc = &acc
	}
	return out, nil
}
