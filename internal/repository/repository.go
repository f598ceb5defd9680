// Package repository expresses identity-keyed record operations over an
// executor. Every single-record operation is a one-constraint plan on the
// model's identity field.
package repository

import (
	"context"
	"fmt"

	"github.com/roach88/typewriter/internal/executor"
	"github.com/roach88/typewriter/internal/ir"
	"github.com/roach88/typewriter/internal/queryir"
)

// Mapping converts between a Go type and the records of a model.
//
// Encode returns one value per model field, in model field order.
type Mapping[M any] struct {
	Encode func(M) []ir.IRValue
	Decode func(executor.Record) (M, error)
}

// Repository stores values of M through an executor.
type Repository[M any] struct {
	exec    *executor.Executor
	mapping Mapping[M]
}

// New creates a repository over exec.
func New[M any](exec *executor.Executor, mapping Mapping[M]) *Repository[M] {
	return &Repository[M]{exec: exec, mapping: mapping}
}

// byID builds the plan that selects the record with the given identity.
func (r *Repository[M]) byID(id ir.IRValue) (queryir.Plan, error) {
	model := r.exec.Model()
	return model.Query().Filter(queryir.Check(model.Identity(), queryir.OpEq, id)).Build()
}

// Restore loads the record with the given identity. It reports false when
// there is none.
func (r *Repository[M]) Restore(ctx context.Context, id ir.IRValue) (M, bool, error) {
	var zero M
	p, err := r.byID(id)
	if err != nil {
		return zero, false, err
	}
	rec, ok, err := r.exec.First(ctx, p)
	if err != nil || !ok {
		return zero, false, err
	}
	m, err := r.mapping.Decode(rec)
	if err != nil {
		return zero, false, fmt.Errorf("restore %s: %w", ir.Format(id), err)
	}
	return m, true, nil
}

// Delete removes the record with the given identity and reports whether
// one existed.
func (r *Repository[M]) Delete(ctx context.Context, id ir.IRValue) (bool, error) {
	p, err := r.byID(id)
	if err != nil {
		return false, err
	}
	n, err := r.exec.Delete(ctx, p)
	return n > 0, err
}

// Save inserts m or replaces the stored record with the same identity.
func (r *Repository[M]) Save(ctx context.Context, m M) error {
	return r.exec.Save(ctx, executor.Record{
		Fields: r.exec.Model().Fields(),
		Values: r.mapping.Encode(m),
	})
}

// Update replaces the stored record with the identity of m. It reports
// false, and stores nothing, when no such record exists. The existence
// check and the write are separate calls.
func (r *Repository[M]) Update(ctx context.Context, m M) (bool, error) {
	values := r.mapping.Encode(m)
	if len(values) == 0 {
		return false, fmt.Errorf("update: mapping encoded no values")
	}
	// The identity field is stored first.
	p, err := r.byID(values[0])
	if err != nil {
		return false, err
	}
	found, err := r.exec.Exists(ctx, p)
	if err != nil || !found {
		return false, err
	}
	return true, r.Save(ctx, m)
}

// FindBy returns the records matching c in the order given by sorts.
func (r *Repository[M]) FindBy(ctx context.Context, c queryir.Constraint, sorts ...queryir.Sort) ([]M, error) {
	b := r.exec.Model().Query().Filter(c)
	for _, s := range sorts {
		b.SortBy(s.Field, s.Direction)
	}
	p, err := b.Build()
	if err != nil {
		return nil, err
	}
	var out []M
	for rec, err := range r.exec.Execute(ctx, p) {
		if err != nil {
			return nil, err
		}
		m, err := r.mapping.Decode(rec)
		if err != nil {
			return nil, fmt.Errorf("find %s: %w", p.Source(), err)
		}
		out = append(out, m)
	}
	return out, nil
}
