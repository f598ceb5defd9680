package field

import (
	"github.com/roach88/typewriter/internal/ir"
	"github.com/roach88/typewriter/internal/queryir"
)

// List is a field holding an ordered list of E.
type List[E any] struct {
	ref  queryir.Field
	conv func(E) ir.IRValue
}

func newList[E any](name string, elem ir.Domain, conv func(E) ir.IRValue) List[E] {
	return List[E]{ref: queryir.Field{Name: name, Domain: ir.DomainList, Elem: elem}, conv: conv}
}

// NewStringList declares a list of strings.
func NewStringList(name string) List[string] {
	return newList(name, ir.DomainString, func(s string) ir.IRValue { return ir.IRString(s) })
}

// NewIntList declares a list of integers.
func NewIntList(name string) List[int64] {
	return newList(name, ir.DomainNumeric, func(n int64) ir.IRValue { return ir.IRInt(n) })
}

// NewFloatList declares a list of floating point numbers.
func NewFloatList(name string) List[float64] {
	return newList(name, ir.DomainNumeric, func(f float64) ir.IRValue { return ir.IRFloat(f) })
}

// NewBoolList declares a list of booleans.
func NewBoolList(name string) List[bool] {
	return newList(name, ir.DomainBool, func(b bool) ir.IRValue { return ir.IRBool(b) })
}

// Ref implements queryir.FieldRef.
func (f List[E]) Ref() queryir.Field { return f.ref }

// Name returns the storage name.
func (f List[E]) Name() string { return f.ref.Name }

// Value converts elems to a list value.
func (f List[E]) Value(elems ...E) ir.IRList {
	out := make(ir.IRList, len(elems))
	for i, e := range elems {
		out[i] = f.conv(e)
	}
	return out
}

// Contains matches lists holding v.
func (f List[E]) Contains(v E) queryir.Constraint {
	return queryir.Check(f.ref, queryir.OpListContains, f.conv(v))
}

// SizeEq matches lists of exactly n elements.
func (f List[E]) SizeEq(n int) queryir.Constraint {
	return queryir.Check(f.ref, queryir.OpSizeEq, ir.IRInt(n))
}

// SizeGt matches lists of more than n elements.
func (f List[E]) SizeGt(n int) queryir.Constraint {
	return queryir.Check(f.ref, queryir.OpSizeGt, ir.IRInt(n))
}

// IsEmpty matches empty lists.
func (f List[E]) IsEmpty() queryir.Constraint { return f.SizeEq(0) }

// IsNull matches absent values.
func (f List[E]) IsNull() queryir.Constraint { return queryir.Check(f.ref, queryir.OpIsNull) }

// IsNotNull matches present values.
func (f List[E]) IsNotNull() queryir.Constraint { return queryir.Check(f.ref, queryir.OpIsNotNull) }
