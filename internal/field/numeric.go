package field

import (
	"reflect"

	"github.com/roach88/typewriter/internal/ir"
	"github.com/roach88/typewriter/internal/queryir"
)

// Number is the set of Go types a numeric field may hold.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 |
		~float32 | ~float64
}

// Numeric is a numeric field.
type Numeric[N Number] struct {
	ref queryir.Field
}

// NewNumeric declares a numeric field.
func NewNumeric[N Number](name string) Numeric[N] {
	return Numeric[N]{ref: queryir.Field{Name: name, Domain: ir.DomainNumeric}}
}

// Ref implements queryir.FieldRef.
func (f Numeric[N]) Ref() queryir.Field { return f.ref }

// Name returns the storage name.
func (f Numeric[N]) Name() string { return f.ref.Name }

// Value converts v to its IR form. Integral kinds become ir.IRInt and
// floating kinds ir.IRFloat.
func (f Numeric[N]) Value(v N) ir.IRValue { return numericValue(v) }

func numericValue[N Number](v N) ir.IRValue {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return ir.IRFloat(rv.Float())
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return ir.IRInt(rv.Uint())
	default:
		return ir.IRInt(rv.Int())
	}
}

func numericValues[N Number](vs []N) []ir.IRValue {
	out := make([]ir.IRValue, len(vs))
	for i, v := range vs {
		out[i] = numericValue(v)
	}
	return out
}

// Eq matches values equal to v.
func (f Numeric[N]) Eq(v N) queryir.Constraint {
	return queryir.Check(f.ref, queryir.OpEq, numericValue(v))
}

// Ne matches values other than v. Nulls never match.
func (f Numeric[N]) Ne(v N) queryir.Constraint {
	return queryir.Check(f.ref, queryir.OpNe, numericValue(v))
}

// Gt matches values greater than v.
func (f Numeric[N]) Gt(v N) queryir.Constraint {
	return queryir.Check(f.ref, queryir.OpGt, numericValue(v))
}

// Gte matches values greater than or equal to v.
func (f Numeric[N]) Gte(v N) queryir.Constraint {
	return queryir.Check(f.ref, queryir.OpGte, numericValue(v))
}

// Lt matches values less than v.
func (f Numeric[N]) Lt(v N) queryir.Constraint {
	return queryir.Check(f.ref, queryir.OpLt, numericValue(v))
}

// Lte matches values less than or equal to v.
func (f Numeric[N]) Lte(v N) queryir.Constraint {
	return queryir.Check(f.ref, queryir.OpLte, numericValue(v))
}

// Between matches values in the closed range [lo, hi].
func (f Numeric[N]) Between(lo, hi N) queryir.Constraint {
	return queryir.Check(f.ref, queryir.OpBetween, numericValue(lo), numericValue(hi))
}

// In matches any of vs.
func (f Numeric[N]) In(vs ...N) queryir.Constraint {
	return queryir.Check(f.ref, queryir.OpIn, numericValues(vs)...)
}

// IsNull matches absent values.
func (f Numeric[N]) IsNull() queryir.Constraint {
	return queryir.Check(f.ref, queryir.OpIsNull)
}

// IsNotNull matches present values.
func (f Numeric[N]) IsNotNull() queryir.Constraint {
	return queryir.Check(f.ref, queryir.OpIsNotNull)
}
