package field

import (
	"github.com/roach88/typewriter/internal/ir"
	"github.com/roach88/typewriter/internal/queryir"
)

// String is a text field.
type String struct {
	ref queryir.Field
}

// NewString declares a text field.
func NewString(name string) String {
	return String{ref: queryir.Field{Name: name, Domain: ir.DomainString}}
}

// Ref implements queryir.FieldRef.
func (f String) Ref() queryir.Field { return f.ref }

// Name returns the storage name.
func (f String) Name() string { return f.ref.Name }

func (f String) text(op queryir.Op, s string) queryir.Constraint {
	return queryir.Check(f.ref, op, ir.IRString(s))
}

func (f String) length(op queryir.Op, n int) queryir.Constraint {
	return queryir.Check(f.ref, op, ir.IRInt(n))
}

// Eq matches s exactly.
func (f String) Eq(s string) queryir.Constraint { return f.text(queryir.OpEq, s) }

// Ne matches anything but s.
func (f String) Ne(s string) queryir.Constraint { return f.text(queryir.OpNe, s) }

// In matches any of ss.
func (f String) In(ss ...string) queryir.Constraint {
	vals := make([]ir.IRValue, len(ss))
	for i, s := range ss {
		vals[i] = ir.IRString(s)
	}
	return queryir.Check(f.ref, queryir.OpIn, vals...)
}

// Like matches a pattern where % is any run of characters and _ is exactly
// one character. Matching is case sensitive.
func (f String) Like(pattern string) queryir.Constraint { return f.text(queryir.OpLike, pattern) }

// StartsWith matches values with the literal prefix.
func (f String) StartsWith(prefix string) queryir.Constraint {
	return f.text(queryir.OpStartsWith, prefix)
}

// Contains matches values containing the literal substring.
func (f String) Contains(sub string) queryir.Constraint { return f.text(queryir.OpContains, sub) }

// Regex matches values against an RE2 expression.
func (f String) Regex(expr string) queryir.Constraint { return f.text(queryir.OpRegex, expr) }

// IsEmpty matches the empty string.
func (f String) IsEmpty() queryir.Constraint { return f.Eq("") }

// IsNotEmpty matches any non-empty string.
func (f String) IsNotEmpty() queryir.Constraint { return f.Ne("") }

// LengthLt matches values shorter than n characters.
func (f String) LengthLt(n int) queryir.Constraint { return f.length(queryir.OpLengthLt, n) }

// LengthLte matches values of at most n characters.
func (f String) LengthLte(n int) queryir.Constraint { return f.length(queryir.OpLengthLte, n) }

// LengthGt matches values longer than n characters.
func (f String) LengthGt(n int) queryir.Constraint { return f.length(queryir.OpLengthGt, n) }

// LengthGte matches values of at least n characters.
func (f String) LengthGte(n int) queryir.Constraint { return f.length(queryir.OpLengthGte, n) }

// IsNull matches absent values.
func (f String) IsNull() queryir.Constraint { return queryir.Check(f.ref, queryir.OpIsNull) }

// IsNotNull matches present values.
func (f String) IsNotNull() queryir.Constraint { return queryir.Check(f.ref, queryir.OpIsNotNull) }

// Bool is a boolean field.
type Bool struct {
	ref queryir.Field
}

// NewBool declares a boolean field.
func NewBool(name string) Bool {
	return Bool{ref: queryir.Field{Name: name, Domain: ir.DomainBool}}
}

// Ref implements queryir.FieldRef.
func (f Bool) Ref() queryir.Field { return f.ref }

// Name returns the storage name.
func (f Bool) Name() string { return f.ref.Name }

// Eq matches b.
func (f Bool) Eq(b bool) queryir.Constraint {
	return queryir.Check(f.ref, queryir.OpEq, ir.IRBool(b))
}

// Ne matches the opposite of b. Nulls never match.
func (f Bool) Ne(b bool) queryir.Constraint {
	return queryir.Check(f.ref, queryir.OpNe, ir.IRBool(b))
}

// IsTrue matches true.
func (f Bool) IsTrue() queryir.Constraint { return f.Eq(true) }

// IsFalse matches false.
func (f Bool) IsFalse() queryir.Constraint { return f.Eq(false) }

// IsNull matches absent values.
func (f Bool) IsNull() queryir.Constraint { return queryir.Check(f.ref, queryir.OpIsNull) }

// IsNotNull matches present values.
func (f Bool) IsNotNull() queryir.Constraint { return queryir.Check(f.ref, queryir.OpIsNotNull) }

// Char is a single-character field.
type Char struct {
	ref queryir.Field
}

// NewChar declares a single-character field.
func NewChar(name string) Char {
	return Char{ref: queryir.Field{Name: name, Domain: ir.DomainChar}}
}

// Ref implements queryir.FieldRef.
func (f Char) Ref() queryir.Field { return f.ref }

// Name returns the storage name.
func (f Char) Name() string { return f.ref.Name }

// Eq matches c.
func (f Char) Eq(c rune) queryir.Constraint {
	return queryir.Check(f.ref, queryir.OpEq, ir.IRChar(c))
}

// Ne matches anything but c.
func (f Char) Ne(c rune) queryir.Constraint {
	return queryir.Check(f.ref, queryir.OpNe, ir.IRChar(c))
}

// In matches any of cs.
func (f Char) In(cs ...rune) queryir.Constraint {
	vals := make([]ir.IRValue, len(cs))
	for i, c := range cs {
		vals[i] = ir.IRChar(c)
	}
	return queryir.Check(f.ref, queryir.OpIn, vals...)
}

// IsNull matches absent values.
func (f Char) IsNull() queryir.Constraint { return queryir.Check(f.ref, queryir.OpIsNull) }

// IsNotNull matches present values.
func (f Char) IsNotNull() queryir.Constraint { return queryir.Check(f.ref, queryir.OpIsNotNull) }
