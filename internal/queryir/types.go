package queryir

import (
	"fmt"
	"math"
	"regexp"
	"slices"

	"github.com/roach88/typewriter/internal/fault"
	"github.com/roach88/typewriter/internal/ir"
)

// Field is the untyped reference to a model field: its storage name and
// value domain. List fields also carry their element domain.
type Field struct {
	Name   string
	Domain ir.Domain
	Elem   ir.Domain
}

// Ref implements FieldRef.
func (f Field) Ref() Field { return f }

func (f Field) String() string {
	if f.Domain == ir.DomainList {
		return fmt.Sprintf("%s:list<%s>", f.Name, f.Elem)
	}
	return fmt.Sprintf("%s:%s", f.Name, f.Domain)
}

// Validate checks that f names a field of a known domain.
func (f Field) Validate() error {
	if f.Name == "" {
		return fault.InvalidQuery("field name is empty")
	}
	if !slices.Contains(ir.AllDomains, f.Domain) {
		return fault.InvalidQuery("field %q has unknown domain %s", f.Name, f.Domain)
	}
	if f.Domain == ir.DomainList {
		if f.Elem == ir.DomainInvalid || f.Elem == ir.DomainList {
			return fault.InvalidQuery("list field %q has invalid element domain %s", f.Name, f.Elem)
		}
	}
	return nil
}

// FieldRef is anything that refers to a field. Typed fields and Field itself
// implement it.
type FieldRef interface {
	Ref() Field
}

// Constraint is a node of a filter tree.
//
// This is a sealed interface - only *Leaf and *Composite implement it, plus
// an internal node that carries a construction error to Builder.Build.
type Constraint interface {
	constraintNode() // Marker method - seals interface to this package
}

// Leaf is a single {field, operator, operands} constraint.
// Leaves are immutable; accessors return copies.
type Leaf struct {
	field    Field
	op       Op
	operands []ir.IRValue
}

func (*Leaf) constraintNode() {}

// Field returns the constrained field.
func (l *Leaf) Field() Field { return l.field }

// Op returns the operator.
func (l *Leaf) Op() Op { return l.op }

// Operands returns a copy of the operands in declaration order.
func (l *Leaf) Operands() []ir.IRValue { return slices.Clone(l.operands) }

// Operand returns the i-th operand.
func (l *Leaf) Operand(i int) ir.IRValue { return l.operands[i] }

// NumOperands returns the operand count.
func (l *Leaf) NumOperands() int { return len(l.operands) }

// Combinator is the logical connective of a Composite.
type Combinator uint8

const (
	CombineAnd Combinator = iota + 1
	CombineOr
	CombineNot
)

func (c Combinator) String() string {
	switch c {
	case CombineAnd:
		return "AND"
	case CombineOr:
		return "OR"
	case CombineNot:
		return "NOT"
	default:
		return fmt.Sprintf("Combinator(%d)", uint8(c))
	}
}

// Composite is an AND, OR or NOT node. NOT has exactly one child.
type Composite struct {
	kind     Combinator
	children []Constraint
}

func (*Composite) constraintNode() {}

// Kind returns the connective.
func (c *Composite) Kind() Combinator { return c.kind }

// Children returns a copy of the child constraints in declaration order.
func (c *Composite) Children() []Constraint { return slices.Clone(c.children) }

// invalidNode carries a construction error until Build reports it.
type invalidNode struct {
	err error
}

func (*invalidNode) constraintNode() {}

// And requires every child to hold.
func And(first, second Constraint, rest ...Constraint) Constraint {
	return &Composite{kind: CombineAnd, children: append([]Constraint{first, second}, rest...)}
}

// Or requires at least one child to hold.
func Or(first, second Constraint, rest ...Constraint) Constraint {
	return &Composite{kind: CombineOr, children: append([]Constraint{first, second}, rest...)}
}

// Not negates c.
func Not(c Constraint) Constraint {
	return &Composite{kind: CombineNot, children: []Constraint{c}}
}

// NewLeaf builds a leaf, checking the operator against LegalOps and every
// operand against the field domain.
func NewLeaf(f FieldRef, op Op, operands ...ir.IRValue) (*Leaf, error) {
	fld := f.Ref()
	if err := fld.Validate(); err != nil {
		return nil, err
	}
	info, ok := opTable[op]
	if !ok {
		return nil, fault.InvalidQuery("unknown operator %s", op)
	}
	if !IsLegal(fld.Domain, op) {
		return nil, fault.InvalidQuery("operator %s is not legal for %s field %q", op, fld.Domain, fld.Name)
	}
	if err := checkArity(fld, op, info.arity, operands); err != nil {
		return nil, err
	}
	return &Leaf{field: fld, op: op, operands: slices.Clone(operands)}, nil
}

// Check is NewLeaf for the typed field API: a construction error is carried
// in the returned node and reported by Builder.Build.
func Check(f FieldRef, op Op, operands ...ir.IRValue) Constraint {
	l, err := NewLeaf(f, op, operands...)
	if err != nil {
		return &invalidNode{err: err}
	}
	return l
}

func checkArity(f Field, op Op, a arity, operands []ir.IRValue) error {
	want := func(n int) error {
		if len(operands) != n {
			return fault.InvalidQuery("operator %s on %q takes %d operand(s), got %d", op, f.Name, n, len(operands))
		}
		return nil
	}

	switch a {
	case arityNone:
		return want(0)
	case arityOne, arityTwo:
		n := 1
		if a == arityTwo {
			n = 2
		}
		if err := want(n); err != nil {
			return err
		}
		return checkOperands(f, op, f.Domain, operands)
	case arityMany:
		if len(operands) == 0 {
			return fault.InvalidQuery("operator %s on %q needs at least one operand", op, f.Name)
		}
		return checkOperands(f, op, f.Domain, operands)
	case arityPattern:
		if err := want(1); err != nil {
			return err
		}
		s, ok := operands[0].(ir.IRString)
		if !ok {
			return fault.InvalidQuery("operator %s on %q takes a string pattern, got %T", op, f.Name, operands[0])
		}
		if op == OpRegex {
			if _, err := regexp.Compile(string(s)); err != nil {
				return fault.InvalidQuery("regex on %q: %v", f.Name, err)
			}
		}
		return nil
	case arityCount:
		if err := want(1); err != nil {
			return err
		}
		n, ok := operands[0].(ir.IRInt)
		if !ok || n < 0 {
			return fault.InvalidQuery("operator %s on %q takes a non-negative integer, got %s", op, f.Name, ir.Format(operands[0]))
		}
		return nil
	case arityElem:
		if err := want(1); err != nil {
			return err
		}
		return checkOperands(f, op, f.Elem, operands)
	default:
		return fault.InvalidQuery("operator %s has no operand rule", op)
	}
}

func checkOperands(f Field, op Op, d ir.Domain, operands []ir.IRValue) error {
	for i, v := range operands {
		if ir.IsNull(v) {
			return fault.InvalidQuery("operand %d of %s on %q is null, use isNull", i, op, f.Name)
		}
		if v.Domain() != d {
			return fault.InvalidQuery("operand %d of %s on %q is %s, field is %s", i, op, f.Name, v.Domain(), d)
		}
		if fv, ok := v.(ir.IRFloat); ok && (math.IsNaN(float64(fv)) || math.IsInf(float64(fv), 0)) {
			return fault.InvalidQuery("operand %d of %s on %q is not finite", i, op, f.Name)
		}
	}
	return nil
}

// Walk visits c depth-first, left to right. Visiting stops at the first
// error fn returns.
func Walk(c Constraint, fn func(Constraint) error) error {
	if err := fn(c); err != nil {
		return err
	}
	if comp, ok := c.(*Composite); ok {
		for _, child := range comp.children {
			if err := Walk(child, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkTree reports nil nodes, malformed composites and deferred leaf errors.
func checkTree(c Constraint) error {
	return Walk(c, func(node Constraint) error {
		switch n := node.(type) {
		case nil:
			return fault.InvalidQuery("constraint tree contains a nil node")
		case *Leaf:
			if n == nil {
				return fault.InvalidQuery("constraint tree contains a nil leaf")
			}
		case *Composite:
			if n == nil {
				return fault.InvalidQuery("constraint tree contains a nil composite")
			}
			switch {
			case n.kind == CombineNot && len(n.children) != 1:
				return fault.InvalidQuery("NOT takes exactly one child, got %d", len(n.children))
			case n.kind != CombineNot && len(n.children) < 2:
				return fault.InvalidQuery("%s takes at least two children, got %d", n.kind, len(n.children))
			}
		case *invalidNode:
			return n.err
		default:
			return fault.InvalidQuery("unknown constraint node %T", node)
		}
		return nil
	})
}
