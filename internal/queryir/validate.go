package queryir

import (
	"fmt"

	"github.com/roach88/typewriter/internal/fault"
)

// Subset is the set of operators a backend family evaluates with the same
// semantics as every other backend.
type Subset struct {
	Name string
	Ops  map[Op]bool
}

// Allows reports whether op is in the subset.
func (s Subset) Allows(op Op) bool { return s.Ops[op] }

// DocumentSubset is the common subset for document stores.
//
// String length comparisons are excluded: document filters can only express
// them through aggregation expressions, which the filter path does not use.
// Regex matching and list containment are included.
var DocumentSubset = Subset{
	Name: "document",
	Ops: map[Op]bool{
		OpEq:           true,
		OpNe:           true,
		OpGt:           true,
		OpGte:          true,
		OpLt:           true,
		OpLte:          true,
		OpBetween:      true,
		OpIn:           true,
		OpIsNull:       true,
		OpIsNotNull:    true,
		OpLike:         true,
		OpStartsWith:   true,
		OpContains:     true,
		OpRegex:        true,
		OpListContains: true,
		OpSizeEq:       true,
		OpSizeGt:       true,
	},
}

// ValidationResult lists the constraints of a plan that fall outside a
// subset.
type ValidationResult struct {
	// IsPortable is true when every constraint is in the subset.
	IsPortable bool

	// Violations lists the offending constraints in traversal order.
	Violations []*fault.UnsupportedConstraintError
}

// Err returns the first violation, or nil.
func (r ValidationResult) Err() error {
	if len(r.Violations) == 0 {
		return nil
	}
	return r.Violations[0]
}

// Warnings renders the violations for display.
func (r ValidationResult) Warnings() []string {
	out := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		out[i] = fmt.Sprintf("%s on %q is outside the %s subset", v.Operator, v.Field, v.Target)
	}
	return out
}

// Validate checks every constraint of p against s.
//
// Validate is a pure function with no side effects.
func Validate(p Plan, s Subset) ValidationResult {
	v := &validator{subset: s}
	if p.filter != nil {
		v.validateConstraint(p.filter)
	}
	return ValidationResult{
		IsPortable: len(v.violations) == 0,
		Violations: v.violations,
	}
}

// validator accumulates violations during traversal.
type validator struct {
	subset     Subset
	violations []*fault.UnsupportedConstraintError
}

func (v *validator) validateConstraint(c Constraint) {
	switch node := c.(type) {
	case *Leaf:
		if !v.subset.Allows(node.op) {
			v.violations = append(v.violations, &fault.UnsupportedConstraintError{
				Target:   v.subset.Name,
				Field:    node.field.Name,
				Operator: node.op.String(),
			})
		}
	case *Composite:
		for _, child := range node.children {
			v.validateConstraint(child)
		}
	}
}
