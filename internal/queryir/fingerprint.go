package queryir

import (
	"fmt"

	"github.com/roach88/typewriter/internal/ir"
)

// Fingerprint returns a stable content hash of p. Plans that compile to the
// same statement on every backend share a fingerprint.
func (p Plan) Fingerprint() (string, error) {
	doc, err := p.canonical()
	if err != nil {
		return "", err
	}
	return ir.Fingerprint(ir.DomainPlan, doc)
}

func (p Plan) canonical() (map[string]any, error) {
	doc := map[string]any{
		"version": ir.PlanVersion,
		"source":  p.source,
		"skip":    int64(p.skip),
	}
	if p.hasLimit {
		doc["limit"] = int64(p.limit)
	}
	if p.filter != nil {
		f, err := canonicalConstraint(p.filter)
		if err != nil {
			return nil, err
		}
		doc["filter"] = f
	}
	if len(p.sorts) > 0 {
		sorts := make([]any, len(p.sorts))
		for i, s := range p.sorts {
			sorts[i] = map[string]any{"field": s.Field.Name, "dir": s.Direction.String()}
		}
		doc["sort"] = sorts
	}
	if len(p.projection) > 0 {
		doc["select"] = fieldNames(p.projection)
	}
	if p.acc != nil {
		acc := map[string]any{
			"func":     p.acc.Func.String(),
			"field":    p.acc.Field.Name,
			"distinct": p.acc.Distinct,
		}
		if len(p.acc.GroupBy) > 0 {
			acc["group"] = fieldNames(p.acc.GroupBy)
		}
		doc["acc"] = acc
	}
	return doc, nil
}

func canonicalConstraint(c Constraint) (map[string]any, error) {
	switch node := c.(type) {
	case *Leaf:
		args := make([]any, len(node.operands))
		for i, v := range node.operands {
			args[i] = v
		}
		return map[string]any{
			"field":  node.field.Name,
			"domain": node.field.Domain.String(),
			"op":     node.op.String(),
			"args":   args,
		}, nil
	case *Composite:
		children := make([]any, len(node.children))
		for i, child := range node.children {
			cc, err := canonicalConstraint(child)
			if err != nil {
				return nil, err
			}
			children[i] = cc
		}
		return map[string]any{"kind": node.kind.String(), "children": children}, nil
	default:
		return nil, fmt.Errorf("unexpected constraint node %T", c)
	}
}

func fieldNames(fields []Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}
