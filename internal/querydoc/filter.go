package querydoc

import (
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/typewriter/internal/ir"
	"github.com/roach88/typewriter/internal/queryir"
)

// constraint translates c. With negate set it returns the filter matching
// exactly the records for which c is false; NOT is pushed down to the
// leaves so that unknown (null) comparisons stay unmatched both ways.
func (c *Compiler) constraint(n queryir.Constraint, negate bool) (bson.D, error) {
	switch node := n.(type) {
	case *queryir.Leaf:
		if negate {
			return c.negatedLeaf(node)
		}
		return c.leaf(node)
	case *queryir.Composite:
		children := node.Children()
		if node.Kind() == queryir.CombineNot {
			return c.constraint(children[0], !negate)
		}
		docs := make([]bson.D, len(children))
		for i, child := range children {
			doc, err := c.constraint(child, negate)
			if err != nil {
				return nil, err
			}
			docs[i] = doc
		}
		// De Morgan: a negated AND is an OR of negations and vice versa.
		if (node.Kind() == queryir.CombineAnd) != negate {
			return and(docs), nil
		}
		return bson.D{{Key: "$or", Value: docArray(docs)}}, nil
	default:
		return nil, fmt.Errorf("unsupported constraint node: %T", n)
	}
}

// and merges the children into one document when their keys are disjoint.
func and(docs []bson.D) bson.D {
	seen := map[string]bool{}
	merged := bson.D{}
	for _, doc := range docs {
		for _, e := range doc {
			if seen[e.Key] {
				return bson.D{{Key: "$and", Value: docArray(docs)}}
			}
			seen[e.Key] = true
			merged = append(merged, e)
		}
	}
	return merged
}

func docArray(docs []bson.D) bson.A {
	out := make(bson.A, len(docs))
	for i, d := range docs {
		out[i] = d
	}
	return out
}

func (c *Compiler) negatedLeaf(l *queryir.Leaf) (bson.D, error) {
	name := l.Field().Name
	switch l.Op() {
	case queryir.OpIsNull:
		return bson.D{{Key: name, Value: bson.D{{Key: "$ne", Value: nil}}}}, nil
	case queryir.OpIsNotNull:
		return bson.D{{Key: name, Value: bson.D{{Key: "$eq", Value: nil}}}}, nil
	}
	doc, err := c.leaf(l)
	if err != nil {
		return nil, err
	}
	isNull := bson.D{{Key: name, Value: bson.D{{Key: "$eq", Value: nil}}}}
	return bson.D{{Key: "$nor", Value: bson.A{doc, isNull}}}, nil
}

func (c *Compiler) operand(l *queryir.Leaf, i int) (any, error) {
	v, err := c.codecs.EncodeDocument(l.Operand(i))
	if err != nil {
		return nil, fmt.Errorf("encode operand of %s on %q: %w", l.Op(), l.Field().Name, err)
	}
	return v, nil
}

func (c *Compiler) leaf(l *queryir.Leaf) (bson.D, error) {
	name := l.Field().Name
	on := func(ops ...bson.E) bson.D {
		return bson.D{{Key: name, Value: bson.D(ops)}}
	}
	compare := func(op string) (bson.D, error) {
		v, err := c.operand(l, 0)
		if err != nil {
			return nil, err
		}
		return on(bson.E{Key: op, Value: v}), nil
	}

	switch l.Op() {
	case queryir.OpEq, queryir.OpListContains:
		return compare("$eq")
	case queryir.OpNe:
		v, err := c.operand(l, 0)
		if err != nil {
			return nil, err
		}
		return on(bson.E{Key: "$nin", Value: bson.A{v, nil}}), nil
	case queryir.OpGt:
		return compare("$gt")
	case queryir.OpGte:
		return compare("$gte")
	case queryir.OpLt:
		return compare("$lt")
	case queryir.OpLte:
		return compare("$lte")
	case queryir.OpBetween:
		lo, err := c.operand(l, 0)
		if err != nil {
			return nil, err
		}
		hi, err := c.operand(l, 1)
		if err != nil {
			return nil, err
		}
		return on(bson.E{Key: "$gte", Value: lo}, bson.E{Key: "$lte", Value: hi}), nil
	case queryir.OpIn:
		vals := make(bson.A, l.NumOperands())
		for i := range vals {
			v, err := c.operand(l, i)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		return on(bson.E{Key: "$in", Value: vals}), nil
	case queryir.OpIsNull:
		return on(bson.E{Key: "$eq", Value: nil}), nil
	case queryir.OpIsNotNull:
		return on(bson.E{Key: "$ne", Value: nil}), nil
	case queryir.OpLike:
		return on(bson.E{Key: "$regex", Value: LikeToRegex(textOperand(l))}, bson.E{Key: "$options", Value: "s"}), nil
	case queryir.OpStartsWith:
		return on(bson.E{Key: "$regex", Value: `\A` + regexp.QuoteMeta(textOperand(l))}), nil
	case queryir.OpContains:
		return on(bson.E{Key: "$regex", Value: regexp.QuoteMeta(textOperand(l))}), nil
	case queryir.OpRegex:
		return on(bson.E{Key: "$regex", Value: textOperand(l)}), nil
	case queryir.OpSizeEq:
		n, err := countOperand(l)
		if err != nil {
			return nil, err
		}
		return on(bson.E{Key: "$size", Value: n}), nil
	case queryir.OpSizeGt:
		n, err := countOperand(l)
		if err != nil {
			return nil, err
		}
		// The element at index n exists exactly when the list is longer than n.
		return bson.D{{Key: fmt.Sprintf("%s.%d", name, n), Value: bson.D{{Key: "$exists", Value: true}}}}, nil
	default:
		return nil, fmt.Errorf("no document translation for %s", l.Op())
	}
}

func textOperand(l *queryir.Leaf) string {
	s, _ := l.Operand(0).(ir.IRString)
	return string(s)
}

func countOperand(l *queryir.Leaf) (int64, error) {
	n, ok := l.Operand(0).(ir.IRInt)
	if !ok {
		return 0, fmt.Errorf("%s on %q needs an integer count", l.Op(), l.Field().Name)
	}
	return int64(n), nil
}

// LikeToRegex translates a LIKE pattern into an anchored regular
// expression: % matches any run of characters, _ exactly one, and every
// other character matches itself.
func LikeToRegex(pattern string) string {
	var sb strings.Builder
	sb.WriteString(`\A`)
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString(`\z`)
	return sb.String()
}
