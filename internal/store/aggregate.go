package store

import (
	"fmt"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// RunPipeline evaluates an aggregation pipeline over docs. It supports the
// stages and expressions querydoc emits: $match, $group, $project, $sort,
// $skip and $limit.
func RunPipeline(docs []bson.M, pipeline []bson.D) ([]bson.M, error) {
	out := docs
	for i, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("stage %d: want exactly one operator, got %d", i, len(stage))
		}
		var err error
		op := stage[0]
		switch op.Key {
		case "$match":
			filter, ok := op.Value.(bson.D)
			if !ok {
				return nil, fmt.Errorf("stage %d: $match needs a document", i)
			}
			out, err = filterDocs(out, filter)
		case "$group":
			spec, ok := op.Value.(bson.D)
			if !ok {
				return nil, fmt.Errorf("stage %d: $group needs a document", i)
			}
			out, err = group(out, spec)
		case "$project":
			spec, ok := op.Value.(bson.D)
			if !ok {
				return nil, fmt.Errorf("stage %d: $project needs a document", i)
			}
			out, err = project(out, spec)
		case "$sort":
			spec, ok := op.Value.(bson.D)
			if !ok {
				return nil, fmt.Errorf("stage %d: $sort needs a document", i)
			}
			out = sortDocs(out, spec)
		case "$skip":
			n, _ := toFloat(op.Value)
			out = out[min(int(n), len(out)):]
		case "$limit":
			n, _ := toFloat(op.Value)
			out = out[:min(int(n), len(out))]
		default:
			return nil, fmt.Errorf("stage %d: unsupported stage %s", i, op.Key)
		}
		if err != nil {
			return nil, fmt.Errorf("stage %d (%s): %w", i, op.Key, err)
		}
	}
	return out, nil
}

func filterDocs(docs []bson.M, filter bson.D) ([]bson.M, error) {
	var out []bson.M
	for _, doc := range docs {
		ok, err := Matches(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

// sortDocs sorts stably by the keys of spec (1 ascending, -1 descending).
// Missing fields sort as null.
func sortDocs(docs []bson.M, spec bson.D) []bson.M {
	out := slices.Clone(docs)
	slices.SortStableFunc(out, func(a, b bson.M) int {
		for _, key := range spec {
			av, _ := lookup(a, key.Key)
			bv, _ := lookup(b, key.Key)
			c := compareValues(av, bv)
			if dir, _ := toFloat(key.Value); dir < 0 {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	return out
}

type groupState struct {
	id   any
	accs []accState
}

type accState struct {
	op    string
	sum   float64
	ints  bool
	count int
	best  any
	set   bson.A
}

func group(docs []bson.M, spec bson.D) ([]bson.M, error) {
	var idExpr any
	var fields []bson.E
	for _, e := range spec {
		if e.Key == "_id" {
			idExpr = e.Value
			continue
		}
		fields = append(fields, e)
	}

	var groups []*groupState
	find := func(id any) *groupState {
		for _, g := range groups {
			if compareValues(g.id, id) == 0 && sameClass(g.id, id) {
				return g
			}
		}
		g := &groupState{id: id, accs: make([]accState, len(fields))}
		for i, f := range fields {
			g.accs[i].ints = true
			if acc, ok := f.Value.(bson.D); ok && len(acc) == 1 {
				g.accs[i].op = acc[0].Key
			}
		}
		groups = append(groups, g)
		return g
	}

	for _, doc := range docs {
		id, err := evalExpr(idExpr, doc, nil)
		if err != nil {
			return nil, fmt.Errorf("_id: %w", err)
		}
		g := find(id)
		for i, f := range fields {
			acc, ok := f.Value.(bson.D)
			if !ok || len(acc) != 1 {
				return nil, fmt.Errorf("%s: want one accumulator", f.Key)
			}
			v, err := evalExpr(acc[0].Value, doc, nil)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Key, err)
			}
			if err := g.accs[i].add(acc[0].Key, v); err != nil {
				return nil, fmt.Errorf("%s: %w", f.Key, err)
			}
		}
	}

	out := make([]bson.M, len(groups))
	for i, g := range groups {
		row := bson.M{"_id": g.id}
		for j, f := range fields {
			row[f.Key] = g.accs[j].result()
		}
		out[i] = row
	}
	return out, nil
}

func (a *accState) add(op string, v any) error {
	switch op {
	case "$sum", "$avg":
		f, ok := toFloat(v)
		if !ok {
			return nil
		}
		if _, isFloat := v.(float64); isFloat {
			a.ints = false
		}
		a.sum += f
		a.count++
	case "$min", "$max":
		if v == nil {
			return nil
		}
		if a.best == nil {
			a.best = v
			return nil
		}
		c := compareValues(v, a.best)
		if (op == "$min" && c < 0) || (op == "$max" && c > 0) {
			a.best = v
		}
	case "$addToSet":
		if v == nil {
			return nil
		}
		for _, have := range a.set {
			if equalValues(have, v) {
				return nil
			}
		}
		a.set = append(a.set, v)
	default:
		return fmt.Errorf("unsupported accumulator %s", op)
	}
	return nil
}

func (a *accState) result() any {
	switch a.op {
	case "$sum":
		if a.ints {
			return int64(a.sum)
		}
		return a.sum
	case "$avg":
		if a.count == 0 {
			return nil
		}
		return a.sum / float64(a.count)
	case "$min", "$max":
		return a.best
	case "$addToSet":
		if a.set == nil {
			return bson.A{}
		}
		return a.set
	default:
		return nil
	}
}

func project(docs []bson.M, spec bson.D) ([]bson.M, error) {
	out := make([]bson.M, len(docs))
	for i, doc := range docs {
		row := bson.M{}
		keepID := true
		for _, e := range spec {
			if n, ok := toFloat(e.Value); ok {
				if e.Key == "_id" && n == 0 {
					keepID = false
				} else if n != 0 {
					if v, present := lookup(doc, e.Key); present {
						row[e.Key] = v
					}
				}
				continue
			}
			v, err := evalExpr(e.Value, doc, nil)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", e.Key, err)
			}
			row[e.Key] = v
		}
		if id, present := doc["_id"]; keepID && present {
			if _, set := row["_id"]; !set {
				row["_id"] = id
			}
		}
		out[i] = row
	}
	return out, nil
}

// evalExpr evaluates an aggregation expression against doc. vars holds
// $$ variables such as $$this.
func evalExpr(expr any, doc bson.M, vars map[string]any) (any, error) {
	switch e := expr.(type) {
	case string:
		if name, ok := strings.CutPrefix(e, "$$"); ok {
			return vars[name], nil
		}
		if path, ok := strings.CutPrefix(e, "$"); ok {
			v, _ := lookup(doc, path)
			return v, nil
		}
		return e, nil
	case bson.D:
		if len(e) == 1 && strings.HasPrefix(e[0].Key, "$") {
			return evalOperator(e[0].Key, e[0].Value, doc, vars)
		}
		out := make(bson.D, 0, len(e))
		for _, f := range e {
			v, err := evalExpr(f.Value, doc, vars)
			if err != nil {
				return nil, err
			}
			out = append(out, bson.E{Key: f.Key, Value: v})
		}
		return out, nil
	default:
		return expr, nil
	}
}

func evalArgs(op string, arg any, want int, doc bson.M, vars map[string]any) ([]any, error) {
	arr, ok := asArray(arg)
	if !ok || len(arr) != want {
		return nil, fmt.Errorf("%s takes %d arguments", op, want)
	}
	out := make([]any, want)
	for i, a := range arr {
		v, err := evalExpr(a, doc, vars)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func evalOperator(op string, arg any, doc bson.M, vars map[string]any) (any, error) {
	switch op {
	case "$eq", "$ne":
		args, err := evalArgs(op, arg, 2, doc, vars)
		if err != nil {
			return nil, err
		}
		eq := equalValues(args[0], args[1])
		return eq == (op == "$eq"), nil
	case "$ifNull":
		args, err := evalArgs(op, arg, 2, doc, vars)
		if err != nil {
			return nil, err
		}
		if args[0] == nil {
			return args[1], nil
		}
		return args[0], nil
	case "$cond":
		args, err := evalArgs(op, arg, 3, doc, vars)
		if err != nil {
			return nil, err
		}
		if b, _ := args[0].(bool); b {
			return args[1], nil
		}
		return args[2], nil
	case "$size":
		v, err := evalExpr(arg, doc, vars)
		if err != nil {
			return nil, err
		}
		arr, ok := asArray(v)
		if !ok {
			return nil, fmt.Errorf("$size needs an array, got %T", v)
		}
		return int64(len(arr)), nil
	case "$filter":
		spec, ok := arg.(bson.D)
		if !ok {
			return nil, fmt.Errorf("$filter needs a document")
		}
		var input, cond any
		for _, e := range spec {
			switch e.Key {
			case "input":
				input = e.Value
			case "cond":
				cond = e.Value
			}
		}
		v, err := evalExpr(input, doc, vars)
		if err != nil {
			return nil, err
		}
		arr, _ := asArray(v)
		out := bson.A{}
		for _, elem := range arr {
			inner := map[string]any{"this": elem}
			for k, vv := range vars {
				if k != "this" {
					inner[k] = vv
				}
			}
			keep, err := evalExpr(cond, doc, inner)
			if err != nil {
				return nil, err
			}
			if b, _ := keep.(bool); b {
				out = append(out, elem)
			}
		}
		return out, nil
	case "$sum", "$avg":
		v, err := evalExpr(arg, doc, vars)
		if err != nil {
			return nil, err
		}
		acc := accState{op: op, ints: true}
		if arr, ok := asArray(v); ok {
			for _, elem := range arr {
				_ = acc.add(op, elem)
			}
		} else {
			_ = acc.add(op, v)
		}
		return acc.result(), nil
	default:
		return nil, fmt.Errorf("unsupported expression operator %s", op)
	}
}
