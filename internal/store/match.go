package store

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// lookup resolves a dotted path. Numeric segments index into arrays.
func lookup(doc any, path string) (any, bool) {
	cur := doc
	for _, part := range strings.Split(path, ".") {
		switch v := cur.(type) {
		case bson.M:
			next, ok := v[part]
			if !ok {
				return nil, false
			}
			cur = next
		case map[string]any:
			next, ok := v[part]
			if !ok {
				return nil, false
			}
			cur = next
		case bson.D:
			found := false
			for _, e := range v {
				if e.Key == part {
					cur, found = e.Value, true
					break
				}
			}
			if !found {
				return nil, false
			}
		case bson.A, []any:
			arr, _ := asArray(v)
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(arr) {
				return nil, false
			}
			cur = arr[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Matches reports whether doc satisfies filter. It supports the query
// operators querydoc emits plus $not.
func Matches(doc bson.M, filter bson.D) (bool, error) {
	for _, e := range filter {
		ok, err := matchElem(doc, e)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func subFilters(op string, v any) ([]bson.D, error) {
	arr, ok := asArray(v)
	if !ok {
		return nil, fmt.Errorf("%s needs an array", op)
	}
	out := make([]bson.D, len(arr))
	for i, f := range arr {
		d, ok := f.(bson.D)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is %T, not a document", op, i, f)
		}
		out[i] = d
	}
	return out, nil
}

func matchElem(doc bson.M, e bson.E) (bool, error) {
	switch e.Key {
	case "$and", "$or", "$nor":
		filters, err := subFilters(e.Key, e.Value)
		if err != nil {
			return false, err
		}
		matched := false
		for _, f := range filters {
			ok, err := Matches(doc, f)
			if err != nil {
				return false, err
			}
			if e.Key == "$and" && !ok {
				return false, nil
			}
			matched = matched || ok
		}
		switch e.Key {
		case "$and":
			return true, nil
		case "$or":
			return matched, nil
		default:
			return !matched, nil
		}
	}

	val, present := lookup(doc, e.Key)
	cond, isOps := e.Value.(bson.D)
	if !isOps || len(cond) == 0 || !strings.HasPrefix(cond[0].Key, "$") {
		return matchEq(val, present, e.Value), nil
	}
	return matchOps(val, present, cond)
}

func matchOps(val any, present bool, cond bson.D) (bool, error) {
	options := ""
	for _, op := range cond {
		if op.Key == "$options" {
			options, _ = op.Value.(string)
		}
	}
	for _, op := range cond {
		ok, err := matchOp(val, present, op, options)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// matchEq is equality with array containment; null matches missing fields.
func matchEq(val any, present bool, want any) bool {
	if want == nil {
		if !present || val == nil {
			return true
		}
	} else if !present {
		return false
	}
	if equalValues(val, want) {
		return true
	}
	if arr, ok := asArray(val); ok {
		for _, elem := range arr {
			if equalValues(elem, want) {
				return true
			}
		}
	}
	return false
}

// anyValue applies pred to val, or to each element when val is an array.
func anyValue(val any, pred func(any) bool) bool {
	if pred(val) {
		return true
	}
	if arr, ok := asArray(val); ok {
		for _, elem := range arr {
			if pred(elem) {
				return true
			}
		}
	}
	return false
}

func matchOp(val any, present bool, op bson.E, options string) (bool, error) {
	switch op.Key {
	case "$eq":
		return matchEq(val, present, op.Value), nil
	case "$ne":
		return !matchEq(val, present, op.Value), nil
	case "$in", "$nin":
		arr, ok := asArray(op.Value)
		if !ok {
			return false, fmt.Errorf("%s needs an array", op.Key)
		}
		in := false
		for _, want := range arr {
			if matchEq(val, present, want) {
				in = true
				break
			}
		}
		return in == (op.Key == "$in"), nil
	case "$gt", "$gte", "$lt", "$lte":
		if !present {
			return false, nil
		}
		return anyValue(val, func(v any) bool {
			if !sameClass(v, op.Value) || v == nil {
				return false
			}
			c := compareValues(v, op.Value)
			switch op.Key {
			case "$gt":
				return c > 0
			case "$gte":
				return c >= 0
			case "$lt":
				return c < 0
			default:
				return c <= 0
			}
		}), nil
	case "$regex":
		pattern, ok := op.Value.(string)
		if !ok {
			return false, fmt.Errorf("$regex needs a string pattern")
		}
		re, err := compileRegex(pattern, options)
		if err != nil {
			return false, err
		}
		return present && anyValue(val, func(v any) bool {
			s, ok := v.(string)
			return ok && re.MatchString(s)
		}), nil
	case "$options":
		return true, nil
	case "$exists":
		want, _ := op.Value.(bool)
		return present == want, nil
	case "$size":
		n, ok := toFloat(op.Value)
		if !ok {
			return false, fmt.Errorf("$size needs a number")
		}
		arr, isArr := asArray(val)
		return present && isArr && float64(len(arr)) == n, nil
	case "$not":
		inner, ok := op.Value.(bson.D)
		if !ok {
			return false, fmt.Errorf("$not needs an operator document")
		}
		matched, err := matchOps(val, present, inner)
		return !matched, err
	default:
		return false, fmt.Errorf("unsupported query operator %s", op.Key)
	}
}

func compileRegex(pattern, options string) (*regexp.Regexp, error) {
	flags := ""
	for _, o := range options {
		switch o {
		case 'i', 'm', 's':
			flags += string(o)
		default:
			return nil, fmt.Errorf("unsupported regex option %q", o)
		}
	}
	if flags != "" {
		pattern = "(?" + flags + ")" + pattern
	}
	return regexp.Compile(pattern)
}
