package store

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// typeRank orders values of different types the way document stores sort
// them: null, numbers, strings, documents, arrays, binary, object ids,
// booleans, dates. Other types sort last, ordered by type name.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 1
	case int, int32, int64, float64, bson.Decimal128:
		return 2
	case string:
		return 3
	case bson.D, bson.M, map[string]any:
		return 4
	case bson.A, []any:
		return 5
	case bson.Binary:
		return 6
	case bson.ObjectID:
		return 7
	case bool:
		return 8
	case bson.DateTime:
		return 9
	default:
		return 10
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case bson.Decimal128:
		f, err := strconv.ParseFloat(n.String(), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

// toDecimal converts a finite number to a decimal.
func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(n), true
	case bson.Decimal128:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}

// compareNumbers orders two numbers. Integers compare exactly; mixed
// kinds compare as decimals, and as floats only when one side is NaN or
// infinite.
func compareNumbers(a, b any) int {
	ai, aInt := toInt(a)
	bi, bInt := toInt(b)
	if aInt && bInt {
		return cmp.Compare(ai, bi)
	}
	ad, aok := toDecimal(a)
	bd, bok := toDecimal(b)
	if aok && bok {
		return ad.Cmp(bd)
	}
	af, _ := toFloat(a)
	bf, _ := toFloat(b)
	return cmp.Compare(af, bf)
}

func asArray(v any) (bson.A, bool) {
	switch a := v.(type) {
	case bson.A:
		return a, true
	case []any:
		return bson.A(a), true
	default:
		return nil, false
	}
}

// sameClass reports whether a and b belong to the same comparison class.
// Range operators never match across classes.
func sameClass(a, b any) bool {
	return typeRank(a) == typeRank(b)
}

// compareValues orders two values, ranking types first.
func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch av := a.(type) {
	case nil:
		return 0
	case string:
		return cmp.Compare(av, b.(string))
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case bson.DateTime:
		return cmp.Compare(int64(av), int64(b.(bson.DateTime)))
	case bson.Binary:
		bv := b.(bson.Binary)
		if c := cmp.Compare(av.Subtype, bv.Subtype); c != 0 {
			return c
		}
		return bytes.Compare(av.Data, bv.Data)
	case bson.ObjectID:
		bv := b.(bson.ObjectID)
		return bytes.Compare(av[:], bv[:])
	}
	if typeRank(a) == 2 {
		return compareNumbers(a, b)
	}
	if aa, ok := asArray(a); ok {
		ba, _ := asArray(b)
		return slices.CompareFunc(aa, ba, compareValues)
	}
	if ad, ok := a.(bson.D); ok {
		if bd, ok := b.(bson.D); ok {
			return slices.CompareFunc(ad, bd, func(x, y bson.E) int {
				if c := cmp.Compare(x.Key, y.Key); c != 0 {
					return c
				}
				return compareValues(x.Value, y.Value)
			})
		}
	}
	if c := cmp.Compare(fmt.Sprintf("%T", a), fmt.Sprintf("%T", b)); c != 0 {
		return c
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// equalValues reports value equality; numbers compare by value.
func equalValues(a, b any) bool {
	return sameClass(a, b) && compareValues(a, b) == 0
}
