package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// IRValue is a sealed interface over the values a constraint operand or a
// decoded record field may hold.
//
// Only IRNull, IRInt, IRFloat, IRString, IRBool, IRChar, IRList and IRTime
// implement it.
type IRValue interface {
	irValue() // Sealed - only these types implement it

	// Domain reports the value domain. IRNull reports DomainInvalid because
	// null belongs to every domain.
	Domain() Domain
}

// IRNull represents an absent value in a decoded record.
// It is never a legal constraint operand; use the isNull operator instead.
type IRNull struct{}

func (IRNull) irValue() {}

// Domain implements IRValue.
func (IRNull) Domain() Domain { return DomainInvalid }

// IRInt is an integral numeric value.
type IRInt int64

func (IRInt) irValue() {}

// Domain implements IRValue.
func (IRInt) Domain() Domain { return DomainNumeric }

// IRFloat is a floating point numeric value.
// NaN is rejected by NewIRFloat; it has no defined order.
type IRFloat float64

func (IRFloat) irValue() {}

// Domain implements IRValue.
func (IRFloat) Domain() Domain { return DomainNumeric }

// IRString is a string value.
type IRString string

func (IRString) irValue() {}

// Domain implements IRValue.
func (IRString) Domain() Domain { return DomainString }

// IRBool is a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// Domain implements IRValue.
func (IRBool) Domain() Domain { return DomainBool }

// IRChar is a single character value.
type IRChar rune

func (IRChar) irValue() {}

// Domain implements IRValue.
func (IRChar) Domain() Domain { return DomainChar }

// IRList is an ordered list of values sharing one element domain.
type IRList []IRValue

func (IRList) irValue() {}

// Domain implements IRValue.
func (IRList) Domain() Domain { return DomainList }

// NewIRFloat creates an IRFloat, rejecting NaN and infinities.
func NewIRFloat(f float64) (IRFloat, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite float %v is not a valid numeric value", f)
	}
	return IRFloat(f), nil
}

// NewIRList creates an IRList from values.
func NewIRList(vals ...IRValue) IRList {
	return IRList(vals)
}

// ElemDomain returns the shared domain of the list elements, or
// DomainInvalid for an empty list. Mixed lists report an error.
func (l IRList) ElemDomain() (Domain, error) {
	d := DomainInvalid
	for i, v := range l {
		if _, isNull := v.(IRNull); isNull {
			return DomainInvalid, fmt.Errorf("list[%d]: null elements are not allowed", i)
		}
		if d == DomainInvalid {
			d = v.Domain()
			continue
		}
		if v.Domain() != d {
			return DomainInvalid, fmt.Errorf("list[%d]: %s element in %s list", i, v.Domain(), d)
		}
	}
	return d, nil
}

// IsNull reports whether v is nil or IRNull.
func IsNull(v IRValue) bool {
	if v == nil {
		return true
	}
	_, ok := v.(IRNull)
	return ok
}

// AsFloat returns the numeric value of v as float64.
func AsFloat(v IRValue) (float64, bool) {
	switch val := v.(type) {
	case IRInt:
		return float64(val), true
	case IRFloat:
		return float64(val), true
	default:
		return 0, false
	}
}

// Format renders v for logs and CLI output. It is not a serialization.
func Format(v IRValue) string {
	switch val := v.(type) {
	case nil, IRNull:
		return "null"
	case IRInt:
		return strconv.FormatInt(int64(val), 10)
	case IRFloat:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case IRString:
		return strconv.Quote(string(val))
	case IRBool:
		return strconv.FormatBool(bool(val))
	case IRChar:
		return strconv.QuoteRune(rune(val))
	case IRList:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = Format(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case IRTime:
		return val.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Equal reports whether a and b hold the same domain and value.
// Integral and floating numerics compare by numeric value.
func Equal(a, b IRValue) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	if a.Domain() != b.Domain() {
		return false
	}
	switch av := a.(type) {
	case IRInt, IRFloat:
		af, _ := AsFloat(av)
		bf, _ := AsFloat(b)
		return af == bf
	case IRList:
		bl, ok := b.(IRList)
		if !ok || len(av) != len(bl) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bl[i]) {
				return false
			}
		}
		return true
	case IRTime:
		bt, ok := b.(IRTime)
		return ok && av.Kind == bt.Kind && av.Epoch() == bt.Epoch()
	default:
		return a == b
	}
}
