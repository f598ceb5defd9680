package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/typewriter/internal/ir"
)

func builtins(r *Registry) []Codec {
	codecs := []Codec{
		{Domain: ir.DomainNumeric, SQL: encodeNumeric, Document: encodeNumeric, Decode: decodeNumeric},
		{Domain: ir.DomainString, SQL: encodeString, Document: encodeString, Decode: decodeString},
		{Domain: ir.DomainBool, SQL: encodeBool, Document: encodeBool, Decode: decodeBool},
		{Domain: ir.DomainChar, SQL: encodeChar, Document: encodeChar, Decode: decodeChar},
		listCodec(r),
	}
	for _, d := range ir.AllDomains {
		if d.IsTemporal() {
			codecs = append(codecs, temporalCodec(d))
		}
	}
	return codecs
}

func encodeNumeric(v ir.IRValue) (any, error) {
	switch n := v.(type) {
	case ir.IRInt:
		return int64(n), nil
	case ir.IRFloat:
		return float64(n), nil
	default:
		return nil, fmt.Errorf("expected numeric value, got %T", v)
	}
}

func decodeNumeric(raw any, _ ir.Domain) (ir.IRValue, error) {
	switch v := raw.(type) {
	case int64:
		return ir.IRInt(v), nil
	case int:
		return ir.IRInt(v), nil
	case int32:
		return ir.IRInt(v), nil
	case int16:
		return ir.IRInt(v), nil
	case int8:
		return ir.IRInt(v), nil
	case uint32:
		return ir.IRInt(v), nil
	case uint16:
		return ir.IRInt(v), nil
	case uint8:
		return ir.IRInt(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, fmt.Errorf("%d overflows int64", v)
		}
		return ir.IRInt(v), nil
	case float64:
		return ir.NewIRFloat(v)
	case float32:
		return ir.NewIRFloat(float64(v))
	case *big.Int:
		if !v.IsInt64() {
			return nil, fmt.Errorf("%s overflows int64", v)
		}
		return ir.IRInt(v.Int64()), nil
	case decimal.Decimal:
		return fromDecimal(v)
	case bson.Decimal128:
		return parseDecimal(v.String())
	case json.Number:
		return parseDecimal(v.String())
	case []byte:
		return parseDecimal(string(v))
	case string:
		return parseDecimal(v)
	default:
		return nil, fmt.Errorf("cannot decode %T as numeric", raw)
	}
}

// parseDecimal reads DECIMAL and NUMERIC columns that drivers return as text.
func parseDecimal(s string) (ir.IRValue, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	return fromDecimal(d)
}

func fromDecimal(d decimal.Decimal) (ir.IRValue, error) {
	if d.IsInteger() {
		if bi := d.BigInt(); bi.IsInt64() {
			return ir.IRInt(bi.Int64()), nil
		}
	}
	f, _ := d.Float64()
	return ir.NewIRFloat(f)
}

func encodeString(v ir.IRValue) (any, error) {
	s, ok := v.(ir.IRString)
	if !ok {
		return nil, fmt.Errorf("expected string value, got %T", v)
	}
	return string(s), nil
}

func decodeString(raw any, _ ir.Domain) (ir.IRValue, error) {
	switch v := raw.(type) {
	case string:
		return ir.IRString(v), nil
	case []byte:
		return ir.IRString(v), nil
	default:
		return nil, fmt.Errorf("cannot decode %T as string", raw)
	}
}

func encodeBool(v ir.IRValue) (any, error) {
	b, ok := v.(ir.IRBool)
	if !ok {
		return nil, fmt.Errorf("expected bool value, got %T", v)
	}
	return bool(b), nil
}

func decodeBool(raw any, _ ir.Domain) (ir.IRValue, error) {
	switch v := raw.(type) {
	case bool:
		return ir.IRBool(v), nil
	case int64:
		return intBool(v)
	case int32:
		return intBool(int64(v))
	case uint8:
		return intBool(int64(v))
	case []byte:
		return textBool(string(v))
	case string:
		return textBool(v)
	default:
		return nil, fmt.Errorf("cannot decode %T as bool", raw)
	}
}

func intBool(n int64) (ir.IRValue, error) {
	switch n {
	case 0:
		return ir.IRBool(false), nil
	case 1:
		return ir.IRBool(true), nil
	default:
		return nil, fmt.Errorf("%d is not a boolean", n)
	}
}

func textBool(s string) (ir.IRValue, error) {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	return ir.IRBool(b), nil
}

func encodeChar(v ir.IRValue) (any, error) {
	c, ok := v.(ir.IRChar)
	if !ok {
		return nil, fmt.Errorf("expected char value, got %T", v)
	}
	return string(rune(c)), nil
}

func decodeChar(raw any, _ ir.Domain) (ir.IRValue, error) {
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case int32:
		return ir.IRChar(v), nil
	default:
		return nil, fmt.Errorf("cannot decode %T as char", raw)
	}
	if utf8.RuneCountInString(s) != 1 {
		return nil, fmt.Errorf("%q is not a single character", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return ir.IRChar(r), nil
}

// instantKind reports whether kind is stored as a bson date in documents.
func instantKind(kind ir.Domain) bool {
	switch kind {
	case ir.DomainDate, ir.DomainLocalDateTime, ir.DomainOffsetDateTime, ir.DomainZonedDateTime:
		return true
	default:
		return false
	}
}

func temporalCodec(kind ir.Domain) Codec {
	asTime := func(v ir.IRValue) (ir.IRTime, error) {
		t, ok := v.(ir.IRTime)
		if !ok || t.Kind != kind {
			return ir.IRTime{}, fmt.Errorf("expected %s value, got %s", kind, ir.Format(v))
		}
		return t, nil
	}

	return Codec{
		Domain: kind,
		SQL: func(v ir.IRValue) (any, error) {
			t, err := asTime(v)
			if err != nil {
				return nil, err
			}
			return t.Epoch(), nil
		},
		Document: func(v ir.IRValue) (any, error) {
			t, err := asTime(v)
			if err != nil {
				return nil, err
			}
			if instantKind(kind) {
				return bson.DateTime(t.Epoch()), nil
			}
			return t.Epoch(), nil
		},
		Decode: func(raw any, _ ir.Domain) (ir.IRValue, error) {
			switch v := raw.(type) {
			case time.Time:
				return ir.NewTime(kind, v)
			case bson.DateTime:
				return ir.NewTime(kind, v.Time().UTC())
			case float64:
				if v != math.Trunc(v) {
					return nil, fmt.Errorf("%v is not an integral epoch", v)
				}
				return ir.TimeFromEpoch(kind, int64(v))
			}
			n, err := decodeNumeric(raw, ir.DomainInvalid)
			if err != nil {
				return nil, err
			}
			epoch, ok := n.(ir.IRInt)
			if !ok {
				return nil, fmt.Errorf("%s is not an integral epoch", ir.Format(n))
			}
			return ir.TimeFromEpoch(kind, int64(epoch))
		},
	}
}

func listCodec(r *Registry) Codec {
	elements := func(v ir.IRValue, encode func(Codec) func(ir.IRValue) (any, error)) ([]any, error) {
		l, ok := v.(ir.IRList)
		if !ok {
			return nil, fmt.Errorf("expected list value, got %T", v)
		}
		out := make([]any, len(l))
		for i, elem := range l {
			if ir.IsNull(elem) {
				return nil, fmt.Errorf("list[%d] is null", i)
			}
			c, ok := r.Lookup(elem.Domain())
			if !ok {
				return nil, fmt.Errorf("list[%d]: no codec for %s", i, elem.Domain())
			}
			enc, err := encode(c)(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			out[i] = enc
		}
		return out, nil
	}

	return Codec{
		Domain: ir.DomainList,
		SQL: func(v ir.IRValue) (any, error) {
			elems, err := elements(v, func(c Codec) func(ir.IRValue) (any, error) { return c.SQL })
			if err != nil {
				return nil, err
			}
			return marshalJSONArray(elems)
		},
		Document: func(v ir.IRValue) (any, error) {
			elems, err := elements(v, func(c Codec) func(ir.IRValue) (any, error) { return c.Document })
			if err != nil {
				return nil, err
			}
			return bson.A(elems), nil
		},
		Decode: func(raw any, elem ir.Domain) (ir.IRValue, error) {
			c, ok := r.Lookup(elem)
			if !ok || elem == ir.DomainList {
				return nil, fmt.Errorf("no element codec for %s", elem)
			}
			var items []any
			switch v := raw.(type) {
			case bson.A:
				items = v
			case []any:
				items = v
			case string:
				parsed, err := unmarshalJSONArray([]byte(v))
				if err != nil {
					return nil, err
				}
				items = parsed
			case []byte:
				parsed, err := unmarshalJSONArray(v)
				if err != nil {
					return nil, err
				}
				items = parsed
			default:
				return nil, fmt.Errorf("cannot decode %T as list", raw)
			}
			out := make(ir.IRList, len(items))
			for i, item := range items {
				if item == nil {
					return nil, fmt.Errorf("list[%d] is null", i)
				}
				val, err := c.Decode(item, ir.DomainInvalid)
				if err != nil {
					return nil, fmt.Errorf("list[%d]: %w", i, err)
				}
				out[i] = val
			}
			return out, nil
		},
	}
}

// marshalJSONArray renders list storage text with HTML escaping disabled.
func marshalJSONArray(elems []any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(elems); err != nil {
		return "", fmt.Errorf("marshal list: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalJSONArray keeps numbers as json.Number so large integers survive.
func unmarshalJSONArray(data []byte) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var items []any
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("unmarshal list: %w", err)
	}
	return items, nil
}
