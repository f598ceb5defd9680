package codec

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/typewriter/internal/fault"
	"github.com/roach88/typewriter/internal/ir"
	"github.com/roach88/typewriter/internal/queryir"
)

var (
	age   = queryir.Field{Name: "age", Domain: ir.DomainNumeric}
	flag  = queryir.Field{Name: "flag", Domain: ir.DomainBool}
	grade = queryir.Field{Name: "grade", Domain: ir.DomainChar}
	tags  = queryir.Field{Name: "tags", Domain: ir.DomainList, Elem: ir.DomainString}
	born  = queryir.Field{Name: "born", Domain: ir.DomainLocalDate}
	seen  = queryir.Field{Name: "seen", Domain: ir.DomainDate}
)

func TestDecodeNumericDriverShapes(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name string
		raw  any
		want ir.IRValue
	}{
		{"int64", int64(20), ir.IRInt(20)},
		{"int32", int32(-3), ir.IRInt(-3)},
		{"uint8", uint8(7), ir.IRInt(7)},
		{"float64", 20.5, ir.IRFloat(20.5)},
		{"decimal text", []byte("20.0000"), ir.IRInt(20)},
		{"fractional text", "3.25", ir.IRFloat(3.25)},
		{"big int", big.NewInt(60), ir.IRInt(60)},
		{"shopspring", decimal.RequireFromString("1.5"), ir.IRFloat(1.5)},
		{"json number", json.Number("42"), ir.IRInt(42)},
		{"bson decimal", mustDecimal128(t, "12.5"), ir.IRFloat(12.5)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Decode(age, tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func mustDecimal128(t *testing.T, s string) bson.Decimal128 {
	t.Helper()
	d, err := bson.ParseDecimal128(s)
	require.NoError(t, err)
	return d
}

func TestDecodeNilIsNull(t *testing.T) {
	r := NewRegistry()
	for _, f := range []queryir.Field{age, flag, tags, born} {
		v, err := r.Decode(f, nil)
		require.NoError(t, err)
		assert.Equal(t, ir.IRNull{}, v)
	}
}

func TestDecodeFailuresAreDecodeErrors(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name  string
		field queryir.Field
		raw   any
	}{
		{"text as numeric", age, "twenty"},
		{"struct as numeric", age, struct{}{}},
		{"bool out of range", flag, int64(2)},
		{"two chars", grade, "ab"},
		{"bad list json", tags, "[1,"},
		{"list element type", tags, `[1]`},
		{"null list element", tags, bson.A{"a", nil}},
		{"fractional epoch", born, 1.5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Decode(tc.field, tc.raw)
			require.Error(t, err)
			require.True(t, fault.IsDecode(err), "got %v", err)

			var de *fault.DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tc.field.Name, de.Field)
			assert.Equal(t, tc.field.Domain.String(), de.Domain)
		})
	}
}

func TestDecodeBoolAndChar(t *testing.T) {
	r := NewRegistry()

	v, err := r.Decode(flag, int64(1))
	require.NoError(t, err)
	assert.Equal(t, ir.IRBool(true), v)

	v, err = r.Decode(flag, []byte("false"))
	require.NoError(t, err)
	assert.Equal(t, ir.IRBool(false), v)

	v, err = r.Decode(grade, "é")
	require.NoError(t, err)
	assert.Equal(t, ir.IRChar('é'), v)
}

func TestListEncoding(t *testing.T) {
	r := NewRegistry()
	list := ir.NewIRList(ir.IRString("go"), ir.IRString("<db>"))

	sqlVal, err := r.EncodeSQL(list)
	require.NoError(t, err)
	assert.Equal(t, `["go","<db>"]`, sqlVal)

	docVal, err := r.EncodeDocument(list)
	require.NoError(t, err)
	assert.Equal(t, bson.A{"go", "<db>"}, docVal)

	back, err := r.Decode(tags, sqlVal)
	require.NoError(t, err)
	assert.True(t, ir.Equal(list, back))

	back, err = r.Decode(tags, docVal)
	require.NoError(t, err)
	assert.True(t, ir.Equal(list, back))
}

func TestTemporalEncoding(t *testing.T) {
	r := NewRegistry()
	at := time.Date(2022, 3, 14, 15, 9, 26, 535_000_000, time.UTC)

	day := ir.MustTime(ir.DomainLocalDate, at)
	sqlVal, err := r.EncodeSQL(day)
	require.NoError(t, err)
	assert.Equal(t, int64(19065), sqlVal)
	docVal, err := r.EncodeDocument(day)
	require.NoError(t, err)
	assert.Equal(t, int64(19065), docVal)

	instant := ir.MustTime(ir.DomainDate, at)
	sqlVal, err = r.EncodeSQL(instant)
	require.NoError(t, err)
	assert.Equal(t, at.UnixMilli(), sqlVal)
	docVal, err = r.EncodeDocument(instant)
	require.NoError(t, err)
	assert.Equal(t, bson.DateTime(at.UnixMilli()), docVal)

	back, err := r.Decode(seen, docVal)
	require.NoError(t, err)
	assert.True(t, ir.Equal(instant, back))

	back, err = r.Decode(born, int64(19065))
	require.NoError(t, err)
	assert.True(t, ir.Equal(day, back))

	back, err = r.Decode(born, at.In(time.FixedZone("x", 3600)))
	require.NoError(t, err)
	assert.True(t, ir.Equal(day, back))
}

func TestEncodeRejectsWrongDomain(t *testing.T) {
	r := NewRegistry()
	c, ok := r.Lookup(ir.DomainLocalDate)
	require.True(t, ok)
	_, err := c.SQL(ir.MustTime(ir.DomainDate, time.Unix(0, 0)))
	assert.Error(t, err)

	v, err := r.EncodeSQL(ir.IRNull{})
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestRegisterOverridesAndSupports(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Supports(tags))
	assert.False(t, r.Supports(queryir.Field{Name: "x", Domain: ir.DomainInvalid}))

	err := r.Register(Codec{Domain: ir.DomainString})
	assert.Error(t, err)

	upper := Codec{
		Domain:   ir.DomainString,
		SQL:      encodeString,
		Document: encodeString,
		Decode: func(raw any, _ ir.Domain) (ir.IRValue, error) {
			return ir.IRString("decoded"), nil
		},
	}
	require.NoError(t, r.Register(upper))
	v, err := r.Decode(queryir.Field{Name: "s", Domain: ir.DomainString}, "x")
	require.NoError(t, err)
	assert.Equal(t, ir.IRString("decoded"), v)
}
