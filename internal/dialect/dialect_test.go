package dialect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typewriter/internal/fault"
	"github.com/roach88/typewriter/internal/ir"
	"github.com/roach88/typewriter/internal/queryir"
)

func TestLookupByNameAndAlias(t *testing.T) {
	tests := map[string]*Dialect{
		"sqlite":     SQLite,
		"sqlite3":    SQLite,
		"postgres":   PostgreSQL,
		"PostgreSQL": PostgreSQL,
		"mysql":      MariaDB,
		"mariadb":    MariaDB,
		"duckdb":     DuckDB,
		"h2":         H2,
		"clickhouse": ClickHouse,
	}
	for name, want := range tests {
		got, err := Lookup(name)
		require.NoError(t, err, name)
		assert.Same(t, want, got, name)
	}

	_, err := Lookup("oracle")
	assert.Error(t, err)
}

func TestAllIsSortedAndUnique(t *testing.T) {
	var names []string
	for _, d := range All() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"clickhouse", "duckdb", "h2", "mariadb", "postgres", "sqlite"}, names)
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"name"`, SQLite.QuoteIdent("name"))
	assert.Equal(t, `"we""ird"`, PostgreSQL.QuoteIdent(`we"ird`))
	assert.Equal(t, "`order`", MariaDB.QuoteIdent("order"))
	assert.Equal(t, "`a``b`", ClickHouse.QuoteIdent("a`b"))
}

func TestPlaceholderRender(t *testing.T) {
	assert.Equal(t, "?", Question.Render(3))
	assert.Equal(t, "$3", Dollar.Render(3))
}

func TestEveryDialectCoversEveryDomainType(t *testing.T) {
	for _, d := range All() {
		for _, dom := range ir.AllDomains {
			typ, err := d.ColumnType(dom)
			require.NoError(t, err, "%s/%s", d.Name, dom)
			assert.NotEmpty(t, typ)
		}
		_, err := d.ColumnType(ir.DomainInvalid)
		assert.True(t, fault.IsUnsupportedDialectFeature(err))
	}
}

func TestEveryDialectRendersTheCore(t *testing.T) {
	core := []queryir.Op{
		queryir.OpEq, queryir.OpNe, queryir.OpGt, queryir.OpGte, queryir.OpLt, queryir.OpLte,
		queryir.OpBetween, queryir.OpIn, queryir.OpIsNull, queryir.OpIsNotNull,
		queryir.OpLike, queryir.OpStartsWith, queryir.OpContains, queryir.OpRegex,
		queryir.OpLengthLt, queryir.OpLengthGte,
	}
	for _, d := range All() {
		for _, op := range core {
			frag, err := d.Operator(op)
			require.NoError(t, err, "%s/%s", d.Name, op)
			assert.Contains(t, frag.Template, "{col}")
		}
		for _, fn := range []queryir.AccFunc{queryir.AccCount, queryir.AccAvg, queryir.AccSum, queryir.AccMin, queryir.AccMax} {
			name, err := d.Function(fn)
			require.NoError(t, err)
			assert.Equal(t, strings.ToUpper(fn.String()), strings.ToUpper(name))
		}
	}
}

func TestMissingFeaturesAreReported(t *testing.T) {
	tests := []struct {
		dialect *Dialect
		op      queryir.Op
	}{
		{PostgreSQL, queryir.OpListContains},
		{H2, queryir.OpListContains},
		{H2, queryir.OpSizeEq},
		{ClickHouse, queryir.OpListContains},
	}
	for _, tc := range tests {
		_, err := tc.dialect.Operator(tc.op)
		require.Error(t, err)
		var de *fault.UnsupportedDialectFeatureError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, tc.dialect.Name, de.Dialect)
		assert.Equal(t, "operator "+tc.op.String(), de.Feature)
	}

	_, err := SQLite.Function(queryir.AccDistinct)
	assert.True(t, fault.IsUnsupportedDialectFeature(err))
}

func TestSupportedOpsSorted(t *testing.T) {
	ops := H2.SupportedOps()
	for i := 1; i < len(ops); i++ {
		assert.Less(t, ops[i-1], ops[i])
	}
	assert.NotContains(t, ops, queryir.OpListContains)
	assert.Contains(t, SQLite.SupportedOps(), queryir.OpListContains)
}

func TestPatternRewrites(t *testing.T) {
	assert.Equal(t, ir.IRString("50!%!_off!!%"), prefixPattern(ir.IRString("50%_off!")))
	assert.Equal(t, ir.IRString("%a!%b%"), infixPattern(ir.IRString("a%b")))
	assert.Equal(t, ir.IRString(`a\\b%`), literalBackslash(ir.IRString(`a\b%`)))
	assert.Equal(t, ir.IRInt(1), prefixPattern(ir.IRInt(1)))
}
