package querysql

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typewriter/internal/dialect"
	"github.com/roach88/typewriter/internal/fault"
	"github.com/roach88/typewriter/internal/field"
	"github.com/roach88/typewriter/internal/ir"
	"github.com/roach88/typewriter/internal/queryir"
)

var (
	id     = field.NewNumeric[int64]("id")
	name   = field.NewString("name")
	age    = field.NewNumeric[int]("age")
	active = field.NewBool("active")
	grade  = field.NewChar("grade")
	tags   = field.NewStringList("tags")
)

type goldenCase struct {
	name    string
	plan    *queryir.Builder
	compile func(*Coder, queryir.Plan) (Compiled, error)
}

func selectCase(name string, b *queryir.Builder) goldenCase {
	return goldenCase{name: name, plan: b, compile: (*Coder).Compile}
}

func goldenCases() []goldenCase {
	person := func() *queryir.Builder { return queryir.From("person") }
	return []goldenCase{
		selectCase("filter_sort_limit", person().
			Filter(age.Gt(15)).
			SortBy(name, queryir.Asc).
			Limit(10)),
		selectCase("nested_skip", person().
			Filter(queryir.And(
				age.Gte(18),
				queryir.Or(name.StartsWith("b_"), queryir.Not(active.Eq(true))),
			)).
			Skip(5)),
		selectCase("projection_page", person().
			Select(id, name).
			Filter(queryir.And(grade.In('a', 'b'), age.Between(1, 9), name.IsNull())).
			SortBy(age, queryir.Desc).
			SortBy(name, queryir.Asc).
			Skip(2).
			Limit(3)),
		selectCase("avg_grouped", person().
			Accumulate(queryir.Avg(age).WithDistinct().GroupedBy(active)).
			SortBy(active, queryir.Desc)),
		selectCase("count_filtered", person().
			Filter(age.Lt(30)).
			Accumulate(queryir.Count())),
		selectCase("string_ops", person().
			Filter(queryir.And(name.Like(`a\b%`), name.Regex("^b"), name.LengthGt(1)))),
		selectCase("list_ops", person().
			Filter(queryir.Or(tags.Contains("go"), tags.SizeGt(1)))),
		selectCase("distinct_values", person().
			Filter(age.Gt(1)).
			Accumulate(queryir.DistinctValues(name)).
			Limit(5)),
		{name: "count", plan: person().Filter(age.Gt(15)), compile: (*Coder).CompileCount},
		{name: "exists", plan: person().Filter(age.Gt(15)), compile: (*Coder).CompileExists},
		{name: "delete", plan: person().Filter(age.Gt(15)), compile: (*Coder).CompileDelete},
	}
}

func render(t *testing.T, coder *Coder) string {
	t.Helper()
	var sb strings.Builder
	for _, tc := range goldenCases() {
		plan, err := tc.plan.Build()
		require.NoError(t, err, tc.name)

		fmt.Fprintf(&sb, "-- %s\n", tc.name)
		compiled, err := tc.compile(coder, plan)
		if err != nil {
			fmt.Fprintf(&sb, "error: %v\n", err)
			continue
		}
		fmt.Fprintf(&sb, "%s\nparams: %v\n", compiled.SQL, compiled.Params)
	}
	return sb.String()
}

func TestCompileGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, d := range dialect.All() {
		t.Run(d.Name, func(t *testing.T) {
			g.Assert(t, d.Name, []byte(render(t, NewCoder(d, nil))))
		})
	}
}

func TestCompileDeterministic(t *testing.T) {
	for _, d := range dialect.All() {
		first := render(t, NewCoder(d, nil))
		second := render(t, NewCoder(d, nil))
		assert.Equal(t, first, second, d.Name)
	}
}

func TestCompileNeverInterpolatesOperands(t *testing.T) {
	hostile := `x'); DROP TABLE person; --`
	plan, err := queryir.From("person").
		Filter(queryir.Or(name.Eq(hostile), name.Contains(hostile))).
		Build()
	require.NoError(t, err)

	for _, d := range dialect.All() {
		compiled, err := NewCoder(d, nil).Compile(plan)
		require.NoError(t, err)
		assert.NotContains(t, compiled.SQL, "DROP", d.Name)
		assert.Len(t, compiled.Params, 2, d.Name)
		assert.Equal(t, hostile, compiled.Params[0], d.Name)
	}
}

func TestParameterOrderFollowsTraversal(t *testing.T) {
	plan, err := queryir.From("person").
		Filter(queryir.Or(
			queryir.And(age.Eq(1), age.Eq(2)),
			queryir.Not(queryir.Or(age.Eq(3), age.In(4, 5))),
		)).
		Skip(6).
		Limit(7).
		Build()
	require.NoError(t, err)

	compiled, err := NewCoder(dialect.PostgreSQL, nil).Compile(plan)
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT * FROM "person" WHERE (("age" = $1 AND "age" = $2) OR NOT (("age" = $3 OR "age" IN ($4, $5)))) LIMIT $6 OFFSET $7`,
		compiled.SQL)
	assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(4), int64(5), int64(7), int64(6)}, compiled.Params)
}

func TestMissingOperatorFailsWithoutFallback(t *testing.T) {
	plan, err := queryir.From("person").Filter(queryir.Not(tags.SizeEq(0))).Build()
	require.NoError(t, err)

	_, err = NewCoder(dialect.H2, nil).Compile(plan)
	require.Error(t, err)
	assert.True(t, fault.IsUnsupportedDialectFeature(err))
}

func TestColumnsDescribeResults(t *testing.T) {
	plan, err := queryir.From("person").Select(id, name).Build()
	require.NoError(t, err)
	compiled, err := NewCoder(dialect.SQLite, nil).Compile(plan)
	require.NoError(t, err)
	assert.Equal(t, []queryir.Field{id.Ref(), name.Ref()}, compiled.Columns)

	plan, err = queryir.From("person").Accumulate(queryir.Max(name).GroupedBy(active)).Build()
	require.NoError(t, err)
	compiled, err = NewCoder(dialect.SQLite, nil).Compile(plan)
	require.NoError(t, err)
	require.Len(t, compiled.Columns, 2)
	assert.Equal(t, active.Ref(), compiled.Columns[0])
	assert.Equal(t, ValueColumn, compiled.Columns[1].Name)
	assert.Equal(t, name.Ref().Domain, compiled.Columns[1].Domain)
}

func TestCompileDeleteRejectsPagination(t *testing.T) {
	plan, err := queryir.From("person").Filter(age.Gt(1)).Limit(1).Build()
	require.NoError(t, err)
	_, err = NewCoder(dialect.SQLite, nil).CompileDelete(plan)
	assert.True(t, fault.IsInvalidQuery(err))
}

func TestStatementIDIgnoresOperands(t *testing.T) {
	coder := NewCoder(dialect.SQLite, nil)
	a, err := queryir.From("person").Filter(age.Gt(1)).Build()
	require.NoError(t, err)
	b, err := queryir.From("person").Filter(age.Gt(2)).Build()
	require.NoError(t, err)

	ca, err := coder.Compile(a)
	require.NoError(t, err)
	cb, err := coder.Compile(b)
	require.NoError(t, err)
	assert.Equal(t, ca.StatementID(dialect.SQLite), cb.StatementID(dialect.SQLite))
	assert.NotEqual(t, ca.StatementID(dialect.SQLite), ca.StatementID(dialect.DuckDB))
}

func TestCompileUpsert(t *testing.T) {
	fields := []queryir.Field{id.Ref(), name.Ref(), age.Ref()}
	values := []ir.IRValue{ir.IRInt(1), ir.IRString("a"), ir.IRNull{}}

	tests := []struct {
		dialect *dialect.Dialect
		want    string
	}{
		{dialect.SQLite, `REPLACE INTO "person" ("id", "name", "age") VALUES (?, ?, ?)`},
		{dialect.PostgreSQL, `INSERT INTO "person" ("id", "name", "age") VALUES ($1, $2, $3) ON CONFLICT ("id") DO UPDATE SET "name" = EXCLUDED."name", "age" = EXCLUDED."age"`},
		{dialect.MariaDB, "REPLACE INTO `person` (`id`, `name`, `age`) VALUES (?, ?, ?)"},
		{dialect.DuckDB, `INSERT OR REPLACE INTO "person" ("id", "name", "age") VALUES (?, ?, ?)`},
		{dialect.H2, `MERGE INTO "person" ("id", "name", "age") KEY ("id") VALUES (?, ?, ?)`},
		{dialect.ClickHouse, "INSERT INTO `person` (`id`, `name`, `age`) VALUES (?, ?, ?)"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.Name, func(t *testing.T) {
			compiled, err := NewCoder(tt.dialect, nil).CompileUpsert("person", id.Ref(), fields, values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, compiled.SQL)
			assert.Equal(t, []any{int64(1), "a", nil}, compiled.Params)
		})
	}

	_, err := NewCoder(dialect.SQLite, nil).CompileUpsert("person", id.Ref(), fields[1:], values[1:])
	assert.True(t, fault.IsInvalidQuery(err))
}

func TestCompileCreateTable(t *testing.T) {
	fields := []queryir.Field{id.Ref(), name.Ref(), tags.Ref()}

	compiled, err := NewCoder(dialect.SQLite, nil).CompileCreateTable("person", id.Ref(), fields)
	require.NoError(t, err)
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "person" ("id" numeric PRIMARY KEY, "name" text, "tags" text)`, compiled.SQL)

	compiled, err = NewCoder(dialect.ClickHouse, nil).CompileCreateTable("person", id.Ref(), fields)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS `person` (`id` Decimal(38, 10) PRIMARY KEY, `name` String, `tags` String) ENGINE = ReplacingMergeTree ORDER BY `id`", compiled.SQL)
}
