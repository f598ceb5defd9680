package dialect

import (
	"maps"
	"strings"

	"github.com/roach88/typewriter/internal/ir"
	"github.com/roach88/typewriter/internal/queryir"
)

// likeEscape is the escape character of generated LIKE patterns.
const likeEscape = "!"

var likeEscaper = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")

func mapString(v ir.IRValue, fn func(string) string) ir.IRValue {
	if s, ok := v.(ir.IRString); ok {
		return ir.IRString(fn(string(s)))
	}
	return v
}

// prefixPattern turns a literal prefix into an escaped LIKE pattern.
func prefixPattern(v ir.IRValue) ir.IRValue {
	return mapString(v, func(s string) string { return likeEscaper.Replace(s) + "%" })
}

// infixPattern turns a literal substring into an escaped LIKE pattern.
func infixPattern(v ir.IRValue) ir.IRValue {
	return mapString(v, func(s string) string { return "%" + likeEscaper.Replace(s) + "%" })
}

// literalBackslash keeps a backslash literal on backends whose LIKE treats
// it as the default escape character.
func literalBackslash(v ir.IRValue) ir.IRValue {
	return mapString(v, func(s string) string { return strings.ReplaceAll(s, `\`, `\\`) })
}

func baseOperators() map[queryir.Op]Fragment {
	return map[queryir.Op]Fragment{
		queryir.OpEq:        {Template: "{col} = ?"},
		queryir.OpNe:        {Template: "{col} <> ?"},
		queryir.OpGt:        {Template: "{col} > ?"},
		queryir.OpGte:       {Template: "{col} >= ?"},
		queryir.OpLt:        {Template: "{col} < ?"},
		queryir.OpLte:       {Template: "{col} <= ?"},
		queryir.OpBetween:   {Template: "{col} BETWEEN ? AND ?"},
		queryir.OpIn:        {Template: "{col} IN (?...)"},
		queryir.OpIsNull:    {Template: "{col} IS NULL"},
		queryir.OpIsNotNull: {Template: "{col} IS NOT NULL"},
		queryir.OpLike:      {Template: "{col} LIKE ?", Rewrite: literalBackslash},
	}
}

// lengthOperators renders the string length comparisons with fn.
func lengthOperators(fn string) map[queryir.Op]Fragment {
	return map[queryir.Op]Fragment{
		queryir.OpLengthLt:  {Template: fn + "({col}) < ?"},
		queryir.OpLengthLte: {Template: fn + "({col}) <= ?"},
		queryir.OpLengthGt:  {Template: fn + "({col}) > ?"},
		queryir.OpLengthGte: {Template: fn + "({col}) >= ?"},
	}
}

// likeSearch renders prefix and substring search as escaped LIKE patterns.
func likeSearch() map[queryir.Op]Fragment {
	return map[queryir.Op]Fragment{
		queryir.OpStartsWith: {Template: "{col} LIKE ? ESCAPE '" + likeEscape + "'", Rewrite: prefixPattern},
		queryir.OpContains:   {Template: "{col} LIKE ? ESCAPE '" + likeEscape + "'", Rewrite: infixPattern},
	}
}

func operators(groups ...map[queryir.Op]Fragment) map[queryir.Op]Fragment {
	out := baseOperators()
	for _, g := range groups {
		maps.Copy(out, g)
	}
	return out
}

var standardFunctions = map[queryir.AccFunc]string{
	queryir.AccCount: "COUNT",
	queryir.AccMin:   "MIN",
	queryir.AccMax:   "MAX",
	queryir.AccAvg:   "AVG",
	queryir.AccSum:   "SUM",
}

// SQLite uses the REGEXP user function installed by the store connector and
// stores lists as JSON text.
var SQLite = register(&Dialect{
	Name:        "sqlite",
	Aliases:     []string{"sqlite3"},
	Driver:      "sqlite3",
	Quote:       '"',
	Placeholder: Question,
	Types: map[ir.Domain]string{
		ir.DomainNumeric:        "numeric",
		ir.DomainString:         "text",
		ir.DomainBool:           "integer",
		ir.DomainChar:           "text",
		ir.DomainList:           "text",
		ir.DomainDate:           "integer",
		ir.DomainLocalDate:      "integer",
		ir.DomainLocalTime:      "integer",
		ir.DomainLocalDateTime:  "integer",
		ir.DomainOffsetDateTime: "integer",
		ir.DomainZonedDateTime:  "integer",
	},
	Operators: operators(
		map[queryir.Op]Fragment{
			queryir.OpLike:  {Template: "{col} LIKE ?"},
			queryir.OpRegex: {Template: "CASE WHEN {col} IS NULL THEN NULL ELSE {col} REGEXP ? END"},
			queryir.OpListContains: {
				Template: "CASE WHEN {col} IS NULL THEN NULL ELSE EXISTS (SELECT 1 FROM json_each({col}) WHERE json_each.value = ?) END",
			},
			queryir.OpSizeEq: {Template: "json_array_length({col}) = ?"},
			queryir.OpSizeGt: {Template: "json_array_length({col}) > ?"},
		},
		likeSearch(),
		lengthOperators("LENGTH"),
	),
	Functions: standardFunctions,
	Pagination: Pagination{
		Both:      "LIMIT {limit} OFFSET {offset}",
		LimitOnly: "LIMIT {limit}",
		SkipOnly:  "LIMIT -1 OFFSET {offset}",
	},
	Upsert: "REPLACE INTO {table} ({columns}) VALUES ({values})",
})

// PostgreSQL binds numbered parameters. Lists are jsonb; list membership
// has no parameter-typed rendering and is not supported.
var PostgreSQL = register(&Dialect{
	Name:        "postgres",
	Aliases:     []string{"postgresql", "pgx"},
	Driver:      "pgx",
	Quote:       '"',
	Placeholder: Dollar,
	Types: map[ir.Domain]string{
		ir.DomainNumeric:        "numeric",
		ir.DomainString:         "text",
		ir.DomainBool:           "boolean",
		ir.DomainChar:           "varchar(1)",
		ir.DomainList:           "jsonb",
		ir.DomainDate:           "bigint",
		ir.DomainLocalDate:      "bigint",
		ir.DomainLocalTime:      "bigint",
		ir.DomainLocalDateTime:  "bigint",
		ir.DomainOffsetDateTime: "bigint",
		ir.DomainZonedDateTime:  "bigint",
	},
	Operators: operators(
		map[queryir.Op]Fragment{
			queryir.OpStartsWith: {Template: "starts_with({col}, ?)"},
			queryir.OpContains:   {Template: "strpos({col}, ?) > 0"},
			queryir.OpRegex:      {Template: "{col} ~ ?"},
			queryir.OpSizeEq:     {Template: "jsonb_array_length(({col})::jsonb) = ?"},
			queryir.OpSizeGt:     {Template: "jsonb_array_length(({col})::jsonb) > ?"},
		},
		lengthOperators("char_length"),
	),
	Functions: standardFunctions,
	Pagination: Pagination{
		Both:      "LIMIT {limit} OFFSET {offset}",
		LimitOnly: "LIMIT {limit}",
		SkipOnly:  "OFFSET {offset}",
	},
	Upsert: "INSERT INTO {table} ({columns}) VALUES ({values}) ON CONFLICT ({key}) DO UPDATE SET {updates}",
})

// MariaDB also serves MySQL.
var MariaDB = register(&Dialect{
	Name:        "mariadb",
	Aliases:     []string{"mysql"},
	Driver:      "mysql",
	Quote:       '`',
	Placeholder: Question,
	Types: map[ir.Domain]string{
		ir.DomainNumeric:        "DECIMAL(38,10)",
		ir.DomainString:         "TEXT",
		ir.DomainBool:           "BOOLEAN",
		ir.DomainChar:           "CHAR(1)",
		ir.DomainList:           "JSON",
		ir.DomainDate:           "BIGINT",
		ir.DomainLocalDate:      "BIGINT",
		ir.DomainLocalTime:      "BIGINT",
		ir.DomainLocalDateTime:  "BIGINT",
		ir.DomainOffsetDateTime: "BIGINT",
		ir.DomainZonedDateTime:  "BIGINT",
	},
	Operators: operators(
		map[queryir.Op]Fragment{
			queryir.OpRegex:        {Template: "{col} REGEXP ?"},
			queryir.OpListContains: {Template: "JSON_CONTAINS({col}, JSON_ARRAY(?))"},
			queryir.OpSizeEq:       {Template: "JSON_LENGTH({col}) = ?"},
			queryir.OpSizeGt:       {Template: "JSON_LENGTH({col}) > ?"},
		},
		likeSearch(),
		lengthOperators("CHAR_LENGTH"),
	),
	Functions: standardFunctions,
	Pagination: Pagination{
		Both:      "LIMIT {limit} OFFSET {offset}",
		LimitOnly: "LIMIT {limit}",
		SkipOnly:  "LIMIT 18446744073709551615 OFFSET {offset}",
	},
	Upsert: "REPLACE INTO {table} ({columns}) VALUES ({values})",
})

// DuckDB keeps lists as JSON and uses its json extension for membership.
var DuckDB = register(&Dialect{
	Name:        "duckdb",
	Driver:      "duckdb",
	Quote:       '"',
	Placeholder: Question,
	Types: map[ir.Domain]string{
		ir.DomainNumeric:        "DOUBLE",
		ir.DomainString:         "VARCHAR",
		ir.DomainBool:           "BOOLEAN",
		ir.DomainChar:           "VARCHAR",
		ir.DomainList:           "JSON",
		ir.DomainDate:           "BIGINT",
		ir.DomainLocalDate:      "BIGINT",
		ir.DomainLocalTime:      "BIGINT",
		ir.DomainLocalDateTime:  "BIGINT",
		ir.DomainOffsetDateTime: "BIGINT",
		ir.DomainZonedDateTime:  "BIGINT",
	},
	Operators: operators(
		map[queryir.Op]Fragment{
			queryir.OpLike:         {Template: "{col} LIKE ?"},
			queryir.OpStartsWith:   {Template: "starts_with({col}, ?)"},
			queryir.OpContains:     {Template: "contains({col}, ?)"},
			queryir.OpRegex:        {Template: "regexp_matches({col}, ?)"},
			queryir.OpListContains: {Template: "json_contains({col}, to_json(?))"},
			queryir.OpSizeEq:       {Template: "json_array_length({col}) = ?"},
			queryir.OpSizeGt:       {Template: "json_array_length({col}) > ?"},
		},
		lengthOperators("length"),
	),
	Functions: standardFunctions,
	Pagination: Pagination{
		Both:      "LIMIT {limit} OFFSET {offset}",
		LimitOnly: "LIMIT {limit}",
		SkipOnly:  "OFFSET {offset}",
	},
	Upsert: "INSERT OR REPLACE INTO {table} ({columns}) VALUES ({values})",
})

// H2 has no Go driver; the descriptor serves statement generation for JVM
// consumers. Lists have no portable rendering on H2.
var H2 = register(&Dialect{
	Name:        "h2",
	Quote:       '"',
	Placeholder: Question,
	Types: map[ir.Domain]string{
		ir.DomainNumeric:        "DECIMAL",
		ir.DomainString:         "VARCHAR",
		ir.DomainBool:           "BOOLEAN",
		ir.DomainChar:           "CHAR(1)",
		ir.DomainList:           "JSON",
		ir.DomainDate:           "BIGINT",
		ir.DomainLocalDate:      "BIGINT",
		ir.DomainLocalTime:      "BIGINT",
		ir.DomainLocalDateTime:  "BIGINT",
		ir.DomainOffsetDateTime: "BIGINT",
		ir.DomainZonedDateTime:  "BIGINT",
	},
	Operators: operators(
		map[queryir.Op]Fragment{
			queryir.OpRegex: {Template: "REGEXP_LIKE({col}, ?)"},
		},
		likeSearch(),
		lengthOperators("CHAR_LENGTH"),
	),
	Functions: standardFunctions,
	Pagination: Pagination{
		Both:      "OFFSET {offset} ROWS FETCH NEXT {limit} ROWS ONLY",
		LimitOnly: "FETCH FIRST {limit} ROWS ONLY",
		SkipOnly:  "OFFSET {offset} ROWS",
	},
	Upsert: "MERGE INTO {table} ({columns}) KEY ({key}) VALUES ({values})",
})

// ClickHouse inlines pagination values; LIMIT must be a constant there.
var ClickHouse = register(&Dialect{
	Name:        "clickhouse",
	Driver:      "clickhouse",
	Quote:       '`',
	Placeholder: Question,
	Types: map[ir.Domain]string{
		ir.DomainNumeric:        "Decimal(38, 10)",
		ir.DomainString:         "String",
		ir.DomainBool:           "Bool",
		ir.DomainChar:           "String",
		ir.DomainList:           "String",
		ir.DomainDate:           "Int64",
		ir.DomainLocalDate:      "Int64",
		ir.DomainLocalTime:      "Int64",
		ir.DomainLocalDateTime:  "Int64",
		ir.DomainOffsetDateTime: "Int64",
		ir.DomainZonedDateTime:  "Int64",
	},
	Operators: operators(
		map[queryir.Op]Fragment{
			queryir.OpStartsWith: {Template: "startsWith({col}, ?)"},
			queryir.OpContains:   {Template: "position({col}, ?) > 0"},
			queryir.OpRegex:      {Template: "match({col}, ?)"},
			queryir.OpSizeEq:     {Template: "JSONLength({col}) = ?"},
			queryir.OpSizeGt:     {Template: "JSONLength({col}) > ?"},
		},
		lengthOperators("lengthUTF8"),
	),
	Functions: map[queryir.AccFunc]string{
		queryir.AccCount: "count",
		queryir.AccMin:   "min",
		queryir.AccMax:   "max",
		queryir.AccAvg:   "avg",
		queryir.AccSum:   "sum",
	},
	Pagination: Pagination{
		Both:      "LIMIT {limit} OFFSET {offset}",
		LimitOnly: "LIMIT {limit}",
		SkipOnly:  "OFFSET {offset} ROWS",
		Inline:    true,
	},
	// ReplacingMergeTree tables collapse rows sharing a key on merge.
	Upsert:      "INSERT INTO {table} ({columns}) VALUES ({values})",
	CreateTable: "CREATE TABLE IF NOT EXISTS {table} ({definitions}) ENGINE = ReplacingMergeTree ORDER BY {key}",
})
