// Package store connects executors to their backends.
//
// SQL backends are reached through database/sql with one physical
// connection per pooled entry:
//   - sqlite: github.com/mattn/go-sqlite3 with a REGEXP function and pragmas
//     installed on every connection
//   - postgres: github.com/jackc/pgx/v5 (stdlib adapter)
//   - mariadb: github.com/go-sql-driver/mysql
//   - duckdb: github.com/duckdb/duckdb-go/v2
//   - clickhouse: github.com/ClickHouse/clickhouse-go/v2
//
// Document backends implement DocumentConn: MongoDB through the official
// driver, and MemoryStore, an in-process collection set that evaluates the
// filters and pipelines querydoc emits.
//
// # SQLite configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - case_sensitive_like=ON: LIKE compares bytes, as document regexes do
//
// Connection failures are reported as *fault.ConnectFailureError.
package store
