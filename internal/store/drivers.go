package store

import (
	"database/sql"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/roach88/typewriter/internal/dialect"
)

// openDB creates the database/sql handle for d. It does not connect.
func openDB(d *dialect.Dialect, dsn string) (*sql.DB, error) {
	switch d.Driver {
	case "sqlite3":
		return sql.Open(sqliteDriver, dsn)
	case "pgx":
		cfg, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse postgres dsn: %w", err)
		}
		return stdlib.OpenDB(*cfg), nil
	case "mysql":
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		// Temporal columns hold epoch integers, never DATETIME.
		cfg.ParseTime = false
		return sql.Open("mysql", cfg.FormatDSN())
	case "duckdb":
		return sql.Open("duckdb", dsn)
	case "clickhouse":
		opts, err := clickhouse.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
		}
		return clickhouse.OpenDB(opts), nil
	case "":
		return nil, fmt.Errorf("dialect %s has no Go driver", d.Name)
	default:
		return nil, fmt.Errorf("unknown driver %q", d.Driver)
	}
}
