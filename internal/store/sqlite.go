package store

import (
	"database/sql"
	"fmt"
	"regexp"
	"sync"

	"github.com/mattn/go-sqlite3"
)

// sqliteDriver is go-sqlite3 with the connection hook below.
const sqliteDriver = "sqlite3_typewriter"

func init() {
	sql.Register(sqliteDriver, &sqlite3.SQLiteDriver{ConnectHook: initSQLite})
}

// initSQLite runs on every new SQLite connection.
func initSQLite(conn *sqlite3.SQLiteConn) error {
	if err := conn.RegisterFunc("regexp", sqliteRegexp, true); err != nil {
		return fmt.Errorf("register regexp: %w", err)
	}
	return applyPragmas(conn)
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(conn *sqlite3.SQLiteConn) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA case_sensitive_like = ON",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma, nil); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

var regexpCache sync.Map // pattern -> *regexp.Regexp

// sqliteRegexp implements "text REGEXP pattern": SQLite calls the function
// as regexp(pattern, text).
func sqliteRegexp(pattern, text string) (bool, error) {
	cached, ok := regexpCache.Load(pattern)
	if !ok {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, err
		}
		cached, _ = regexpCache.LoadOrStore(pattern, re)
	}
	return cached.(*regexp.Regexp).MatchString(text), nil
}
