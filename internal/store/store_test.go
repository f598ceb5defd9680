package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/roach88/typewriter/internal/dialect"
	"github.com/roach88/typewriter/internal/fault"
)

func openSQLite(t *testing.T) *SQLConn {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	c, err := Open(context.Background(), dialect.SQLite, path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// queryRow scans the first row of query into dest.
func queryRow(c *SQLConn, dest any, query string, args ...any) error {
	rows, err := c.Query(context.Background(), query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return sql.ErrNoRows
	}
	if err := rows.Scan(dest); err != nil {
		return err
	}
	return rows.Err()
}

// verifyPragma checks that a pragma is set to the expected value.
func verifyPragma(c *SQLConn, name, expected string) error {
	var value string
	if err := queryRow(c, &value, "PRAGMA "+name); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

func TestOpen_CreatesDatabase(t *testing.T) {
	c := openSQLite(t)

	if c.Dialect() != dialect.SQLite {
		t.Errorf("Dialect() = %v, want sqlite", c.Dialect().Name)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping() failed: %v", err)
	}
}

func TestOpen_NoDriver(t *testing.T) {
	_, err := Open(context.Background(), dialect.H2, "mem:test")
	if err == nil {
		t.Fatal("Open() should fail for a dialect without a driver")
	}
	if !fault.IsConnectFailure(err) {
		t.Errorf("error = %v, want a connect failure", err)
	}
}

func TestDialer_OpensConnections(t *testing.T) {
	dial := Dialer(dialect.SQLite, filepath.Join(t.TempDir(), "dial.db"))
	conn, err := dial(context.Background())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if _, ok := conn.(*SQLConn); !ok {
		t.Errorf("dialed %T, want *SQLConn", conn)
	}
}

func TestClose_MultipleCalls(t *testing.T) {
	c := openSQLite(t)
	if err := c.Close(); err != nil {
		t.Fatalf("first Close() failed: %v", err)
	}
	// database/sql tolerates a second close.
	if err := c.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
}

func TestClose_NilDB(t *testing.T) {
	c := &SQLConn{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil db failed: %v", err)
	}
}

func TestExec_ReportsRowsAffected(t *testing.T) {
	c := openSQLite(t)
	ctx := context.Background()

	if _, err := c.Exec(ctx, "CREATE TABLE t (id integer PRIMARY KEY, name text)"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	n, err := c.Exec(ctx, "INSERT INTO t (id, name) VALUES (?, ?), (?, ?)", 1, "a", 2, "b")
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if n != 2 {
		t.Errorf("rows affected = %d, want 2", n)
	}

	rows, err := c.Query(ctx, "SELECT name FROM t ORDER BY id")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		names = append(names, s)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("names = %v, want [a b]", names)
	}
}

// Pragma tests

func TestPragma_JournalMode(t *testing.T) {
	c := openSQLite(t)
	if err := verifyPragma(c, "journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_Synchronous(t *testing.T) {
	c := openSQLite(t)
	// NORMAL = 1
	if err := verifyPragma(c, "synchronous", "1"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	c := openSQLite(t)
	if err := verifyPragma(c, "busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

func TestSQLite_LikeIsCaseSensitive(t *testing.T) {
	c := openSQLite(t)

	var matched bool
	if err := queryRow(c, &matched, "SELECT 'ABC' LIKE 'a%'"); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if matched {
		t.Error("LIKE matched across case")
	}
	if err := queryRow(c, &matched, "SELECT 'abc' LIKE 'a%'"); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if !matched {
		t.Error("LIKE did not match same case")
	}
}

func TestSQLite_Regexp(t *testing.T) {
	c := openSQLite(t)

	tests := []struct {
		text    string
		pattern string
		want    bool
	}{
		{"hello", "^h.*o$", true},
		{"hello", "^H", false},
		{"a1b2", `\d`, true},
	}
	for _, tt := range tests {
		var got bool
		err := queryRow(c, &got, "SELECT ? REGEXP ?", tt.text, tt.pattern)
		if err != nil {
			t.Fatalf("%q REGEXP %q failed: %v", tt.text, tt.pattern, err)
		}
		if got != tt.want {
			t.Errorf("%q REGEXP %q = %v, want %v", tt.text, tt.pattern, got, tt.want)
		}
	}
}

func TestSQLite_RegexpInvalidPattern(t *testing.T) {
	c := openSQLite(t)

	var got bool
	if err := queryRow(c, &got, "SELECT 'x' REGEXP '('"); err == nil {
		t.Error("invalid pattern should fail")
	}
}
