package executor

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/typewriter/internal/codec"
	"github.com/roach88/typewriter/internal/ir"
	"github.com/roach88/typewriter/internal/pool"
	"github.com/roach88/typewriter/internal/querydoc"
	"github.com/roach88/typewriter/internal/queryir"
	"github.com/roach88/typewriter/internal/querysql"
	"github.com/roach88/typewriter/internal/store"
)

// backend compiles plans. Compilation happens before a connection is
// acquired; the returned step runs the compiled statement on a pooled
// connection.
type backend interface {
	name() string
	query(p queryir.Plan) (queryStep, error)
	count(p queryir.Plan) (countStep, error)
	exists(p queryir.Plan) (existsStep, error)
	delete(p queryir.Plan) (countStep, error)
	save(source string, key queryir.Field, fields []queryir.Field, values []ir.IRValue) (execStep, error)
}

type (
	queryStep  func(ctx context.Context, conn pool.Conn) (rowSource, error)
	countStep  func(ctx context.Context, conn pool.Conn) (int64, error)
	existsStep func(ctx context.Context, conn pool.Conn) (bool, error)
	execStep   func(ctx context.Context, conn pool.Conn) error
)

// rowSource is a forward-only result. Scan returns the raw column values
// in Columns order.
type rowSource interface {
	Columns() []queryir.Field
	Next() bool
	Scan() ([]any, error)
	Err() error
	Close() error
}

// SQL

type sqlBackend struct {
	coder  *querysql.Coder
	codecs *codec.Registry
	logger *slog.Logger
}

func (b *sqlBackend) name() string { return b.coder.Dialect().Name }

func (b *sqlBackend) conn(c pool.Conn) (*store.SQLConn, error) {
	sc, ok := c.(*store.SQLConn)
	if !ok {
		return nil, fmt.Errorf("%s executor needs a SQL connection, got %T", b.name(), c)
	}
	return sc, nil
}

func (b *sqlBackend) logStatement(c querysql.Compiled) {
	b.logger.Debug("executing statement",
		"dialect", b.name(),
		"statement", c.StatementID(b.coder.Dialect()),
		"sql", c.SQL,
		"params", len(c.Params))
}

func (b *sqlBackend) run(ctx context.Context, conn pool.Conn, c querysql.Compiled) (*sql.Rows, error) {
	sc, err := b.conn(conn)
	if err != nil {
		return nil, err
	}
	b.logStatement(c)
	rows, err := sc.Query(ctx, c.SQL, c.Params...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", b.name(), err)
	}
	return rows, nil
}

func (b *sqlBackend) exec(ctx context.Context, conn pool.Conn, c querysql.Compiled) (int64, error) {
	sc, err := b.conn(conn)
	if err != nil {
		return 0, err
	}
	b.logStatement(c)
	n, err := sc.Exec(ctx, c.SQL, c.Params...)
	if err != nil {
		return 0, fmt.Errorf("exec %s: %w", b.name(), err)
	}
	return n, nil
}

func (b *sqlBackend) query(p queryir.Plan) (queryStep, error) {
	c, err := b.coder.Compile(p)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, conn pool.Conn) (rowSource, error) {
		rows, err := b.run(ctx, conn, c)
		if err != nil {
			return nil, err
		}
		return &sqlRows{rows: rows, columns: c.Columns}, nil
	}, nil
}

func (b *sqlBackend) count(p queryir.Plan) (countStep, error) {
	c, err := b.coder.CompileCount(p)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, conn pool.Conn) (int64, error) {
		rows, err := b.run(ctx, conn, c)
		if err != nil {
			return 0, err
		}
		src := &sqlRows{rows: rows, columns: c.Columns}
		defer src.Close()
		if !src.Next() {
			if err := src.Err(); err != nil {
				return 0, err
			}
			return 0, fmt.Errorf("count returned no rows")
		}
		raw, err := src.Scan()
		if err != nil {
			return 0, err
		}
		return decodeCount(b.codecs, c.Columns[0], raw[0])
	}, nil
}

func (b *sqlBackend) exists(p queryir.Plan) (existsStep, error) {
	c, err := b.coder.CompileExists(p)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, conn pool.Conn) (bool, error) {
		rows, err := b.run(ctx, conn, c)
		if err != nil {
			return false, err
		}
		defer rows.Close()
		found := rows.Next()
		return found, rows.Err()
	}, nil
}

func (b *sqlBackend) delete(p queryir.Plan) (countStep, error) {
	c, err := b.coder.CompileDelete(p)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, conn pool.Conn) (int64, error) {
		return b.exec(ctx, conn, c)
	}, nil
}

func (b *sqlBackend) save(source string, key queryir.Field, fields []queryir.Field, values []ir.IRValue) (execStep, error) {
	c, err := b.coder.CompileUpsert(source, key, fields, values)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, conn pool.Conn) error {
		_, err := b.exec(ctx, conn, c)
		return err
	}, nil
}

type sqlRows struct {
	rows    *sql.Rows
	columns []queryir.Field
}

func (r *sqlRows) Columns() []queryir.Field { return r.columns }
func (r *sqlRows) Next() bool               { return r.rows.Next() }
func (r *sqlRows) Err() error               { return r.rows.Err() }
func (r *sqlRows) Close() error             { return r.rows.Close() }

func (r *sqlRows) Scan() ([]any, error) {
	raw := make([]any, len(r.columns))
	dest := make([]any, len(raw))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := r.rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}
	return raw, nil
}

// Document

type docBackend struct {
	compiler *querydoc.Compiler
	codecs   *codec.Registry
	logger   *slog.Logger
}

func (b *docBackend) name() string { return "document" }

func (b *docBackend) conn(c pool.Conn) (store.DocumentConn, error) {
	dc, ok := c.(store.DocumentConn)
	if !ok {
		return nil, fmt.Errorf("document executor needs a document connection, got %T", c)
	}
	return dc, nil
}

func (b *docBackend) query(p queryir.Plan) (queryStep, error) {
	cmd, err := b.compiler.Compile(p)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, conn pool.Conn) (rowSource, error) {
		if cmd.Empty() {
			return emptyRows{columns: cmd.Columns}, nil
		}
		dc, err := b.conn(conn)
		if err != nil {
			return nil, err
		}

		var cur store.Cursor
		if cmd.IsAggregate() {
			b.logger.Debug("running pipeline", "collection", cmd.Collection, "stages", len(cmd.Pipeline))
			cur, err = dc.Aggregate(ctx, cmd.Collection, cmd.Pipeline)
		} else {
			b.logger.Debug("running find", "collection", cmd.Collection, "filter", cmd.Filter)
			cur, err = dc.Find(ctx, cmd)
		}
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", cmd.Collection, err)
		}
		return &docRows{ctx: ctx, cur: cur, columns: cmd.Columns}, nil
	}, nil
}

func (b *docBackend) count(p queryir.Plan) (countStep, error) {
	filter, err := b.compiler.Filter(p)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, conn pool.Conn) (int64, error) {
		dc, err := b.conn(conn)
		if err != nil {
			return 0, err
		}
		n, err := dc.CountDocuments(ctx, p.Source(), filter)
		if err != nil {
			return 0, fmt.Errorf("count %s: %w", p.Source(), err)
		}
		return n, nil
	}, nil
}

func (b *docBackend) exists(p queryir.Plan) (existsStep, error) {
	filter, err := b.compiler.Filter(p)
	if err != nil {
		return nil, err
	}
	cmd := querydoc.Command{
		Collection: p.Source(),
		Filter:     filter,
		Limit:      1,
		HasLimit:   true,
	}
	return func(ctx context.Context, conn pool.Conn) (bool, error) {
		dc, err := b.conn(conn)
		if err != nil {
			return false, err
		}
		cur, err := dc.Find(ctx, cmd)
		if err != nil {
			return false, fmt.Errorf("query %s: %w", p.Source(), err)
		}
		defer cur.Close(ctx)
		found := cur.Next(ctx)
		return found, cur.Err()
	}, nil
}

func (b *docBackend) delete(p queryir.Plan) (countStep, error) {
	filter, err := b.compiler.CompileDelete(p)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, conn pool.Conn) (int64, error) {
		dc, err := b.conn(conn)
		if err != nil {
			return 0, err
		}
		n, err := dc.DeleteMany(ctx, p.Source(), filter)
		if err != nil {
			return 0, fmt.Errorf("delete %s: %w", p.Source(), err)
		}
		return n, nil
	}, nil
}

func (b *docBackend) save(source string, key queryir.Field, fields []queryir.Field, values []ir.IRValue) (execStep, error) {
	if len(fields) != len(values) {
		return nil, fmt.Errorf("save %s: %d fields, %d values", source, len(fields), len(values))
	}
	doc := make(bson.D, 0, len(fields))
	var id bson.E
	found := false
	for i, f := range fields {
		v, err := b.codecs.EncodeDocument(values[i])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", f.Name, err)
		}
		doc = append(doc, bson.E{Key: f.Name, Value: v})
		if f.Name == key.Name {
			id, found = bson.E{Key: f.Name, Value: v}, true
		}
	}
	if !found {
		return nil, fmt.Errorf("save %s: identity field %q has no value", source, key.Name)
	}
	return func(ctx context.Context, conn pool.Conn) error {
		dc, err := b.conn(conn)
		if err != nil {
			return err
		}
		if err := dc.ReplaceOne(ctx, source, id, doc); err != nil {
			return fmt.Errorf("save %s: %w", source, err)
		}
		return nil
	}, nil
}

type docRows struct {
	ctx     context.Context
	cur     store.Cursor
	columns []queryir.Field
}

func (r *docRows) Columns() []queryir.Field { return r.columns }
func (r *docRows) Next() bool               { return r.cur.Next(r.ctx) }
func (r *docRows) Err() error               { return r.cur.Err() }
func (r *docRows) Close() error             { return r.cur.Close(r.ctx) }

func (r *docRows) Scan() ([]any, error) {
	var doc bson.M
	if err := r.cur.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	raw := make([]any, len(r.columns))
	for i, f := range r.columns {
		raw[i] = doc[f.Name]
	}
	return raw, nil
}

// emptyRows is the result of a command that can match nothing.
type emptyRows struct {
	columns []queryir.Field
}

func (e emptyRows) Columns() []queryir.Field { return e.columns }
func (emptyRows) Next() bool                 { return false }
func (emptyRows) Scan() ([]any, error)       { return nil, fmt.Errorf("no rows") }
func (emptyRows) Err() error                 { return nil }
func (emptyRows) Close() error               { return nil }

func decodeCount(reg *codec.Registry, f queryir.Field, raw any) (int64, error) {
	v, err := reg.Decode(f, raw)
	if err != nil {
		return 0, err
	}
	n, ok := v.(ir.IRInt)
	if !ok {
		return 0, fmt.Errorf("count decoded as %s", ir.Format(v))
	}
	return int64(n), nil
}
