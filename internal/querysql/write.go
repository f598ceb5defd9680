package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/typewriter/internal/dialect"
	"github.com/roach88/typewriter/internal/fault"
	"github.com/roach88/typewriter/internal/ir"
	"github.com/roach88/typewriter/internal/queryir"
)

// CompileUpsert renders the dialect's insert-or-replace statement for one
// record. fields and values are parallel; key must be among fields.
func (c *Coder) CompileUpsert(source string, key queryir.Field, fields []queryir.Field, values []ir.IRValue) (Compiled, error) {
	if len(fields) != len(values) {
		return Compiled{}, fault.InvalidQuery("upsert of %d fields got %d values", len(fields), len(values))
	}
	if c.dialect.Upsert == "" {
		return Compiled{}, &fault.UnsupportedDialectFeatureError{Dialect: c.dialect.Name, Feature: "upsert"}
	}

	st := c.newStatement()
	columns := make([]string, len(fields))
	placeholders := make([]string, len(fields))
	var updates []string
	hasKey := false
	for i, f := range fields {
		enc, err := c.codecs.EncodeSQL(values[i])
		if err != nil {
			return Compiled{}, fmt.Errorf("encode %q: %w", f.Name, err)
		}
		col := st.quote(f.Name)
		columns[i] = col
		placeholders[i] = st.bind(enc)
		if f.Name == key.Name {
			hasKey = true
			continue
		}
		updates = append(updates, col+" = EXCLUDED."+col)
	}
	if !hasKey {
		return Compiled{}, fault.InvalidQuery("upsert into %q does not set key %q", source, key.Name)
	}

	r := strings.NewReplacer(
		"{table}", st.quote(source),
		"{columns}", strings.Join(columns, ", "),
		"{values}", strings.Join(placeholders, ", "),
		"{key}", st.quote(key.Name),
		"{updates}", strings.Join(updates, ", "),
	)
	st.sb.WriteString(r.Replace(c.dialect.Upsert))
	return st.compiled(nil), nil
}

// CompileCreateTable renders a table definition from the dialect type map,
// with key as the primary key. It serves fixtures and tooling; schema
// migration is left to external tools.
func (c *Coder) CompileCreateTable(source string, key queryir.Field, fields []queryir.Field) (Compiled, error) {
	defs := make([]string, len(fields))
	for i, f := range fields {
		typ, err := c.dialect.ColumnType(f.Domain)
		if err != nil {
			return Compiled{}, err
		}
		def := c.dialect.QuoteIdent(f.Name) + " " + typ
		if f.Name == key.Name {
			def += " PRIMARY KEY"
		}
		defs[i] = def
	}

	tmpl := c.dialect.CreateTable
	if tmpl == "" {
		tmpl = dialect.DefaultCreateTable
	}
	r := strings.NewReplacer(
		"{table}", c.dialect.QuoteIdent(source),
		"{definitions}", strings.Join(defs, ", "),
		"{key}", c.dialect.QuoteIdent(key.Name),
	)
	return Compiled{SQL: r.Replace(tmpl)}, nil
}
