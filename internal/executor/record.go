package executor

import (
	"strings"

	"github.com/roach88/typewriter/internal/ir"
	"github.com/roach88/typewriter/internal/queryir"
)

// Record is one decoded result row. Fields and Values are parallel.
type Record struct {
	Fields []queryir.Field
	Values []ir.IRValue
}

// Get returns the value of the named field.
func (r Record) Get(name string) (ir.IRValue, bool) {
	for i, f := range r.Fields {
		if f.Name == name {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Map returns the record keyed by field name.
func (r Record) Map() map[string]ir.IRValue {
	out := make(map[string]ir.IRValue, len(r.Fields))
	for i, f := range r.Fields {
		out[f.Name] = r.Values[i]
	}
	return out
}

// String renders the record as {name: value, ...} for logs and the CLI.
func (r Record) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f.Name)
		sb.WriteString(": ")
		sb.WriteString(ir.Format(r.Values[i]))
	}
	sb.WriteByte('}')
	return sb.String()
}
