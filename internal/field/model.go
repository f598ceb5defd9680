package field

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/typewriter/internal/codec"
	"github.com/roach88/typewriter/internal/ir"
	"github.com/roach88/typewriter/internal/queryir"
)

// Model is the schema of one record type: the table or collection it lives
// in, its identity field and every stored field.
type Model struct {
	source string
	id     queryir.Field
	fields []queryir.Field
	index  map[string]int
	codecs *codec.Registry
}

// NewModel declares a model. The identity field is stored first; every field
// must have a codec in reg.
func NewModel(reg *codec.Registry, source string, id queryir.FieldRef, fields ...queryir.FieldRef) (*Model, error) {
	if source == "" {
		return nil, fmt.Errorf("model has no source")
	}
	if reg == nil {
		reg = codec.Default
	}
	m := &Model{source: source, id: id.Ref(), index: make(map[string]int), codecs: reg}

	add := func(f queryir.Field) error {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("model %s: %w", source, err)
		}
		if !reg.Supports(f) {
			return fmt.Errorf("model %s: no codec for field %s", source, f)
		}
		if _, dup := m.index[f.Name]; dup {
			return fmt.Errorf("model %s: duplicate field %q", source, f.Name)
		}
		m.index[f.Name] = len(m.fields)
		m.fields = append(m.fields, f)
		return nil
	}

	if err := add(m.id); err != nil {
		return nil, err
	}
	if m.id.Domain == ir.DomainList {
		return nil, fmt.Errorf("model %s: identity field %q cannot be a list", source, m.id.Name)
	}
	for _, f := range fields {
		ref := f.Ref()
		if ref == m.id {
			continue
		}
		if err := add(ref); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Source returns the table or collection name.
func (m *Model) Source() string { return m.source }

// Identity returns the identity field.
func (m *Model) Identity() queryir.Field { return m.id }

// Fields returns every field, identity first, in declaration order.
func (m *Model) Fields() []queryir.Field { return slices.Clone(m.fields) }

// Lookup finds a field by storage name.
func (m *Model) Lookup(name string) (queryir.Field, bool) {
	i, ok := m.index[name]
	if !ok {
		return queryir.Field{}, false
	}
	return m.fields[i], true
}

// Codecs returns the registry the model was checked against.
func (m *Model) Codecs() *codec.Registry { return m.codecs }

// Query starts a plan over the model's source.
func (m *Model) Query() *queryir.Builder { return queryir.From(m.source) }

// Parse builds an untyped field from a type name as written in config and
// plan files: a domain name such as "numeric" or "local_date", or
// "list<elem>" for lists.
func Parse(name, typ string) (queryir.Field, error) {
	typ = strings.TrimSpace(typ)
	if inner, ok := strings.CutPrefix(typ, "list<"); ok {
		elemName, ok := strings.CutSuffix(inner, ">")
		if !ok {
			return queryir.Field{}, fmt.Errorf("field %q: malformed list type %q", name, typ)
		}
		elem, err := ir.ParseDomain(elemName)
		if err != nil {
			return queryir.Field{}, fmt.Errorf("field %q: %w", name, err)
		}
		f := queryir.Field{Name: name, Domain: ir.DomainList, Elem: elem}
		return f, f.Validate()
	}
	d, err := ir.ParseDomain(typ)
	if err != nil {
		return queryir.Field{}, fmt.Errorf("field %q: %w", name, err)
	}
	if d == ir.DomainList {
		return queryir.Field{}, fmt.Errorf("field %q: list type needs an element, e.g. list<string>", name)
	}
	f := queryir.Field{Name: name, Domain: d}
	return f, f.Validate()
}
