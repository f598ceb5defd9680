// Package codec converts between IR values and the representations backends
// store: database/sql driver arguments, bson values, and the raw values rows
// and documents come back with.
//
// Temporal values are stored in their integer epoch encoding on SQL backends
// (see ir.IRTime.Epoch). Document stores keep instant kinds as bson dates and
// civil kinds as integers. Lists are JSON array text on SQL backends and bson
// arrays in documents.
package codec

import (
	"fmt"
	"sync"

	"github.com/roach88/typewriter/internal/fault"
	"github.com/roach88/typewriter/internal/ir"
	"github.com/roach88/typewriter/internal/queryir"
)

// Codec converts values of one domain.
type Codec struct {
	Domain ir.Domain

	// SQL encodes v as a database/sql argument.
	SQL func(v ir.IRValue) (any, error)

	// Document encodes v as a bson value.
	Document func(v ir.IRValue) (any, error)

	// Decode converts a raw column or document value. elem is the element
	// domain of list fields and DomainInvalid otherwise. raw is never nil.
	Decode func(raw any, elem ir.Domain) (ir.IRValue, error)
}

// Registry maps domains to codecs. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	codecs map[ir.Domain]Codec
}

// NewRegistry returns a registry holding the built-in codec of every domain.
func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[ir.Domain]Codec)}
	for _, c := range builtins(r) {
		r.codecs[c.Domain] = c
	}
	return r
}

// Default is the process-wide registry.
var Default = NewRegistry()

// Register installs c, replacing any codec for the same domain.
func (r *Registry) Register(c Codec) error {
	if c.SQL == nil || c.Document == nil || c.Decode == nil {
		return fmt.Errorf("codec for %s is incomplete", c.Domain)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[c.Domain] = c
	return nil
}

// Lookup returns the codec for d.
func (r *Registry) Lookup(d ir.Domain) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[d]
	return c, ok
}

// Supports reports whether f can be encoded and decoded.
func (r *Registry) Supports(f queryir.Field) bool {
	if _, ok := r.Lookup(f.Domain); !ok {
		return false
	}
	if f.Domain == ir.DomainList {
		_, ok := r.Lookup(f.Elem)
		return ok
	}
	return true
}

// EncodeSQL encodes a constraint operand or record value for a SQL backend.
func (r *Registry) EncodeSQL(v ir.IRValue) (any, error) {
	if ir.IsNull(v) {
		return nil, nil
	}
	c, ok := r.Lookup(v.Domain())
	if !ok {
		return nil, fmt.Errorf("no codec for %s", v.Domain())
	}
	return c.SQL(v)
}

// EncodeDocument encodes a constraint operand or record value for a
// document store.
func (r *Registry) EncodeDocument(v ir.IRValue) (any, error) {
	if ir.IsNull(v) {
		return nil, nil
	}
	c, ok := r.Lookup(v.Domain())
	if !ok {
		return nil, fmt.Errorf("no codec for %s", v.Domain())
	}
	return c.Document(v)
}

// Decode converts raw into a value of f's domain. nil decodes to ir.IRNull.
// Failures are reported as *fault.DecodeError.
func (r *Registry) Decode(f queryir.Field, raw any) (ir.IRValue, error) {
	if raw == nil {
		return ir.IRNull{}, nil
	}
	c, ok := r.Lookup(f.Domain)
	if !ok {
		return nil, &fault.DecodeError{Field: f.Name, Domain: f.Domain.String(), Raw: raw, Err: fmt.Errorf("no codec")}
	}
	v, err := c.Decode(raw, f.Elem)
	if err != nil {
		return nil, &fault.DecodeError{Field: f.Name, Domain: f.Domain.String(), Raw: raw, Err: err}
	}
	return v, nil
}
