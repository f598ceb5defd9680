package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/typewriter/internal/fault"
	"github.com/roach88/typewriter/internal/pool"
	"github.com/roach88/typewriter/internal/querydoc"
)

// ErrConnClosed is returned by a closed MemoryConn.
var ErrConnClosed = errors.New("connection is closed")

// MemoryStore is an in-process document store. Connections dialed from it
// share its collections. It is safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]bson.M
	down        atomic.Bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: map[string][]bson.M{}}
}

// SetAvailable makes dials and pings fail while available is false.
func (s *MemoryStore) SetAvailable(available bool) {
	s.down.Store(!available)
}

// Insert appends documents to a collection.
func (s *MemoryStore) Insert(collection string, docs ...bson.M) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range docs {
		s.collections[collection] = append(s.collections[collection], maps.Clone(d))
	}
}

func (s *MemoryStore) snapshot(collection string) []bson.M {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := s.collections[collection]
	out := make([]bson.M, len(docs))
	for i, d := range docs {
		out[i] = maps.Clone(d)
	}
	return out
}

// Dial opens a connection to the store.
func (s *MemoryStore) Dial(context.Context) (pool.Conn, error) {
	if s.down.Load() {
		return nil, &fault.ConnectFailureError{Backend: "memory", Err: errors.New("store unavailable")}
	}
	return &MemoryConn{store: s}, nil
}

// MemoryConn is a connection to a MemoryStore.
type MemoryConn struct {
	store  *MemoryStore
	closed atomic.Bool
}

var _ DocumentConn = (*MemoryConn)(nil)

func (c *MemoryConn) check() error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	if c.store.down.Load() {
		return errors.New("store unavailable")
	}
	return nil
}

// Ping implements pool.Conn.
func (c *MemoryConn) Ping(context.Context) error { return c.check() }

// Close implements pool.Conn.
func (c *MemoryConn) Close() error {
	c.closed.Store(true)
	return nil
}

// Find implements DocumentConn.
func (c *MemoryConn) Find(_ context.Context, cmd querydoc.Command) (Cursor, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	docs, err := filterDocs(c.store.snapshot(cmd.Collection), cmd.Filter)
	if err != nil {
		return nil, err
	}
	if len(cmd.Sort) > 0 {
		docs = sortDocs(docs, cmd.Sort)
	}
	docs = docs[min(int(cmd.Skip), len(docs)):]
	// A zero limit means no limit, as in MongoDB.
	if cmd.HasLimit && cmd.Limit > 0 {
		docs = docs[:min(int(cmd.Limit), len(docs))]
	}
	if len(cmd.Projection) > 0 {
		if docs, err = project(docs, cmd.Projection); err != nil {
			return nil, err
		}
	}
	return &memCursor{docs: docs, pos: -1}, nil
}

// Aggregate implements DocumentConn.
func (c *MemoryConn) Aggregate(_ context.Context, collection string, pipeline []bson.D) (Cursor, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	docs, err := RunPipeline(c.store.snapshot(collection), pipeline)
	if err != nil {
		return nil, err
	}
	return &memCursor{docs: docs, pos: -1}, nil
}

// CountDocuments implements DocumentConn.
func (c *MemoryConn) CountDocuments(_ context.Context, collection string, filter bson.D) (int64, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	docs, err := filterDocs(c.store.snapshot(collection), filter)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

// DeleteMany implements DocumentConn.
func (c *MemoryConn) DeleteMany(_ context.Context, collection string, filter bson.D) (int64, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []bson.M
	var deleted int64
	for _, doc := range s.collections[collection] {
		ok, err := Matches(doc, filter)
		if err != nil {
			return 0, err
		}
		if ok {
			deleted++
			continue
		}
		kept = append(kept, doc)
	}
	s.collections[collection] = kept
	return deleted, nil
}

// ReplaceOne implements DocumentConn.
func (c *MemoryConn) ReplaceOne(_ context.Context, collection string, key bson.E, doc bson.D) error {
	if err := c.check(); err != nil {
		return err
	}
	row := bson.M{}
	for _, e := range doc {
		row[e.Key] = e.Value
	}
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.collections[collection]
	for i, existing := range docs {
		if matchEq(existing[key.Key], true, key.Value) {
			docs[i] = row
			return nil
		}
	}
	s.collections[collection] = append(docs, row)
	return nil
}

// memCursor iterates a materialized result.
type memCursor struct {
	docs []bson.M
	pos  int
}

func (c *memCursor) Next(context.Context) bool {
	if c.pos+1 >= len(c.docs) {
		c.pos = len(c.docs)
		return false
	}
	c.pos++
	return true
}

func (c *memCursor) Decode(v any) error {
	if c.pos < 0 || c.pos >= len(c.docs) {
		return errors.New("cursor is not positioned on a document")
	}
	out, ok := v.(*bson.M)
	if !ok {
		return fmt.Errorf("memory cursor decodes into *bson.M, not %T", v)
	}
	*out = maps.Clone(c.docs[c.pos])
	return nil
}

func (c *memCursor) Err() error { return nil }

func (c *memCursor) Close(context.Context) error { return nil }
