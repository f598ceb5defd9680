package store

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/typewriter/internal/pool"
	"github.com/roach88/typewriter/internal/querydoc"
)

// Cursor iterates documents. *mongo.Cursor satisfies it.
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(v any) error
	Err() error
	Close(ctx context.Context) error
}

// DocumentConn is a pooled connection to a document store.
type DocumentConn interface {
	pool.Conn

	// Find runs the find form of cmd.
	Find(ctx context.Context, cmd querydoc.Command) (Cursor, error)

	// Aggregate runs an aggregation pipeline.
	Aggregate(ctx context.Context, collection string, pipeline []bson.D) (Cursor, error)

	CountDocuments(ctx context.Context, collection string, filter bson.D) (int64, error)
	DeleteMany(ctx context.Context, collection string, filter bson.D) (int64, error)

	// ReplaceOne stores doc, replacing the document whose key field equals
	// the key value, or inserting it when there is none.
	ReplaceOne(ctx context.Context, collection string, key bson.E, doc bson.D) error
}
