package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/roach88/typewriter/internal/fault"
	"github.com/roach88/typewriter/internal/pool"
	"github.com/roach88/typewriter/internal/querydoc"
)

const mongoDisconnectTimeout = 5 * time.Second

// MongoConn is a pooled MongoDB client bound to one database.
type MongoConn struct {
	client *mongo.Client
	db     *mongo.Database
}

// OpenMongo connects to uri and selects database.
func OpenMongo(ctx context.Context, uri, database string) (*MongoConn, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetMaxPoolSize(1))
	if err != nil {
		return nil, &fault.ConnectFailureError{Backend: "mongodb", Err: err}
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, &fault.ConnectFailureError{Backend: "mongodb", Err: err}
	}
	return &MongoConn{client: client, db: client.Database(database)}, nil
}

// MongoDialer returns a pool dialer for uri and database.
func MongoDialer(uri, database string) pool.Dialer {
	return func(ctx context.Context) (pool.Conn, error) {
		return OpenMongo(ctx, uri, database)
	}
}

// Ping implements pool.Conn.
func (c *MongoConn) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (c *MongoConn) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
	defer cancel()
	return c.client.Disconnect(ctx)
}

// Find implements DocumentConn.
func (c *MongoConn) Find(ctx context.Context, cmd querydoc.Command) (Cursor, error) {
	cur, err := c.db.Collection(cmd.Collection).Find(ctx, cmd.Filter, cmd.FindOptions())
	if err != nil {
		return nil, err
	}
	return cur, nil
}

// Aggregate implements DocumentConn.
func (c *MongoConn) Aggregate(ctx context.Context, collection string, pipeline []bson.D) (Cursor, error) {
	cur, err := c.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	return cur, nil
}

// CountDocuments implements DocumentConn.
func (c *MongoConn) CountDocuments(ctx context.Context, collection string, filter bson.D) (int64, error) {
	return c.db.Collection(collection).CountDocuments(ctx, filter)
}

// DeleteMany implements DocumentConn.
func (c *MongoConn) DeleteMany(ctx context.Context, collection string, filter bson.D) (int64, error) {
	res, err := c.db.Collection(collection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ReplaceOne implements DocumentConn.
func (c *MongoConn) ReplaceOne(ctx context.Context, collection string, key bson.E, doc bson.D) error {
	_, err := c.db.Collection(collection).ReplaceOne(ctx, bson.D{key}, doc, options.Replace().SetUpsert(true))
	return err
}
