// Package mongodb stores the metadata the executor needs to turn a
// task.ID into a physical OpenSearch call: which index it targets, which
// document id it writes, and (for addition/update/settings tasks) the
// JSON payload to write.
//
// Adapted from the teacher indexer's internal/mongodb/client.go: same
// connection-pool-limited client construction, generalized from streaming
// whole research documents to fetching small per-task metadata records
// that the executor joins against a batch.Batch's id lists.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sudarshan/search-indexer/internal/config"
	"github.com/sudarshan/search-indexer/internal/task"
)

// TaskMeta is the metadata recorded for a task.ID at enqueue time: enough
// for the executor to turn an id into an OpenSearch call without the
// queue backend itself having to carry arbitrary payloads.
type TaskMeta struct {
	TaskID  task.ID                `bson:"task_id"`
	Index   string                 `bson:"index"`
	DocID   string                 `bson:"doc_id,omitempty"`
	Payload map[string]interface{} `bson:"payload,omitempty"`
}

// Client wraps MongoDB operations against the task metadata collection.
type Client struct {
	client     *mongo.Client
	collection *mongo.Collection
	cfg        *config.Config
}

// NewClient creates a new MongoDB client and verifies connectivity.
func NewClient(cfg *config.Config) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetMaxPoolSize(uint64(cfg.MongoMaxPoolSize)).
		SetMinPoolSize(1).
		SetMaxConnIdleTime(30 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetSocketTimeout(30 * time.Second)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongodb: connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongodb: ping: %w", err)
	}

	dbName := "search_indexer"
	if name := splitDBName(cfg.MongoURI); name != "" {
		dbName = name
	}

	collection := client.Database(dbName).Collection(cfg.MongoCollection)

	return &Client{
		client:     client,
		collection: collection,
		cfg:        cfg,
	}, nil
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// PutMeta records metadata for a task at enqueue time.
func (c *Client) PutMeta(ctx context.Context, meta TaskMeta) error {
	_, err := c.collection.UpdateOne(
		ctx,
		bson.M{"task_id": meta.TaskID},
		bson.M{"$set": meta},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongodb: put meta for task %d: %w", meta.TaskID, err)
	}
	return nil
}

// FetchMeta returns the recorded metadata for each of ids, keyed by task
// id. A missing id is simply absent from the result; the executor treats
// that as a contract violation by its caller, not a transient error.
func (c *Client) FetchMeta(ctx context.Context, ids []task.ID) (map[task.ID]TaskMeta, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cursor, err := c.collection.Find(ctx, bson.M{"task_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("mongodb: fetch meta: %w", err)
	}
	defer cursor.Close(ctx)

	out := make(map[task.ID]TaskMeta, len(ids))
	for cursor.Next(ctx) {
		var m TaskMeta
		if err := cursor.Decode(&m); err != nil {
			return nil, fmt.Errorf("mongodb: decode meta: %w", err)
		}
		out[m.TaskID] = m
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongodb: cursor: %w", err)
	}
	return out, nil
}

// DeleteMeta drops metadata for ids once their task has been executed and
// acked, keeping the collection bounded to in-flight and recently-acked
// tasks rather than growing forever.
func (c *Client) DeleteMeta(ctx context.Context, ids []task.ID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := c.collection.DeleteMany(ctx, bson.M{"task_id": bson.M{"$in": ids}})
	if err != nil {
		return fmt.Errorf("mongodb: delete meta: %w", err)
	}
	return nil
}

func splitDBName(uri string) string {
	for i := len(uri) - 1; i >= 0; i-- {
		if uri[i] == '/' {
			result := uri[i+1:]
			for j, c := range result {
				if c == '?' {
					return result[:j]
				}
			}
			return result
		}
	}
	return ""
}
