package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/pkghealth/pkg/observability"
)

// MongoCache stores entries as documents keyed by cache key. A TTL index on
// expiresAt lets the server reap old documents; Get also checks expiry since
// the reaper only runs about once a minute.
//
// Like [RedisCache], transport failures are logged and degraded.
type MongoCache struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *log.Logger
	now    func() time.Time
}

type mongoEntry struct {
	Key       string     `bson:"_id"`
	Data      []byte     `bson:"data"`
	ExpiresAt *time.Time `bson:"expiresAt,omitempty"`
}

// NewMongoCache connects to uri and uses database.collection for storage.
func NewMongoCache(ctx context.Context, uri, database, collection string, logger *log.Logger) (*MongoCache, error) {
	if logger == nil {
		logger = log.Default()
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	c := &MongoCache{
		client: client,
		coll:   client.Database(database).Collection(collection),
		logger: logger,
		now:    time.Now,
	}

	_, err = c.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		logger.Warn("mongo ttl index not created, cache will degrade to misses", "error", err)
	}
	return c, nil
}

// Get retrieves a value.
func (c *MongoCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var e mongoEntry
	err := c.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		c.degrade(ctx, "get", key, err)
		return nil, false, nil
	}
	if e.ExpiresAt != nil && !c.now().Before(*e.ExpiresAt) {
		return nil, false, nil
	}
	return e.Data, true, nil
}

// Set upserts a value.
func (c *MongoCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	e := mongoEntry{Key: key, Data: data}
	if ttl > 0 {
		exp := c.now().Add(ttl)
		e.ExpiresAt = &exp
	}

	_, err := c.coll.ReplaceOne(ctx, bson.M{"_id": key}, e, options.Replace().SetUpsert(true))
	if err != nil {
		c.degrade(ctx, "set", key, err)
	}
	return nil
}

// Delete removes a value.
func (c *MongoCache) Delete(ctx context.Context, key string) error {
	if _, err := c.coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		c.degrade(ctx, "delete", key, err)
	}
	return nil
}

// Close disconnects the client.
func (c *MongoCache) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Disconnect(ctx)
}

func (c *MongoCache) degrade(ctx context.Context, op, key string, err error) {
	c.logger.Warn("mongo "+op+" failed", "key", key, "error", err)
	observability.Cache().OnCacheError(ctx, KeyType(key), op, err)
}

var _ Cache = (*MongoCache)(nil)
