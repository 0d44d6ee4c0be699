package registry

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/docupipe/docupipe/internal/config"
	"github.com/docupipe/docupipe/internal/domain/document"
	"github.com/docupipe/docupipe/internal/domain/fault"
	"github.com/docupipe/docupipe/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

// RedisRegistry keeps the per-document stage records in Redis as JSON blobs
// keyed by filename. No TTL: documents are never automatically deleted.
type RedisRegistry struct {
	client *redis.Client
	logger *logger_i.Logger
}

// GetRedisRegistry connects and pings; returns nil when Redis is offline so
// main can fall back to the in-memory registry.
func GetRedisRegistry(ctx context.Context) *RedisRegistry {
	logger := logger_i.NewLogger("RedisRegistry")

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = config.RedisAddr
	}
	client := redis.NewClient(&redis.Options{
		Addr:                  addr,
		Password:              config.RedisPassword,
		DB:                    config.RedisRegistryDB,
		ContextTimeoutEnabled: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Error("Redis is offline: ", "error", err.Error())
		return nil
	}

	r := &RedisRegistry{client: client, logger: logger}
	go r.closeOnDone(ctx)
	logger.Info("Redis registry init successfully", "addr", addr)
	return r
}

func (r *RedisRegistry) closeOnDone(ctx context.Context) {
	<-ctx.Done()
	r.logger.Info("Closing Redis registry")
	if err := r.client.Close(); err != nil {
		r.logger.Error("Error closing redis client", "error", err)
	}
}

func key(filename string) string {
	return config.RegistryKeyPrefix + filename
}

func (r *RedisRegistry) Get(ctx context.Context, filename string) (document.Document, bool) {
	var doc document.Document
	val, err := r.client.Get(ctx, key(filename)).Result()
	if err != nil {
		if err != redis.Nil {
			r.logger.Error("Error reading document record", "filename", filename, "error", err)
		}
		return doc, false
	}
	if err := json.Unmarshal([]byte(val), &doc); err != nil {
		r.logger.Error("Corrupt document record", "filename", filename, "error", err)
		return doc, false
	}
	return doc, true
}

func (r *RedisRegistry) Save(ctx context.Context, doc document.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fault.Storage(err, "marshalling record for %s", doc.Filename)
	}
	if err := r.client.Set(ctx, key(doc.Filename), data, 0).Err(); err != nil {
		return fault.Storage(err, "saving record for %s", doc.Filename)
	}
	r.logger.Debug("Saved document record", "filename", doc.Filename, "stage", doc.Stage)
	return nil
}

func (r *RedisRegistry) Delete(ctx context.Context, filename string) {
	if err := r.client.Del(ctx, key(filename)).Err(); err != nil {
		r.logger.Error("Error deleting document record", "filename", filename, "error", err)
	}
}

func (r *RedisRegistry) List(ctx context.Context) ([]document.Document, error) {
	var docs []document.Document
	iter := r.client.Scan(ctx, 0, config.RegistryKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		val, err := r.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue //record raced a delete
		}
		var doc document.Document
		if err := json.Unmarshal([]byte(val), &doc); err != nil {
			r.logger.Error("Corrupt document record", "key", iter.Val(), "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	if err := iter.Err(); err != nil {
		return nil, fault.Storage(err, "scanning document records")
	}
	return docs, nil
}

// NewTestRegistry wires an externally constructed client, for miniredis.
func NewTestRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{
		client: client,
		logger: logger_i.NewLogger("test redis registry"),
	}
}
