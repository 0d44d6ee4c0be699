package qdrantDB

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/docupipe/docupipe/internal/adapter/utils"
	"github.com/docupipe/docupipe/internal/config"
	"github.com/docupipe/docupipe/internal/domain/fault"
	"github.com/docupipe/docupipe/internal/metrics"
	"github.com/docupipe/docupipe/internal/rag/chunk"
	"github.com/docupipe/docupipe/internal/rag/vectordb"
	"github.com/docupipe/docupipe/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
)

var (
	logger         *logger_i.Logger
	qdrantInstance *qdrant.Client
	once           sync.Once
	dimension      = uint64(config.EmbeddingOutputDimensionality)
	collectionName = config.VectorCollectionName
)

type ClientHolder struct {
	QObj *qdrant.Client
}

func GetQdrantClient(ctx context.Context) vectordb.DenseIndex {
	once.Do(func() {
		logger = logger_i.NewLogger("Qdrant")
		res := newClient()
		if res != nil {
			qdrantInstance = res
			go closeQdrant(ctx, qdrantInstance)
		}
	})

	if qdrantInstance == nil {
		return nil
	}
	return &ClientHolder{QObj: qdrantInstance}
}

func newClient() *qdrant.Client {
	host := os.Getenv("QDRANT_HOST")
	port, er := strconv.Atoi(os.Getenv("QDRANT_PORT"))
	if host == "" || er != nil {
		host = config.QdrantHost
		port = config.QdrantGrpcPort
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     host,
		Port:     port,
		UseTLS:   config.QdrantUseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		logger.Error("could not instantiate: ", "error:", err)
		return nil
	}

	initCtx, cancel := context.WithTimeout(context.Background(), config.QdrantConnectionTimeout)
	defer cancel()
	if err := createCollection(initCtx, client); err != nil {
		logger.Error("could not create collection: ", "collectionName", collectionName, "error:", err)
		return nil
	}
	return client
}

func closeQdrant(ctx context.Context, qi *qdrant.Client) {
	<-ctx.Done()
	logger.Info("Shutting down Qdrant")
	if err := qi.Close(); err != nil {
		logger.Error("could not close Qdrant: ", "error:", err)
	}
}

func (db *ClientHolder) EnsureCollection(ctx context.Context) error {
	if err := createCollection(ctx, db.QObj); err != nil {
		return fault.Upstream(err, true, "ensuring vector collection")
	}
	return nil
}

// ReplaceDocument deletes the document's prior points and upserts the new
// batch, both scoped to the namespace. Wait=true so a follow-up query sees
// the replacement, not a mix.
func (db *ClientHolder) ReplaceDocument(ctx context.Context, namespace string, filename string, chunks []chunk.Chunk, vectors [][]float32) error {
	loggr := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "filename", filename)

	if len(chunks) != len(vectors) {
		return fault.Validation("mismatch: got %d chunks but %d vectors", len(chunks), len(vectors))
	}

	if err := db.DeleteDocument(ctx, namespace, filename); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(utils.GetNewUUID()),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"content":     c.Content,
				"chunk_ref":   c.Ref,
				"chunk_order": c.Order,
				"offset":      c.Offset,
				"doc_name":    c.Filename,
				"namespace":   namespace,
			}),
		}
	}

	start := time.Now()
	_, err := db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	metrics.CaptureUpstreamMetrics("qdrant", time.Since(start))
	if err != nil {
		return fault.Upstream(err, true, "qdrant upsert failed")
	}

	loggr.Debug("Replaced document vectors", "points", len(points))
	return nil
}

func (db *ClientHolder) DeleteDocument(ctx context.Context, namespace string, filename string) error {
	start := time.Now()
	defer func() { metrics.CaptureUpstreamMetrics("qdrant", time.Since(start)) }()
	_, err := db.QObj.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collectionName,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("doc_name", filename),
				qdrant.NewMatch("namespace", namespace),
			},
		}),
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return fault.Upstream(err, true, "qdrant delete failed for %s", filename)
	}
	return nil
}

func (db *ClientHolder) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]vectordb.Hit, error) {
	loggr := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	callCtx, cancel := context.WithTimeout(ctx, config.QueryTimeout)
	defer cancel()

	start := time.Now()
	result, err := db.QObj.Query(callCtx, &qdrant.QueryPoints{
		CollectionName: collectionName,
		Query:          qdrant.NewQuery(vector...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("namespace", namespace),
			},
		},
		Limit:       qdrant.PtrOf(uint64(topK)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	metrics.CaptureUpstreamMetrics("qdrant", time.Since(start))
	if err != nil {
		loggr.Error("Error querying Qdrant: ", "error:", err)
		return nil, fault.Upstream(err, true, "qdrant query failed")
	}

	hits := make([]vectordb.Hit, 0, len(result))
	for _, h := range result {
		hits = append(hits, vectordb.Hit{
			Ref:      h.Payload["chunk_ref"].GetStringValue(),
			Filename: h.Payload["doc_name"].GetStringValue(),
			Content:  h.Payload["content"].GetStringValue(),
			Score:    float64(h.Score),
		})
	}
	loggr.Debug("Dense query complete", "hits", len(hits))
	return hits, nil
}

func createCollection(ctx context.Context, client *qdrant.Client) error {
	exists, err := client.CollectionExists(ctx, collectionName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", collectionName, err)
	}
	return nil
}
