// Package vectorstore indexes log evidence chunks into Qdrant and retrieves
// the top-k most relevant ones for a query. Retrieval is two-tier: the
// native gRPC client first, the REST search endpoint as fallback.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/NEMYSESx/sift/internal/chunking"
	"github.com/NEMYSESx/sift/internal/config"
	"github.com/NEMYSESx/sift/internal/embedders"
)

// RetrievedRecord is one normalized search hit. ID is an integer for
// positional point ids or a string for UUID ids, depending on what the
// backend reports. Chunk is empty when the payload carried none.
type RetrievedRecord struct {
	ID    any     `json:"id"`
	Score float64 `json:"score"`
	Chunk string  `json:"chunk,omitempty"`
}

// IndexResult reports how many chunks were written to which collection.
type IndexResult struct {
	Count      int    `json:"count"`
	Collection string `json:"collection"`
}

// Coordinator owns the long-lived Qdrant handles. It is constructed once at
// startup and safe for concurrent use across requests; concurrent calls for
// the same collection name are the caller's problem — each incident gets its
// own collection precisely so they never collide.
type Coordinator struct {
	embedder     embedders.Embedder
	grpc         *qdrant.Client // nil when the gRPC endpoint is unreachable
	rest         *restClient
	chunkSize    int
	chunkOverlap int
	logger       *zap.Logger
}

func NewCoordinator(cfg config.QdrantConfig, embedder embedders.Embedder, logger *zap.Logger) *Coordinator {
	grpcClient, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.GRPCHost,
		Port:   cfg.GRPCPort,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(64 << 20)),
		},
	})
	if err != nil {
		// Not fatal: every operation the client covers has a REST path.
		logger.Warn("qdrant grpc client unavailable, using REST only", zap.Error(err))
		grpcClient = nil
	}

	return &Coordinator{
		embedder:     embedder,
		grpc:         grpcClient,
		rest:         newRESTClient(cfg.URL, cfg.APIKey),
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
		logger:       logger,
	}
}

// Index chunks the text, embeds all chunks in one batch, destructively
// recreates the collection sized to the embedding dimensionality with
// cosine distance, and upserts one point per chunk keyed by its position.
// Empty text returns Count 0 without contacting any backend. Index failures
// propagate; they are not retried here.
func (c *Coordinator) Index(ctx context.Context, text, collection string) (IndexResult, error) {
	result := IndexResult{Collection: collection}

	chunks := chunking.Split(text, c.chunkSize, c.chunkOverlap)
	if len(chunks) == 0 {
		return result, nil
	}

	vectors, err := c.embedder.Embed(ctx, chunks)
	if err != nil {
		return result, fmt.Errorf("failed to embed %d chunks: %w", len(chunks), err)
	}
	dim := len(vectors[0])

	if c.grpc != nil {
		err = c.indexGRPC(ctx, collection, dim, chunks, vectors)
	} else {
		err = c.indexREST(ctx, collection, dim, chunks, vectors)
	}
	if err != nil {
		return result, err
	}

	result.Count = len(chunks)
	return result, nil
}

func (c *Coordinator) indexGRPC(ctx context.Context, collection string, dim int, chunks []string, vectors [][]float32) error {
	// Recreate from scratch: stale points from a previous run of the same
	// incident id must not leak into retrieval.
	if err := c.grpc.DeleteCollection(ctx, collection); err != nil {
		c.logger.Debug("delete collection before recreate", zap.String("collection", collection), zap.Error(err))
	}

	err := c.grpc.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", collection, err)
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(i)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{"chunk": chunk}),
		}
	}

	if _, err := c.grpc.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("failed to upsert %d points into %s: %w", len(points), collection, err)
	}

	return nil
}

func (c *Coordinator) indexREST(ctx context.Context, collection string, dim int, chunks []string, vectors [][]float32) error {
	if err := c.rest.recreateCollection(ctx, collection, dim); err != nil {
		return err
	}

	points := make([]restPoint, len(chunks))
	for i, chunk := range chunks {
		points[i] = restPoint{
			ID:      i,
			Vector:  vectors[i],
			Payload: map[string]any{"chunk": chunk},
		}
	}

	return c.rest.upsertPoints(ctx, collection, points)
}

// Retrieve embeds the query once and returns the top-k hits in the
// backend's relevance order (descending score); it never re-sorts or
// deduplicates. The gRPC client is tried first; any primary failure —
// including the client never having come up — routes through the REST
// search endpoint. Only when both tiers fail does Retrieve return an error,
// a single one naming both causes.
func (c *Coordinator) Retrieve(ctx context.Context, query, collection string, k int) ([]RetrievedRecord, error) {
	vectors, err := c.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	queryVector := vectors[0]

	primaryErr := errGRPCUnavailable
	if c.grpc != nil {
		records, err := c.retrieveGRPC(ctx, queryVector, collection, k)
		if err == nil {
			return records, nil
		}
		primaryErr = err
		c.logger.Warn("qdrant client search failed, falling back to REST",
			zap.String("collection", collection), zap.Error(err))
	}

	records, restErr := c.rest.search(ctx, collection, queryVector, k)
	if restErr != nil {
		return nil, fmt.Errorf("qdrant retrieval failed (client and REST): primary: %v; fallback: %w", primaryErr, restErr)
	}

	return records, nil
}

var errGRPCUnavailable = fmt.Errorf("grpc client not configured")

func (c *Coordinator) retrieveGRPC(ctx context.Context, vector []float32, collection string, k int) ([]RetrievedRecord, error) {
	limit := uint64(k)
	points, err := c.grpc.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	records := make([]RetrievedRecord, 0, len(points))
	for _, p := range points {
		records = append(records, RetrievedRecord{
			ID:    pointID(p.GetId()),
			Score: float64(p.GetScore()),
			Chunk: p.GetPayload()["chunk"].GetStringValue(),
		})
	}
	return records, nil
}

func pointID(id *qdrant.PointId) any {
	if id == nil {
		return nil
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return int64(id.GetNum())
}
