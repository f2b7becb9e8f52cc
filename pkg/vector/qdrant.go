package vector

import (
	"context"
	"fmt"

	qdrantclient "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/andrew/multidoc-chat/pkg/models"
)

// QdrantStore keeps chunks and their vectors in an external Qdrant
// collection, as an alternative to the in-process FlatIndex. The chunk text
// travels in the point payload, so no separate document store is needed.
type QdrantStore struct {
	conn        *grpc.ClientConn
	collections qdrantclient.CollectionsClient
	points      qdrantclient.PointsClient
	collection  string
	dim         int
	nextID      uint64
}

// NewQdrantStore connects to a Qdrant server over gRPC.
func NewQdrantStore(addr, collection string, dim int) (*QdrantStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s: %w", addr, err)
	}
	return &QdrantStore{
		conn:        conn,
		collections: qdrantclient.NewCollectionsClient(conn),
		points:      qdrantclient.NewPointsClient(conn),
		collection:  collection,
		dim:         dim,
		nextID:      1,
	}, nil
}

// EnsureCollection creates the collection when missing. With recreate set,
// an existing collection is dropped first.
func (s *QdrantStore) EnsureCollection(ctx context.Context, recreate bool) error {
	collections, err := s.collections.List(ctx, &qdrantclient.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	exists := false
	for _, col := range collections.GetCollections() {
		if col.GetName() == s.collection {
			exists = true
			break
		}
	}

	if exists && recreate {
		if _, err := s.collections.Delete(ctx, &qdrantclient.DeleteCollection{
			CollectionName: s.collection,
		}); err != nil {
			return fmt.Errorf("failed to delete collection: %w", err)
		}
		exists = false
	}

	if !exists {
		_, err := s.collections.Create(ctx, &qdrantclient.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: &qdrantclient.VectorsConfig{
				Config: &qdrantclient.VectorsConfig_Params{
					Params: &qdrantclient.VectorParams{
						Size:     uint64(s.dim),
						Distance: qdrantclient.Distance_Cosine,
					},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	}
	return nil
}

// Upsert stores chunks with their vectors. chunks[i] pairs with vectors[i];
// source labels every point with its origin file. The chunk's document id
// and position travel in the payload for provenance.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32, source string) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d chunks and %d vectors", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrantclient.PointStruct, len(chunks))
	for i, chunk := range chunks {
		if len(vectors[i]) != s.dim {
			return fmt.Errorf("%w: vector %d has dimension %d, collection has %d",
				ErrDimensionMismatch, i, len(vectors[i]), s.dim)
		}
		points[i] = &qdrantclient.PointStruct{
			Id: &qdrantclient.PointId{
				PointIdOptions: &qdrantclient.PointId_Num{Num: s.nextID},
			},
			Vectors: &qdrantclient.Vectors{
				VectorsOptions: &qdrantclient.Vectors_Vector{
					Vector: &qdrantclient.Vector{Data: vectors[i]},
				},
			},
			Payload: map[string]*qdrantclient.Value{
				"text":        {Kind: &qdrantclient.Value_StringValue{StringValue: chunk.Content}},
				"source":      {Kind: &qdrantclient.Value_StringValue{StringValue: source}},
				"document_id": {Kind: &qdrantclient.Value_StringValue{StringValue: chunk.DocumentID}},
				"chunk_index": {Kind: &qdrantclient.Value_IntegerValue{IntegerValue: int64(chunk.Index)}},
			},
		}
		s.nextID++
	}

	_, err := s.points.Upsert(ctx, &qdrantclient.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// Search returns the limit most similar chunks with their payload text.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, limit int) ([]models.SearchResult, error) {
	resp, err := s.points.Search(ctx, &qdrantclient.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload: &qdrantclient.WithPayloadSelector{
			SelectorOptions: &qdrantclient.WithPayloadSelector_Include{
				Include: &qdrantclient.PayloadIncludeSelector{
					Fields: []string{"text", "source"},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search in Qdrant: %w", err)
	}

	results := make([]models.SearchResult, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		r := models.SearchResult{Score: point.GetScore()}
		if v, ok := point.Payload["text"]; ok {
			r.Content = v.GetStringValue()
		}
		if v, ok := point.Payload["source"]; ok {
			r.Source = v.GetStringValue()
		}
		results = append(results, r)
	}
	return results, nil
}

// Close tears down the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.conn.Close()
}
