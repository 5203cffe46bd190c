// Package semantic owns all Qdrant operations: the chunk-embedding
// collection, point upserts with the denormalized jurisdiction payload, and
// jurisdiction-filtered k-NN search.
package semantic

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jurisgraph/jurisgraph/engine/domain"
	"github.com/jurisgraph/jurisgraph/engine/search"
)

// VectorStore is the sole owner of all Qdrant operations.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	return v.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}

	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

// PointID derives the deterministic Qdrant point id for a chunk, so
// re-embedding a chunk overwrites its point instead of duplicating it.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(chunkID)).String()
}

// UpsertChunk stores one embedded chunk as a point carrying the chunk text
// and every denormalized jurisdiction field the filter matches against.
func (v *VectorStore) UpsertChunk(ctx context.Context, chunk domain.Chunk, embedding []float32) error {
	return v.UpsertChunks(ctx, []domain.Chunk{chunk}, [][]float32{embedding})
}

// UpsertChunks stores a batch of embedded chunks.
func (v *VectorStore) UpsertChunks(ctx context.Context, chunks []domain.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("semantic: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(c.ChunkID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: embeddings[i]},
				},
			},
			Payload: chunkPayload(c),
		}
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(points), err)
	}
	return nil
}

// DeleteStaleChunks removes a document's points at or past fromIndex. Called
// when re-ingestion shrinks a document's chunk count so trailing points don't
// linger in search results; fromIndex 0 removes the whole document.
func (v *VectorStore) DeleteStaleChunks(ctx context.Context, cite string, fromIndex int) error {
	gte := float64(fromIndex)
	wait := true
	_, err := v.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{
						fieldMatch("cite", cite),
						{
							ConditionOneOf: &pb.Condition_Field{
								Field: &pb.FieldCondition{
									Key:   "chunk_index",
									Range: &pb.Range{Gte: &gte},
								},
							},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: delete stale chunks %s[%d:]: %w", cite, fromIndex, err)
	}
	return nil
}

// SearchFiltered performs k-NN search restricted to a source and the
// jurisdiction filter. The source is a hard constraint; the jurisdiction
// clauses form a should-group, so matching any one of them is enough.
func (v *VectorStore) SearchFiltered(ctx context.Context, vector []float32, source domain.Source, filter search.Filter, limit int) ([]search.Result, error) {
	req := &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if f := renderFilter(source, filter); f != nil {
		req.Filter = f
	}

	resp, err := v.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	results := make([]search.Result, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		payload := r.GetPayload()
		results[i] = search.Result{
			ChunkID:    payload["chunk_id"].GetStringValue(),
			Cite:       payload["cite"].GetStringValue(),
			Title:      payload["title"].GetStringValue(),
			Text:       payload["chunk_text"].GetStringValue(),
			Source:     domain.Source(payload["source"].GetStringValue()),
			RegionName: payload["region_name"].GetStringValue(),
			Score:      r.GetScore(),
		}
	}
	return results, nil
}

// renderFilter builds the Qdrant filter: source as a must condition and the
// jurisdiction clauses as a nested should filter. Returns nil when both are
// empty so unfiltered searches send no filter at all.
func renderFilter(source domain.Source, filter search.Filter) *pb.Filter {
	var must []*pb.Condition
	if source != "" {
		must = append(must, fieldMatch("source", string(source)))
	}

	var should []*pb.Condition
	for _, clause := range filter.Clauses {
		for _, value := range clause.Values {
			should = append(should, fieldMatch(clause.Field, value))
		}
	}
	if len(should) > 0 {
		must = append(must, &pb.Condition{
			ConditionOneOf: &pb.Condition_Filter{
				Filter: &pb.Filter{Should: should},
			},
		})
	}

	if len(must) == 0 {
		return nil
	}
	return &pb.Filter{Must: must}
}

func chunkPayload(c domain.Chunk) map[string]*pb.Value {
	str := func(s string) *pb.Value {
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
	}
	payload := map[string]*pb.Value{
		"chunk_id":           str(c.ChunkID),
		"cite":               str(c.Cite),
		"title":              str(c.Title),
		"chunk_text":         str(c.Text),
		"source":             str(string(c.Source)),
		"chunk_index":        {Kind: &pb.Value_IntegerValue{IntegerValue: int64(c.Index)}},
		"region_type":        str(c.Jurisdiction.RegionType),
		"region_id":          str(c.Jurisdiction.RegionID),
		"region_name":        str(c.Jurisdiction.RegionName),
		"applies_to_country": str(c.Jurisdiction.Country),
		"applies_to_state":   str(c.Jurisdiction.State),
		"primary_county":     str(c.Jurisdiction.PrimaryCounty),
		"applies_to_city":    str(c.Jurisdiction.City),
	}
	return payload
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
