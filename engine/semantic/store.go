// Package semantic is the sole owner of all Qdrant operations: collection
// lifecycle, point upserts, hybrid vector search with payload filters, and
// filter-only retrieval without vector scoring.
package semantic

import (
	"context"
	"fmt"

	"github.com/arogyalabs/carefind/engine/domain"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// VectorStore wraps the Qdrant gRPC clients for one collection.
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

// EnsureCollection creates the collection and its payload field indexes if
// they don't exist. Display fields are text-indexed for partial matching;
// city_exact and unique_key are keyword-indexed for exact matching.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	exists := false
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			exists = true
			break
		}
	}

	if !exists {
		d := uint64(dims)
		_, err = v.collections.Create(ctx, &pb.CreateCollection{
			CollectionName: v.collection,
			VectorsConfig: &pb.VectorsConfig{
				Config: &pb.VectorsConfig_Params{
					Params: &pb.VectorParams{
						Size:     d,
						Distance: pb.Distance_Cosine,
					},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
		}
	}

	for field, ft := range map[string]pb.FieldType{
		"name":       pb.FieldType_FieldTypeText,
		"address":    pb.FieldType_FieldTypeText,
		"city":       pb.FieldType_FieldTypeText,
		"city_exact": pb.FieldType_FieldTypeKeyword,
		"unique_key": pb.FieldType_FieldTypeKeyword,
	} {
		ft := ft
		wait := true
		_, err = v.points.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
			CollectionName: v.collection,
			FieldName:      field,
			FieldType:      &ft,
			Wait:           &wait,
		})
		if err != nil {
			return fmt.Errorf("semantic: index field %s: %w", field, err)
		}
	}
	return nil
}

// DeleteCollection deletes the collection.
func (v *VectorStore) DeleteCollection(ctx context.Context) error {
	_, err := v.collections.Delete(ctx, &pb.DeleteCollection{
		CollectionName: v.collection,
	})
	if err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", v.collection, err)
	}
	return nil
}

// Upsert stores hospital records into Qdrant. Called by engine/ingest.
func (v *VectorStore) Upsert(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: r.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Embedding},
				},
			},
			Payload: payloadFromRecord(r.Record),
		}
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(records), err)
	}
	return nil
}

// SearchFiltered performs k-NN similarity search with an optional payload
// filter and score threshold (0 disables the threshold).
func (v *VectorStore) SearchFiltered(ctx context.Context, embedding []float32, limit int, threshold float32, filter *Filter) ([]SearchResult, error) {
	req := &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         embedding,
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		Filter:         filter.proto(),
	}
	if threshold > 0 {
		req.ScoreThreshold = &threshold
	}

	resp, err := v.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	results := make([]SearchResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		results[i] = SearchResult{
			ID:     r.GetId().GetUuid(),
			Score:  r.GetScore(),
			Record: recordFromPayload(r.GetPayload()),
		}
	}
	return results, nil
}

// ScrollFiltered retrieves points matching a filter without any vector
// ranking signal. This is the explicit filter-only capability used by the
// fuzzy retrieval pass and by ingestion dedup checks.
func (v *VectorStore) ScrollFiltered(ctx context.Context, filter *Filter, limit int) ([]SearchResult, error) {
	l := uint32(limit)
	resp, err := v.points.Scroll(ctx, &pb.ScrollPoints{
		CollectionName: v.collection,
		Filter:         filter.proto(),
		Limit:          &l,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: scroll: %w", err)
	}

	results := make([]SearchResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		results[i] = SearchResult{
			ID:     r.GetId().GetUuid(),
			Record: recordFromPayload(r.GetPayload()),
		}
	}
	return results, nil
}

// HasUniqueKey reports whether a point with the given unique key is stored.
func (v *VectorStore) HasUniqueKey(ctx context.Context, key string) (bool, error) {
	hits, err := v.ScrollFiltered(ctx, AllOf(Keyword("unique_key", key)), 1)
	if err != nil {
		return false, err
	}
	return len(hits) > 0, nil
}

func payloadFromRecord(r domain.HospitalRecord) map[string]*pb.Value {
	str := func(s string) *pb.Value {
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
	}
	return map[string]*pb.Value{
		"name":       str(r.Name),
		"address":    str(r.Address),
		"city":       str(r.City),
		"city_exact": str(r.CityExact),
		"unique_key": str(r.UniqueKey),
	}
}

func recordFromPayload(payload map[string]*pb.Value) domain.HospitalRecord {
	var r domain.HospitalRecord
	for k, val := range payload {
		s := val.GetStringValue()
		switch k {
		case "name":
			r.Name = s
		case "address":
			r.Address = s
		case "city":
			r.City = s
		case "city_exact":
			r.CityExact = s
		case "unique_key":
			r.UniqueKey = s
		}
	}
	return r
}
