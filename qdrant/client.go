// Package qdrant reads feature vectors from, and writes reduced coordinates to, a
// Qdrant vector database over gRPC. Points carry their record label in the "label"
// payload field.
package qdrant

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	// labelPayloadKey holds the record label on every point written by Export.
	labelPayloadKey = "label"

	// textPayloadKey is the fallback label field used by text-embedding collections.
	textPayloadKey = "text"

	scrollPageSize = 256
)

// Client wraps gRPC connections to one collection of a Qdrant instance.
type Client struct {
	connection        *grpc.ClientConn
	pointsClient      pb.PointsClient
	collectionsClient pb.CollectionsClient
	collectionName    string
}

// Point is a single stored vector and the label it is known by.
type Point struct {
	ID     string
	Label  string
	Vector []float32
}

// NewClient connects to the Qdrant instance at address and targets collectionName.
// The connection is lazy; the first request reports an unreachable server.
func NewClient(address, collectionName string) (*Client, error) {
	connection, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}

	return &Client{
		connection:        connection,
		pointsClient:      pb.NewPointsClient(connection),
		collectionsClient: pb.NewCollectionsClient(connection),
		collectionName:    collectionName,
	}, nil
}

// EnsureCollection creates the collection with Euclidean distance and the given
// vector size if it does not exist yet.
func (client *Client) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	_, err := client.collectionsClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: client.collectionName,
	})
	if err == nil {
		return nil
	}

	_, err = client.collectionsClient.Create(ctx, &pb.CreateCollection{
		CollectionName: client.collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     vectorSize,
					Distance: pb.Distance_Euclid,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %q: %w", client.collectionName, err)
	}

	return nil
}

// Upsert writes points in one request. Point IDs must be UUIDs.
func (client *Client) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	_, err := client.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: client.collectionName,
		Wait:           pb.PtrOf(true),
		Points:         toPointStructs(points),
	})
	if err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	return nil
}

// GetAll scrolls through the whole collection, one page at a time, and returns
// every point that has a dense vector.
func (client *Client) GetAll(ctx context.Context) ([]Point, error) {
	var (
		points []Point
		offset *pb.PointId
	)

	for {
		scrollResponse, err := client.pointsClient.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: client.collectionName,
			Offset:         offset,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
			WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true}},
			Limit:          pb.PtrOf(uint32(scrollPageSize)),
		})
		if err != nil {
			return nil, fmt.Errorf("scroll points: %w", err)
		}

		for _, retrievedPoint := range scrollResponse.Result {
			if point, ok := fromRetrievedPoint(retrievedPoint); ok {
				points = append(points, point)
			}
		}

		offset = scrollResponse.GetNextPageOffset()
		if offset == nil {
			return points, nil
		}
	}
}

// Close terminates the gRPC connection to the Qdrant server.
func (client *Client) Close() error {
	return client.connection.Close()
}

func toPointStructs(points []Point) []*pb.PointStruct {
	structs := make([]*pb.PointStruct, len(points))
	for i, point := range points {
		structs[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: point.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: point.Vector},
				},
			},
			Payload: map[string]*pb.Value{
				labelPayloadKey: {Kind: &pb.Value_StringValue{StringValue: point.Label}},
			},
		}
	}
	return structs
}

// fromRetrievedPoint converts a scrolled point. Points stored with named or sparse
// vectors only are skipped.
func fromRetrievedPoint(retrievedPoint *pb.RetrievedPoint) (Point, bool) {
	vectorData := retrievedPoint.GetVectors().GetVector()
	if vectorData == nil {
		return Point{}, false
	}

	return newPoint(retrievedPoint.GetId(), retrievedPoint.GetPayload(), vectorData.GetData()), true
}

func newPoint(id *pb.PointId, payload map[string]*pb.Value, vector []float32) Point {
	pointID := pointIDString(id)
	return Point{
		ID:     pointID,
		Label:  labelFromPayload(payload, pointID),
		Vector: vector,
	}
}

func pointIDString(id *pb.PointId) string {
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return fmt.Sprintf("%d", id.GetNum())
}

// labelFromPayload prefers the "label" field, then "text", then the point ID.
func labelFromPayload(payload map[string]*pb.Value, pointID string) string {
	for _, key := range []string{labelPayloadKey, textPayloadKey} {
		if value, exists := payload[key]; exists && value.GetStringValue() != "" {
			return value.GetStringValue()
		}
	}
	return pointID
}
