package projection

import (
	"context"
	"errors"
	"testing"
)

func TestCluster_EmptyInput(t *testing.T) {
	result, err := Cluster(context.Background(), nil, DefaultHDBSCANConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Labels) != 0 {
		t.Errorf("expected empty labels for empty input, got %d", len(result.Labels))
	}
}

func TestCluster_TooFewPoints(t *testing.T) {
	points := [][]float64{
		{1.0, 2.0, 3.0},
		{1.1, 2.1, 3.1},
	}
	config := DefaultHDBSCANConfig()
	config.MinClusterSize = 5

	result, err := Cluster(context.Background(), points, config)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Labels) != 2 {
		t.Fatalf("expected 2 labels, got %d", len(result.Labels))
	}
	for i, label := range result.Labels {
		if label != NoiseLabel {
			t.Errorf("point %d should be noise (-1), got %d", i, label)
		}
	}
}

func twoBlobs() [][]float64 {
	return [][]float64{
		{0.0, 0.0}, {0.1, 0.0}, {0.0, 0.1}, {0.1, 0.1}, {0.05, 0.05},
		{10.0, 10.0}, {10.1, 10.0}, {10.0, 10.1}, {10.1, 10.1}, {10.05, 10.05},
	}
}

func TestCluster_TwoClusters(t *testing.T) {
	config := HDBSCANConfig{
		MinClusterSize: 3,
		MinSamples:     2,
		Workers:        2,
	}

	result, err := Cluster(context.Background(), twoBlobs(), config)
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Labels) != 10 {
		t.Fatalf("expected 10 labels, got %d", len(result.Labels))
	}

	cluster0 := result.Labels[0]
	cluster5 := result.Labels[5]

	if cluster0 == NoiseLabel || cluster5 == NoiseLabel {
		t.Fatalf("dense blobs should not be noise: %v", result.Labels)
	}

	if cluster0 == cluster5 {
		t.Errorf("points in different regions should have different clusters: %d vs %d", cluster0, cluster5)
	}

	for i := 0; i < 5; i++ {
		if result.Labels[i] != cluster0 {
			t.Errorf("first cluster points should have same label: point %d has %d, expected %d", i, result.Labels[i], cluster0)
		}
	}

	for i := 5; i < 10; i++ {
		if result.Labels[i] != cluster5 {
			t.Errorf("second cluster points should have same label: point %d has %d, expected %d", i, result.Labels[i], cluster5)
		}
	}

	if n := result.NumClusters(); n != 2 {
		t.Errorf("expected 2 clusters, got %d", n)
	}
}

func TestCluster_StableLabels(t *testing.T) {
	config := HDBSCANConfig{MinClusterSize: 3, MinSamples: 2, Workers: 1}

	first, err := Cluster(context.Background(), twoBlobs(), config)
	if err != nil {
		t.Fatal(err)
	}
	for run := 0; run < 5; run++ {
		again, err := Cluster(context.Background(), twoBlobs(), config)
		if err != nil {
			t.Fatal(err)
		}
		for i := range first.Labels {
			if first.Labels[i] != again.Labels[i] {
				t.Fatalf("run %d: label of point %d changed from %d to %d", run, i, first.Labels[i], again.Labels[i])
			}
		}
	}
}

func TestCluster_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Cluster(ctx, twoBlobs(), HDBSCANConfig{MinClusterSize: 3, MinSamples: 2})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestComputeCoreDistances(t *testing.T) {
	data := [][]float64{
		{0.0, 0.0},
		{1.0, 0.0},
		{2.0, 0.0},
		{3.0, 0.0},
	}

	coreDistances, err := computeCoreDistances(context.Background(), data, 3, 1)
	if err != nil {
		t.Fatal(err)
	}

	if len(coreDistances) != 4 {
		t.Fatalf("expected 4 core distances, got %d", len(coreDistances))
	}

	// Third point of the neighborhood, counting point 0 itself, is point 2
	if coreDistances[0] != 2.0 {
		t.Errorf("point 0 core distance should be 2, got %f", coreDistances[0])
	}
	if coreDistances[1] != 1.0 {
		t.Errorf("point 1 core distance should be 1, got %f", coreDistances[1])
	}
}

func TestMutualReachabilitySpanningTree(t *testing.T) {
	data := [][]float64{
		{0.0, 0.0},
		{1.0, 0.0},
		{5.0, 0.0},
	}
	coreDistances := []float64{1.0, 1.0, 4.0}

	edges := mutualReachabilitySpanningTree(data, coreDistances)

	if len(edges) != 2 {
		t.Fatalf("expected 2 MST edges for 3 points, got %d", len(edges))
	}

	if edges[0].weight != 1.0 {
		t.Errorf("first edge should join the close pair at weight 1, got %f", edges[0].weight)
	}
	if edges[1].weight != 4.0 {
		t.Errorf("second edge should be limited by the core distance 4, got %f", edges[1].weight)
	}
}

func TestSingleLinkage(t *testing.T) {
	edges := []spanningEdge{
		{from: 0, to: 1, weight: 1.0},
		{from: 1, to: 2, weight: 2.0},
		{from: 2, to: 3, weight: 3.0},
	}

	tree := singleLinkage(edges, 4)

	if len(tree) != 3 {
		t.Fatalf("expected 3 linkage nodes for 4 points, got %d", len(tree))
	}

	if tree[len(tree)-1].size != 4 {
		t.Errorf("root node should have size 4, got %d", tree[len(tree)-1].size)
	}

	// The second merge joins the first merge (node 4) with point 2
	if tree[1].left != 4 || tree[1].right != 2 {
		t.Errorf("unexpected second merge: %+v", tree[1])
	}
}

func TestDefaultHDBSCANConfig(t *testing.T) {
	config := DefaultHDBSCANConfig()

	if config.MinClusterSize != 5 {
		t.Errorf("expected MinClusterSize=5, got %d", config.MinClusterSize)
	}

	if config.MinSamples != 0 {
		t.Errorf("expected MinSamples=0 (defaults to MinClusterSize), got %d", config.MinSamples)
	}
}

func TestCluster_Probabilities(t *testing.T) {
	config := HDBSCANConfig{
		MinClusterSize: 3,
		MinSamples:     2,
	}

	result, err := Cluster(context.Background(), twoBlobs(), config)
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Probabilities) != 10 {
		t.Fatalf("expected 10 probabilities, got %d", len(result.Probabilities))
	}

	for i, p := range result.Probabilities {
		if p < 0 || p > 1 {
			t.Errorf("probability %d should be in [0,1], got %f", i, p)
		}
		if result.Labels[i] == NoiseLabel && p != 0 {
			t.Errorf("noise point %d should have probability 0, got %f", i, p)
		}
	}
}
