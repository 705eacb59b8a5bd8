package projection

import (
	"context"
	"math"
	"runtime"
	"sort"
)

// NoiseLabel marks points that belong to no cluster.
const NoiseLabel = -1

// minLinkageDistance keeps lambda = 1/distance finite for duplicate points.
const minLinkageDistance = 1e-12

// HDBSCANConfig holds the density clustering parameters.
type HDBSCANConfig struct {
	MinClusterSize int // Smallest group reported as a cluster (default: 5)
	MinSamples     int // Neighborhood size for core distances, 0 means MinClusterSize
	Workers        int // Goroutines used for the core-distance search
}

// DefaultHDBSCANConfig returns sensible default parameters.
func DefaultHDBSCANConfig() HDBSCANConfig {
	return HDBSCANConfig{
		MinClusterSize: 5,
		Workers:        runtime.NumCPU(),
	}
}

// ClusterResult assigns every point a cluster label (NoiseLabel for noise) and a
// membership strength in [0, 1].
type ClusterResult struct {
	Labels        []int
	Probabilities []float64
}

// NumClusters returns the number of distinct non-noise labels.
func (r ClusterResult) NumClusters() int {
	highest := NoiseLabel
	for _, label := range r.Labels {
		highest = max(highest, label)
	}
	return highest + 1
}

// Cluster groups points with HDBSCAN: core distances, a minimum spanning tree of the
// mutual reachability graph, the condensed cluster hierarchy and excess-of-mass
// cluster selection. Labels are numbered in hierarchy order, so they are stable
// between runs.
func Cluster(ctx context.Context, points [][]float64, config HDBSCANConfig) (ClusterResult, error) {
	n := len(points)
	if config.MinClusterSize < 2 {
		config.MinClusterSize = DefaultHDBSCANConfig().MinClusterSize
	}
	if config.MinSamples <= 0 {
		config.MinSamples = config.MinClusterSize
	}

	result := ClusterResult{Labels: make([]int, n), Probabilities: make([]float64, n)}
	for i := range result.Labels {
		result.Labels[i] = NoiseLabel
	}
	if n < config.MinClusterSize {
		return result, nil
	}

	coreDistances, err := computeCoreDistances(ctx, points, config.MinSamples, config.Workers)
	if err != nil {
		return ClusterResult{}, err
	}

	edges := mutualReachabilitySpanningTree(points, coreDistances)
	linkage := singleLinkage(edges, n)
	hierarchy := condenseHierarchy(linkage, n, config.MinClusterSize)
	selected := hierarchy.selectClusters()
	hierarchy.assignLabels(selected, &result)

	return result, nil
}

// computeCoreDistances returns, for every point, the distance to its MinSamples-th
// nearest neighbor counting the point itself.
func computeCoreDistances(ctx context.Context, points [][]float64, minSamples int, workers int) ([]float64, error) {
	k := min(minSamples-1, len(points)-1)
	coreDistances := make([]float64, len(points))
	if k < 1 {
		return coreDistances, nil
	}

	knn, err := computeKNN(ctx, points, k, workers)
	if err != nil {
		return nil, err
	}
	for i, dists := range knn.Dists {
		coreDistances[i] = dists[len(dists)-1]
	}
	return coreDistances, nil
}

// spanningEdge is an edge of the minimum spanning tree.
type spanningEdge struct {
	from, to int
	weight   float64
}

// mutualReachabilitySpanningTree runs Prim's algorithm over the complete graph whose
// weights are max(core(a), core(b), d(a, b)). Edges come back sorted by weight.
func mutualReachabilitySpanningTree(points [][]float64, coreDistances []float64) []spanningEdge {
	n := len(points)
	if n < 2 {
		return nil
	}

	inTree := make([]bool, n)
	bestWeight := make([]float64, n)
	bestSource := make([]int, n)
	for i := range bestWeight {
		bestWeight[i] = math.Inf(1)
	}

	edges := make([]spanningEdge, 0, n-1)
	current := 0
	inTree[current] = true

	for len(edges) < n-1 {
		next := -1
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			reach := math.Max(euclideanDistance(points[current], points[j]), math.Max(coreDistances[current], coreDistances[j]))
			if reach < bestWeight[j] {
				bestWeight[j] = reach
				bestSource[j] = current
			}
			if next < 0 || bestWeight[j] < bestWeight[next] {
				next = j
			}
		}

		edges = append(edges, spanningEdge{from: bestSource[next], to: next, weight: bestWeight[next]})
		inTree[next] = true
		current = next
	}

	sort.SliceStable(edges, func(i, j int) bool { return edges[i].weight < edges[j].weight })
	return edges
}

// mergeNode is one merge of the single-linkage dendrogram. Nodes below n are points,
// node n+i is the result of merge i.
type mergeNode struct {
	left, right int
	distance    float64
	size        int
}

// singleLinkage turns sorted spanning-tree edges into a dendrogram.
func singleLinkage(edges []spanningEdge, n int) []mergeNode {
	parent := make([]int, 2*n-1)
	size := make([]int, 2*n-1)
	for i := range parent {
		parent[i] = i
	}
	for i := 0; i < n; i++ {
		size[i] = 1
	}

	find := func(x int) int {
		root := x
		for parent[root] != root {
			root = parent[root]
		}
		for parent[x] != root {
			parent[x], x = root, parent[x]
		}
		return root
	}

	merges := make([]mergeNode, 0, len(edges))
	for _, edge := range edges {
		left, right := find(edge.from), find(edge.to)
		node := n + len(merges)
		parent[left], parent[right] = node, node
		size[node] = size[left] + size[right]
		merges = append(merges, mergeNode{left: left, right: right, distance: edge.weight, size: size[node]})
	}
	return merges
}

// hierarchyEdge records a point or child cluster leaving a cluster at density lambda.
type hierarchyEdge struct {
	parent, child int
	lambda        float64
	size          int
}

// clusterHierarchy is the condensed tree. Cluster ids start at n with the root;
// children always get larger ids than their parent.
type clusterHierarchy struct {
	n           int
	edges       []hierarchyEdge
	numClusters int
}

func lambdaOf(distance float64) float64 {
	return 1 / math.Max(distance, minLinkageDistance)
}

// condenseHierarchy walks the dendrogram from the root. A split where both sides have
// at least minClusterSize points creates two child clusters; otherwise the small side's
// points fall out of the current cluster at that density.
func condenseHierarchy(merges []mergeNode, n int, minClusterSize int) clusterHierarchy {
	h := clusterHierarchy{n: n, numClusters: 1}
	if len(merges) == 0 {
		return h
	}

	sizeOf := func(node int) int {
		if node < n {
			return 1
		}
		return merges[node-n].size
	}

	var fallOut func(node, cluster int, lambda float64)
	fallOut = func(node, cluster int, lambda float64) {
		if node < n {
			h.edges = append(h.edges, hierarchyEdge{parent: cluster, child: node, lambda: lambda, size: 1})
			return
		}
		fallOut(merges[node-n].left, cluster, lambda)
		fallOut(merges[node-n].right, cluster, lambda)
	}

	type pending struct{ node, cluster int }
	queue := []pending{{node: n + len(merges) - 1, cluster: n}}
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		merge := merges[item.node-n]
		lambda := lambdaOf(merge.distance)
		leftBig := sizeOf(merge.left) >= minClusterSize
		rightBig := sizeOf(merge.right) >= minClusterSize

		switch {
		case leftBig && rightBig:
			for _, child := range []int{merge.left, merge.right} {
				childCluster := n + h.numClusters
				h.numClusters++
				h.edges = append(h.edges, hierarchyEdge{parent: item.cluster, child: childCluster, lambda: lambda, size: sizeOf(child)})
				queue = append(queue, pending{node: child, cluster: childCluster})
			}
		case leftBig:
			fallOut(merge.right, item.cluster, lambda)
			queue = append(queue, pending{node: merge.left, cluster: item.cluster})
		case rightBig:
			fallOut(merge.left, item.cluster, lambda)
			queue = append(queue, pending{node: merge.right, cluster: item.cluster})
		default:
			fallOut(merge.left, item.cluster, lambda)
			fallOut(merge.right, item.cluster, lambda)
		}
	}

	return h
}

// births returns the lambda at which every cluster appeared; the root is born at 0.
func (h clusterHierarchy) births() []float64 {
	birth := make([]float64, h.numClusters)
	for _, edge := range h.edges {
		if edge.child >= h.n {
			birth[edge.child-h.n] = edge.lambda
		}
	}
	return birth
}

// children lists the child clusters of every cluster.
func (h clusterHierarchy) children() [][]int {
	children := make([][]int, h.numClusters)
	for _, edge := range h.edges {
		if edge.child >= h.n {
			children[edge.parent-h.n] = append(children[edge.parent-h.n], edge.child)
		}
	}
	return children
}

// stabilities sums size * (lambda_leave - lambda_birth) over everything leaving a cluster.
func (h clusterHierarchy) stabilities() []float64 {
	birth := h.births()
	stability := make([]float64, h.numClusters)
	for _, edge := range h.edges {
		cluster := edge.parent - h.n
		stability[cluster] += float64(edge.size) * math.Max(0, edge.lambda-birth[cluster])
	}
	return stability
}

// selectClusters applies excess-of-mass selection bottom-up. The root is never selected,
// so a dataset without structure is all noise.
func (h clusterHierarchy) selectClusters() []bool {
	stability := h.stabilities()
	children := h.children()
	selected := make([]bool, h.numClusters)

	var deselect func(cluster int)
	deselect = func(cluster int) {
		for _, child := range children[cluster] {
			selected[child-h.n] = false
			deselect(child - h.n)
		}
	}

	for cluster := h.numClusters - 1; cluster >= 1; cluster-- {
		childStability := 0.0
		for _, child := range children[cluster] {
			childStability += stability[child-h.n]
		}
		if len(children[cluster]) > 0 && childStability > stability[cluster] {
			stability[cluster] = childStability
			continue
		}
		selected[cluster] = true
		deselect(cluster)
	}

	return selected
}

// assignLabels gives every point the label of its selected ancestor cluster and a
// probability proportional to how long it stayed in that cluster.
func (h clusterHierarchy) assignLabels(selected []bool, result *ClusterResult) {
	parentOf := make([]int, h.numClusters)
	for _, edge := range h.edges {
		if edge.child >= h.n {
			parentOf[edge.child-h.n] = edge.parent - h.n
		}
	}

	labelOf := make([]int, h.numClusters)
	nextLabel := 0
	for cluster := range labelOf {
		labelOf[cluster] = NoiseLabel
		if selected[cluster] {
			labelOf[cluster] = nextLabel
			nextLabel++
		}
	}

	// owner resolves a cluster to its selected ancestor, or -1 under the root.
	owner := func(cluster int) int {
		for cluster != 0 {
			if selected[cluster] {
				return cluster
			}
			cluster = parentOf[cluster]
		}
		return -1
	}

	pointLambda := make([]float64, h.n)
	pointOwner := make([]int, h.n)
	maxLambda := make([]float64, h.numClusters)
	for _, edge := range h.edges {
		if edge.child >= h.n {
			continue
		}
		cluster := owner(edge.parent - h.n)
		pointOwner[edge.child] = cluster
		pointLambda[edge.child] = edge.lambda
		if cluster >= 0 {
			maxLambda[cluster] = math.Max(maxLambda[cluster], edge.lambda)
		}
	}

	for point := 0; point < h.n; point++ {
		cluster := pointOwner[point]
		if cluster < 0 {
			continue
		}
		result.Labels[point] = labelOf[cluster]
		result.Probabilities[point] = 1
		if maxLambda[cluster] > 0 {
			result.Probabilities[point] = math.Min(1, pointLambda[point]/maxLambda[cluster])
		}
	}
}
