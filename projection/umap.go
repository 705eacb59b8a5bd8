// Package projection provides dimensionality reduction for labeled feature vectors.
//
// # UMAP (Uniform Manifold Approximation and Projection) Overview
//
// UMAP is a nonlinear dimensionality reduction technique that preserves local neighborhood
// structure better than linear methods like PCA. It works by:
//
//  1. Constructing a k-nearest neighbor graph in high-dimensional space
//  2. Converting distances to fuzzy membership strengths (fuzzy simplicial set)
//  3. Initializing a low-dimensional embedding via spectral methods
//  4. Optimizing the embedding via stochastic gradient descent with negative sampling
//
// Reference: McInnes, L., Healy, J., & Melville, J. (2018). UMAP: Uniform Manifold
// Approximation and Projection for Dimension Reduction. https://arxiv.org/abs/1802.03426
package projection

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"time"

	"github.com/alDuncanson/dimreduce/dataset"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

const (
	// spectralMinSamples and spectralMaxSamples bound the dataset sizes that get a
	// spectral initial layout; outside the range the layout starts random.
	spectralMinSamples = 50
	spectralMaxSamples = 5000

	largeDatasetSamples = 10000
	smallDatasetEpochs  = 500
	largeDatasetEpochs  = 200

	gradientClip = 4.0
)

// UMAPConfig holds hyperparameters for UMAP dimensionality reduction.
type UMAPConfig struct {
	NComponents        int     // Number of output dimensions (default: 2)
	NNeighbors         int     // Neighborhood size, counting the point itself (default: 15)
	MinDist            float64 // Minimum distance in low-dim space (default: 0.1)
	Spread             float64 // Effective scale of embedded points (default: 1.0)
	NEpochs            int     // Optimization epochs, 0 picks by dataset size
	LearningRate       float64 // Initial learning rate (default: 1.0)
	NegativeSampleRate float64 // Negative samples per positive (default: 5.0)
	RepulsionStrength  float64 // Weight of negative samples (default: 1.0)
	RandomSeed         *int64  // nil seeds from the clock, so runs differ
	Workers            int     // Goroutines used for the neighbor search
}

// DefaultUMAPConfig returns sensible default hyperparameters.
func DefaultUMAPConfig() UMAPConfig {
	return UMAPConfig{
		NComponents:        2,
		NNeighbors:         15,
		MinDist:            0.1,
		Spread:             1.0,
		LearningRate:       1.0,
		NegativeSampleRate: 5.0,
		RepulsionStrength:  1.0,
		Workers:            runtime.NumCPU(),
	}
}

// Seed returns a pointer to seed, for filling UMAPConfig.RandomSeed.
func Seed(seed int64) *int64 {
	return &seed
}

func (config UMAPConfig) validate() error {
	switch {
	case config.NComponents < 1:
		return fmt.Errorf("%w: n_components must be at least 1, got %d", ErrInvalidComponents, config.NComponents)
	case config.NNeighbors < 2:
		return fmt.Errorf("%w: n_neighbors must be greater than 1, got %d", ErrInvalidParameter, config.NNeighbors)
	case config.MinDist < 0:
		return fmt.Errorf("%w: min_dist must be non-negative, got %g", ErrInvalidParameter, config.MinDist)
	case config.Spread <= 0:
		return fmt.Errorf("%w: spread must be positive, got %g", ErrInvalidParameter, config.Spread)
	case config.MinDist > config.Spread:
		return fmt.Errorf("%w: min_dist (%g) must not exceed spread (%g)", ErrInvalidParameter, config.MinDist, config.Spread)
	case config.NEpochs < 0:
		return fmt.Errorf("%w: n_epochs must be non-negative, got %d", ErrInvalidParameter, config.NEpochs)
	case config.LearningRate <= 0:
		return fmt.Errorf("%w: learning_rate must be positive, got %g", ErrInvalidParameter, config.LearningRate)
	case config.NegativeSampleRate < 0:
		return fmt.Errorf("%w: negative_sample_rate must be non-negative, got %g", ErrInvalidParameter, config.NegativeSampleRate)
	}
	return nil
}

// UMAP is the neighborhood-embedding Reducer. Output varies between runs unless
// RandomSeed is set.
type UMAP struct {
	config UMAPConfig
}

// NewUMAP validates config and returns a UMAP reducer.
func NewUMAP(config UMAPConfig) (*UMAP, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &UMAP{config: config}, nil
}

// Name implements Reducer.
func (u *UMAP) Name() string {
	return string(MethodUMAP)
}

// COOMatrix represents a sparse matrix in coordinate (COO) format.
type COOMatrix struct {
	Rows []int
	Cols []int
	Data []float64
	NRow int
	NCol int
}

// knnResult holds k-nearest neighbor indices and distances for all points.
type knnResult struct {
	Indices [][]int     // [nSamples][k] neighbor indices
	Dists   [][]float64 // [nSamples][k] distances to neighbors
}

// Reduce embeds every row of data into NComponents dimensions.
func (u *UMAP) Reduce(ctx context.Context, data *mat.Dense) (Result, error) {
	nSamples, _ := data.Dims()
	if nSamples == 0 {
		return Result{}, ErrNoSamples
	}

	nComponents := u.config.NComponents
	if nSamples == 1 {
		return Result{Coordinates: mat.NewDense(1, nComponents, nil), ColumnPrefix: "UMAP"}, nil
	}

	// NNeighbors counts the point itself; the search only returns other points
	k := min(u.config.NNeighbors-1, nSamples-1)

	rows := dataset.MatrixRows(data)

	// Step 1: Build k-NN graph
	knn, err := computeKNN(ctx, rows, k, u.config.Workers)
	if err != nil {
		return Result{}, err
	}

	// Step 2: Compute fuzzy simplicial set
	sigmas, rhos := smoothKNNDist(knn.Dists, float64(k+1))
	graph := computeFuzzySimplicialSet(knn, sigmas, rhos, nSamples)

	// Step 3: Find output manifold parameters
	a, b := findABParams(u.config.Spread, u.config.MinDist)

	// Step 4: Initialize embedding (spectral or random)
	seed := u.resolveSeed()
	embedding := initializeEmbedding(graph, nSamples, nComponents, seed)

	// Step 5: Optimize via SGD with its own RNG so the layout does not depend on initialization draws
	nEpochs := u.config.NEpochs
	if nEpochs == 0 {
		nEpochs = defaultEpochs(nSamples)
	}
	rng := rand.New(rand.NewSource(seed + 1))
	embedding, err = optimizeLayout(ctx, embedding, graph, layoutParams{
		a:                  a,
		b:                  b,
		nEpochs:            nEpochs,
		initialAlpha:       u.config.LearningRate,
		negativeSampleRate: u.config.NegativeSampleRate,
		gamma:              u.config.RepulsionStrength,
	}, rng)
	if err != nil {
		return Result{}, err
	}

	return Result{Coordinates: embeddingToMatrix(embedding), ColumnPrefix: "UMAP"}, nil
}

func (u *UMAP) resolveSeed() int64 {
	if u.config.RandomSeed != nil {
		return *u.config.RandomSeed
	}
	return time.Now().UnixNano()
}

// defaultEpochs gives small datasets more optimization passes.
func defaultEpochs(nSamples int) int {
	if nSamples <= largeDatasetSamples {
		return smallDatasetEpochs
	}
	return largeDatasetEpochs
}

// smoothKNNDist computes sigma (bandwidth) and rho (local connectivity distance) for each point.
// Uses binary search to find sigma such that the sum of fuzzy memberships equals log2(k).
func smoothKNNDist(distances [][]float64, k float64) (sigmas, rhos []float64) {
	const (
		nIter             = 64
		localConnectivity = 1.0
		smoothKTolerance  = 1e-5
		minKDistScale     = 1e-3
	)

	n := len(distances)
	sigmas = make([]float64, n)
	rhos = make([]float64, n)
	target := math.Log2(k)

	for i := 0; i < n; i++ {
		dists := distances[i]

		// Compute rho: distance to the local_connectivity-th non-identical neighbor
		nonZeroDists := make([]float64, 0, len(dists))
		for _, d := range dists {
			if d > 0 {
				nonZeroDists = append(nonZeroDists, d)
			}
		}

		if len(nonZeroDists) >= int(localConnectivity) {
			idx := int(math.Floor(localConnectivity))
			interp := localConnectivity - float64(idx)
			if idx > 0 {
				rhos[i] = nonZeroDists[idx-1]
				if interp > smoothKTolerance {
					rhos[i] += interp * (nonZeroDists[idx] - nonZeroDists[idx-1])
				}
			} else {
				rhos[i] = interp * nonZeroDists[0]
			}
		} else if len(nonZeroDists) > 0 {
			rhos[i] = nonZeroDists[len(nonZeroDists)-1]
		}

		// Binary search for sigma
		lo, hi, mid := 0.0, math.Inf(1), 1.0

		for iter := 0; iter < nIter; iter++ {
			psum := 0.0
			for _, dist := range dists {
				d := dist - rhos[i]
				if d > 0 {
					psum += math.Exp(-d / mid)
				} else {
					psum += 1.0
				}
			}

			if math.Abs(psum-target) < smoothKTolerance {
				break
			}

			if psum > target {
				hi = mid
			} else {
				lo = mid
			}

			if math.IsInf(hi, 1) {
				mid *= 2
			} else {
				mid = (lo + hi) / 2
			}
		}

		sigmas[i] = mid

		// Enforce minimum sigma relative to the typical neighbor distance
		if minSigma := minKDistScale * mean(dists); sigmas[i] < minSigma {
			sigmas[i] = minSigma
		}
	}

	return sigmas, rhos
}

// computeFuzzySimplicialSet constructs the symmetric fuzzy graph from k-NN data.
func computeFuzzySimplicialSet(knn knnResult, sigmas, rhos []float64, nSamples int) COOMatrix {
	rows, cols, vals := computeMembershipStrengths(knn, sigmas, rhos)

	graph := COOMatrix{
		Rows: rows,
		Cols: cols,
		Data: vals,
		NRow: nSamples,
		NCol: nSamples,
	}

	return fuzzySetUnion(graph)
}

// computeMembershipStrengths computes fuzzy membership values for each directed kNN edge.
func computeMembershipStrengths(knn knnResult, sigmas, rhos []float64) (rows, cols []int, vals []float64) {
	n := len(knn.Indices)
	k := 0
	if n > 0 {
		k = len(knn.Indices[0])
	}

	rows = make([]int, 0, n*k)
	cols = make([]int, 0, n*k)
	vals = make([]float64, 0, n*k)

	for i := 0; i < n; i++ {
		for j, neighbor := range knn.Indices[i] {
			dist := knn.Dists[i][j]

			val := 1.0
			if dist-rhos[i] > 0 && sigmas[i] > 0 {
				val = math.Exp(-(dist - rhos[i]) / sigmas[i])
			}

			rows = append(rows, i)
			cols = append(cols, neighbor)
			vals = append(vals, val)
		}
	}

	return rows, cols, vals
}

// fuzzySetUnion symmetrizes the graph: P(A ∪ B) = P(A) + P(B) - P(A)P(B).
// Both directions of every edge are present in the result, in row-major order.
func fuzzySetUnion(graph COOMatrix) COOMatrix {
	type edge struct{ r, c int }

	directed := make(map[edge]float64, len(graph.Rows))
	for i := range graph.Rows {
		directed[edge{graph.Rows[i], graph.Cols[i]}] = graph.Data[i]
	}

	union := make(map[edge]float64, 2*len(directed))
	for e, v := range directed {
		vt := directed[edge{e.c, e.r}]
		w := v + vt - v*vt
		if w > 0 {
			union[e] = w
			union[edge{e.c, e.r}] = w
		}
	}

	edges := make([]edge, 0, len(union))
	for e := range union {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].r != edges[j].r {
			return edges[i].r < edges[j].r
		}
		return edges[i].c < edges[j].c
	})

	result := COOMatrix{
		Rows: make([]int, len(edges)),
		Cols: make([]int, len(edges)),
		Data: make([]float64, len(edges)),
		NRow: graph.NRow,
		NCol: graph.NCol,
	}
	for i, e := range edges {
		result.Rows[i] = e.r
		result.Cols[i] = e.c
		result.Data[i] = union[e]
	}

	return result
}

// findABParams fits curve parameters for the low-dimensional membership function
// f(x) = 1 / (1 + a * x^(2b)) against the target exp(-(x - minDist) / spread) curve.
// A coarse grid search seeds a Nelder-Mead refinement.
func findABParams(spread, minDist float64) (a, b float64) {
	const nPoints = 300
	xv := make([]float64, nPoints)
	yv := make([]float64, nPoints)

	for i := 0; i < nPoints; i++ {
		xv[i] = float64(i) / float64(nPoints-1) * spread * 3
		if xv[i] < minDist {
			yv[i] = 1.0
		} else {
			yv[i] = math.Exp(-(xv[i] - minDist) / spread)
		}
	}

	curveError := func(aTest, bTest float64) float64 {
		if aTest <= 0 || bTest <= 0 {
			return math.Inf(1)
		}
		sum := 0.0
		for i := 0; i < nPoints; i++ {
			diff := 1.0/(1.0+aTest*math.Pow(xv[i], 2*bTest)) - yv[i]
			sum += diff * diff
		}
		return sum
	}

	bestA, bestB := 1.0, 1.0
	bestError := math.Inf(1)
	for aTest := 0.1; aTest <= 10.0; aTest += 0.1 {
		for bTest := 0.1; bTest <= 2.0; bTest += 0.05 {
			if err := curveError(aTest, bTest); err < bestError {
				bestError = err
				bestA, bestB = aTest, bTest
			}
		}
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 { return curveError(x[0], x[1]) },
	}
	refined, err := optimize.Minimize(problem, []float64{bestA, bestB}, nil, &optimize.NelderMead{})
	if err != nil || refined == nil || !(refined.F < bestError) {
		return bestA, bestB
	}

	return refined.X[0], refined.X[1]
}

// initializeEmbedding creates the initial low-dimensional embedding, scaled to [0, 10]
// in every dimension. Uses spectral initialization when possible, falls back to random.
func initializeEmbedding(graph COOMatrix, nSamples, nDims int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))

	embedding := spectralLayout(graph, nSamples, nDims)
	if embedding != nil {
		// Small noise breaks ties between points with identical eigenvector entries
		for i := range embedding {
			for j := range embedding[i] {
				embedding[i][j] += rng.NormFloat64() * 0.0001
			}
		}
	} else {
		embedding = make([][]float64, nSamples)
		for i := range embedding {
			embedding[i] = make([]float64, nDims)
			for j := range embedding[i] {
				embedding[i][j] = rng.Float64()*20 - 10
			}
		}
	}

	rescaleColumns(embedding, 10)
	return embedding
}

// spectralLayout computes an initial embedding from eigenvectors of the normalized graph
// Laplacian L = I - D^(-1/2) * A * D^(-1/2). Returns nil when the dataset is outside the
// size range where a dense eigendecomposition is worthwhile, or when it fails.
func spectralLayout(graph COOMatrix, nSamples, nDims int) [][]float64 {
	if nSamples < spectralMinSamples || nSamples > spectralMaxSamples || nDims+1 >= nSamples {
		return nil
	}

	degrees := make([]float64, nSamples)
	for i, row := range graph.Rows {
		degrees[row] += graph.Data[i]
	}

	laplacian := mat.NewSymDense(nSamples, nil)
	for i := 0; i < nSamples; i++ {
		laplacian.SetSym(i, i, 1.0)
	}
	for i := range graph.Rows {
		row, col := graph.Rows[i], graph.Cols[i]
		if row == col || degrees[row] == 0 || degrees[col] == 0 {
			continue
		}
		laplacian.SetSym(row, col, -graph.Data[i]/math.Sqrt(degrees[row]*degrees[col]))
	}

	var eigen mat.EigenSym
	if ok := eigen.Factorize(laplacian, true); !ok {
		return nil
	}

	// Eigenvalues are ascending; skip the trivial first eigenvector
	var vectors mat.Dense
	eigen.VectorsTo(&vectors)

	embedding := make([][]float64, nSamples)
	for i := range embedding {
		embedding[i] = make([]float64, nDims)
		for j := 0; j < nDims; j++ {
			embedding[i][j] = vectors.At(i, j+1)
		}
	}

	return embedding
}

// rescaleColumns maps every column linearly onto [0, upper].
func rescaleColumns(embedding [][]float64, upper float64) {
	if len(embedding) == 0 {
		return
	}

	for d := range embedding[0] {
		minVal, maxVal := math.Inf(1), math.Inf(-1)
		for i := range embedding {
			minVal = math.Min(minVal, embedding[i][d])
			maxVal = math.Max(maxVal, embedding[i][d])
		}
		scale := maxVal - minVal
		if scale <= 0 {
			continue
		}
		for i := range embedding {
			embedding[i][d] = (embedding[i][d] - minVal) / scale * upper
		}
	}
}

// layoutParams groups the constants of the SGD loop.
type layoutParams struct {
	a, b               float64
	nEpochs            int
	initialAlpha       float64
	negativeSampleRate float64
	gamma              float64
}

// makeEpochsPerSample converts edge weights into sampling intervals: the strongest edge
// is sampled every epoch, an edge of weight w every max/w epochs. Edges too weak to be
// sampled even once are marked with -1.
func makeEpochsPerSample(weights []float64, nEpochs int) []float64 {
	maxWeight := 0.0
	for _, w := range weights {
		maxWeight = math.Max(maxWeight, w)
	}

	epochsPerSample := make([]float64, len(weights))
	for i, w := range weights {
		epochsPerSample[i] = -1
		if maxWeight == 0 {
			continue
		}
		nSamples := float64(nEpochs) * (w / maxWeight)
		if nSamples >= 1 {
			epochsPerSample[i] = float64(nEpochs) / nSamples
		}
	}
	return epochsPerSample
}

// optimizeLayout performs SGD optimization to refine the embedding.
func optimizeLayout(ctx context.Context, embedding [][]float64, graph COOMatrix, params layoutParams, rng *rand.Rand) ([][]float64, error) {
	nSamples := len(embedding)
	nEdges := len(graph.Rows)

	if nEdges == 0 || nSamples < 2 {
		return embedding, nil
	}

	a, b := params.a, params.b
	epochsPerSample := makeEpochsPerSample(graph.Data, params.nEpochs)

	epochOfNextSample := make([]float64, nEdges)
	epochsPerNegativeSample := make([]float64, nEdges)
	epochOfNextNegativeSample := make([]float64, nEdges)
	for i := range epochsPerSample {
		epochOfNextSample[i] = epochsPerSample[i]
		if params.negativeSampleRate > 0 {
			epochsPerNegativeSample[i] = epochsPerSample[i] / params.negativeSampleRate
		}
		epochOfNextNegativeSample[i] = epochsPerNegativeSample[i]
	}

	alpha := params.initialAlpha
	for epoch := 0; epoch < params.nEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for i := 0; i < nEdges; i++ {
			if epochsPerSample[i] < 0 || epochOfNextSample[i] > float64(epoch) {
				continue
			}

			j := graph.Rows[i]
			k := graph.Cols[i]

			// Positive sample (attraction): both endpoints move towards each other
			current := embedding[j]
			other := embedding[k]

			distSq := squaredEuclidean(current, other)
			gradCoeff := 0.0
			if distSq > 0 {
				gradCoeff = -2.0 * a * b * math.Pow(distSq, b-1.0)
				gradCoeff /= a*math.Pow(distSq, b) + 1.0
			}

			for d := range current {
				grad := clip(gradCoeff * (current[d] - other[d]))
				current[d] += grad * alpha
				other[d] -= grad * alpha
			}

			epochOfNextSample[i] += epochsPerSample[i]

			if epochsPerNegativeSample[i] <= 0 {
				continue
			}

			// Negative samples (repulsion) from uniformly chosen points
			nNegSamples := int((float64(epoch) - epochOfNextNegativeSample[i]) / epochsPerNegativeSample[i])
			for p := 0; p < nNegSamples; p++ {
				negIdx := rng.Intn(nSamples)
				negPoint := embedding[negIdx]
				distSq := squaredEuclidean(current, negPoint)

				var negCoeff float64
				if distSq > 0 {
					negCoeff = 2.0 * params.gamma * b
					negCoeff /= (0.001 + distSq) * (a*math.Pow(distSq, b) + 1)
				} else if negIdx == j {
					continue
				}

				for d := range current {
					current[d] += repulsiveGradient(negCoeff, current[d]-negPoint[d]) * alpha
				}
			}

			epochOfNextNegativeSample[i] += float64(nNegSamples) * epochsPerNegativeSample[i]
		}

		alpha = params.initialAlpha * (1.0 - float64(epoch+1)/float64(params.nEpochs))
	}

	return embedding, nil
}

// squaredEuclidean computes the squared Euclidean distance.
func squaredEuclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

// euclideanDistance computes the Euclidean distance between two vectors.
func euclideanDistance(a, b []float64) float64 {
	return math.Sqrt(squaredEuclidean(a, b))
}

// clip constrains gradient values to prevent explosive updates.
// repulsiveGradient is the clipped push away from a negative sample. A sample
// sitting exactly on the point has no direction and exerts no force.
func repulsiveGradient(coefficient, delta float64) float64 {
	if coefficient <= 0 {
		return 0
	}
	return clip(coefficient * delta)
}

func clip(val float64) float64 {
	return math.Max(-gradientClip, math.Min(gradientClip, val))
}

// mean computes the arithmetic mean of a slice.
func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// embeddingToMatrix packs the final embedding into a dense matrix.
func embeddingToMatrix(embedding [][]float64) *mat.Dense {
	nDims := len(embedding[0])
	coordinates := mat.NewDense(len(embedding), nDims, nil)
	for i, coords := range embedding {
		coordinates.SetRow(i, coords)
	}
	return coordinates
}
