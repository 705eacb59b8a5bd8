package projection

import (
	"context"
	"sort"

	"github.com/sourcegraph/conc/pool"
)

// knnBlocksPerWorker splits the rows finer than one block per goroutine so a slow
// block does not leave the other workers idle.
const knnBlocksPerWorker = 4

// computeKNN finds the k nearest other points of every row by brute force (O(n²)).
// Rows are independent, so blocks of them are searched concurrently; ties are broken
// by index, which keeps the result identical for any number of workers.
func computeKNN(ctx context.Context, data [][]float64, k int, workers int) (knnResult, error) {
	n := len(data)
	indices := make([][]int, n)
	dists := make([][]float64, n)

	if workers < 1 {
		workers = 1
	}
	blockSize := max(1, n/(workers*knnBlocksPerWorker))

	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx).WithCancelOnError()
	for start := 0; start < n; start += blockSize {
		end := min(start+blockSize, n)
		p.Go(func(ctx context.Context) error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				indices[i], dists[i] = nearestNeighbors(data, i, k)
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return knnResult{}, err
	}

	return knnResult{Indices: indices, Dists: dists}, nil
}

// nearestNeighbors returns the k points closest to data[i], excluding i itself,
// ordered by increasing distance.
func nearestNeighbors(data [][]float64, i int, k int) ([]int, []float64) {
	type distIdx struct {
		dist float64
		idx  int
	}

	neighbors := make([]distIdx, 0, len(data)-1)
	for j := range data {
		if j == i {
			continue
		}
		neighbors = append(neighbors, distIdx{
			dist: euclideanDistance(data[i], data[j]),
			idx:  j,
		})
	}
	sort.Slice(neighbors, func(a, b int) bool {
		if neighbors[a].dist != neighbors[b].dist {
			return neighbors[a].dist < neighbors[b].dist
		}
		return neighbors[a].idx < neighbors[b].idx
	})

	k = min(k, len(neighbors))
	indices := make([]int, k)
	dists := make([]float64, k)
	for j := 0; j < k; j++ {
		indices[j] = neighbors[j].idx
		dists[j] = neighbors[j].dist
	}
	return indices, dists
}
