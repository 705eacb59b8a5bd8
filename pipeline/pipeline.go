// Package pipeline runs one reduction end to end: read the records, reduce the
// feature matrix, write the labeled coordinates. Nothing is written until the
// whole result is ready, so a failed run leaves no output behind.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/alDuncanson/dimreduce/config"
	"github.com/alDuncanson/dimreduce/dataimport"
	"github.com/alDuncanson/dimreduce/dataset"
	"github.com/alDuncanson/dimreduce/plot"
	"github.com/alDuncanson/dimreduce/projection"
	"github.com/alDuncanson/dimreduce/qdrant"
	"github.com/alDuncanson/dimreduce/tsv"

	"gonum.org/v1/gonum/mat"
)

var ErrResultShape = errors.New("reducer returned a result of the wrong shape")

// Report describes a finished run.
type Report struct {
	Method      projection.Method
	Input       string
	Output      string // empty when written to stdout
	Rows        int
	InputDims   int
	OutputDims  int
	ColumnNames []string

	// ExplainedVarianceRatio is only set for PCA.
	ExplainedVarianceRatio []float64

	Labels      []string
	Coordinates *mat.Dense
	Clusters    []int // nil unless clustering was enabled

	LoadDuration   time.Duration
	ReduceDuration time.Duration
	WriteDuration  time.Duration
}

// NumClusters returns the number of clusters found, or 0 without clustering.
func (r Report) NumClusters() int {
	return projection.ClusterResult{Labels: r.Clusters}.NumClusters()
}

// Run executes cfg. The formatted coordinates go to cfg.Output, or to stdout
// when no output path is set.
func Run(ctx context.Context, cfg Config, stdout io.Writer) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}
	method, _ := projection.ParseMethod(string(cfg.Method))
	log := cfg.logger().With("method", method)

	if cfg.Whiten && method == projection.MethodUMAP {
		log.Warn("--whiten only applies to pca and is ignored")
	}

	outputPath, err := expandOptional(cfg.Output)
	if err != nil {
		return Report{}, err
	}

	report := Report{Method: method, Input: cfg.Input, Output: outputPath}

	start := time.Now()
	records, err := loadRecords(ctx, cfg.Input)
	if err != nil {
		return Report{}, err
	}
	data, err := dataset.New(records)
	if err != nil {
		return Report{}, fmt.Errorf("building feature matrix: %w", err)
	}
	report.LoadDuration = time.Since(start)
	report.Rows, report.InputDims = data.Dims()
	log.Debug("loaded records", "rows", report.Rows, "dims", report.InputDims, "elapsed", report.LoadDuration)

	reducer, err := projection.NewReducer(method, cfg.reducerOptions())
	if err != nil {
		return Report{}, err
	}

	start = time.Now()
	result, err := reducer.Reduce(ctx, data.Features)
	if err != nil {
		return Report{}, fmt.Errorf("%s: %w", reducer.Name(), err)
	}
	report.ReduceDuration = time.Since(start)

	rows, cols := result.Coordinates.Dims()
	if rows != report.Rows || cols != cfg.NComponents {
		return Report{}, fmt.Errorf("%w: got %dx%d, want %dx%d", ErrResultShape, rows, cols, report.Rows, cfg.NComponents)
	}
	report.OutputDims = cols
	report.ColumnNames = result.ColumnNames()
	report.ExplainedVarianceRatio = result.ExplainedVarianceRatio
	report.Labels = data.Labels
	report.Coordinates = result.Coordinates
	log.Debug("reduced", "components", cols, "elapsed", report.ReduceDuration)

	start = time.Now()
	formatted, err := tsv.Format(data.Labels, result.Coordinates)
	if err != nil {
		return Report{}, err
	}
	if outputPath == "" {
		err = tsv.Write(stdout, formatted)
	} else {
		err = tsv.WriteFile(outputPath, formatted)
	}
	if err != nil {
		return Report{}, err
	}
	report.WriteDuration = time.Since(start)
	log.Debug("wrote output", "path", outputPath, "bytes", len(formatted), "elapsed", report.WriteDuration)

	if err := runSinks(ctx, cfg, &report); err != nil {
		return report, err
	}

	return report, nil
}

// runSinks handles the optional outputs that follow the main TSV: clustering, the
// plot and the Qdrant export. The TSV is already written when these run.
func runSinks(ctx context.Context, cfg Config, report *Report) error {
	log := cfg.logger()

	if cfg.MinClusterSize > 0 {
		clusters, err := projection.Cluster(ctx, dataset.MatrixRows(report.Coordinates), projection.HDBSCANConfig{
			MinClusterSize: cfg.MinClusterSize,
			Workers:        max(cfg.Workers, 1),
		})
		if err != nil {
			return fmt.Errorf("clustering: %w", err)
		}
		report.Clusters = clusters.Labels
		log.Debug("clustered", "clusters", clusters.NumClusters())
	}

	if cfg.PlotPath != "" {
		plotPath, err := config.ExpandPath(cfg.PlotPath)
		if err != nil {
			return err
		}
		err = plot.Save(plotPath, report.Labels, report.Coordinates, plot.Options{
			Title:       string(report.Method),
			ColumnNames: report.ColumnNames,
			Clusters:    report.Clusters,
		})
		if err != nil {
			return fmt.Errorf("plot %s: %w", plotPath, err)
		}
		log.Debug("saved plot", "path", plotPath)
	}

	if cfg.QdrantExport != "" {
		address, err := qdrant.ParseAddress(cfg.QdrantExport)
		if err != nil {
			return err
		}
		if err := qdrant.Export(ctx, address, report.Labels, report.Coordinates); err != nil {
			return err
		}
		log.Debug("exported to qdrant", "address", address.String(), "points", report.Rows)
	}

	return nil
}

func loadRecords(ctx context.Context, input string) ([]dataset.Record, error) {
	if qdrant.IsURI(input) {
		address, err := qdrant.ParseAddress(input)
		if err != nil {
			return nil, err
		}
		return qdrant.Load(ctx, address)
	}

	path, err := config.ExpandPath(input)
	if err != nil {
		return nil, err
	}
	if dataimport.Supports(path) {
		return dataimport.LoadRecords(path)
	}
	return tsv.ReadFile(path)
}

func expandOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return config.ExpandPath(path)
}
