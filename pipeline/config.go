package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/alDuncanson/dimreduce/config"
	"github.com/alDuncanson/dimreduce/projection"
	"github.com/alDuncanson/dimreduce/qdrant"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config carries everything one run needs. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	Method projection.Method
	Input  string // file path or qdrant://host:port/collection
	Output string // empty writes to stdout

	NComponents int
	Whiten      bool

	NNeighbors         int
	MinDist            float64
	Spread             float64
	NEpochs            int
	LearningRate       float64
	NegativeSampleRate float64
	RandomState        *int64
	Workers            int

	PlotPath       string
	MinClusterSize int    // 0 disables clustering
	QdrantExport   string // host:port/collection

	Logger *slog.Logger
}

// DefaultConfig returns the command-line defaults.
func DefaultConfig() Config {
	umap := projection.DefaultUMAPConfig()
	return Config{
		NComponents:        projection.DefaultPCAConfig().NComponents,
		NNeighbors:         umap.NNeighbors,
		MinDist:            umap.MinDist,
		Spread:             umap.Spread,
		LearningRate:       umap.LearningRate,
		NegativeSampleRate: umap.NegativeSampleRate,
		Workers:            runtime.NumCPU(),
	}
}

// Validate checks the settings that can be checked before any data is read.
func (c Config) Validate() error {
	method, err := projection.ParseMethod(string(c.Method))
	if err != nil {
		return err
	}

	switch {
	case c.Input == "":
		return fmt.Errorf("%w: an input path is required", ErrInvalidConfig)
	case c.NComponents < 1:
		return fmt.Errorf("%w: n_components must be at least 1, got %d", ErrInvalidConfig, c.NComponents)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidConfig, c.Workers)
	case c.MinClusterSize < 0 || c.MinClusterSize == 1:
		return fmt.Errorf("%w: min_cluster_size must be 0 or at least 2, got %d", ErrInvalidConfig, c.MinClusterSize)
	}

	if method == projection.MethodUMAP {
		if _, err := projection.NewUMAP(c.umapConfig()); err != nil {
			return err
		}
	}

	if qdrant.IsURI(c.Input) {
		if _, err := qdrant.ParseAddress(c.Input); err != nil {
			return err
		}
	}
	if c.QdrantExport != "" {
		if _, err := qdrant.ParseAddress(c.QdrantExport); err != nil {
			return err
		}
	}

	return nil
}

// ApplyFile copies the values present in file into c, skipping every setting for
// which explicit reports true. explicit is keyed by flag name.
func (c *Config) ApplyFile(file config.File, explicit func(name string) bool) {
	if explicit == nil {
		explicit = func(string) bool { return false }
	}

	if file.Method != nil && !explicit("method") {
		c.Method = projection.Method(*file.Method)
	}
	applyValue(&c.NComponents, file.NComponents, explicit("n_components"))
	applyValue(&c.NNeighbors, file.NNeighbors, explicit("n_neighbors"))
	applyValue(&c.MinDist, file.MinDist, explicit("min_dist"))
	applyValue(&c.Whiten, file.Whiten, explicit("whiten"))
	applyValue(&c.Spread, file.Spread, explicit("spread"))
	applyValue(&c.NEpochs, file.NEpochs, explicit("n_epochs"))
	applyValue(&c.LearningRate, file.LearningRate, explicit("learning_rate"))
	applyValue(&c.NegativeSampleRate, file.NegativeSampleRate, explicit("negative_sample_rate"))
	applyValue(&c.Workers, file.Workers, explicit("workers"))
	applyValue(&c.MinClusterSize, file.MinClusterSize, explicit("min_cluster_size"))
	if file.RandomState != nil && !explicit("random_state") {
		seed := *file.RandomState
		c.RandomState = &seed
	}
}

func applyValue[T any](dst *T, value *T, explicit bool) {
	if value != nil && !explicit {
		*dst = *value
	}
}

func (c Config) umapConfig() projection.UMAPConfig {
	umap := projection.DefaultUMAPConfig()
	umap.NComponents = c.NComponents
	umap.NNeighbors = c.NNeighbors
	umap.MinDist = c.MinDist
	umap.Spread = c.Spread
	umap.NEpochs = c.NEpochs
	umap.LearningRate = c.LearningRate
	umap.NegativeSampleRate = c.NegativeSampleRate
	umap.RandomSeed = c.RandomState
	if c.Workers > 0 {
		umap.Workers = c.Workers
	}
	return umap
}

func (c Config) reducerOptions() projection.Options {
	return projection.Options{
		PCA:  projection.PCAConfig{NComponents: c.NComponents, Whiten: c.Whiten},
		UMAP: c.umapConfig(),
	}
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
