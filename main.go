// Package main provides the entry point for dimreduce, a command-line tool that
// projects labeled feature vectors to a few dimensions with PCA or UMAP and
// writes the result as tab-separated text.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alDuncanson/dimreduce/config"
	"github.com/alDuncanson/dimreduce/pipeline"
	"github.com/alDuncanson/dimreduce/projection"
	"github.com/alDuncanson/dimreduce/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"
)

// version is set at build time via ldflags, defaults to "dev" for local builds
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "dimreduce: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	defaults := pipeline.DefaultConfig()

	return &cli.App{
		Name:      "dimreduce",
		Usage:     "reduce labeled feature vectors with PCA or UMAP",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "method", Usage: "reduction method: pca or umap", Required: true},
			&cli.StringFlag{Name: "input", Usage: "input TSV file (gzip allowed) or qdrant://host:port/collection", Required: true},
			&cli.StringFlag{Name: "output", Usage: "output TSV file (default: stdout)"},
			&cli.IntFlag{Name: "n_components", Usage: "number of output dimensions", Value: defaults.NComponents},
			&cli.IntFlag{Name: "n_neighbors", Usage: "UMAP neighborhood size", Value: defaults.NNeighbors},
			&cli.Float64Flag{Name: "min_dist", Usage: "UMAP minimum distance between embedded points", Value: defaults.MinDist},
			&cli.BoolFlag{Name: "whiten", Usage: "scale PCA components to unit variance"},
			&cli.Float64Flag{Name: "spread", Usage: "UMAP effective scale of embedded points", Value: defaults.Spread},
			&cli.IntFlag{Name: "n_epochs", Usage: "UMAP optimization epochs (0 picks by dataset size)"},
			&cli.Float64Flag{Name: "learning_rate", Usage: "UMAP initial learning rate", Value: defaults.LearningRate},
			&cli.Float64Flag{Name: "negative_sample_rate", Usage: "UMAP negative samples per positive sample", Value: defaults.NegativeSampleRate},
			&cli.Int64Flag{Name: "random_state", Usage: "seed for a reproducible UMAP run"},
			&cli.IntFlag{Name: "workers", Usage: "goroutines used for neighbor search and clustering", Value: defaults.Workers},
			&cli.StringFlag{Name: "config", Usage: "TOML or YAML file with default settings"},
			&cli.StringFlag{Name: "plot", Usage: "write a scatter plot of the first two dimensions (png, svg, pdf)"},
			&cli.IntFlag{Name: "min_cluster_size", Usage: "cluster the result with HDBSCAN (0 disables)"},
			&cli.StringFlag{Name: "qdrant-export", Usage: "store the reduced vectors in host:port/collection"},
			&cli.BoolFlag{Name: "summary", Usage: "print a run summary to stderr"},
			&cli.BoolFlag{Name: "view", Usage: "open an interactive viewer of the result"},
			&cli.BoolFlag{Name: "verbose", Usage: "log progress to stderr"},
		},
		Action: func(cCtx *cli.Context) error {
			return run(cCtx, stdout, stderr)
		},
	}
}

func run(cCtx *cli.Context, stdout, stderr io.Writer) error {
	level := slog.LevelWarn
	if cCtx.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := configFromFlags(cCtx)
	if err != nil {
		return err
	}
	cfg.Logger = logger

	report, err := pipeline.Run(cCtx.Context, cfg, stdout)
	if err != nil {
		return err
	}

	if cCtx.Bool("summary") {
		fmt.Fprintln(stderr, tui.RenderSummary(report))
	}

	if cCtx.Bool("view") {
		program := tea.NewProgram(tui.NewModel(report, version), tea.WithAltScreen(), tea.WithContext(cCtx.Context))
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("running viewer: %w", err)
		}
	}

	return nil
}

// configFromFlags builds the run configuration. Values from --config fill in
// every setting not given explicitly on the command line.
func configFromFlags(cCtx *cli.Context) (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()

	if path := cCtx.String("config"); path != "" {
		file, err := config.Load(path)
		if err != nil {
			return pipeline.Config{}, err
		}
		cfg.ApplyFile(file, cCtx.IsSet)
	}

	if cCtx.IsSet("method") {
		cfg.Method = projection.Method(cCtx.String("method"))
	}
	cfg.Input = cCtx.String("input")
	cfg.Output = cCtx.String("output")
	cfg.PlotPath = cCtx.String("plot")
	cfg.QdrantExport = cCtx.String("qdrant-export")

	setInt(cCtx, "n_components", &cfg.NComponents)
	setInt(cCtx, "n_neighbors", &cfg.NNeighbors)
	setInt(cCtx, "n_epochs", &cfg.NEpochs)
	setInt(cCtx, "workers", &cfg.Workers)
	setInt(cCtx, "min_cluster_size", &cfg.MinClusterSize)
	setFloat(cCtx, "min_dist", &cfg.MinDist)
	setFloat(cCtx, "spread", &cfg.Spread)
	setFloat(cCtx, "learning_rate", &cfg.LearningRate)
	setFloat(cCtx, "negative_sample_rate", &cfg.NegativeSampleRate)
	if cCtx.IsSet("whiten") {
		cfg.Whiten = cCtx.Bool("whiten")
	}
	if cCtx.IsSet("random_state") {
		seed := cCtx.Int64("random_state")
		cfg.RandomState = &seed
	}

	return cfg, nil
}

// setInt overwrites dst only when the flag was given, so config file values
// survive the flag defaults.
func setInt(cCtx *cli.Context, name string, dst *int) {
	if cCtx.IsSet(name) {
		*dst = cCtx.Int(name)
	}
}

func setFloat(cCtx *cli.Context, name string, dst *float64) {
	if cCtx.IsSet(name) {
		*dst = cCtx.Float64(name)
	}
}
