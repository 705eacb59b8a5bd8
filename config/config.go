// Package config loads reduction hyperparameters from a TOML or YAML file.
//
// Every field is a pointer so that a key missing from the file can be told apart
// from a key set to its zero value; callers only apply the fields that are set
// and let explicit command-line flags win.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported config format")
	ErrInvalidConfig     = errors.New("invalid config file")
)

// File mirrors the keys accepted in a config file. Key names match the
// command-line flags.
type File struct {
	Method             *string  `toml:"method" yaml:"method"`
	NComponents        *int     `toml:"n_components" yaml:"n_components"`
	NNeighbors         *int     `toml:"n_neighbors" yaml:"n_neighbors"`
	MinDist            *float64 `toml:"min_dist" yaml:"min_dist"`
	Whiten             *bool    `toml:"whiten" yaml:"whiten"`
	Spread             *float64 `toml:"spread" yaml:"spread"`
	NEpochs            *int     `toml:"n_epochs" yaml:"n_epochs"`
	LearningRate       *float64 `toml:"learning_rate" yaml:"learning_rate"`
	NegativeSampleRate *float64 `toml:"negative_sample_rate" yaml:"negative_sample_rate"`
	RandomState        *int64   `toml:"random_state" yaml:"random_state"`
	Workers            *int     `toml:"workers" yaml:"workers"`
	MinClusterSize     *int     `toml:"min_cluster_size" yaml:"min_cluster_size"`
}

// ExpandPath resolves a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("expanding %q: %w", path, err)
	}
	return expanded, nil
}

// Load reads path and decodes it according to its extension (.toml, .yaml or
// .yml). Unknown keys are rejected so that typos do not pass silently.
func Load(path string) (File, error) {
	expanded, err := ExpandPath(path)
	if err != nil {
		return File{}, err
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		return File{}, fmt.Errorf("reading config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(expanded)); ext {
	case ".toml":
		return DecodeTOML(data)
	case ".yaml", ".yml":
		return DecodeYAML(data)
	default:
		return File{}, fmt.Errorf("%w: %q (use .toml, .yaml or .yml)", ErrUnsupportedFormat, ext)
	}
}

// DecodeTOML decodes a TOML document.
func DecodeTOML(data []byte) (File, error) {
	var file File
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&file); err != nil {
		return File{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return file, nil
}

// DecodeYAML decodes a YAML document. An empty document yields an empty File.
func DecodeYAML(data []byte) (File, error) {
	var file File
	if len(bytes.TrimSpace(data)) == 0 {
		return file, nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return File{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return file, nil
}
