package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "umap.toml", `
method = "umap"
n_components = 3
n_neighbors = 30
min_dist = 0.25
random_state = 42
`)

	file, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, file.Method)
	assert.Equal(t, "umap", *file.Method)
	require.NotNil(t, file.NComponents)
	assert.Equal(t, 3, *file.NComponents)
	require.NotNil(t, file.NNeighbors)
	assert.Equal(t, 30, *file.NNeighbors)
	require.NotNil(t, file.MinDist)
	assert.Equal(t, 0.25, *file.MinDist)
	require.NotNil(t, file.RandomState)
	assert.Equal(t, int64(42), *file.RandomState)

	assert.Nil(t, file.Whiten)
	assert.Nil(t, file.Workers)
}

func TestLoadYAML(t *testing.T) {
	for _, name := range []string{"pca.yaml", "pca.YML"} {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, name, "method: pca\nwhiten: false\nn_components: 1\n")

			file, err := Load(path)
			require.NoError(t, err)

			require.NotNil(t, file.Whiten)
			assert.False(t, *file.Whiten)
			require.NotNil(t, file.NComponents)
			assert.Equal(t, 1, *file.NComponents)
			assert.Nil(t, file.MinDist)
		})
	}
}

func TestLoadEmptyYAML(t *testing.T) {
	file, err := Load(writeConfig(t, "empty.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, File{}, file)
}

func TestLoadUnknownKey(t *testing.T) {
	_, err := Load(writeConfig(t, "typo.toml", "n_component = 3\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Load(writeConfig(t, "typo.yaml", "n_component: 3\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadWrongType(t *testing.T) {
	_, err := Load(writeConfig(t, "bad.toml", "n_components = \"two\"\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadUnsupportedFormat(t *testing.T) {
	_, err := Load(writeConfig(t, "settings.json", "{}"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExpandPath(t *testing.T) {
	home, err := homedir.Dir()
	require.NoError(t, err)

	expanded, err := ExpandPath("~/configs/umap.toml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "configs", "umap.toml"), expanded)

	expanded, err = ExpandPath("/etc/dimreduce.toml")
	require.NoError(t, err)
	assert.Equal(t, "/etc/dimreduce.toml", expanded)
}
