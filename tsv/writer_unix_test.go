//go:build unix

package tsv

import (
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileToNamedPipe(t *testing.T) {
	fifo := filepath.Join(t.TempDir(), "out.fifo")
	require.NoError(t, syscall.Mkfifo(fifo, 0o600))

	received := make(chan string, 1)
	go func() {
		reader, err := os.Open(fifo)
		if err != nil {
			received <- "open: " + err.Error()
			return
		}
		defer reader.Close()
		content, _ := io.ReadAll(reader)
		received <- string(content)
	}()

	require.NoError(t, WriteFile(fifo, []byte("A\t1.000000\n")))
	assert.Equal(t, "A\t1.000000\n", <-received)

	info, err := os.Lstat(fifo)
	require.NoError(t, err)
	assert.True(t, info.Mode()&os.ModeNamedPipe != 0, "pipe was replaced by %v", info.Mode())
}
