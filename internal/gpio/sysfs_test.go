package gpio

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRoot lays out a sysfs-like directory with pin already exported.
func fakeRoot(t *testing.T, pin int, value string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "gpio"+strconv.Itoa(pin))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, v := range map[string]string{"direction": "out", "edge": "none", "value": value} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(v), 0o644))
	}
	return root
}

func TestOpen_ConfiguresLine(t *testing.T) {
	root := fakeRoot(t, 17, "1\n")

	line, err := Open(root, 17, EdgeBoth)
	require.NoError(t, err)
	defer line.Close()

	dir, _ := os.ReadFile(filepath.Join(root, "gpio17", "direction"))
	edge, _ := os.ReadFile(filepath.Join(root, "gpio17", "edge"))
	assert.Equal(t, "in", string(dir))
	assert.Equal(t, "both", string(edge))
	assert.Equal(t, 17, line.Pin())

	level, err := line.Level()
	require.NoError(t, err)
	assert.Equal(t, 1, level)

	require.NoError(t, os.WriteFile(filepath.Join(root, "gpio17", "value"), []byte("0\n"), 0o644))
	level, err = line.Level()
	require.NoError(t, err)
	assert.Equal(t, 0, level)
}

func TestOpen_ExportFailure(t *testing.T) {
	// no export file and no gpio dir: writing export fails
	_, err := Open(filepath.Join(t.TempDir(), "missing"), 4, EdgeNone)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export gpio 4")
}

func TestParseLevel(t *testing.T) {
	l, err := parseLevel([]byte("1\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, l)

	_, err = parseLevel([]byte("x"))
	assert.Error(t, err)
	_, err = parseLevel(nil)
	assert.Error(t, err)
}

func TestWaitEdge_HonoursCancellation(t *testing.T) {
	// Regular files never raise POLLPRI, so WaitEdge only returns on cancel.
	root := fakeRoot(t, 22, "0\n")
	line, err := Open(root, 22, EdgeBoth)
	require.NoError(t, err)
	defer line.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = line.WaitEdge(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 120*time.Millisecond+3*pollSlice)
}
