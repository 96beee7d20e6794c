package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.py")
	other := filepath.Join(dir, "other.py")
	require.NoError(t, os.WriteFile(path, []byte("x = 1\n"), 0o644))

	w, err := NewFile(path, 50*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func() { atomic.AddInt32(&calls, 1) })
	}()

	// unrelated file in the same directory is ignored
	require.NoError(t, os.WriteFile(other, []byte("y"), 0o644))

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("x = 2\n"), 0o644))
	}

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "a burst fires once")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestNewFile_MissingDirectory(t *testing.T) {
	_, err := NewFile(filepath.Join(t.TempDir(), "nope", "main.py"), 0, nil)
	assert.Error(t, err)
}
