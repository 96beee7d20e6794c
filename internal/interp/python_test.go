package interp

import (
	"context"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requirePython(t *testing.T) *Python {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not installed")
	}
	return NewPython("python3", nil)
}

func TestExecute_HelloWorld(t *testing.T) {
	p := requirePython(t)
	res, err := p.Execute(context.Background(), `print("Hello, World!")`, "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Hello, World!\n", res.Output)
}

func TestExecute_Stdin(t *testing.T) {
	p := requirePython(t)
	res, err := p.Execute(context.Background(), "a = input()\nb = input()\nprint(int(a) + int(b))", "2\n40\n")
	require.NoError(t, err)
	assert.Equal(t, "42\n", res.Output)
}

func TestExecute_UserErrorIsFailure(t *testing.T) {
	p := requirePython(t)
	res, err := p.Execute(context.Background(), "print('before')\n1/0\n", "")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Output, "before\n")
	assert.Contains(t, res.Output, "ZeroDivisionError")
}

func TestExecute_SystemExitIsSuccess(t *testing.T) {
	p := requirePython(t)
	res, err := p.Execute(context.Background(), "import sys\nprint('x')\nsys.exit(3)\n", "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "x\n", res.Output)
}

func TestGlobals_PersistAcrossRuns(t *testing.T) {
	p := requirePython(t)
	ctx := context.Background()

	err := p.Exclusive(ctx, func(rt Runtime) error {
		rt.SetGlobal("greeting", "hello")
		return nil
	})
	require.NoError(t, err)

	res, err := p.Execute(ctx, "print(greeting)", "")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", res.Output)
}

func TestExclusive_SerialisesCallers(t *testing.T) {
	p := NewPython("python3", nil)
	p.initOnce.Do(func() {}) // no binary needed

	var active, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Exclusive(context.Background(), func(Runtime) error {
				n := atomic.AddInt32(&active, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak)
}

func TestExclusive_CancelledWhileWaiting(t *testing.T) {
	p := NewPython("python3", nil)
	p.initOnce.Do(func() {})

	hold := make(chan struct{})
	entered := make(chan struct{})
	go func() {
		_ = p.Exclusive(context.Background(), func(Runtime) error {
			close(entered)
			<-hold
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := p.Exclusive(ctx, func(Runtime) error { return nil })
	assert.ErrorIs(t, err, ErrUnavailable)
	close(hold)
}

func TestLease_InvalidAfterRelease(t *testing.T) {
	p := NewPython("python3", nil)
	p.initOnce.Do(func() {})

	var kept Runtime
	require.NoError(t, p.Exclusive(context.Background(), func(rt Runtime) error {
		kept = rt
		return nil
	}))
	_, err := kept.Execute(context.Background(), "print(1)", "")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMissingBinary(t *testing.T) {
	p := NewPython("no-such-python-stepviz", nil)
	_, err := p.Execute(context.Background(), "print(1)", "")
	assert.ErrorIs(t, err, ErrUnavailable)
}
