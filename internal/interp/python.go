// Package interp hosts the Python interpreter session used for tracing and
// plain runs.
package interp

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"sync"

	"stepviz/internal/model"

	"golang.org/x/sync/semaphore"
)

//go:embed driver.py
var driverScript string

// ErrUnavailable means no interpreter could be started.
var ErrUnavailable = errors.New("python interpreter unavailable")

// Runtime is the view of the interpreter a lease holder gets.
type Runtime interface {
	// SetGlobal stores a string global visible to later executions.
	SetGlobal(name, value string)
	// Execute runs script with stdin and returns its captured output.
	Execute(ctx context.Context, script, stdin string) (model.RunResult, error)
}

// Python is a single-slot interpreter session. Only one execution runs at a
// time; globals persist across executions for the life of the session.
type Python struct {
	binary string
	logger *slog.Logger
	slot   *semaphore.Weighted

	initOnce sync.Once
	path     string
	initErr  error

	mu      sync.Mutex
	globals map[string]string
}

// NewPython creates a session. The binary is resolved on first use.
func NewPython(binary string, logger *slog.Logger) *Python {
	if binary == "" {
		binary = "python3"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Python{
		binary:  binary,
		logger:  logger.With("component", "interp"),
		slot:    semaphore.NewWeighted(1),
		globals: make(map[string]string),
	}
}

// Exclusive runs fn while holding the interpreter. Work done through the
// Runtime inside fn cannot interleave with any other caller.
func (p *Python) Exclusive(ctx context.Context, fn func(Runtime) error) error {
	if err := p.slot.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer p.slot.Release(1)

	if err := p.init(); err != nil {
		return err
	}
	l := &lease{p: p}
	defer func() { l.done = true }()
	return fn(l)
}

// Execute runs a single script under its own lease.
func (p *Python) Execute(ctx context.Context, script, stdin string) (model.RunResult, error) {
	var res model.RunResult
	err := p.Exclusive(ctx, func(rt Runtime) error {
		var err error
		res, err = rt.Execute(ctx, script, stdin)
		return err
	})
	return res, err
}

func (p *Python) init() error {
	p.initOnce.Do(func() {
		p.path, p.initErr = exec.LookPath(p.binary)
		if p.initErr != nil {
			p.initErr = fmt.Errorf("%w: %v", ErrUnavailable, p.initErr)
			return
		}
		p.logger.Debug("interpreter ready", "path", p.path)
	})
	return p.initErr
}

type driverRequest struct {
	Script  string            `json:"script"`
	Stdin   string            `json:"stdin"`
	Globals map[string]string `json:"globals"`
}

func (p *Python) run(ctx context.Context, script, stdin string) (model.RunResult, error) {
	p.mu.Lock()
	globals := maps.Clone(p.globals)
	p.mu.Unlock()

	req, err := json.Marshal(driverRequest{Script: script, Stdin: stdin, Globals: globals})
	if err != nil {
		return model.RunResult{}, fmt.Errorf("encode driver request: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.path, "-c", driverScript)
	cmd.Stdin = bytes.NewReader(req)
	cmd.Env = append(os.Environ(), "PYTHONIOENCODING=utf-8", "PYTHONDONTWRITEBYTECODE=1")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return model.RunResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if ctx.Err() != nil {
			return model.RunResult{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}
		out := stdout.String()
		if stderr.Len() > 0 {
			out += "System Error: " + stderr.String()
		}
		return model.RunResult{Success: false, Output: out}, nil
	}
	return model.RunResult{Success: true, Output: stdout.String()}, nil
}

type lease struct {
	p    *Python
	done bool
}

func (l *lease) SetGlobal(name, value string) {
	if l.done {
		return
	}
	l.p.mu.Lock()
	l.p.globals[name] = value
	l.p.mu.Unlock()
}

func (l *lease) Execute(ctx context.Context, script, stdin string) (model.RunResult, error) {
	if l.done {
		return model.RunResult{}, fmt.Errorf("%w: lease released", ErrUnavailable)
	}
	return l.p.run(ctx, script, stdin)
}
