package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"stepviz/internal/model"
)

// SandboxInitialPath is the PATH compiled programs see. The inherited PATH is
// dropped so a program's behaviour does not depend on the caller's shell setup.
const SandboxInitialPath = "/usr/bin:/bin:/usr/sbin:/sbin"

// Local compiles with a C++ compiler on this machine and runs the binary.
type Local struct {
	compiler string
	flags    []string
	logger   *slog.Logger
}

// NewLocal creates a Local backend. compiler defaults to g++.
func NewLocal(compiler string, flags []string, logger *slog.Logger) *Local {
	if compiler == "" {
		compiler = "g++"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{compiler: compiler, flags: flags, logger: logger}
}

// Execute implements Backend.
func (l *Local) Execute(ctx context.Context, source, stdin string) (model.RunResult, error) {
	compiler, err := exec.LookPath(l.compiler)
	if err != nil {
		return model.RunResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	dir, err := os.MkdirTemp("", "stepviz-*")
	if err != nil {
		return model.RunResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "main.cpp")
	bin := filepath.Join(dir, "main")
	if err := os.WriteFile(src, []byte(source), 0o600); err != nil {
		return model.RunResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Traced sources carry a "#line 1" prelude, so source excerpts under
	// diagnostics would show the wrong physical lines.
	args := append(append([]string{"-fno-diagnostics-show-caret"}, l.flags...), "-o", bin, src)
	build := exec.CommandContext(ctx, compiler, args...)
	var diag bytes.Buffer
	build.Stdout = &diag
	build.Stderr = &diag
	if err := build.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			l.logger.Debug("compile failed", "exit", exitErr.ExitCode())
			return model.RunResult{Success: false, Output: strings.ReplaceAll(diag.String(), src, "main.cpp")}, nil
		}
		return model.RunResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	run := exec.CommandContext(ctx, bin)
	run.Dir = dir
	run.Env = sanitizedEnv()
	run.Stdin = strings.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	run.Stdout = &stdout
	run.Stderr = &stderr
	if err := run.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out := stderr.String()
			if out == "" {
				out = stdout.String()
			}
			if out == "" {
				out = exitErr.Error()
			}
			return model.RunResult{Success: false, Output: out}, nil
		}
		return model.RunResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return model.RunResult{Success: true, Output: stdout.String()}, nil
}

// sanitizedEnv keeps the caller's environment minus PATH, then pins PATH.
func sanitizedEnv() []string {
	var env []string
	for _, e := range os.Environ() {
		if strings.HasPrefix(e, "PATH=") {
			continue
		}
		env = append(env, e)
	}
	return append(env, "PATH="+SandboxInitialPath)
}
