// Package runner executes a child command with both output streams captured
// through kernel-owned pipes.
package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pipewright/fdkit/internal/core"
	"github.com/pipewright/fdkit/internal/fd"
	"github.com/pipewright/fdkit/internal/session"
)

// Spec describes one command to run.
type Spec struct {
	Argv  []string
	Dir   string
	Env   []string // nil inherits the parent environment
	Tee   bool     // also forward captured output to the real streams
	Stdin io.Reader
}

// Run executes the command and returns a finished session record with both
// streams captured. A context cancellation kills the child and marks the
// session killed. The returned record carries the child's exit code; Run
// itself only fails when the command cannot be started.
func Run(ctx context.Context, spec Spec, log *zap.Logger) (*session.Record, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if len(spec.Argv) == 0 {
		return nil, core.WrapError(core.ErrRunnerFailed, errors.New("empty argv"))
	}

	outR, outW, err := fd.Pipe()
	if err != nil {
		return nil, core.WrapError(core.ErrRunnerFailed, err)
	}
	errR, errW, err := fd.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, core.WrapError(core.ErrRunnerFailed, err)
	}

	cmd := exec.CommandContext(ctx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdin = spec.Stdin

	// Ownership of the write ends moves into os.File values handed to the
	// child; the parent copies are closed right after Start so the drains
	// see EOF when the child exits.
	outFile := outW.OSFile("stdout-pipe")
	errFile := errW.OSFile("stderr-pipe")
	cmd.Stdout = outFile
	cmd.Stderr = errFile

	rec := &session.Record{
		ID:        uuid.NewString(),
		Argv:      spec.Argv,
		Dir:       spec.Dir,
		Status:    session.StatusRunning,
		StartedAt: time.Now(),
	}

	log.Debug("starting command", zap.Strings("argv", spec.Argv))
	if err := cmd.Start(); err != nil {
		outFile.Close()
		errFile.Close()
		outR.Close()
		errR.Close()
		return nil, core.WrapError(core.ErrRunnerFailed, err)
	}
	outFile.Close()
	errFile.Close()

	var stdout, stderr bytes.Buffer
	var stdoutDst io.Writer = &stdout
	var stderrDst io.Writer = &stderr
	if spec.Tee {
		stdoutDst = io.MultiWriter(&stdout, os.Stdout)
		stderrDst = io.MultiWriter(&stderr, os.Stderr)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		io.Copy(stdoutDst, outR)
		outR.Close()
	}()
	go func() {
		defer wg.Done()
		io.Copy(stderrDst, errR)
		errR.Close()
	}()

	wg.Wait()
	waitErr := cmd.Wait()

	rec.FinishedAt = time.Now()
	rec.Stdout = stdout.Bytes()
	rec.Stderr = stderr.Bytes()

	switch {
	case waitErr == nil:
		rec.Status = session.StatusComplete
		rec.ExitCode = 0
	case ctx.Err() != nil:
		rec.Status = session.StatusKilled
		rec.ExitCode = -1
	default:
		rec.Status = session.StatusFailed
		rec.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			rec.ExitCode = exitErr.ExitCode()
			// A child killed by a signal has no exit code of its own;
			// use the shell convention so callers still see a nonzero
			// status they can propagate.
			if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				rec.ExitCode = 128 + int(ws.Signal())
			}
		}
	}

	log.Debug("command finished",
		zap.String("status", string(rec.Status)),
		zap.Int("exit_code", rec.ExitCode),
		zap.Duration("duration", rec.Duration()),
	)
	return rec, nil
}
