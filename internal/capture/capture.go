// Package capture redirects a process-level stream, such as stdout or
// stderr, into a pipe and collects everything written to it until the stream
// is restored. It is built entirely on the descriptor kernel, so redirection
// works for writes that bypass the os package too.
package capture

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/pipewright/fdkit/internal/core"
	"github.com/pipewright/fdkit/internal/fd"
)

// Each target stream supports one redirection at a time. Stacking a second
// pipe onto an already-captured descriptor would make the first Redirector's
// Stop restore the wrong stream, so Redirect refuses it outright.
var (
	activeMu sync.Mutex
	active   = make(map[int]bool)
)

func claim(target int) error {
	activeMu.Lock()
	defer activeMu.Unlock()
	if active[target] {
		return core.ErrCaptureActive
	}
	active[target] = true
	return nil
}

func release(target int) {
	activeMu.Lock()
	delete(active, target)
	activeMu.Unlock()
}

// Redirector holds one active redirection. It is single-use and not safe for
// concurrent use.
type Redirector struct {
	target  int
	saved   *fd.File
	read    *fd.File
	buf     bytes.Buffer
	done    chan struct{}
	drained string
	readErr error
	stopped bool
}

// Redirect starts capturing the given raw descriptor. The previous stream is
// saved and comes back on Stop. A drain goroutine empties the pipe
// continuously, so capture is not bounded by the kernel pipe capacity.
// Redirecting a target that is already being captured returns
// core.ErrCaptureActive.
func Redirect(target int) (*Redirector, error) {
	if err := claim(target); err != nil {
		return nil, err
	}

	saved, err := fd.Dup(target)
	if err != nil {
		release(target)
		return nil, err
	}

	pr, pw, err := fd.Pipe()
	if err != nil {
		saved.Close()
		release(target)
		return nil, err
	}

	if err := pw.Dup2(target); err != nil {
		saved.Close()
		pr.Close()
		pw.Close()
		release(target)
		return nil, err
	}
	// The target descriptor now holds the write end; the surplus handle
	// would keep the pipe open past Stop.
	pw.Close()

	r := &Redirector{
		target: target,
		saved:  saved,
		read:   pr,
		done:   make(chan struct{}),
	}
	go r.drain()
	return r, nil
}

func (r *Redirector) drain() {
	defer close(r.done)
	if _, err := io.Copy(&r.buf, r.read); err != nil {
		r.readErr = err
	}
	r.read.Close()
}

// Stop restores the target stream and returns everything captured since
// Redirect. It blocks until the drain goroutine hits end of stream, which
// happens once the restore removes the last write end. Stop is idempotent;
// later calls return the same content.
func (r *Redirector) Stop() (string, error) {
	if r.stopped {
		return r.drained, nil
	}

	restoreErr := r.saved.Dup2(r.target)
	if closeErr := r.saved.Close(); restoreErr == nil {
		restoreErr = closeErr
	}
	if restoreErr != nil {
		// The write end may still be open; do not wait on a drain that
		// cannot finish.
		return "", restoreErr
	}

	<-r.done
	r.stopped = true
	r.drained = r.buf.String()
	release(r.target)
	return r.drained, r.readErr
}

// Stdout captures everything fn writes to standard output.
func Stdout(fn func()) (string, error) {
	return capture(int(os.Stdout.Fd()), fn)
}

// Stderr captures everything fn writes to standard error, including the
// descriptor kernel's close diagnostics.
func Stderr(fn func()) (string, error) {
	return capture(int(os.Stderr.Fd()), fn)
}

func capture(target int, fn func()) (string, error) {
	r, err := Redirect(target)
	if err != nil {
		return "", err
	}
	fn()
	return r.Stop()
}
