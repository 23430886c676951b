// Package fd provides exclusive-ownership wrappers around raw POSIX file
// descriptors. A File owns its descriptor and closes it exactly once;
// ownership moves between handles only through explicit transfer, so at most
// one live File refers to a given descriptor value at any time.
package fd

import (
	"io"
	"os"
	"runtime"
	"strconv"

	"golang.org/x/sys/unix"
)

const invalidFd = -1

// File is an owning handle for one open file descriptor. The zero value owns
// nothing and reports -1. A File is not safe for concurrent use; its
// single-owner discipline is the point.
type File struct {
	fd int
	ok bool
}

func newOwned(raw int) *File {
	f := &File{fd: raw, ok: true}
	trackAcquire()
	runtime.SetFinalizer(f, (*File).finalize)
	return f
}

// finalize is the safety net for handles that were never closed. It runs off
// the main goroutines, so failures go to the diagnostic side channel.
func (f *File) finalize() {
	if !f.valid() {
		return
	}
	raw := f.fd
	f.invalidate()
	trackRelease()
	if err := unix.Close(raw); err != nil {
		reportCloseError(newSysError(err, "cannot close file"))
	}
}

func (f *File) valid() bool {
	return f.ok && f.fd >= 0
}

func (f *File) invalidate() {
	f.fd = invalidFd
	f.ok = false
}

// NewFile takes ownership of an existing raw descriptor, for example one
// returned by a syscall made outside this package. A negative rawfd yields an
// invalid handle. The caller must not use rawfd directly afterward.
func NewFile(rawfd int) *File {
	if rawfd < 0 {
		return &File{fd: invalidFd}
	}
	return newOwned(rawfd)
}

// Open opens path with the given access flags (unix.O_RDONLY and friends).
// Files created through O_CREAT get mode 0o666 before umask; use OpenFile for
// explicit permissions.
func Open(path string, flag int) (*File, error) {
	return OpenFile(path, flag, 0o666)
}

// OpenFile is Open with an explicit creation mode.
func OpenFile(path string, flag int, perm uint32) (*File, error) {
	for {
		raw, err := unix.Open(path, flag, perm)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, newSysError(err, "cannot open file %s", path)
		}
		return newOwned(raw), nil
	}
}

// Dup duplicates any raw descriptor into a new owning handle. The input
// descriptor is left untouched and remains whoever's it was.
func Dup(rawfd int) (*File, error) {
	dup, err := unix.Dup(rawfd)
	if err != nil {
		return nil, newSysError(err, "cannot duplicate file descriptor %d", rawfd)
	}
	return newOwned(dup), nil
}

// Pipe returns the read and write ends of a connected pipe.
func Pipe() (r, w *File, err error) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return nil, nil, newSysError(err, "cannot create pipe")
	}
	return newOwned(p[0]), newOwned(p[1]), nil
}

// Fd returns the raw descriptor, or -1 when the handle owns nothing. The
// descriptor stays owned by f; do not close it.
func (f *File) Fd() int {
	if !f.valid() {
		return invalidFd
	}
	return f.fd
}

// String returns the decimal descriptor for diagnostics.
func (f *File) String() string {
	return strconv.Itoa(f.Fd())
}

// Read reads up to len(p) bytes, retrying on EINTR. It returns io.EOF at end
// of stream and a SystemError on failure, including EBADF for a handle that
// owns nothing.
func (f *File) Read(p []byte) (int, error) {
	if !f.valid() {
		return 0, newSysError(unix.EBADF, "cannot read from file")
	}
	if len(p) == 0 {
		return 0, nil
	}
	for {
		n, err := unix.Read(f.fd, p)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, newSysError(err, "cannot read from file")
		}
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}

// Write writes all of p, retrying on EINTR and short writes.
func (f *File) Write(p []byte) (int, error) {
	if !f.valid() {
		return 0, newSysError(unix.EBADF, "cannot write to file")
	}
	var n int
	for n < len(p) {
		m, err := unix.Write(f.fd, p[n:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return n, newSysError(err, "cannot write to file")
		}
		n += m
	}
	return n, nil
}

// Dup2 makes the target descriptor number refer to f's open file, closing
// whatever target referred to before. f itself is unchanged; ownership of the
// target number stays with its current holder.
func (f *File) Dup2(target int) error {
	if err := sysDup2(f.Fd(), target); err != nil {
		return newSysError(err, "cannot duplicate file descriptor %d to %d", f.Fd(), target)
	}
	return nil
}

// Dup2Code is Dup2 for paths that must not fail loudly, such as restoring a
// redirected stream during cleanup. It never returns an error; the OS code
// (0 on success) is reported through ec instead.
func (f *File) Dup2Code(target int, ec *ErrorCode) {
	*ec = 0
	if err := sysDup2(f.Fd(), target); err != nil {
		*ec = codeOf(err)
	}
}

// Close releases the descriptor. Closing an invalid handle is a no-op; the
// handle is marked invalid before the syscall so a close happens at most once
// even when the OS reports a failure.
func (f *File) Close() error {
	if !f.valid() {
		return nil
	}
	raw := f.fd
	f.invalidate()
	trackRelease()
	if err := unix.Close(raw); err != nil {
		return newSysError(err, "cannot close file")
	}
	return nil
}

// Release transfers the raw descriptor out of the handle. The caller becomes
// responsible for closing it; f owns nothing afterward and returns -1 from a
// released handle.
func (f *File) Release() int {
	if !f.valid() {
		return invalidFd
	}
	raw := f.fd
	f.invalidate()
	trackRelease()
	return raw
}

// Adopt moves ownership of o's descriptor into f. A descriptor f currently
// owns is closed first; because Adopt is a replacement rather than an
// operation the caller can retry, a failed close is reported through the
// diagnostic side channel instead of returned. o owns nothing afterward.
func (f *File) Adopt(o *File) {
	if f == o {
		return
	}
	if f.valid() {
		raw := f.fd
		f.invalidate()
		trackRelease()
		if err := unix.Close(raw); err != nil {
			reportCloseError(newSysError(err, "cannot close file"))
		}
	}
	if o.valid() {
		f.fd = o.fd
		f.ok = true
		o.invalidate()
	}
}

// OSFile releases ownership into an *os.File with the given name, or nil when
// the handle owns nothing. Useful for handing descriptors to APIs built on
// the os package, like exec.Cmd.
func (f *File) OSFile(name string) *os.File {
	raw := f.Release()
	if raw < 0 {
		return nil
	}
	return os.NewFile(uintptr(raw), name)
}
