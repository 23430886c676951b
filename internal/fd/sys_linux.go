//go:build linux

package fd

import "golang.org/x/sys/unix"

// Newer linux architectures only expose dup3, and dup3 rejects equal
// descriptors with EINVAL where dup2 succeeds. Probe the descriptor with
// fcntl in that case so the equal-descriptor call keeps dup2 semantics.
func sysDup2(oldfd, newfd int) error {
	if oldfd == newfd {
		_, err := unix.FcntlInt(uintptr(oldfd), unix.F_GETFD, 0)
		return err
	}
	return unix.Dup3(oldfd, newfd, 0)
}
