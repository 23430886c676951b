//go:build unix && !linux

package fd

import "golang.org/x/sys/unix"

func sysDup2(oldfd, newfd int) error {
	return unix.Dup2(oldfd, newfd)
}
