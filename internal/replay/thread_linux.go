//go:build linux

package replay

import "golang.org/x/sys/unix"

// osThreadID returns the kernel id of the calling OS thread.
func osThreadID() uint64 {
	return uint64(unix.Gettid())
}
