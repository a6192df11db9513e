//go:build !linux

package replay

import "bbtrace/internal/trace"

// osThreadID falls back to the goroutine id where no thread id syscall is
// available.
func osThreadID() uint64 {
	return trace.GoroutineID()
}
