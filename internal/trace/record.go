package trace

import (
	"time"

	"bbtrace/internal/host"
)

// Record describes one execution of one block.
type Record struct {
	Time      time.Time // wall-clock timestamp
	Seq       uint64    // global sequence number (monotonic)
	Thread    uint64    // executing thread, as reported by the host
	Addr      host.Addr // runtime start address of the block
	Module    string    // display name of the owning module
	HasModule bool      // false when no module owns Addr
	Offset    uint64    // Addr - module base; Addr itself without a module
	Body      string    // cached disassembly (full verbosity only)
}
