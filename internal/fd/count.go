package fd

import "sync/atomic"

var liveCount atomic.Int64

func trackAcquire() {
	liveCount.Add(1)
}

func trackRelease() {
	liveCount.Add(-1)
}

// LiveCount returns the number of descriptors currently owned by File
// handles created through this package. Consumed by the metrics gauge and
// the watchdog.
func LiveCount() int64 {
	return liveCount.Load()
}
