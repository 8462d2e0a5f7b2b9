package sweeper

import "time"

const (
	// Queue capacity per worker; the bounded queue is the backpressure
	// mechanism that caps in-flight tasks and sockets.
	queueDepthMultiplier = 4

	// One-shot delay before re-resolving a target that failed DNS.
	resolveRetryDelay = 100 * time.Millisecond
)

// Pass labels, also surfaced in Progress snapshots.
const (
	labelScan  = "scan"
	labelRetry = "retry"
)

// probeTask is one pending connect attempt. Tasks are produced in
// deterministic port-major order and consumed exactly once; fast-pass
// timeouts are re-materialized into the retry pass rather than requeued.
type probeTask struct {
	targetIndex int
	host        string
	ip          string
	port        int
}

// retryKey identifies a fast-pass timeout pending a slow-pass retry.
type retryKey struct {
	targetIndex int
	ip          string
	port        int
}

// Progress is a race-free snapshot of the current pass, cheap enough to
// sample at the renderer's 1 Hz cadence.
type Progress struct {
	Label string
	Done  int64
	Total int64
	Opens int64
}
