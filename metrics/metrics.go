package metrics

import "sync/atomic"

// Metrics captures shared operational stats for the ingest queue and workers.
type Metrics struct {
	queueLength   int64
	queueCapacity int64
	workerCount   int64

	filesProcessed int64
	filesFailed    int64

	recordsKept      int64
	recordsDropped   int64
	recordsMalformed int64
}

// Snapshot provides a consistent view of the current metrics.
type Snapshot struct {
	QueueLength      int
	QueueCapacity    int
	WorkerCount      int
	FilesProcessed   int64
	FilesFailed      int64
	RecordsKept      int64
	RecordsDropped   int64
	RecordsMalformed int64
}

// New creates a zeroed Metrics instance.
func New() *Metrics {
	return &Metrics{}
}

// UpdateQueue records the current queue stats.
func (m *Metrics) UpdateQueue(length, capacity, workers int) {
	atomic.StoreInt64(&m.queueLength, int64(length))
	atomic.StoreInt64(&m.queueCapacity, int64(capacity))
	atomic.StoreInt64(&m.workerCount, int64(workers))
}

// RecordFileCompletion counts a finished ingest attempt, whether it
// succeeded or not; failures also bump the failure counter.
func (m *Metrics) RecordFileCompletion(err error) {
	atomic.AddInt64(&m.filesProcessed, 1)
	if err != nil {
		atomic.AddInt64(&m.filesFailed, 1)
	}
}

// RecordRows accumulates per-file row outcomes.
func (m *Metrics) RecordRows(kept, dropped, malformed int) {
	atomic.AddInt64(&m.recordsKept, int64(kept))
	atomic.AddInt64(&m.recordsDropped, int64(dropped))
	atomic.AddInt64(&m.recordsMalformed, int64(malformed))
}

// Snapshot returns a read-only view of metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		QueueLength:      int(atomic.LoadInt64(&m.queueLength)),
		QueueCapacity:    int(atomic.LoadInt64(&m.queueCapacity)),
		WorkerCount:      int(atomic.LoadInt64(&m.workerCount)),
		FilesProcessed:   atomic.LoadInt64(&m.filesProcessed),
		FilesFailed:      atomic.LoadInt64(&m.filesFailed),
		RecordsKept:      atomic.LoadInt64(&m.recordsKept),
		RecordsDropped:   atomic.LoadInt64(&m.recordsDropped),
		RecordsMalformed: atomic.LoadInt64(&m.recordsMalformed),
	}
}
