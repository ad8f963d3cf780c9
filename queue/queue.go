// Package queue runs extract-file ingests on a bounded worker pool.
package queue

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"crimemap/ingest"
)

// Job is one extract file waiting to be ingested. Run does the work and
// reports what happened to the file's rows; OnFinish observes the outcome.
type Job struct {
	Filename string
	Source   string
	Run      func(context.Context) (ingest.Summary, error)
	OnFinish func(ingest.Summary, error)
}

// Stats exposes current queue metrics, including row totals aggregated
// across every file processed so far.
type Stats struct {
	Length         int
	Capacity       int
	WorkerCount    int
	FilesProcessed uint64
	FilesFailed    uint64
	RowsKept       uint64
	RowsDropped    uint64
	RowsMalformed  uint64
}

// Queue is a bounded ingest queue with a fixed worker pool and per-file
// timeout.
type Queue struct {
	jobs        chan Job
	workerCount int
	timeout     time.Duration
	started     bool
	mu          sync.RWMutex
	wg          sync.WaitGroup

	processed     uint64
	failed        uint64
	rowsKept      uint64
	rowsDropped   uint64
	rowsMalformed uint64
}

// New creates a Queue with the provided capacity, worker count, and per-file
// timeout.
func New(capacity, workerCount int, timeout time.Duration) *Queue {
	return &Queue{
		jobs:        make(chan Job, capacity),
		workerCount: workerCount,
		timeout:     timeout,
	}
}

// Start launches the worker pool.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()
	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

// Enqueue attempts to queue a file without blocking. Returns false if the
// queue is full or not started.
func (q *Queue) Enqueue(j Job) bool {
	return q.tryEnqueue(j, true)
}

// EnqueueWithRetry attempts to queue a file within a bounded retry window.
// Returns (enqueued, droppedFull).
func (q *Queue) EnqueueWithRetry(ctx context.Context, j Job, window time.Duration, interval time.Duration) (bool, bool) {
	deadline := time.Now().Add(window)
	attempt := func() bool {
		return q.tryEnqueue(j, false)
	}
	if attempt() {
		return true, false
	}
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false, false
		case <-time.After(interval):
			if attempt() {
				return true, false
			}
		}
	}
	return false, true
}

func (q *Queue) tryEnqueue(j Job, logDrop bool) bool {
	q.mu.RLock()
	started := q.started
	q.mu.RUnlock()
	if !started {
		if logDrop {
			log.Printf("enqueue called before queue started for %s", j.Filename)
		}
		return false
	}
	select {
	case q.jobs <- j:
		return true
	default:
		if logDrop {
			log.Printf("ingest queue full, dropping %s", j.Filename)
		}
		return false
	}
}

// Stop stops accepting new files and waits for workers to drain until the
// context is done.
func (q *Queue) Stop(ctx context.Context) {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	if q.jobs != nil {
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Stats returns current queue metrics.
func (q *Queue) Stats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()
	length := 0
	if q.jobs != nil {
		length = len(q.jobs)
	}
	return Stats{
		Length:         length,
		Capacity:       cap(q.jobs),
		WorkerCount:    q.workerCount,
		FilesProcessed: atomic.LoadUint64(&q.processed),
		FilesFailed:    atomic.LoadUint64(&q.failed),
		RowsKept:       atomic.LoadUint64(&q.rowsKept),
		RowsDropped:    atomic.LoadUint64(&q.rowsDropped),
		RowsMalformed:  atomic.LoadUint64(&q.rowsMalformed),
	}
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q.jobs:
			if !ok {
				return
			}
			q.handleJob(ctx, j)
		}
	}
}

func (q *Queue) handleJob(ctx context.Context, j Job) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ingest of %s panic recovered: %v", j.Filename, r)
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, q.timeout)
	summary, err := j.Run(jobCtx)
	cancel()
	if j.OnFinish != nil {
		j.OnFinish(summary, err)
	}
	atomic.AddUint64(&q.processed, 1)
	atomic.AddUint64(&q.rowsKept, uint64(summary.Kept))
	atomic.AddUint64(&q.rowsDropped, uint64(summary.Dropped))
	atomic.AddUint64(&q.rowsMalformed, uint64(summary.Malformed))
	if err != nil {
		atomic.AddUint64(&q.failed, 1)
	}
	status := "success"
	if err != nil {
		status = err.Error()
	}
	log.Printf("source=%s extract=%s duration_ms=%d rows=%d kept=%d dropped=%d malformed=%d status=%s",
		j.Source, j.Filename, time.Since(start).Milliseconds(), summary.Rows, summary.Kept, summary.Dropped, summary.Malformed, status)
}

// Healthy returns true once the queue has been started.
func (q *Queue) Healthy() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.started
}
