package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"crimemap/store"
)

type opsLogHub struct {
	mu          sync.Mutex
	ring        map[string][]store.OpsJobLog
	subscribers map[string]map[chan store.OpsJobLog]struct{}
	size        int
}

func newOpsLogHub(size int) *opsLogHub {
	return &opsLogHub{
		ring:        make(map[string][]store.OpsJobLog),
		subscribers: make(map[string]map[chan store.OpsJobLog]struct{}),
		size:        size,
	}
}

func (h *opsLogHub) append(jobID string, evt store.OpsJobLog) {
	h.mu.Lock()
	defer h.mu.Unlock()
	buf := append(h.ring[jobID], evt)
	if len(buf) > h.size {
		buf = buf[len(buf)-h.size:]
	}
	h.ring[jobID] = buf
	for ch := range h.subscribers[jobID] {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (h *opsLogHub) subscribe(jobID string) (chan store.OpsJobLog, []store.OpsJobLog) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan store.OpsJobLog, h.size)
	if h.subscribers[jobID] == nil {
		h.subscribers[jobID] = make(map[chan store.OpsJobLog]struct{})
	}
	h.subscribers[jobID][ch] = struct{}{}
	snapshot := append([]store.OpsJobLog(nil), h.ring[jobID]...)
	return ch, snapshot
}

func (h *opsLogHub) unsubscribe(jobID string, ch chan store.OpsJobLog) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.subscribers[jobID]; subs != nil {
		delete(subs, ch)
		close(ch)
	}
}

func (s *server) recordOpsJob(r *http.Request, jobType string, payload interface{}) (string, error) {
	id := uuid.NewString()
	var payloadStr *string
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			str := string(b)
			payloadStr = &str
		}
	}
	if err := s.store.RecordOpsJob(r.Context(), id, jobType, payloadStr, time.Now().UTC()); err != nil {
		return "", err
	}
	return id, nil
}

func (s *server) completeOpsJob(jobID string, accepted int, errMsg string) {
	if err := s.store.CompleteOpsJob(s.ctx, jobID, accepted, errMsg, time.Now().UTC()); err != nil {
		log.Printf("update ops job %s: %v", jobID, err)
	}
}

func (s *server) logOps(jobID, level, msg string) {
	evt := store.OpsJobLog{Timestamp: time.Now().UTC(), Level: level, Message: msg}
	if err := s.store.AppendOpsLog(s.ctx, jobID, evt); err != nil {
		log.Printf("persist ops log failed: %v", err)
	}
	if s.opsLogs != nil {
		s.opsLogs.append(jobID, evt)
	}
}

func (s *server) handleOpsStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	version := strings.TrimSpace(os.Getenv("GIT_SHA"))
	if version == "" {
		version = "dev"
	}

	qStats := s.queue.Stats()
	s.metrics.UpdateQueue(qStats.Length, qStats.Capacity, qStats.WorkerCount)
	mSnap := s.metrics.Snapshot()

	dbStatus := map[string]interface{}{"db_ok": true, "db_path": s.cfg.DBPath}
	if err := s.store.Health(r.Context()); err != nil {
		dbStatus["db_ok"] = false
		dbStatus["last_db_error"] = err.Error()
	}

	incidentCount, _ := s.store.CountIncidents(r.Context())
	ledger, _ := s.store.IngestedFiles(r.Context())
	filesDone := 0
	filesError := 0
	var lastErr *string
	for _, rec := range ledger {
		switch rec.Status {
		case store.FileStatusDone:
			filesDone++
		case store.FileStatusError:
			filesError++
			if rec.LastError != nil {
				lastErr = rec.LastError
			}
		}
	}

	summary := map[string]interface{}{
		"version": version,
		"config": map[string]interface{}{
			"DATA_DIR":       s.cfg.DataDir,
			"DB_PATH":        s.cfg.DBPath,
			"WORKER_COUNT":   s.cfg.WorkerCount,
			"JOB_QUEUE_SIZE": s.cfg.JobQueueSize,
		},
		"queue": map[string]interface{}{
			"queued":       qStats.Length,
			"capacity":     qStats.Capacity,
			"processed":    qStats.FilesProcessed,
			"failed":       qStats.FilesFailed,
			"worker_count": qStats.WorkerCount,
		},
		"pipeline": map[string]interface{}{
			"files_seen_total":      len(ledger),
			"files_ingested_total":  filesDone,
			"files_failed_total":    filesError,
			"records_total":         incidentCount,
			"records_kept_total":    mSnap.RecordsKept,
			"records_dropped_total": mSnap.RecordsDropped,
			"records_malformed":     mSnap.RecordsMalformed,
			"last_ingest_error":     lastErr,
		},
		"db": dbStatus,
	}
	respondJSON(w, summary)
}

func (s *server) handleOpsHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Health(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if !s.queue.Healthy() {
		http.Error(w, "queue not started", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type opsIngestRequest struct {
	Files []string `json:"files"`
	All   bool     `json:"all"`
}

// handleOpsIngestRun re-ingests the named extract files, or every file in
// the ledger when all=true.
func (s *server) handleOpsIngestRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req opsIngestRequest
	if r.Body != nil {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
	}
	files := req.Files
	if req.All {
		ledger, err := s.store.IngestedFiles(r.Context())
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		files = files[:0]
		for name := range ledger {
			files = append(files, name)
		}
	}
	if len(files) == 0 {
		http.Error(w, "no files requested", http.StatusBadRequest)
		return
	}

	jobID, err := s.recordOpsJob(r, "reingest", req)
	if err != nil {
		http.Error(w, "failed to record job", http.StatusInternalServerError)
		return
	}
	accepted := 0
	for _, name := range files {
		name = strings.TrimSpace(name)
		if name == "" || !isExtract(name) {
			continue
		}
		if s.enqueueIngest("ops:reingest", name) {
			accepted++
			s.logOps(jobID, "info", fmt.Sprintf("enqueued %s", name))
		}
	}
	s.completeOpsJob(jobID, accepted, "")
	respondJSON(w, map[string]interface{}{"job_id": jobID, "accepted": accepted})
}

func (s *server) handleOpsJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	jobs, err := s.store.ListOpsJobs(r.Context(), 100)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]interface{}{"jobs": jobs})
}

func (s *server) handleOpsJobDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if strings.HasSuffix(r.URL.Path, "/logs") {
		s.handleOpsLogs(w, r)
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/ops/jobs/")
	job, err := s.store.GetOpsJob(r.Context(), jobID)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	logs, _ := s.store.OpsJobLogs(r.Context(), jobID, 200)
	respondJSON(w, map[string]interface{}{"job": job, "logs": logs})
}

// handleOpsLogs streams job log lines over SSE.
func (s *server) handleOpsLogs(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/ops/jobs/"), "/logs")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, snapshot := s.opsLogs.subscribe(jobID)
	defer s.opsLogs.unsubscribe(jobID, ch)
	send := func(evt store.OpsJobLog) {
		payload, err := json.Marshal(evt)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
	for _, evt := range snapshot {
		send(evt)
	}
	for {
		select {
		case evt := <-ch:
			send(evt)
		case <-r.Context().Done():
			return
		}
	}
}
