package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"crimemap/backfill"
	"crimemap/config"
	"crimemap/ingest"
	"crimemap/metrics"
	"crimemap/queue"
	"crimemap/store"
)

//go:embed static/*
var embeddedStatic embed.FS

type server struct {
	cfg     config.Config
	store   *store.Store
	queue   *queue.Queue
	metrics *metrics.Metrics
	opsLogs *opsLogHub
	ctx     context.Context
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("ensure data dir: %v", err)
	}
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("ensure db dir: %v", err)
		}
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := &server{
		cfg:     cfg,
		store:   st,
		queue:   queue.New(cfg.JobQueueSize, cfg.WorkerCount, time.Duration(cfg.JobTimeoutSec)*time.Second),
		metrics: metrics.New(),
		opsLogs: newOpsLogHub(200),
		ctx:     ctx,
	}
	s.queue.Start(ctx)

	if cfg.EnableWatcher {
		go s.watch(ctx)
	} else {
		log.Println("watcher disabled")
	}
	backfill.Run(ctx, s, cfg.BackfillLimit)

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	srv := &http.Server{
		Addr:    cfg.HTTPPort,
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.queue.Stop(shutdownCtx)
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("server listening on %s (data dir %s)", srv.Addr, cfg.DataDir)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

func (s *server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/incidents", s.handleIncidents)
	mux.HandleFunc("/api/legend", s.handleLegend)
	mux.HandleFunc("/api/clusters", s.handleClusters)
	mux.HandleFunc("/api/filters", s.handleFilters)
	mux.HandleFunc("/api/mapconfig", s.handleMapConfig)
	mux.HandleFunc("/api/ingest", s.handleIngest)
	mux.HandleFunc("/ops/status", s.handleOpsStatus)
	mux.HandleFunc("/ops/health", s.handleOpsHealth)
	mux.HandleFunc("/ops/ingest/run", s.handleOpsIngestRun)
	mux.HandleFunc("/ops/jobs", s.handleOpsJobs)
	mux.HandleFunc("/ops/jobs/", s.handleOpsJobDetail)
	mux.HandleFunc("/", s.handleRoot)
}

func (s *server) watch(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatalf("watcher: %v", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.cfg.DataDir); err != nil {
		log.Fatalf("watch add: %v", err)
	}

	log.Printf("watching %s for new extract files", s.cfg.DataDir)
	for {
		select {
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Create|fsnotify.Rename) != 0 && isExtract(evt.Name) {
				filename := filepath.Base(evt.Name)
				log.Printf("detected new extract: %s", filename)
				s.enqueueIngest("watch", filename)
			}
		case err := <-watcher.Errors:
			log.Printf("watch error: %v", err)
		case <-ctx.Done():
			return
		}
	}
}

func isExtract(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}

func (s *server) enqueueIngest(source, filename string) bool {
	job := s.ingestJob(source, filename)
	ok := s.queue.Enqueue(job)
	if !ok {
		log.Printf("could not enqueue %s from %s", filename, source)
	}
	return ok
}

func (s *server) ingestJob(source, filename string) queue.Job {
	return queue.Job{
		Filename: filename,
		Source:   source,
		Run: func(ctx context.Context) (ingest.Summary, error) {
			return s.ingestFile(ctx, filename)
		},
		OnFinish: func(summary ingest.Summary, err error) {
			s.metrics.RecordFileCompletion(err)
			s.metrics.RecordRows(summary.Kept, summary.Dropped, summary.Malformed)
		},
	}
}

func (s *server) ingestFile(ctx context.Context, filename string) (ingest.Summary, error) {
	path := filepath.Join(s.cfg.DataDir, filepath.Base(filename))
	if err := waitForStableSize(ctx, path, 500*time.Millisecond, 2); err != nil {
		return ingest.Summary{}, fmt.Errorf("wait for %s: %w", filename, err)
	}

	incidents, summary, err := ingest.ReadFile(path)
	if err != nil {
		if markErr := s.store.MarkFileFailed(ctx, filepath.Base(filename), err.Error(), time.Now().UTC()); markErr != nil {
			log.Printf("mark failed %s: %v", filename, markErr)
		}
		return summary, err
	}
	if err := s.store.ReplaceFileIncidents(ctx, filepath.Base(filename), incidents, summary, time.Now().UTC()); err != nil {
		return summary, fmt.Errorf("persist %s: %w", filename, err)
	}
	return summary, nil
}

// waitForStableSize protects against reading a file that is still being
// copied into the data dir.
func waitForStableSize(ctx context.Context, path string, interval time.Duration, required int) error {
	var last int64 = -1
	stable := 0
	for {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat: %w", err)
		}
		size := info.Size()
		if size > 0 && size == last {
			stable++
			if stable >= required {
				return nil
			}
		} else {
			stable = 0
		}
		last = size
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// backfill.Repository implementation.

func (s *server) ListCandidates(ctx context.Context) ([]backfill.Candidate, error) {
	entries, err := os.ReadDir(s.cfg.DataDir)
	if err != nil {
		return nil, err
	}
	ledger, err := s.store.IngestedFiles(ctx)
	if err != nil {
		return nil, err
	}
	var candidates []backfill.Candidate
	for _, entry := range entries {
		if entry.IsDir() || !isExtract(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		rec, seen := ledger[entry.Name()]
		candidates = append(candidates, backfill.Candidate{
			Filename: entry.Name(),
			ModTime:  info.ModTime(),
			Ingested: seen && rec.Status == store.FileStatusDone,
		})
	}
	return candidates, nil
}

func (s *server) QueueCandidate(ctx context.Context, c backfill.Candidate) backfill.EnqueueResult {
	enqueued, dropped := s.queue.EnqueueWithRetry(ctx, s.ingestJob("backfill", c.Filename), 2*time.Second, 200*time.Millisecond)
	return backfill.EnqueueResult{Enqueued: enqueued, DroppedFull: dropped}
}

func (s *server) OnBackfillComplete(summary backfill.Summary) {
	stats := s.queue.Stats()
	s.metrics.UpdateQueue(stats.Length, stats.Capacity, stats.WorkerCount)
}

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/ops/") {
		http.NotFound(w, r)
		return
	}
	switch {
	case r.URL.Path == "/":
		data, err := embeddedStatic.ReadFile("static/index.html")
		if err != nil {
			http.Error(w, "missing UI", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(data)
	case strings.HasPrefix(r.URL.Path, "/static/"):
		http.FileServer(http.FS(embeddedStatic)).ServeHTTP(w, r)
	default:
		http.NotFound(w, r)
	}
}
