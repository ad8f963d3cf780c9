package backfill

import (
	"context"
	"testing"
	"time"
)

func candidate(name string, age time.Duration, ingested bool) Candidate {
	return Candidate{
		Filename: name,
		ModTime:  time.Now().Add(-age),
		Ingested: ingested,
	}
}

func TestSelectPendingNewestFirst(t *testing.T) {
	candidates := []Candidate{
		candidate("old.csv", 72*time.Hour, false),
		candidate("new.csv", time.Hour, false),
		candidate("mid.csv", 24*time.Hour, false),
	}
	selected, summary := SelectPending(candidates, 10)
	if len(selected) != 3 {
		t.Fatalf("selected %d, want 3", len(selected))
	}
	if selected[0].Filename != "new.csv" || selected[1].Filename != "mid.csv" || selected[2].Filename != "old.csv" {
		t.Fatalf("order = %s, %s, %s", selected[0].Filename, selected[1].Filename, selected[2].Filename)
	}
	if summary.TotalCandidates != 3 || summary.Pending != 3 || summary.Selected != 3 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestSelectPendingSkipsIngested(t *testing.T) {
	candidates := []Candidate{
		candidate("done.csv", time.Hour, true),
		candidate("todo.csv", 2*time.Hour, false),
	}
	selected, summary := SelectPending(candidates, 10)
	if len(selected) != 1 || selected[0].Filename != "todo.csv" {
		t.Fatalf("selected = %v", selected)
	}
	if summary.AlreadyIngested != 1 || summary.Pending != 1 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestSelectPendingHonorsLimit(t *testing.T) {
	var candidates []Candidate
	for i := 0; i < 10; i++ {
		candidates = append(candidates, candidate("f.csv", time.Duration(i)*time.Hour, false))
	}
	selected, summary := SelectPending(candidates, 4)
	if len(selected) != 4 {
		t.Fatalf("selected %d, want 4", len(selected))
	}
	if summary.Pending != 10 || summary.Selected != 4 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestSelectPendingNonPositiveLimit(t *testing.T) {
	candidates := []Candidate{
		candidate("a.csv", time.Hour, false),
		candidate("b.csv", 2*time.Hour, false),
	}
	for _, limit := range []int{0, -1, -10} {
		selected, summary := SelectPending(candidates, limit)
		if len(selected) != 0 {
			t.Errorf("limit %d: selected %d, want 0", limit, len(selected))
		}
		if summary.Pending != 2 || summary.Selected != 0 {
			t.Errorf("limit %d: summary = %+v", limit, summary)
		}
	}
}

type stubRepo struct {
	candidates []Candidate
	queued     []string
	dropAfter  int
	done       chan Summary
}

func (r *stubRepo) ListCandidates(context.Context) ([]Candidate, error) {
	return r.candidates, nil
}

func (r *stubRepo) QueueCandidate(_ context.Context, c Candidate) EnqueueResult {
	if r.dropAfter > 0 && len(r.queued) >= r.dropAfter {
		return EnqueueResult{DroppedFull: true}
	}
	r.queued = append(r.queued, c.Filename)
	return EnqueueResult{Enqueued: true}
}

func (r *stubRepo) OnBackfillComplete(summary Summary) {
	r.done <- summary
}

func TestRunEnqueuesPendingCandidates(t *testing.T) {
	repo := &stubRepo{
		candidates: []Candidate{
			candidate("a.csv", time.Hour, false),
			candidate("b.csv", 2*time.Hour, false),
			candidate("c.csv", 3*time.Hour, true),
		},
		done: make(chan Summary, 1),
	}
	Run(context.Background(), repo, 10)

	select {
	case summary := <-repo.done:
		if summary.Enqueued != 2 || summary.AlreadyIngested != 1 || summary.DroppedQueueFull != 0 {
			t.Fatalf("summary = %+v", summary)
		}
		if len(repo.queued) != 2 {
			t.Fatalf("queued = %v", repo.queued)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("backfill never completed")
	}
}

func TestRunCountsQueueFullDrops(t *testing.T) {
	repo := &stubRepo{
		candidates: []Candidate{
			candidate("a.csv", time.Hour, false),
			candidate("b.csv", 2*time.Hour, false),
			candidate("c.csv", 3*time.Hour, false),
		},
		dropAfter: 1,
		done:      make(chan Summary, 1),
	}
	Run(context.Background(), repo, 10)

	select {
	case summary := <-repo.done:
		if summary.Enqueued != 1 || summary.DroppedQueueFull != 2 {
			t.Fatalf("summary = %+v", summary)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("backfill never completed")
	}
}
