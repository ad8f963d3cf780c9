// Package backfill enqueues ingest jobs for extract files that landed while
// the service was down.
package backfill

import (
	"context"
	"log"
	"sort"
	"time"
)

// Candidate is an extract file and its ledger state used for selection.
type Candidate struct {
	Filename string
	ModTime  time.Time
	Ingested bool
}

// Summary captures backfill execution metrics.
type Summary struct {
	TotalCandidates  int `json:"total"`
	AlreadyIngested  int `json:"already_ingested"`
	Pending          int `json:"pending"`
	Selected         int `json:"selected"`
	Enqueued         int `json:"enqueued"`
	DroppedQueueFull int `json:"dropped_full"`
}

// EnqueueResult captures the queueing outcome for a candidate.
type EnqueueResult struct {
	Enqueued    bool
	DroppedFull bool
}

// Repository describes the data source needed for backfill.
type Repository interface {
	ListCandidates(ctx context.Context) ([]Candidate, error)
	QueueCandidate(ctx context.Context, c Candidate) EnqueueResult
	OnBackfillComplete(summary Summary)
}

// SelectPending returns up to limit not-yet-ingested candidates, newest
// first, along with a summary of the candidate set.
func SelectPending(candidates []Candidate, limit int) ([]Candidate, Summary) {
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ModTime.After(candidates[j].ModTime)
	})

	summary := Summary{TotalCandidates: len(candidates)}
	pending := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Ingested {
			summary.AlreadyIngested++
			continue
		}
		pending = append(pending, c)
	}

	summary.Pending = len(pending)
	if limit < 0 {
		limit = 0
	}
	if limit < summary.Pending {
		pending = pending[:limit]
	}
	summary.Selected = len(pending)
	return pending, summary
}

// Run executes the backfill asynchronously.
func Run(ctx context.Context, repo Repository, limit int) {
	go func() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		candidates, err := repo.ListCandidates(ctx)
		if err != nil {
			log.Printf("backfill list failed: %v", err)
			return
		}

		selected, summary := SelectPending(candidates, limit)
		for _, c := range selected {
			result := repo.QueueCandidate(ctx, c)
			if result.Enqueued {
				summary.Enqueued++
			}
			if result.DroppedFull {
				summary.DroppedQueueFull++
			}
		}

		log.Printf("backfill summary: total=%d pending=%d selected=%d enqueued=%d dropped_full=%d already_ingested=%d",
			summary.TotalCandidates, summary.Pending, summary.Selected, summary.Enqueued, summary.DroppedQueueFull, summary.AlreadyIngested)
		repo.OnBackfillComplete(summary)
	}()
}
