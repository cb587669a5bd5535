package importer

// queue.go is the explicit post-commit recompute queue. Offer writes that
// happen outside an import (manual toggles) enqueue their product here
// instead of recomputing inline, so a recompute failure is visible in logs
// and retried on the next drain rather than silently undoing the write.

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DrainInterval is the fallback drain cadence when no enqueue wakes the
// worker first.
var DrainInterval = 30 * time.Second

// RollupQueue collects product ids whose rollups need recomputing.
type RollupQueue struct {
	svc *Service

	mu      sync.Mutex
	pending map[int64]bool
	wake    chan struct{}
}

// NewRollupQueue creates an empty queue bound to the service.
func NewRollupQueue(svc *Service) *RollupQueue {
	return &RollupQueue{
		svc:     svc,
		pending: make(map[int64]bool),
		wake:    make(chan struct{}, 1),
	}
}

// Enqueue marks a product for recompute. Duplicate ids collapse into one
// pending entry. Never blocks.
func (q *RollupQueue) Enqueue(productID int64) {
	q.mu.Lock()
	q.pending[productID] = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of products awaiting recompute.
func (q *RollupQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Start runs the drain loop until the context is cancelled.
func (q *RollupQueue) Start(ctx context.Context) {
	ticker := time.NewTicker(DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("rollup queue stopped", "pending", q.Pending())
			return
		case <-q.wake:
		case <-ticker.C:
		}
		q.Drain(ctx)
	}
}

// Drain recomputes every pending product. Failures are logged and put back
// so the next drain retries them; one bad product never blocks the rest.
func (q *RollupQueue) Drain(ctx context.Context) {
	q.mu.Lock()
	ids := make([]int64, 0, len(q.pending))
	for id := range q.pending {
		ids = append(ids, id)
	}
	q.pending = make(map[int64]bool)
	q.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if err := q.svc.RecomputeProduct(ctx, id); err != nil {
			slog.Error("rollup recompute failed", "product_id", id, "error", err)
			q.mu.Lock()
			q.pending[id] = true
			q.mu.Unlock()
		}
	}
}
