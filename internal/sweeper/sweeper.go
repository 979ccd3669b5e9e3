// Package sweeper resolves proposals whose voting window has elapsed.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/ridepool/governance/internal/metrics"
	"github.com/ridepool/governance/internal/service"
	"github.com/ridepool/governance/internal/storage"
)

// Sweeper periodically enumerates Active proposals past their voting end
// date and resolves each one. Resolution is idempotent and status-guarded
// in the store, so multiple sweeper instances may run concurrently: at
// most one wins each proposal and the rest no-op.
//
// A failure on one proposal (e.g. the membership registry being down) is
// logged and does not block the rest of the batch; the failed proposal is
// picked up again on the next cycle.
type Sweeper struct {
	store     storage.Store
	proposals *service.ProposalService
	interval  time.Duration
}

// New creates a Sweeper running every interval.
func New(store storage.Store, proposals *service.ProposalService, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{store: store, proposals: proposals, interval: interval}
}

// Run sweeps on a ticker until ctx is cancelled. It blocks; callers run
// it in its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	slog.Info("Expiry sweeper started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Expiry sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep cycle and returns the number of
// candidates that ended the cycle in a terminal state, whether this
// sweep or a concurrent resolver won the transition.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	metrics.SweepRuns.Inc()

	expired, err := s.store.ListExpiredActive(ctx, time.Now().Unix())
	if err != nil {
		slog.Error("Sweep failed to list expired proposals", "error", err)
		return 0
	}
	if len(expired) == 0 {
		return 0
	}

	resolved := 0
	for _, p := range expired {
		updated, err := s.proposals.ResolveExpired(ctx, p.ID)
		if err != nil {
			// Leave it for the next cycle.
			metrics.SweepFailures.Inc()
			slog.Error("Sweep failed to resolve proposal", "proposal_id", p.ID, "error", err)
			continue
		}
		if updated.Status.Terminal() {
			resolved++
		}
	}

	slog.Info("Sweep cycle complete", "candidates", len(expired), "resolved", resolved)
	return resolved
}
