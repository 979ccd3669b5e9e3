// Package metrics exposes Prometheus collectors for the governance and
// treasury core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VotesCast counts accepted votes by choice.
	VotesCast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "governance_votes_cast_total",
		Help: "Number of votes accepted, by choice.",
	}, []string{"choice"})

	// ProposalsResolved counts proposal transitions by terminal outcome.
	ProposalsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "governance_proposals_resolved_total",
		Help: "Number of proposals resolved, by outcome.",
	}, []string{"outcome"})

	// FundOperations counts committed ledger operations by type and status.
	FundOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "treasury_fund_operations_total",
		Help: "Number of fund ledger operations committed, by type and status.",
	}, []string{"type", "status"})

	// FundConflictRetries counts optimistic-lock retries on the fund row.
	FundConflictRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "treasury_fund_conflict_retries_total",
		Help: "Number of fund mutations retried after a version conflict.",
	})

	// SweepRuns counts expiry sweeper cycles.
	SweepRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "governance_sweep_runs_total",
		Help: "Number of expiry sweep cycles executed.",
	})

	// SweepFailures counts individual proposals a sweep failed to resolve.
	SweepFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "governance_sweep_failures_total",
		Help: "Number of proposals a sweep cycle failed to resolve.",
	})
)
