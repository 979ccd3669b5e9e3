package events

import (
	"context"
	"log/slog"
)

// LogPublisher writes events to the structured log. It is the default
// publisher when no message transport is configured, and doubles as a
// capture point in tests.
type LogPublisher struct{}

var _ Publisher = LogPublisher{}

func (LogPublisher) ProposalResolved(_ context.Context, e ProposalResolved) {
	slog.Info("event: proposal resolved",
		"proposal_id", e.ProposalID,
		"group_id", e.GroupID,
		"outcome", e.Outcome,
	)
}

func (LogPublisher) FundTransactionCompleted(_ context.Context, e FundTransactionCompleted) {
	slog.Info("event: fund transaction completed",
		"transaction_id", e.TransactionID,
		"group_id", e.GroupID,
		"type", e.Type,
		"amount", e.Amount,
		"balance_after", e.BalanceAfter,
	)
}

func (LogPublisher) WithdrawalPendingApproval(_ context.Context, e WithdrawalPendingApproval) {
	slog.Info("event: withdrawal pending approval",
		"transaction_id", e.TransactionID,
		"group_id", e.GroupID,
		"amount", e.Amount,
		"initiated_by", e.InitiatedBy,
	)
}
