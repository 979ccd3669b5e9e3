// Package events defines the domain events the core emits and the
// publisher interface the messaging collaborator implements.
//
// Events are notifications, not the source of truth: the transaction
// ledger and proposal rows are. A publish failure is logged and never
// fails the domain operation that triggered it.
package events

import "context"

// ProposalResolved is emitted exactly once when a proposal leaves Active.
type ProposalResolved struct {
	ProposalID string `json:"proposal_id"`
	GroupID    string `json:"group_id"`
	Outcome    string `json:"outcome"`
}

// FundTransactionCompleted is emitted when a ledger row reaches completed.
type FundTransactionCompleted struct {
	TransactionID string  `json:"transaction_id"`
	GroupID       string  `json:"group_id"`
	Type          string  `json:"type"`
	Amount        float64 `json:"amount"`
	BalanceAfter  float64 `json:"balance_after"`
}

// WithdrawalPendingApproval is emitted when a large withdrawal is parked
// for admin approval.
type WithdrawalPendingApproval struct {
	TransactionID string  `json:"transaction_id"`
	GroupID       string  `json:"group_id"`
	Amount        float64 `json:"amount"`
	InitiatedBy   string  `json:"initiated_by"`
}

// Publisher delivers domain events to the external messaging collaborator.
type Publisher interface {
	ProposalResolved(ctx context.Context, e ProposalResolved)
	FundTransactionCompleted(ctx context.Context, e FundTransactionCompleted)
	WithdrawalPendingApproval(ctx context.Context, e WithdrawalPendingApproval)
}
