package models

// GroupFund is the shared fund aggregate for one group. Exactly one exists
// per group, lazily created at zero balances on first access.
//
// Invariant: 0 <= ReserveBalance <= TotalBalance. The available balance is
// always derived as TotalBalance - ReserveBalance, never stored separately.
type GroupFund struct {
	// GroupID is the owning group; also the fund's identity.
	GroupID string

	// TotalBalance is the full amount held by the fund.
	TotalBalance float64

	// ReserveBalance is the portion of TotalBalance earmarked and
	// excluded from withdrawals.
	ReserveBalance float64

	// Version is the optimistic concurrency token. Every committed
	// mutation increments it; writers that lose a race observe a
	// version mismatch and retry against fresh state.
	Version int64

	// CreatedAt and UpdatedAt are Unix timestamps.
	CreatedAt int64
	UpdatedAt int64
}

// AvailableBalance is the amount withdrawable right now.
func (f GroupFund) AvailableBalance() float64 {
	return f.TotalBalance - f.ReserveBalance
}

// CheckInvariant returns false if the fund's balances are inconsistent.
// A false result means corrupted state: the operation that detects it must
// fail rather than "correct" the numbers.
func (f GroupFund) CheckInvariant() bool {
	return f.ReserveBalance >= 0 && f.ReserveBalance <= f.TotalBalance
}

// TransactionType categorizes a ledger row.
type TransactionType string

const (
	TxDeposit        TransactionType = "deposit"
	TxWithdrawal     TransactionType = "withdrawal"
	TxAllocation     TransactionType = "allocation"
	TxRelease        TransactionType = "release"
	TxExpensePayment TransactionType = "expense_payment"
)

// TransactionStatus is the settlement state of a ledger row.
// Completed and rejected are terminal. Pending rows exist only for large
// withdrawals awaiting approval and carry no balance effect yet.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxApproved  TransactionStatus = "approved"
	TxCompleted TransactionStatus = "completed"
	TxRejected  TransactionStatus = "rejected"
)

// FundTransaction is one append-only row in a group's fund ledger.
// Rows are never mutated once written, with a single exception: a pending
// withdrawal moving to completed or rejected through the approval path.
type FundTransaction struct {
	// ID is the unique identifier for the transaction (UUID format).
	ID string

	// GroupID is the fund this row belongs to.
	GroupID string

	// Type determines the sign and target of the balance effect.
	Type TransactionType

	// Amount is the positive magnitude of the operation.
	Amount float64

	// BalanceBefore and BalanceAfter record the fund's total balance
	// around this row's effect, forming a gap-free chain per group.
	// For pending rows both hold the balance observed at request time;
	// they are rewritten with the real values on approval.
	BalanceBefore float64
	BalanceAfter  float64

	// Status is pending, completed or rejected (approved exists as a
	// transient marker set by the approver before completion).
	Status TransactionStatus

	// Description is the human-readable reason for the operation.
	Description string

	// InitiatedBy is the user ID who requested the operation.
	InitiatedBy string

	// ApprovedBy is the admin who approved or rejected a pending
	// withdrawal; empty otherwise.
	ApprovedBy string

	// CreatedAt is the Unix timestamp when the row was appended.
	CreatedAt int64
}

// SignedDelta returns the transaction's effect on the total balance:
// positive for deposits, negative for withdrawals and expense payments,
// zero for reserve movements (which shift money between reserve and
// available without changing the total).
func (t FundTransaction) SignedDelta() float64 {
	switch t.Type {
	case TxDeposit:
		return t.Amount
	case TxWithdrawal, TxExpensePayment:
		return -t.Amount
	default:
		return 0
	}
}
