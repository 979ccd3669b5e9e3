package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ridepool/governance/internal/events"
	"github.com/ridepool/governance/internal/metrics"
	"github.com/ridepool/governance/internal/models"
	"github.com/ridepool/governance/internal/registry"
	"github.com/ridepool/governance/internal/storage"
)

// maxFundRetries bounds the optimistic-lock retry loop on the fund row.
// Each retry re-reads the fund and re-validates against fresh balances.
const maxFundRetries = 10

// balanceEpsilon absorbs float accumulation noise in balance comparisons,
// so withdrawing exactly the available amount never fails spuriously.
const balanceEpsilon = 1e-9

// TreasuryService owns the group fund aggregate and its append-only
// transaction ledger. Every mutating operation is a single atomic
// read-validate-write-append unit scoped to one fund row: the store
// commits the new balances and the ledger row together, guarded by the
// fund's version, and the service retries on conflicting writes.
type TreasuryService struct {
	store     storage.Store
	registry  registry.Registry
	publisher events.Publisher
	gate      ApprovalGate
}

// NewTreasuryService creates a TreasuryService with the given approval policy.
func NewTreasuryService(store storage.Store, reg registry.Registry, pub events.Publisher, gate ApprovalGate) *TreasuryService {
	return &TreasuryService{store: store, registry: reg, publisher: pub, gate: gate}
}

// Balance is the externally visible view of a group fund.
type Balance struct {
	GroupID          string
	TotalBalance     float64
	ReserveBalance   float64
	AvailableBalance float64
}

// GetBalance returns the current balances of a group's fund, lazily
// creating the fund at zero on first access.
func (s *TreasuryService) GetBalance(ctx context.Context, groupID string) (Balance, error) {
	fund, err := s.store.GetOrCreateFund(ctx, groupID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{
		GroupID:          fund.GroupID,
		TotalBalance:     fund.TotalBalance,
		ReserveBalance:   fund.ReserveBalance,
		AvailableBalance: fund.AvailableBalance(),
	}, nil
}

// GetTransactionHistory returns a group's ledger rows, newest first.
func (s *TreasuryService) GetTransactionHistory(ctx context.Context, groupID string, limit, offset int) ([]*models.FundTransaction, error) {
	return s.store.ListTransactions(ctx, groupID, limit, offset)
}

// DepositFund adds money to a group's fund, lazily creating the fund on
// first deposit, and appends a completed ledger row.
func (s *TreasuryService) DepositFund(ctx context.Context, groupID string, amount float64, description, initiatedBy string) (*models.FundTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("deposit amount must be positive, got %v: %w", amount, models.ErrValidation)
	}

	ftx, err := s.mutateFund(ctx, groupID, func(fund *models.GroupFund) (*models.FundTransaction, error) {
		before := fund.TotalBalance
		fund.TotalBalance += amount
		return &models.FundTransaction{
			GroupID:       groupID,
			Type:          models.TxDeposit,
			Amount:        amount,
			BalanceBefore: before,
			BalanceAfter:  fund.TotalBalance,
			Status:        models.TxCompleted,
			Description:   description,
			InitiatedBy:   initiatedBy,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.completed(ctx, ftx)
	return ftx, nil
}

// WithdrawFund takes money out of a group's fund. Only admins may
// withdraw. Small withdrawals apply immediately; amounts the approval
// gate flags are recorded as pending without touching the balance and
// wait for ApproveWithdrawal.
func (s *TreasuryService) WithdrawFund(ctx context.Context, groupID string, amount float64, reason, initiatedBy string) (*models.FundTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("withdrawal amount must be positive, got %v: %w", amount, models.ErrValidation)
	}

	member, err := registry.FindMember(ctx, s.registry, groupID, initiatedBy)
	if err != nil {
		return nil, err
	}
	if !member.CanWithdraw() {
		return nil, fmt.Errorf("user %s may not withdraw funds: %w", initiatedBy, models.ErrUnauthorized)
	}

	var pending bool
	ftx, err := s.mutateFund(ctx, groupID, func(fund *models.GroupFund) (*models.FundTransaction, error) {
		available := fund.AvailableBalance()
		if amount > available+balanceEpsilon {
			return nil, fmt.Errorf("withdrawal of %v exceeds available balance %v: %w", amount, available, models.ErrInsufficientFunds)
		}

		ftx := &models.FundTransaction{
			GroupID:     groupID,
			Type:        models.TxWithdrawal,
			Amount:      amount,
			Description: reason,
			InitiatedBy: initiatedBy,
		}
		if s.gate.NeedsApproval(amount, available) {
			// Parked for approval: no balance effect yet. The
			// recorded balances are informational and get
			// rewritten when the withdrawal settles.
			pending = true
			ftx.Status = models.TxPending
			ftx.BalanceBefore = fund.TotalBalance
			ftx.BalanceAfter = fund.TotalBalance
			return ftx, nil
		}

		pending = false
		ftx.Status = models.TxCompleted
		ftx.BalanceBefore = fund.TotalBalance
		fund.TotalBalance -= amount
		ftx.BalanceAfter = fund.TotalBalance
		return ftx, nil
	})
	if err != nil {
		return nil, err
	}

	if pending {
		metrics.FundOperations.WithLabelValues(string(ftx.Type), string(ftx.Status)).Inc()
		s.publisher.WithdrawalPendingApproval(ctx, events.WithdrawalPendingApproval{
			TransactionID: ftx.ID,
			GroupID:       ftx.GroupID,
			Amount:        ftx.Amount,
			InitiatedBy:   ftx.InitiatedBy,
		})
		slog.Info("Withdrawal pending approval",
			"transaction_id", ftx.ID,
			"group_id", ftx.GroupID,
			"amount", ftx.Amount,
		)
		return ftx, nil
	}

	s.completed(ctx, ftx)
	return ftx, nil
}

// AllocateReserve moves money from the available balance into the
// reserve. The total balance is unchanged.
func (s *TreasuryService) AllocateReserve(ctx context.Context, groupID string, amount float64, reason, initiatedBy string) (*models.FundTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("allocation amount must be positive, got %v: %w", amount, models.ErrValidation)
	}

	ftx, err := s.mutateFund(ctx, groupID, func(fund *models.GroupFund) (*models.FundTransaction, error) {
		available := fund.AvailableBalance()
		if amount > available+balanceEpsilon {
			return nil, fmt.Errorf("allocation of %v exceeds available balance %v: %w", amount, available, models.ErrInsufficientFunds)
		}
		fund.ReserveBalance += amount
		return &models.FundTransaction{
			GroupID:       groupID,
			Type:          models.TxAllocation,
			Amount:        amount,
			BalanceBefore: fund.TotalBalance,
			BalanceAfter:  fund.TotalBalance,
			Status:        models.TxCompleted,
			Description:   reason,
			InitiatedBy:   initiatedBy,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.completed(ctx, ftx)
	return ftx, nil
}

// ReleaseReserve moves money from the reserve back into the available
// balance. The total balance is unchanged.
func (s *TreasuryService) ReleaseReserve(ctx context.Context, groupID string, amount float64, reason, initiatedBy string) (*models.FundTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("release amount must be positive, got %v: %w", amount, models.ErrValidation)
	}

	ftx, err := s.mutateFund(ctx, groupID, func(fund *models.GroupFund) (*models.FundTransaction, error) {
		if amount > fund.ReserveBalance+balanceEpsilon {
			return nil, fmt.Errorf("release of %v exceeds reserve balance %v: %w", amount, fund.ReserveBalance, models.ErrInsufficientFunds)
		}
		fund.ReserveBalance -= amount
		return &models.FundTransaction{
			GroupID:       groupID,
			Type:          models.TxRelease,
			Amount:        amount,
			BalanceBefore: fund.TotalBalance,
			BalanceAfter:  fund.TotalBalance,
			Status:        models.TxCompleted,
			Description:   reason,
			InitiatedBy:   initiatedBy,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.completed(ctx, ftx)
	return ftx, nil
}

// ApproveWithdrawal settles a pending withdrawal. The amount is
// re-validated against the fund's current balance, not the balance at
// request time, to guard against withdrawals that happened in between.
// If no longer affordable the transaction stays pending and the caller
// gets models.ErrInsufficientFunds.
func (s *TreasuryService) ApproveWithdrawal(ctx context.Context, transactionID, approvedBy string) (*models.FundTransaction, error) {
	ftx, err := s.pendingWithdrawal(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	member, err := registry.FindMember(ctx, s.registry, ftx.GroupID, approvedBy)
	if err != nil {
		return nil, err
	}
	if !member.CanWithdraw() {
		return nil, fmt.Errorf("user %s may not approve withdrawals: %w", approvedBy, models.ErrUnauthorized)
	}

	settled, err := s.settleFund(ctx, ftx, func(fund *models.GroupFund) error {
		available := fund.AvailableBalance()
		if ftx.Amount > available+balanceEpsilon {
			return fmt.Errorf("withdrawal %s of %v no longer affordable (available %v): %w",
				ftx.ID, ftx.Amount, available, models.ErrInsufficientFunds)
		}
		ftx.Status = models.TxCompleted
		ftx.ApprovedBy = approvedBy
		ftx.BalanceBefore = fund.TotalBalance
		fund.TotalBalance -= ftx.Amount
		ftx.BalanceAfter = fund.TotalBalance
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.completed(ctx, settled)
	return settled, nil
}

// RejectWithdrawal flips a pending withdrawal to rejected. The balance is
// untouched; the fund's version still advances so the rejection
// serializes with concurrent treasury operations.
func (s *TreasuryService) RejectWithdrawal(ctx context.Context, transactionID, rejectedBy string) (*models.FundTransaction, error) {
	ftx, err := s.pendingWithdrawal(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	member, err := registry.FindMember(ctx, s.registry, ftx.GroupID, rejectedBy)
	if err != nil {
		return nil, err
	}
	if !member.CanWithdraw() {
		return nil, fmt.Errorf("user %s may not reject withdrawals: %w", rejectedBy, models.ErrUnauthorized)
	}

	settled, err := s.settleFund(ctx, ftx, func(fund *models.GroupFund) error {
		ftx.Status = models.TxRejected
		ftx.ApprovedBy = rejectedBy
		ftx.BalanceBefore = fund.TotalBalance
		ftx.BalanceAfter = fund.TotalBalance
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.FundOperations.WithLabelValues(string(settled.Type), string(settled.Status)).Inc()
	slog.Info("Withdrawal rejected",
		"transaction_id", settled.ID,
		"group_id", settled.GroupID,
		"rejected_by", rejectedBy,
	)
	return settled, nil
}

// pendingWithdrawal loads a transaction and checks it is a withdrawal
// still awaiting approval.
func (s *TreasuryService) pendingWithdrawal(ctx context.Context, transactionID string) (*models.FundTransaction, error) {
	ftx, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if ftx.Type != models.TxWithdrawal {
		return nil, fmt.Errorf("transaction %s is a %s, not a withdrawal: %w", ftx.ID, ftx.Type, models.ErrConflict)
	}
	if ftx.Status != models.TxPending {
		return nil, fmt.Errorf("transaction %s is %s, not pending: %w", ftx.ID, ftx.Status, models.ErrConflict)
	}
	return ftx, nil
}

// mutateFund runs one read-validate-write-append unit against a group's
// fund: read fresh state, let apply validate and produce the ledger row,
// verify the fund invariant, commit under the version guard, retry the
// whole unit on conflict. Validation failures abort without writing.
func (s *TreasuryService) mutateFund(ctx context.Context, groupID string, apply func(*models.GroupFund) (*models.FundTransaction, error)) (*models.FundTransaction, error) {
	for attempt := 0; attempt < maxFundRetries; attempt++ {
		fund, err := s.store.GetOrCreateFund(ctx, groupID)
		if err != nil {
			return nil, err
		}
		if !fund.CheckInvariant() {
			slog.Error("Fund invariant violated before mutation",
				"group_id", groupID,
				"total", fund.TotalBalance,
				"reserve", fund.ReserveBalance,
			)
			return nil, fmt.Errorf("fund %s state is inconsistent (total %v, reserve %v)", groupID, fund.TotalBalance, fund.ReserveBalance)
		}

		ftx, err := apply(fund)
		if err != nil {
			return nil, err
		}
		if !fund.CheckInvariant() {
			slog.Error("Fund invariant would be violated by mutation",
				"group_id", groupID,
				"total", fund.TotalBalance,
				"reserve", fund.ReserveBalance,
			)
			return nil, fmt.Errorf("operation would corrupt fund %s (total %v, reserve %v)", groupID, fund.TotalBalance, fund.ReserveBalance)
		}

		err = s.store.AppendTransaction(ctx, fund, ftx)
		if errors.Is(err, storage.ErrVersionConflict) {
			metrics.FundConflictRetries.Inc()
			continue
		}
		if err != nil {
			return nil, err
		}
		return ftx, nil
	}
	return nil, fmt.Errorf("fund %s under too much contention, giving up after %d attempts: %w", groupID, maxFundRetries, models.ErrConflict)
}

// settleFund is the settle-side twin of mutateFund for pending rows.
func (s *TreasuryService) settleFund(ctx context.Context, ftx *models.FundTransaction, apply func(*models.GroupFund) error) (*models.FundTransaction, error) {
	for attempt := 0; attempt < maxFundRetries; attempt++ {
		fund, err := s.store.GetOrCreateFund(ctx, ftx.GroupID)
		if err != nil {
			return nil, err
		}
		if !fund.CheckInvariant() {
			slog.Error("Fund invariant violated before settlement",
				"group_id", ftx.GroupID,
				"total", fund.TotalBalance,
				"reserve", fund.ReserveBalance,
			)
			return nil, fmt.Errorf("fund %s state is inconsistent (total %v, reserve %v)", ftx.GroupID, fund.TotalBalance, fund.ReserveBalance)
		}

		if err := apply(fund); err != nil {
			return nil, err
		}
		if !fund.CheckInvariant() {
			return nil, fmt.Errorf("settlement would corrupt fund %s (total %v, reserve %v)", ftx.GroupID, fund.TotalBalance, fund.ReserveBalance)
		}

		err = s.store.SettleTransaction(ctx, fund, ftx)
		if errors.Is(err, storage.ErrVersionConflict) {
			metrics.FundConflictRetries.Inc()
			continue
		}
		if err != nil {
			return nil, err
		}
		return ftx, nil
	}
	return nil, fmt.Errorf("fund %s under too much contention, giving up after %d attempts: %w", ftx.GroupID, maxFundRetries, models.ErrConflict)
}

// completed records metrics and emits the completion event for a ledger
// row that reached completed status.
func (s *TreasuryService) completed(ctx context.Context, ftx *models.FundTransaction) {
	metrics.FundOperations.WithLabelValues(string(ftx.Type), string(ftx.Status)).Inc()
	s.publisher.FundTransactionCompleted(ctx, events.FundTransactionCompleted{
		TransactionID: ftx.ID,
		GroupID:       ftx.GroupID,
		Type:          string(ftx.Type),
		Amount:        ftx.Amount,
		BalanceAfter:  ftx.BalanceAfter,
	})
	slog.Info("Fund transaction completed",
		"transaction_id", ftx.ID,
		"group_id", ftx.GroupID,
		"type", ftx.Type,
		"amount", ftx.Amount,
		"balance_after", ftx.BalanceAfter,
	)
}
