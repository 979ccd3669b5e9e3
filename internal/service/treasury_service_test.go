package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"testing"

	"github.com/ridepool/governance/internal/models"
)

const groupID = "group-1"

func newTreasury(t *testing.T, gate ApprovalGate) (*TreasuryService, *capturePublisher) {
	t.Helper()
	store := newTestStore(t)
	pub := &capturePublisher{}
	return NewTreasuryService(store, threeOwnerRegistry(groupID), pub, gate), pub
}

func TestDepositFund(t *testing.T) {
	svc, _ := newTreasury(t, ApprovalGate{})
	ctx := context.Background()

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		for _, amount := range []float64{0, -10} {
			if _, err := svc.DepositFund(ctx, groupID, amount, "bad", "alice"); !errors.Is(err, models.ErrValidation) {
				t.Errorf("DepositFund(%v) error = %v, want ErrValidation", amount, err)
			}
		}
	})

	t.Run("lazily creates the fund and records the chain", func(t *testing.T) {
		ftx, err := svc.DepositFund(ctx, groupID, 250, "monthly contribution", "bob")
		if err != nil {
			t.Fatalf("DepositFund failed: %v", err)
		}
		if ftx.BalanceBefore != 0 || ftx.BalanceAfter != 250 {
			t.Errorf("chain = %v -> %v, want 0 -> 250", ftx.BalanceBefore, ftx.BalanceAfter)
		}
		if ftx.Status != models.TxCompleted {
			t.Errorf("status = %v, want completed", ftx.Status)
		}

		balance, err := svc.GetBalance(ctx, groupID)
		if err != nil {
			t.Fatalf("GetBalance failed: %v", err)
		}
		if balance.TotalBalance != 250 || balance.ReserveBalance != 0 || balance.AvailableBalance != 250 {
			t.Errorf("balance = %+v, want total 250, reserve 0, available 250", balance)
		}
	})
}

func TestWithdrawFund(t *testing.T) {
	ctx := context.Background()

	t.Run("requires admin role", func(t *testing.T) {
		svc, _ := newTreasury(t, ApprovalGate{})
		if _, err := svc.DepositFund(ctx, groupID, 500, "seed", "alice"); err != nil {
			t.Fatalf("DepositFund failed: %v", err)
		}
		if _, err := svc.WithdrawFund(ctx, groupID, 100, "tires", "bob"); !errors.Is(err, models.ErrUnauthorized) {
			t.Errorf("member withdrawal error = %v, want ErrUnauthorized", err)
		}
		if _, err := svc.WithdrawFund(ctx, groupID, 100, "tires", "mallory"); !errors.Is(err, models.ErrUnauthorized) {
			t.Errorf("non-member withdrawal error = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("overdraft always fails and leaves the balance unchanged", func(t *testing.T) {
		svc, _ := newTreasury(t, ApprovalGate{})
		if _, err := svc.DepositFund(ctx, groupID, 500, "seed", "alice"); err != nil {
			t.Fatalf("DepositFund failed: %v", err)
		}
		if _, err := svc.WithdrawFund(ctx, groupID, 600, "too much", "alice"); !errors.Is(err, models.ErrInsufficientFunds) {
			t.Errorf("overdraft error = %v, want ErrInsufficientFunds", err)
		}
		balance, _ := svc.GetBalance(ctx, groupID)
		if balance.TotalBalance != 500 {
			t.Errorf("balance after failed withdrawal = %v, want 500", balance.TotalBalance)
		}
	})

	t.Run("small withdrawal applies immediately", func(t *testing.T) {
		svc, _ := newTreasury(t, ApprovalGate{AbsoluteThreshold: 1000})
		svc.DepositFund(ctx, groupID, 500, "seed", "alice")

		ftx, err := svc.WithdrawFund(ctx, groupID, 200, "insurance", "alice")
		if err != nil {
			t.Fatalf("WithdrawFund failed: %v", err)
		}
		if ftx.Status != models.TxCompleted {
			t.Errorf("status = %v, want completed", ftx.Status)
		}
		if ftx.BalanceBefore != 500 || ftx.BalanceAfter != 300 {
			t.Errorf("chain = %v -> %v, want 500 -> 300", ftx.BalanceBefore, ftx.BalanceAfter)
		}
	})

	t.Run("large withdrawal parks as pending without touching the balance", func(t *testing.T) {
		svc, pub := newTreasury(t, ApprovalGate{AbsoluteThreshold: 100})
		svc.DepositFund(ctx, groupID, 500, "seed", "alice")

		ftx, err := svc.WithdrawFund(ctx, groupID, 400, "engine swap", "alice")
		if err != nil {
			t.Fatalf("WithdrawFund failed: %v", err)
		}
		if ftx.Status != models.TxPending {
			t.Errorf("status = %v, want pending", ftx.Status)
		}
		balance, _ := svc.GetBalance(ctx, groupID)
		if balance.TotalBalance != 500 {
			t.Errorf("balance after pending withdrawal = %v, want 500", balance.TotalBalance)
		}
		if pub.pendingCount() != 1 {
			t.Errorf("pending events = %d, want 1", pub.pendingCount())
		}
	})
}

func TestReserveOperations(t *testing.T) {
	svc, _ := newTreasury(t, ApprovalGate{})
	ctx := context.Background()

	svc.DepositFund(ctx, groupID, 1000, "seed", "alice")

	t.Run("allocation moves available into reserve", func(t *testing.T) {
		ftx, err := svc.AllocateReserve(ctx, groupID, 300, "maintenance buffer", "alice")
		if err != nil {
			t.Fatalf("AllocateReserve failed: %v", err)
		}
		// Reserve movements do not change the total.
		if ftx.BalanceBefore != 1000 || ftx.BalanceAfter != 1000 {
			t.Errorf("chain = %v -> %v, want 1000 -> 1000", ftx.BalanceBefore, ftx.BalanceAfter)
		}
		balance, _ := svc.GetBalance(ctx, groupID)
		if balance.ReserveBalance != 300 || balance.AvailableBalance != 700 {
			t.Errorf("balance = %+v, want reserve 300, available 700", balance)
		}
	})

	t.Run("allocation cannot exceed available", func(t *testing.T) {
		if _, err := svc.AllocateReserve(ctx, groupID, 800, "too much", "alice"); !errors.Is(err, models.ErrInsufficientFunds) {
			t.Errorf("error = %v, want ErrInsufficientFunds", err)
		}
	})

	t.Run("release is the inverse of allocation", func(t *testing.T) {
		if _, err := svc.ReleaseReserve(ctx, groupID, 100, "buffer trim", "alice"); err != nil {
			t.Fatalf("ReleaseReserve failed: %v", err)
		}
		balance, _ := svc.GetBalance(ctx, groupID)
		if balance.ReserveBalance != 200 || balance.AvailableBalance != 800 {
			t.Errorf("balance = %+v, want reserve 200, available 800", balance)
		}
	})

	t.Run("release cannot exceed reserve", func(t *testing.T) {
		if _, err := svc.ReleaseReserve(ctx, groupID, 500, "too much", "alice"); !errors.Is(err, models.ErrInsufficientFunds) {
			t.Errorf("error = %v, want ErrInsufficientFunds", err)
		}
	})
}

func TestApproveWithdrawal(t *testing.T) {
	ctx := context.Background()

	t.Run("approval applies the withdrawal against current balance", func(t *testing.T) {
		svc, _ := newTreasury(t, ApprovalGate{AbsoluteThreshold: 100})
		svc.DepositFund(ctx, groupID, 500, "seed", "alice")

		pending, err := svc.WithdrawFund(ctx, groupID, 400, "engine swap", "alice")
		if err != nil {
			t.Fatalf("WithdrawFund failed: %v", err)
		}

		approved, err := svc.ApproveWithdrawal(ctx, pending.ID, "alice")
		if err != nil {
			t.Fatalf("ApproveWithdrawal failed: %v", err)
		}
		if approved.Status != models.TxCompleted {
			t.Errorf("status = %v, want completed", approved.Status)
		}
		if approved.ApprovedBy != "alice" {
			t.Errorf("approved_by = %q, want alice", approved.ApprovedBy)
		}
		balance, _ := svc.GetBalance(ctx, groupID)
		if balance.TotalBalance != 100 {
			t.Errorf("balance after approval = %v, want 100", balance.TotalBalance)
		}
	})

	t.Run("requires admin approver", func(t *testing.T) {
		svc, _ := newTreasury(t, ApprovalGate{AbsoluteThreshold: 100})
		svc.DepositFund(ctx, groupID, 500, "seed", "alice")
		pending, _ := svc.WithdrawFund(ctx, groupID, 400, "engine swap", "alice")

		if _, err := svc.ApproveWithdrawal(ctx, pending.ID, "bob"); !errors.Is(err, models.ErrUnauthorized) {
			t.Errorf("member approval error = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("revalidates against the current balance, not request-time balance", func(t *testing.T) {
		svc, _ := newTreasury(t, ApprovalGate{AbsoluteThreshold: 300})
		svc.DepositFund(ctx, groupID, 500, "seed", "alice")

		pending, err := svc.WithdrawFund(ctx, groupID, 400, "engine swap", "alice")
		if err != nil {
			t.Fatalf("WithdrawFund failed: %v", err)
		}

		// An intervening small withdrawal shrinks the available balance
		// below the pending amount.
		if _, err := svc.WithdrawFund(ctx, groupID, 200, "tires", "alice"); err != nil {
			t.Fatalf("intervening withdrawal failed: %v", err)
		}

		if _, err := svc.ApproveWithdrawal(ctx, pending.ID, "alice"); !errors.Is(err, models.ErrInsufficientFunds) {
			t.Errorf("approval error = %v, want ErrInsufficientFunds", err)
		}

		// The transaction stays pending: an explicit reject is separate.
		current, err := svc.store.GetTransaction(ctx, pending.ID)
		if err != nil {
			t.Fatalf("GetTransaction failed: %v", err)
		}
		if current.Status != models.TxPending {
			t.Errorf("status after failed approval = %v, want pending", current.Status)
		}
	})

	t.Run("double approval conflicts", func(t *testing.T) {
		svc, _ := newTreasury(t, ApprovalGate{AbsoluteThreshold: 100})
		svc.DepositFund(ctx, groupID, 500, "seed", "alice")
		pending, _ := svc.WithdrawFund(ctx, groupID, 400, "engine swap", "alice")

		if _, err := svc.ApproveWithdrawal(ctx, pending.ID, "alice"); err != nil {
			t.Fatalf("first approval failed: %v", err)
		}
		if _, err := svc.ApproveWithdrawal(ctx, pending.ID, "alice"); !errors.Is(err, models.ErrConflict) {
			t.Errorf("second approval error = %v, want ErrConflict", err)
		}
	})
}

func TestRejectWithdrawal(t *testing.T) {
	svc, _ := newTreasury(t, ApprovalGate{AbsoluteThreshold: 100})
	ctx := context.Background()

	svc.DepositFund(ctx, groupID, 500, "seed", "alice")
	pending, _ := svc.WithdrawFund(ctx, groupID, 400, "engine swap", "alice")

	rejected, err := svc.RejectWithdrawal(ctx, pending.ID, "alice")
	if err != nil {
		t.Fatalf("RejectWithdrawal failed: %v", err)
	}
	if rejected.Status != models.TxRejected {
		t.Errorf("status = %v, want rejected", rejected.Status)
	}

	balance, _ := svc.GetBalance(ctx, groupID)
	if balance.TotalBalance != 500 {
		t.Errorf("balance after rejection = %v, want 500", balance.TotalBalance)
	}

	// A rejected withdrawal cannot be approved afterwards.
	if _, err := svc.ApproveWithdrawal(ctx, pending.ID, "alice"); !errors.Is(err, models.ErrConflict) {
		t.Errorf("approval after rejection error = %v, want ErrConflict", err)
	}
}

// TestEndToEndScenario walks the deposit/allocate/release/withdraw flow
// and checks balances at every step.
func TestEndToEndScenario(t *testing.T) {
	svc, _ := newTreasury(t, ApprovalGate{})
	ctx := context.Background()

	check := func(total, reserve, available float64) {
		t.Helper()
		balance, err := svc.GetBalance(ctx, groupID)
		if err != nil {
			t.Fatalf("GetBalance failed: %v", err)
		}
		if balance.TotalBalance != total || balance.ReserveBalance != reserve || balance.AvailableBalance != available {
			t.Fatalf("balance = total %v / reserve %v / available %v, want %v / %v / %v",
				balance.TotalBalance, balance.ReserveBalance, balance.AvailableBalance, total, reserve, available)
		}
	}

	if _, err := svc.DepositFund(ctx, groupID, 1000, "initial funding", "alice"); err != nil {
		t.Fatalf("DepositFund failed: %v", err)
	}
	check(1000, 0, 1000)

	if _, err := svc.AllocateReserve(ctx, groupID, 300, "winter tires", "alice"); err != nil {
		t.Fatalf("AllocateReserve failed: %v", err)
	}
	check(1000, 300, 700)

	if _, err := svc.ReleaseReserve(ctx, groupID, 100, "cheaper quote", "alice"); err != nil {
		t.Fatalf("ReleaseReserve failed: %v", err)
	}
	check(1000, 200, 800)

	if _, err := svc.WithdrawFund(ctx, groupID, 900, "overreach", "alice"); !errors.Is(err, models.ErrInsufficientFunds) {
		t.Fatalf("Withdraw(900) error = %v, want ErrInsufficientFunds", err)
	}
	check(1000, 200, 800)

	if _, err := svc.WithdrawFund(ctx, groupID, 800, "repairs", "alice"); err != nil {
		t.Fatalf("Withdraw(800) failed: %v", err)
	}
	check(200, 200, 0)
}

// TestConcurrentDeposits runs N concurrent deposits and verifies the
// total and a gap-free balanceBefore/balanceAfter chain: two operations
// must never have read the same balanceBefore.
func TestConcurrentDeposits(t *testing.T) {
	svc, _ := newTreasury(t, ApprovalGate{})
	ctx := context.Background()

	const n = 10
	amounts := make([]float64, n)
	var want float64
	for i := range amounts {
		amounts[i] = float64((i + 1) * 10)
		want += amounts[i]
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.DepositFund(ctx, groupID, amounts[i], "concurrent", "bob")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("deposit %d failed: %v", i, err)
		}
	}

	balance, err := svc.GetBalance(ctx, groupID)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if math.Abs(balance.TotalBalance-want) > 1e-9 {
		t.Errorf("total = %v, want %v", balance.TotalBalance, want)
	}

	txs, err := svc.GetTransactionHistory(ctx, groupID, 0, 0)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(txs) != n {
		t.Fatalf("transaction count = %d, want %d", len(txs), n)
	}

	// Sort by balanceBefore and verify the chain is gap-free.
	sort.Slice(txs, func(i, j int) bool { return txs[i].BalanceBefore < txs[j].BalanceBefore })
	var running float64
	for i, ftx := range txs {
		if math.Abs(ftx.BalanceBefore-running) > 1e-9 {
			t.Fatalf("tx %d: balanceBefore = %v, want %v (gap in chain)", i, ftx.BalanceBefore, running)
		}
		if math.Abs(ftx.BalanceAfter-(ftx.BalanceBefore+ftx.SignedDelta())) > 1e-9 {
			t.Fatalf("tx %d: balanceAfter = %v, want balanceBefore + delta = %v",
				i, ftx.BalanceAfter, ftx.BalanceBefore+ftx.SignedDelta())
		}
		running = ftx.BalanceAfter
	}
}

func TestTransactionHistoryPagination(t *testing.T) {
	svc, _ := newTreasury(t, ApprovalGate{})
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if _, err := svc.DepositFund(ctx, groupID, float64(i), "seed", "alice"); err != nil {
			t.Fatalf("DepositFund failed: %v", err)
		}
	}

	page, err := svc.GetTransactionHistory(ctx, groupID, 2, 0)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("page size = %d, want 2", len(page))
	}

	rest, err := svc.GetTransactionHistory(ctx, groupID, 10, 2)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(rest) != 3 {
		t.Errorf("remaining = %d, want 3", len(rest))
	}
}

func TestWithdrawRegistryUnavailableFailsClosed(t *testing.T) {
	store := newTestStore(t)
	reg := threeOwnerRegistry(groupID)
	svc := NewTreasuryService(store, reg, &capturePublisher{}, ApprovalGate{})
	ctx := context.Background()

	svc.DepositFund(ctx, groupID, 500, "seed", "alice")

	reg.unavailable = true
	if _, err := svc.WithdrawFund(ctx, groupID, 100, "tires", "alice"); !errors.Is(err, models.ErrRegistryUnavailable) {
		t.Errorf("error = %v, want ErrRegistryUnavailable", err)
	}

	reg.unavailable = false
	balance, _ := svc.GetBalance(ctx, groupID)
	if balance.TotalBalance != 500 {
		t.Errorf("balance = %v, want 500 (no partial commit)", balance.TotalBalance)
	}
}
