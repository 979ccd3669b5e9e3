package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ridepool/governance/internal/models"
	"github.com/ridepool/governance/internal/storage"
)

// GetOrCreateFund retrieves a group's fund, lazily creating it at zero
// balances on first access. The INSERT OR IGNORE makes concurrent first
// accesses converge on a single row.
func (s *SQLiteStore) GetOrCreateFund(ctx context.Context, groupID string) (*models.GroupFund, error) {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO group_funds (group_id, total_balance, reserve_balance, version, created_at, updated_at)
		 VALUES (?, 0, 0, 0, ?, ?)`,
		groupID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fund: %w", err)
	}

	return s.getFund(ctx, groupID)
}

func (s *SQLiteStore) getFund(ctx context.Context, groupID string) (*models.GroupFund, error) {
	f := &models.GroupFund{}
	err := s.db.QueryRowContext(ctx,
		`SELECT group_id, total_balance, reserve_balance, version, created_at, updated_at
		 FROM group_funds WHERE group_id = ?`,
		groupID,
	).Scan(&f.GroupID, &f.TotalBalance, &f.ReserveBalance, &f.Version, &f.CreatedAt, &f.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("fund for group %s: %w", groupID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fund: %w", err)
	}

	return f, nil
}

// AppendTransaction commits one fund mutation as a single atomic unit:
// the fund row is updated only if its version still matches the version
// the caller read, and the ledger row is inserted in the same database
// transaction. On a version conflict nothing is written and the caller
// re-reads and retries.
func (s *SQLiteStore) AppendTransaction(ctx context.Context, fund *models.GroupFund, ftx *models.FundTransaction) error {
	// Generate ID if not set
	if ftx.ID == "" {
		ftx.ID = uuid.New().String()
	}
	if ftx.CreatedAt == 0 {
		ftx.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.casFund(ctx, tx, fund); err != nil {
		return err
	}

	var approvedBy interface{}
	if ftx.ApprovedBy != "" {
		approvedBy = ftx.ApprovedBy
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO fund_transactions (id, group_id, type, amount, balance_before, balance_after, status, description, initiated_by, approved_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ftx.ID, ftx.GroupID, string(ftx.Type), ftx.Amount, ftx.BalanceBefore, ftx.BalanceAfter,
		string(ftx.Status), ftx.Description, ftx.InitiatedBy, approvedBy, ftx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert fund transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	fund.Version++
	return nil
}

// SettleTransaction resolves a pending withdrawal, rewriting the row's
// status, approver and balance fields and committing the fund's new
// balances under the same version guard, all atomically. The row update
// is itself conditional on status = pending, so two concurrent approvers
// cannot both settle the same withdrawal.
func (s *SQLiteStore) SettleTransaction(ctx context.Context, fund *models.GroupFund, ftx *models.FundTransaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.casFund(ctx, tx, fund); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE fund_transactions
		 SET status = ?, approved_by = ?, balance_before = ?, balance_after = ?
		 WHERE id = ? AND status = ?`,
		string(ftx.Status), ftx.ApprovedBy, ftx.BalanceBefore, ftx.BalanceAfter,
		ftx.ID, string(models.TxPending),
	)
	if err != nil {
		return fmt.Errorf("failed to settle fund transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %s is not pending: %w", ftx.ID, models.ErrConflict)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	fund.Version++
	return nil
}

// casFund writes the fund's balances guarded by the version the caller
// read. Zero rows affected means another writer committed first.
func (s *SQLiteStore) casFund(ctx context.Context, tx *sql.Tx, fund *models.GroupFund) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE group_funds
		 SET total_balance = ?, reserve_balance = ?, version = version + 1, updated_at = ?
		 WHERE group_id = ? AND version = ?`,
		fund.TotalBalance, fund.ReserveBalance, time.Now().Unix(),
		fund.GroupID, fund.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update fund: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrVersionConflict
	}
	return nil
}

// GetTransaction retrieves a ledger row by ID.
func (s *SQLiteStore) GetTransaction(ctx context.Context, id string) (*models.FundTransaction, error) {
	ftx := &models.FundTransaction{}
	var txType, status string
	var approvedBy sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, group_id, type, amount, balance_before, balance_after, status, description, initiated_by, approved_by, created_at
		 FROM fund_transactions WHERE id = ?`,
		id,
	).Scan(&ftx.ID, &ftx.GroupID, &txType, &ftx.Amount, &ftx.BalanceBefore, &ftx.BalanceAfter,
		&status, &ftx.Description, &ftx.InitiatedBy, &approvedBy, &ftx.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	ftx.Type = models.TransactionType(txType)
	ftx.Status = models.TransactionStatus(status)
	if approvedBy.Valid {
		ftx.ApprovedBy = approvedBy.String
	}

	return ftx, nil
}

// ListTransactions retrieves a group's ledger rows, newest first, with
// limit/offset pagination.
func (s *SQLiteStore) ListTransactions(ctx context.Context, groupID string, limit, offset int) ([]*models.FundTransaction, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, type, amount, balance_before, balance_after, status, description, initiated_by, approved_by, created_at
		 FROM fund_transactions WHERE group_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		groupID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*models.FundTransaction
	for rows.Next() {
		ftx := &models.FundTransaction{}
		var txType, status string
		var approvedBy sql.NullString

		if err := rows.Scan(&ftx.ID, &ftx.GroupID, &txType, &ftx.Amount, &ftx.BalanceBefore, &ftx.BalanceAfter,
			&status, &ftx.Description, &ftx.InitiatedBy, &approvedBy, &ftx.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		ftx.Type = models.TransactionType(txType)
		ftx.Status = models.TransactionStatus(status)
		if approvedBy.Valid {
			ftx.ApprovedBy = approvedBy.String
		}
		txs = append(txs, ftx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return txs, nil
}
