// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/ridepool/governance/internal/models"
)

// ErrVersionConflict is returned by fund mutations when the optimistic
// version guard fails: another writer committed against the same fund
// between our read and write. Callers re-read and retry; this sentinel
// never escapes the service layer.
var ErrVersionConflict = errors.New("fund version conflict")

// Store defines the interface for governance and treasury persistence.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL,
// etc.) without changing the service layer.
//
// The backend must support atomic per-row conditional updates: fund
// mutations are version-guarded, proposal transitions are status-guarded,
// and vote uniqueness is enforced as a constraint.
type Store interface {
	// CreateProposal persists a new proposal. The ID and CreatedAt
	// fields are populated by the store if unset.
	CreateProposal(ctx context.Context, p *models.Proposal) error

	// GetProposal retrieves a proposal by ID.
	// Returns models.ErrNotFound if it does not exist.
	GetProposal(ctx context.Context, id string) (*models.Proposal, error)

	// ListProposalsByGroup retrieves a group's proposals, newest first.
	ListProposalsByGroup(ctx context.Context, groupID string) ([]*models.Proposal, error)

	// ListExpiredActive retrieves proposals still Active whose voting
	// window ended before now. Used by the expiry sweeper.
	ListExpiredActive(ctx context.Context, now int64) ([]*models.Proposal, error)

	// TransitionProposal atomically moves a proposal out of Active into
	// the given terminal status. Returns true if this call performed the
	// transition, false if the proposal was no longer Active (idempotent
	// resolution: the caller re-reads to learn the terminal state).
	// Returns models.ErrNotFound if the proposal does not exist.
	TransitionProposal(ctx context.Context, id string, to models.ProposalStatus) (bool, error)

	// CreateVote persists a vote. A second vote for the same
	// (proposal, voter) pair fails with models.ErrConflict, leaving the
	// recorded vote untouched.
	CreateVote(ctx context.Context, v *models.Vote) error

	// ListVotesByProposal retrieves all votes cast on a proposal.
	ListVotesByProposal(ctx context.Context, proposalID string) ([]models.Vote, error)

	// GetOrCreateFund retrieves a group's fund, lazily creating it at
	// zero balances on first access.
	GetOrCreateFund(ctx context.Context, groupID string) (*models.GroupFund, error)

	// AppendTransaction commits one fund mutation: it writes the fund's
	// new balances guarded by the version the caller read (incrementing
	// it) and appends the ledger row, both in a single atomic unit.
	// Returns ErrVersionConflict if another writer got there first, in
	// which case nothing was written.
	AppendTransaction(ctx context.Context, fund *models.GroupFund, ftx *models.FundTransaction) error

	// SettleTransaction resolves a pending withdrawal: it rewrites the
	// row's status, approver and balance fields, and commits the fund's
	// new balances under the same version guard, atomically. Returns
	// models.ErrConflict if the row is no longer pending and
	// ErrVersionConflict if the fund moved underneath the caller.
	SettleTransaction(ctx context.Context, fund *models.GroupFund, ftx *models.FundTransaction) error

	// GetTransaction retrieves a ledger row by ID.
	// Returns models.ErrNotFound if it does not exist.
	GetTransaction(ctx context.Context, id string) (*models.FundTransaction, error)

	// ListTransactions retrieves a group's ledger rows, newest first,
	// with limit/offset pagination. A non-positive limit means no limit.
	ListTransactions(ctx context.Context, groupID string, limit, offset int) ([]*models.FundTransaction, error)

	// Close releases any resources held by the store.
	Close() error
}
