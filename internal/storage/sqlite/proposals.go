package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ridepool/governance/internal/models"
)

// CreateProposal persists a new proposal to the database.
func (s *SQLiteStore) CreateProposal(ctx context.Context, p *models.Proposal) error {
	// Generate ID if not set
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().Unix()
	}
	if p.Status == "" {
		p.Status = models.ProposalActive
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO proposals (id, group_id, created_by, type, title, description, status, voting_start, voting_end, required_majority, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.GroupID, p.CreatedBy, p.Type, p.Title, p.Description,
		string(p.Status), p.VotingStartDate, p.VotingEndDate, p.RequiredMajority, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert proposal: %w", err)
	}

	return nil
}

// GetProposal retrieves a proposal by ID.
func (s *SQLiteStore) GetProposal(ctx context.Context, id string) (*models.Proposal, error) {
	p := &models.Proposal{}
	var status string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, group_id, created_by, type, title, description, status, voting_start, voting_end, required_majority, created_at
		 FROM proposals WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.GroupID, &p.CreatedBy, &p.Type, &p.Title, &p.Description,
		&status, &p.VotingStartDate, &p.VotingEndDate, &p.RequiredMajority, &p.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("proposal %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}

	p.Status = models.ProposalStatus(status)
	return p, nil
}

// ListProposalsByGroup retrieves all proposals for a group, newest first.
func (s *SQLiteStore) ListProposalsByGroup(ctx context.Context, groupID string) ([]*models.Proposal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, created_by, type, title, description, status, voting_start, voting_end, required_majority, created_at
		 FROM proposals WHERE group_id = ? ORDER BY created_at DESC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals by group: %w", err)
	}
	defer rows.Close()

	return scanProposals(rows)
}

// ListExpiredActive retrieves Active proposals whose voting window ended
// before now.
func (s *SQLiteStore) ListExpiredActive(ctx context.Context, now int64) ([]*models.Proposal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, created_by, type, title, description, status, voting_start, voting_end, required_majority, created_at
		 FROM proposals WHERE status = ? AND voting_end < ? ORDER BY voting_end ASC`,
		string(models.ProposalActive), now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired proposals: %w", err)
	}
	defer rows.Close()

	return scanProposals(rows)
}

// TransitionProposal atomically moves a proposal from Active into a
// terminal status. The conditional UPDATE is what makes resolution safe
// under concurrent sweepers: exactly one caller observes updated == true.
func (s *SQLiteStore) TransitionProposal(ctx context.Context, id string, to models.ProposalStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE proposals SET status = ? WHERE id = ? AND status = ?",
		string(to), id, string(models.ProposalActive),
	)
	if err != nil {
		return false, fmt.Errorf("failed to transition proposal: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	// Nothing updated: either the proposal is already terminal or it
	// does not exist. Distinguish the two for the caller.
	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT 1 FROM proposals WHERE id = ?", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("proposal %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("failed to check proposal existence: %w", err)
	}

	return false, nil
}

func scanProposals(rows *sql.Rows) ([]*models.Proposal, error) {
	var proposals []*models.Proposal
	for rows.Next() {
		p := &models.Proposal{}
		var status string
		if err := rows.Scan(&p.ID, &p.GroupID, &p.CreatedBy, &p.Type, &p.Title, &p.Description,
			&status, &p.VotingStartDate, &p.VotingEndDate, &p.RequiredMajority, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		p.Status = models.ProposalStatus(status)
		proposals = append(proposals, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate proposals: %w", err)
	}
	return proposals, nil
}
