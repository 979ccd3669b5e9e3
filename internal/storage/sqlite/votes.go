package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ridepool/governance/internal/models"
)

// CreateVote persists a vote. The UNIQUE(proposal_id, voter_id) constraint
// is the duplicate-vote guard: when two votes from the same voter race,
// exactly one insert succeeds and the loser gets models.ErrConflict.
func (s *SQLiteStore) CreateVote(ctx context.Context, v *models.Vote) error {
	// Generate ID if not set
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	if v.CreatedAt == 0 {
		v.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO votes (id, proposal_id, voter_id, weight, choice, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.ProposalID, v.VoterID, v.Weight, string(v.Choice), v.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("voter %s already voted on proposal %s: %w", v.VoterID, v.ProposalID, models.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert vote: %w", err)
	}

	return nil
}

// ListVotesByProposal retrieves all votes cast on a proposal.
func (s *SQLiteStore) ListVotesByProposal(ctx context.Context, proposalID string) ([]models.Vote, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, proposal_id, voter_id, weight, choice, created_at
		 FROM votes WHERE proposal_id = ? ORDER BY created_at ASC`,
		proposalID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	defer rows.Close()

	var votes []models.Vote
	for rows.Next() {
		var v models.Vote
		var choice string
		if err := rows.Scan(&v.ID, &v.ProposalID, &v.VoterID, &v.Weight, &choice, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		v.Choice = models.VoteChoice(choice)
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate votes: %w", err)
	}

	return votes, nil
}
