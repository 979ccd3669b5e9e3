package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ridepool/governance/internal/events"
	"github.com/ridepool/governance/internal/metrics"
	"github.com/ridepool/governance/internal/models"
	"github.com/ridepool/governance/internal/registry"
	"github.com/ridepool/governance/internal/storage"
	"github.com/ridepool/governance/internal/tally"
)

// ProposalService owns the proposal state machine: creation, vote casting,
// resolution and cancellation. Proposals start Active and transition
// exactly once into passed, rejected, expired or cancelled.
type ProposalService struct {
	store     storage.Store
	registry  registry.Registry
	publisher events.Publisher
}

// NewProposalService creates a ProposalService.
func NewProposalService(store storage.Store, reg registry.Registry, pub events.Publisher) *ProposalService {
	return &ProposalService{store: store, registry: reg, publisher: pub}
}

// CreateProposalInput carries the caller-supplied fields of a new proposal.
type CreateProposalInput struct {
	GroupID          string
	CreatedBy        string
	Type             string
	Title            string
	Description      string
	VotingStartDate  int64
	VotingEndDate    int64
	RequiredMajority float64
}

// CreateProposal validates the input, verifies the creator is a current
// group member via a fresh registry read, and persists an Active proposal.
func (s *ProposalService) CreateProposal(ctx context.Context, in CreateProposalInput) (*models.Proposal, error) {
	if in.GroupID == "" || in.CreatedBy == "" {
		return nil, fmt.Errorf("group_id and created_by are required: %w", models.ErrValidation)
	}
	if in.Title == "" {
		return nil, fmt.Errorf("title is required: %w", models.ErrValidation)
	}
	if in.VotingEndDate <= in.VotingStartDate {
		return nil, fmt.Errorf("voting window must end after it starts: %w", models.ErrValidation)
	}
	if in.RequiredMajority <= 0 || in.RequiredMajority > 1 {
		return nil, fmt.Errorf("required majority %v outside (0,1]: %w", in.RequiredMajority, models.ErrValidation)
	}

	// Membership is checked per-call, never cached.
	if _, err := registry.FindMember(ctx, s.registry, in.GroupID, in.CreatedBy); err != nil {
		return nil, err
	}

	p := &models.Proposal{
		GroupID:          in.GroupID,
		CreatedBy:        in.CreatedBy,
		Type:             in.Type,
		Title:            in.Title,
		Description:      in.Description,
		Status:           models.ProposalActive,
		VotingStartDate:  in.VotingStartDate,
		VotingEndDate:    in.VotingEndDate,
		RequiredMajority: in.RequiredMajority,
	}
	if err := s.store.CreateProposal(ctx, p); err != nil {
		return nil, err
	}

	slog.Info("Proposal created",
		"proposal_id", p.ID,
		"group_id", p.GroupID,
		"type", p.Type,
		"required_majority", p.RequiredMajority,
	)
	return p, nil
}

// GetProposal retrieves a proposal by ID.
func (s *ProposalService) GetProposal(ctx context.Context, proposalID string) (*models.Proposal, error) {
	return s.store.GetProposal(ctx, proposalID)
}

// ListGroupProposals retrieves a group's proposals, newest first.
func (s *ProposalService) ListGroupProposals(ctx context.Context, groupID string) ([]*models.Proposal, error) {
	return s.store.ListProposalsByGroup(ctx, groupID)
}

// CastVote records a vote on an Active proposal within its voting window.
// The voter's current ownership share is fetched fresh from the registry
// and frozen as the vote's weight; it is never re-derived at tally time.
// A second vote by the same voter fails with models.ErrConflict and leaves
// the recorded vote untouched.
func (s *ProposalService) CastVote(ctx context.Context, proposalID, voterID string, choice models.VoteChoice) (*models.Vote, error) {
	if !models.ValidChoice(choice) {
		return nil, fmt.Errorf("invalid vote choice %q: %w", choice, models.ErrValidation)
	}

	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status.Terminal() {
		return nil, fmt.Errorf("proposal %s is %s, voting closed: %w", p.ID, p.Status, models.ErrConflict)
	}
	now := time.Now().Unix()
	if now < p.VotingStartDate || now > p.VotingEndDate {
		return nil, fmt.Errorf("voting window for proposal %s is closed: %w", p.ID, models.ErrValidation)
	}

	member, err := registry.FindMember(ctx, s.registry, p.GroupID, voterID)
	if err != nil {
		return nil, err
	}
	if member.SharePercentage <= 0 || member.SharePercentage > 1 {
		return nil, fmt.Errorf("registry reported share %v outside (0,1] for voter %s: %w",
			member.SharePercentage, voterID, models.ErrValidation)
	}

	v := &models.Vote{
		ProposalID: p.ID,
		VoterID:    voterID,
		Weight:     member.SharePercentage, // snapshot at cast time
		Choice:     choice,
	}
	if err := s.store.CreateVote(ctx, v); err != nil {
		return nil, err
	}

	metrics.VotesCast.WithLabelValues(string(choice)).Inc()
	slog.Info("Vote cast",
		"proposal_id", p.ID,
		"voter_id", voterID,
		"choice", choice,
		"weight", v.Weight,
	)
	return v, nil
}

// GetTally computes the current weighted tally of a proposal's votes.
func (s *ProposalService) GetTally(ctx context.Context, proposalID string) (tally.Result, error) {
	if _, err := s.store.GetProposal(ctx, proposalID); err != nil {
		return tally.Result{}, err
	}
	votes, err := s.store.ListVotesByProposal(ctx, proposalID)
	if err != nil {
		return tally.Result{}, err
	}
	return tally.Count(votes), nil
}

// CloseProposal resolves a proposal on explicit admin request, before or
// after its voting window ends. Calling it on an already-terminal proposal
// is a no-op returning the existing state.
func (s *ProposalService) CloseProposal(ctx context.Context, proposalID, closedBy string) (*models.Proposal, error) {
	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status.Terminal() {
		return p, nil
	}

	member, err := registry.FindMember(ctx, s.registry, p.GroupID, closedBy)
	if err != nil {
		return nil, err
	}
	if !member.CanCloseProposal() {
		return nil, fmt.Errorf("user %s may not close proposals: %w", closedBy, models.ErrUnauthorized)
	}

	return s.resolve(ctx, p)
}

// ResolveExpired resolves a proposal whose voting window has elapsed.
// It is the sweeper's entry point and refuses to act early. Calling it on
// an already-terminal proposal is a no-op returning the existing state.
func (s *ProposalService) ResolveExpired(ctx context.Context, proposalID string) (*models.Proposal, error) {
	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status.Terminal() {
		return p, nil
	}
	if time.Now().Unix() < p.VotingEndDate {
		return nil, fmt.Errorf("proposal %s voting window has not ended: %w", p.ID, models.ErrValidation)
	}

	return s.resolve(ctx, p)
}

// resolve tallies the votes, decides the outcome and performs the
// status-guarded transition. Exactly one caller wins a concurrent race;
// losers re-read and return the winner's terminal state without emitting
// a duplicate event.
func (s *ProposalService) resolve(ctx context.Context, p *models.Proposal) (*models.Proposal, error) {
	votes, err := s.store.ListVotesByProposal(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	result := tally.Count(votes)
	outcome := tally.Outcome(result, p.RequiredMajority)

	transitioned, err := s.store.TransitionProposal(ctx, p.ID, outcome)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		// Lost the race: report whatever terminal state won.
		return s.store.GetProposal(ctx, p.ID)
	}

	p.Status = outcome
	metrics.ProposalsResolved.WithLabelValues(string(outcome)).Inc()
	s.publisher.ProposalResolved(ctx, events.ProposalResolved{
		ProposalID: p.ID,
		GroupID:    p.GroupID,
		Outcome:    string(outcome),
	})
	slog.Info("Proposal resolved",
		"proposal_id", p.ID,
		"outcome", outcome,
		"yes_percentage", result.YesPercentage,
		"total_weight", result.TotalWeight,
	)
	return p, nil
}

// CancelProposal cancels an Active proposal. The creator may cancel their
// own proposal; admins may cancel any. Cancelling a terminal proposal is
// an invalid transition.
func (s *ProposalService) CancelProposal(ctx context.Context, proposalID, cancelledBy string) (*models.Proposal, error) {
	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status.Terminal() {
		return nil, fmt.Errorf("proposal %s is already %s: %w", p.ID, p.Status, models.ErrConflict)
	}

	member, err := registry.FindMember(ctx, s.registry, p.GroupID, cancelledBy)
	if err != nil {
		return nil, err
	}
	if !member.CanCancelProposal(p.CreatedBy) {
		return nil, fmt.Errorf("user %s may not cancel proposal %s: %w", cancelledBy, p.ID, models.ErrUnauthorized)
	}

	transitioned, err := s.store.TransitionProposal(ctx, p.ID, models.ProposalCancelled)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		current, err := s.store.GetProposal(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("proposal %s became %s concurrently: %w", p.ID, current.Status, models.ErrConflict)
	}

	p.Status = models.ProposalCancelled
	slog.Info("Proposal cancelled", "proposal_id", p.ID, "cancelled_by", cancelledBy)
	return p, nil
}
