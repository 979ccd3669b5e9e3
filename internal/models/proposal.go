package models

// ProposalStatus is the lifecycle state of a proposal.
// Active is the only non-terminal state: once a proposal reaches any other
// status it never transitions again.
type ProposalStatus string

const (
	ProposalActive    ProposalStatus = "active"
	ProposalPassed    ProposalStatus = "passed"
	ProposalRejected  ProposalStatus = "rejected"
	ProposalExpired   ProposalStatus = "expired"
	ProposalCancelled ProposalStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s ProposalStatus) Terminal() bool {
	return s != ProposalActive
}

// Proposal represents a group decision put to an ownership-weighted vote.
type Proposal struct {
	// ID is the unique identifier for the proposal (UUID format).
	ID string

	// GroupID is the group this proposal belongs to.
	GroupID string

	// CreatedBy is the user ID of the proposing member.
	CreatedBy string

	// Type categorizes the proposal (e.g. "sell_vehicle", "major_repair").
	// The core does not interpret it.
	Type string

	// Title is a short human-readable summary.
	Title string

	// Description carries the full proposal text.
	Description string

	// Status is the lifecycle state. Proposals are created Active and
	// transition exactly once, to passed, rejected, expired or cancelled.
	Status ProposalStatus

	// VotingStartDate and VotingEndDate bound the voting window
	// (Unix timestamps, inclusive start, inclusive end for casting).
	VotingStartDate int64
	VotingEndDate   int64

	// RequiredMajority is the fraction of cast weight that must vote yes
	// for the proposal to pass, in (0, 1].
	RequiredMajority float64

	// CreatedAt is the Unix timestamp when the proposal was created.
	CreatedAt int64
}

// VoteChoice is a voter's position on a proposal.
type VoteChoice string

const (
	VoteYes     VoteChoice = "yes"
	VoteNo      VoteChoice = "no"
	VoteAbstain VoteChoice = "abstain"
)

// ValidChoice reports whether c is one of the three recognized choices.
func ValidChoice(c VoteChoice) bool {
	return c == VoteYes || c == VoteNo || c == VoteAbstain
}

// Vote represents one member's vote on a proposal.
//
// Weight is a snapshot of the voter's ownership share taken when the vote
// was cast. It is a deliberate business invariant that this is never
// re-derived from current membership at tally time: a member who sells part
// of their stake mid-vote keeps the weight they held when they voted.
type Vote struct {
	// ID is the unique identifier for the vote (UUID format).
	ID string

	// ProposalID is the proposal voted on. At most one vote exists per
	// (ProposalID, VoterID) pair, enforced by the store.
	ProposalID string

	// VoterID is the member who cast the vote.
	VoterID string

	// Weight is the voter's ownership share at cast time, in (0, 1].
	Weight float64

	// Choice is yes, no or abstain.
	Choice VoteChoice

	// CreatedAt is the Unix timestamp when the vote was cast.
	CreatedAt int64
}
