// Package tally aggregates cast votes into ownership-weighted totals.
package tally

import "github.com/ridepool/governance/internal/models"

// Result holds the weighted aggregation of all votes cast on one proposal.
//
// Percentages are computed against weight actually cast, not against total
// group ownership: a member who never votes contributes neither numerator
// nor denominator.
type Result struct {
	YesWeight     float64
	NoWeight      float64
	AbstainWeight float64
	TotalWeight   float64

	// YesPercentage and NoPercentage are fractions of TotalWeight.
	// Both are zero when no weight was cast.
	YesPercentage float64
	NoPercentage  float64

	// VoteCount is the number of votes aggregated.
	VoteCount int
}

// Count aggregates votes into a Result. It is deterministic and
// order-independent: the same vote set always yields identical totals.
func Count(votes []models.Vote) Result {
	var r Result
	r.VoteCount = len(votes)

	for _, v := range votes {
		switch v.Choice {
		case models.VoteYes:
			r.YesWeight += v.Weight
		case models.VoteNo:
			r.NoWeight += v.Weight
		case models.VoteAbstain:
			r.AbstainWeight += v.Weight
		}
		r.TotalWeight += v.Weight
	}

	// Zero-division guard: no cast weight means zero percentages.
	if r.TotalWeight > 0 {
		r.YesPercentage = r.YesWeight / r.TotalWeight
		r.NoPercentage = r.NoWeight / r.TotalWeight
	}

	return r
}

// Outcome decides the terminal status for a proposal given its tally.
// No votes at all means the proposal expired unanswered; otherwise it
// passes iff the yes share of cast weight meets the required majority.
func Outcome(r Result, requiredMajority float64) models.ProposalStatus {
	if r.VoteCount == 0 {
		return models.ProposalExpired
	}
	if r.YesPercentage >= requiredMajority {
		return models.ProposalPassed
	}
	return models.ProposalRejected
}
