package tally

import (
	"math"
	"testing"

	"github.com/ridepool/governance/internal/models"
)

const epsilon = 1e-9

func vote(voter string, weight float64, choice models.VoteChoice) models.Vote {
	return models.Vote{ProposalID: "p1", VoterID: voter, Weight: weight, Choice: choice}
}

func TestCount(t *testing.T) {
	tests := []struct {
		name    string
		votes   []models.Vote
		wantYes float64
		wantNo  float64
		wantAbs float64
		wantPct float64
	}{
		{
			name:    "no votes yields all zeros",
			votes:   nil,
			wantYes: 0, wantNo: 0, wantAbs: 0, wantPct: 0,
		},
		{
			name: "three-owner majority boundary",
			votes: []models.Vote{
				vote("a", 0.4, models.VoteYes),
				vote("b", 0.35, models.VoteYes),
				vote("c", 0.25, models.VoteNo),
			},
			wantYes: 0.75, wantNo: 0.25, wantAbs: 0, wantPct: 0.75,
		},
		{
			name: "abstentions dilute the yes share",
			votes: []models.Vote{
				vote("a", 0.5, models.VoteYes),
				vote("b", 0.5, models.VoteAbstain),
			},
			wantYes: 0.5, wantNo: 0, wantAbs: 0.5, wantPct: 0.5,
		},
		{
			name: "non-voters do not enter the denominator",
			votes: []models.Vote{
				vote("a", 0.1, models.VoteYes),
			},
			wantYes: 0.1, wantNo: 0, wantAbs: 0, wantPct: 1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Count(tt.votes)
			if math.Abs(r.YesWeight-tt.wantYes) > epsilon {
				t.Errorf("YesWeight = %v, want %v", r.YesWeight, tt.wantYes)
			}
			if math.Abs(r.NoWeight-tt.wantNo) > epsilon {
				t.Errorf("NoWeight = %v, want %v", r.NoWeight, tt.wantNo)
			}
			if math.Abs(r.AbstainWeight-tt.wantAbs) > epsilon {
				t.Errorf("AbstainWeight = %v, want %v", r.AbstainWeight, tt.wantAbs)
			}
			if math.Abs(r.YesPercentage-tt.wantPct) > epsilon {
				t.Errorf("YesPercentage = %v, want %v", r.YesPercentage, tt.wantPct)
			}
			if r.VoteCount != len(tt.votes) {
				t.Errorf("VoteCount = %d, want %d", r.VoteCount, len(tt.votes))
			}
		})
	}
}

func TestCountOrderIndependent(t *testing.T) {
	votes := []models.Vote{
		vote("a", 0.4, models.VoteYes),
		vote("b", 0.35, models.VoteYes),
		vote("c", 0.25, models.VoteNo),
	}
	reversed := []models.Vote{votes[2], votes[1], votes[0]}

	r1, r2 := Count(votes), Count(reversed)
	if r1 != r2 {
		t.Errorf("tally depends on vote order: %+v vs %+v", r1, r2)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name     string
		votes    []models.Vote
		majority float64
		want     models.ProposalStatus
	}{
		{
			name:     "no votes expires",
			votes:    nil,
			majority: 0.5,
			want:     models.ProposalExpired,
		},
		{
			name: "passes at exact majority",
			votes: []models.Vote{
				vote("a", 0.4, models.VoteYes),
				vote("b", 0.35, models.VoteYes),
				vote("c", 0.25, models.VoteNo),
			},
			majority: 0.75,
			want:     models.ProposalPassed,
		},
		{
			name: "rejected just above majority",
			votes: []models.Vote{
				vote("a", 0.4, models.VoteYes),
				vote("b", 0.35, models.VoteYes),
				vote("c", 0.25, models.VoteNo),
			},
			majority: 0.76,
			want:     models.ProposalRejected,
		},
		{
			name: "all abstain is rejected, not expired",
			votes: []models.Vote{
				vote("a", 0.6, models.VoteAbstain),
			},
			majority: 0.5,
			want:     models.ProposalRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Outcome(Count(tt.votes), tt.majority)
			if got != tt.want {
				t.Errorf("Outcome = %v, want %v", got, tt.want)
			}
		})
	}
}
