package service

import "testing"

func TestNeedsApproval(t *testing.T) {
	tests := []struct {
		name      string
		gate      ApprovalGate
		amount    float64
		available float64
		want      bool
	}{
		{
			name:      "zero gate never requires approval",
			gate:      ApprovalGate{},
			amount:    1e9,
			available: 100,
			want:      false,
		},
		{
			name:      "at the absolute threshold passes through",
			gate:      ApprovalGate{AbsoluteThreshold: 1000},
			amount:    1000,
			available: 5000,
			want:      false,
		},
		{
			name:      "above the absolute threshold needs approval",
			gate:      ApprovalGate{AbsoluteThreshold: 1000},
			amount:    1000.01,
			available: 5000,
			want:      true,
		},
		{
			name:      "small withdrawal under the fraction rule",
			gate:      ApprovalGate{AvailableFraction: 0.5},
			amount:    100,
			available: 1000,
			want:      false,
		},
		{
			name:      "large slice of the available balance needs approval",
			gate:      ApprovalGate{AvailableFraction: 0.5},
			amount:    600,
			available: 1000,
			want:      true,
		},
		{
			name:      "fraction rule is inert when nothing is available",
			gate:      ApprovalGate{AvailableFraction: 0.5},
			amount:    600,
			available: 0,
			want:      false,
		},
		{
			name:      "either rule alone is enough",
			gate:      ApprovalGate{AbsoluteThreshold: 10000, AvailableFraction: 0.25},
			amount:    500,
			available: 1000,
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.gate.NeedsApproval(tt.amount, tt.available); got != tt.want {
				t.Errorf("NeedsApproval(%v, %v) = %v, want %v", tt.amount, tt.available, got, tt.want)
			}
		})
	}
}
