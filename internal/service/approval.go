package service

// ApprovalGate is the stateless policy deciding whether a withdrawal must
// pass through a pending-approval step before touching the balance. It is
// kept separate from the ledger mechanics so the threshold rule can change
// without touching them.
type ApprovalGate struct {
	// AbsoluteThreshold routes withdrawals strictly above this amount
	// through approval. Zero disables the rule.
	AbsoluteThreshold float64

	// AvailableFraction routes withdrawals exceeding this fraction of
	// the currently available balance through approval. Zero disables
	// the rule.
	AvailableFraction float64
}

// NeedsApproval reports whether a withdrawal of amount against the given
// available balance requires an explicit admin approval.
func (g ApprovalGate) NeedsApproval(amount, available float64) bool {
	if g.AbsoluteThreshold > 0 && amount > g.AbsoluteThreshold {
		return true
	}
	if g.AvailableFraction > 0 && available > 0 && amount > available*g.AvailableFraction {
		return true
	}
	return false
}
