package models

// Role is a member's role within a group.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// GroupMember represents one member's stake in a group, as reported by the
// membership registry. The core reads these per-operation and never mutates
// or caches them beyond the scope of a single call.
type GroupMember struct {
	// UserID identifies the member (UUID format).
	UserID string

	// SharePercentage is the member's ownership share in (0, 1].
	// Shares of a group's active members sum to roughly 1.0; the
	// registry maintains that, not this core.
	SharePercentage float64

	// Role determines what the member may do beyond voting.
	Role Role
}

// CanWithdraw reports whether the member may initiate fund withdrawals.
func (m GroupMember) CanWithdraw() bool {
	return m.Role == RoleAdmin
}

// CanCloseProposal reports whether the member may close a proposal before
// its voting window ends.
func (m GroupMember) CanCloseProposal() bool {
	return m.Role == RoleAdmin
}

// CanCancelProposal reports whether the member may cancel a proposal.
// The proposal's creator may always cancel their own; admins may cancel any.
func (m GroupMember) CanCancelProposal(createdBy string) bool {
	return m.Role == RoleAdmin || m.UserID == createdBy
}
