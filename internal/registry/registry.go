// Package registry consumes the external membership registry, the system
// of record for who belongs to a group and with what ownership share.
//
// The core reads membership fresh on every operation that needs it and
// never caches results across calls: vote weights are snapshotted at cast
// time from a live read, and role checks always reflect current data.
// When the registry cannot be reached the operation fails closed with
// models.ErrRegistryUnavailable rather than substituting a default or
// stale weight.
package registry

import (
	"context"
	"fmt"

	"github.com/ridepool/governance/internal/models"
)

// Registry is the read interface the core consumes.
type Registry interface {
	// GetMembers returns the current active members of a group with
	// their ownership shares and roles. Implementations must bound the
	// call with a timeout and return models.ErrRegistryUnavailable
	// (wrapped) on any transport failure.
	GetMembers(ctx context.Context, groupID string) ([]models.GroupMember, error)
}

// FindMember looks up one member of a group by user ID.
// Returns models.ErrUnauthorized if the user is not an active member:
// non-membership and unknown-user are indistinguishable to the core, and
// both mean the caller may not act on the group.
func FindMember(ctx context.Context, r Registry, groupID, userID string) (models.GroupMember, error) {
	members, err := r.GetMembers(ctx, groupID)
	if err != nil {
		return models.GroupMember{}, err
	}
	for _, m := range members {
		if m.UserID == userID {
			return m, nil
		}
	}
	return models.GroupMember{}, fmt.Errorf("user %s is not a member of group %s: %w", userID, groupID, models.ErrUnauthorized)
}
