package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ridepool/governance/internal/events"
	"github.com/ridepool/governance/internal/models"
	"github.com/ridepool/governance/internal/storage/sqlite"
)

// fakeRegistry serves membership from a map, or fails every call when
// unavailable is set (simulating a registry outage).
type fakeRegistry struct {
	groups      map[string][]models.GroupMember
	unavailable bool
}

func (r *fakeRegistry) GetMembers(_ context.Context, groupID string) ([]models.GroupMember, error) {
	if r.unavailable {
		return nil, fmt.Errorf("registry down: %w", models.ErrRegistryUnavailable)
	}
	members, ok := r.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", groupID, models.ErrNotFound)
	}
	return members, nil
}

// capturePublisher records every emitted event for assertions.
type capturePublisher struct {
	mu        sync.Mutex
	resolved  []events.ProposalResolved
	completed []events.FundTransactionCompleted
	pending   []events.WithdrawalPendingApproval
}

func (p *capturePublisher) ProposalResolved(_ context.Context, e events.ProposalResolved) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolved = append(p.resolved, e)
}

func (p *capturePublisher) FundTransactionCompleted(_ context.Context, e events.FundTransactionCompleted) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, e)
}

func (p *capturePublisher) WithdrawalPendingApproval(_ context.Context, e events.WithdrawalPendingApproval) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, e)
}

func (p *capturePublisher) resolvedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.resolved)
}

func (p *capturePublisher) pendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// newTestStore creates a temp-file SQLite store cleaned up with the test.
func newTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "governance-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

// threeOwnerRegistry is the standard test group: an admin holding 40%,
// two members holding 35% and 25%.
func threeOwnerRegistry(groupID string) *fakeRegistry {
	return &fakeRegistry{groups: map[string][]models.GroupMember{
		groupID: {
			{UserID: "alice", SharePercentage: 0.4, Role: models.RoleAdmin},
			{UserID: "bob", SharePercentage: 0.35, Role: models.RoleMember},
			{UserID: "carol", SharePercentage: 0.25, Role: models.RoleMember},
		},
	}}
}
