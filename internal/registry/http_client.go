package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ridepool/governance/internal/models"
)

// HTTPClient is a Registry backed by the membership service's JSON API.
//
// Expected endpoint: GET {baseURL}/groups/{groupID}/members returning
//
//	{"members": [{"user_id": "...", "share_percentage": 0.25, "role": "admin"}, ...]}
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a registry client. Every call is bounded by the
// given timeout regardless of the caller's context.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type memberPayload struct {
	UserID          string  `json:"user_id"`
	SharePercentage float64 `json:"share_percentage"`
	Role            string  `json:"role"`
}

type membersResponse struct {
	Members []memberPayload `json:"members"`
}

// GetMembers fetches a group's current membership. Any transport, status
// or decode failure maps to models.ErrRegistryUnavailable so callers fail
// closed instead of guessing at weights.
func (c *HTTPClient) GetMembers(ctx context.Context, groupID string) ([]models.GroupMember, error) {
	endpoint := fmt.Sprintf("%s/groups/%s/members", c.baseURL, url.PathEscape(groupID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build registry request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry request failed: %w: %w", models.ErrRegistryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("group %s: %w", groupID, models.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned status %d: %w", resp.StatusCode, models.ErrRegistryUnavailable)
	}

	var payload membersResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode registry response: %w: %w", models.ErrRegistryUnavailable, err)
	}

	members := make([]models.GroupMember, len(payload.Members))
	for i, m := range payload.Members {
		members[i] = models.GroupMember{
			UserID:          m.UserID,
			SharePercentage: m.SharePercentage,
			Role:            models.Role(m.Role),
		}
	}
	return members, nil
}
