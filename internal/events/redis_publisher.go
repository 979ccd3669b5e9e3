package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Channel names for the Redis transport.
const (
	ChannelProposalResolved          = "governance.proposal_resolved"
	ChannelFundTransactionCompleted  = "governance.fund_transaction_completed"
	ChannelWithdrawalPendingApproval = "governance.withdrawal_pending_approval"
)

// RedisPublisher publishes events as JSON over Redis pub/sub.
// Delivery is best-effort: failures are logged and dropped, because the
// persisted ledger and proposal rows remain the source of truth.
type RedisPublisher struct {
	client *redis.Client
}

var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher connects to the given Redis address.
func NewRedisPublisher(addr string) *RedisPublisher {
	return &RedisPublisher{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Close releases the underlying connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

func (p *RedisPublisher) publish(ctx context.Context, channel string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to marshal event", "channel", channel, "error", err)
		return
	}
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		slog.Error("failed to publish event", "channel", channel, "error", err)
	}
}

func (p *RedisPublisher) ProposalResolved(ctx context.Context, e ProposalResolved) {
	p.publish(ctx, ChannelProposalResolved, e)
}

func (p *RedisPublisher) FundTransactionCompleted(ctx context.Context, e FundTransactionCompleted) {
	p.publish(ctx, ChannelFundTransactionCompleted, e)
}

func (p *RedisPublisher) WithdrawalPendingApproval(ctx context.Context, e WithdrawalPendingApproval) {
	p.publish(ctx, ChannelWithdrawalPendingApproval, e)
}
