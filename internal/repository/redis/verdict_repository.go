package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"phishSentinel/domain"

	"github.com/redis/go-redis/v9"
)

// VerdictRepository keeps the latest verdict of each tab with a TTL, the
// server-side counterpart of the extension's session storage.
type VerdictRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewVerdictRepository(client *redis.Client, ttl time.Duration) *VerdictRepository {
	return &VerdictRepository{
		client: client,
		ttl:    ttl,
	}
}

func verdictKey(tabID int) string {
	// key format: "verdict:tab:{tab_id}"
	return fmt.Sprintf("verdict:tab:%d", tabID)
}

func (r *VerdictRepository) SaveTabVerdict(ctx context.Context, tabID int, v domain.TabVerdict) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal verdict: %w", err)
	}

	if err := r.client.Set(ctx, verdictKey(tabID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store verdict in Redis: %w", err)
	}

	return nil
}

func (r *VerdictRepository) GetTabVerdict(ctx context.Context, tabID int) (*domain.TabVerdict, error) {
	val, err := r.client.Get(ctx, verdictKey(tabID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrVerdictNotFound
		}
		return nil, fmt.Errorf("failed to get verdict from Redis: %w", err)
	}

	var v domain.TabVerdict
	if err := json.Unmarshal([]byte(val), &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal verdict: %w", err)
	}

	return &v, nil
}

func (r *VerdictRepository) DeleteTabVerdict(ctx context.Context, tabID int) error {
	if err := r.client.Del(ctx, verdictKey(tabID)).Err(); err != nil {
		return fmt.Errorf("failed to delete verdict: %w", err)
	}
	return nil
}
