package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	notifiedKeyPrefix = "notified:"
	notifiedKeyTTL    = 24 * time.Hour
)

// One set per item holds the Slack ids already told about the current
// availability window. SADD reports newness; the TTL is a safety net for
// items that never get observed back at zero.
var markNotifiedScript = redis.NewScript(`
local added = redis.call('SADD', KEYS[1], ARGV[1])
if added == 1 then
	redis.call('EXPIRE', KEYS[1], ARGV[2])
end
return added
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) MarkNotified(ctx context.Context, slackID string, itemID int64) (bool, error) {
	key := notifiedKey(itemID)

	added, err := markNotifiedScript.Run(ctx, r.client, []string{key},
		slackID, int(notifiedKeyTTL.Seconds())).Int()
	if err != nil {
		return false, fmt.Errorf("mark notified: %w", err)
	}

	return added == 1, nil
}

func (r *RedisAdapter) ClearNotified(ctx context.Context, itemID int64) error {
	if err := r.client.Del(ctx, notifiedKey(itemID)).Err(); err != nil {
		return fmt.Errorf("clear notified: %w", err)
	}
	return nil
}

func notifiedKey(itemID int64) string {
	return fmt.Sprintf("%s%d", notifiedKeyPrefix, itemID)
}
