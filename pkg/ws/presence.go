package ws

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cadenza-chat/cadenza/pkg/utils"
)

const (
	presenceKeyPrefix = "cadenza:conn:"
	presenceTTL       = 5 * time.Minute
	presenceTimeout   = 2 * time.Second
)

// PresenceStore mirrors live connection ids into redis so operators can see
// which users are connected across instances. Every operation is best-effort;
// presence never blocks or fails chat traffic. A nil store disables presence.
type PresenceStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewPresenceStore connects to redis at addr. An empty addr returns nil,
// disabling presence tracking; all methods are nil-safe.
func NewPresenceStore(addr, password string, db int) *PresenceStore {
	if addr == "" {
		return nil
	}
	return &PresenceStore{
		client: redis.NewClient(&redis.Options{
			Addr:        addr,
			Password:    password,
			DB:          db,
			DialTimeout: presenceTimeout,
		}),
		ttl:    presenceTTL,
		logger: utils.GetLogger(),
	}
}

// ConnectionOpened records a live connection under a TTL'd key. The TTL
// covers instances that crash without cleaning up.
func (p *PresenceStore) ConnectionOpened(ctx context.Context, connectionID, userID string) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, presenceTimeout)
	defer cancel()
	if err := p.client.Set(ctx, presenceKeyPrefix+connectionID, userID, p.ttl).Err(); err != nil {
		p.logger.Warn("failed to record presence", "connection_id", connectionID, "error", err)
	}
}

// Refresh extends the presence key on connection activity.
func (p *PresenceStore) Refresh(ctx context.Context, connectionID string) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, presenceTimeout)
	defer cancel()
	if err := p.client.Expire(ctx, presenceKeyPrefix+connectionID, p.ttl).Err(); err != nil {
		p.logger.Warn("failed to refresh presence", "connection_id", connectionID, "error", err)
	}
}

// ConnectionClosed removes the presence key.
func (p *PresenceStore) ConnectionClosed(ctx context.Context, connectionID string) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, presenceTimeout)
	defer cancel()
	if err := p.client.Del(ctx, presenceKeyPrefix+connectionID).Err(); err != nil {
		p.logger.Warn("failed to clear presence", "connection_id", connectionID, "error", err)
	}
}
