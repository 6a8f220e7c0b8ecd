package security

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jupiterclapton/agora/internal/core/ports"
)

// RedisRevoker : une clé par JTI révoqué, qui expire avec le jeton.
type RedisRevoker struct {
	client redis.UniversalClient
}

var _ ports.TokenRevoker = (*RedisRevoker)(nil)

func NewRedisRevoker(client redis.UniversalClient) *RedisRevoker {
	return &RedisRevoker{client: client}
}

func revokedKey(tokenID string) string {
	return "revoked:" + tokenID
}

func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return r.client.Set(ctx, revokedKey(tokenID), 1, ttl).Err()
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
