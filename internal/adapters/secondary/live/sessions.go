package live

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jupiterclapton/agora/internal/core/domain"
)

const (
	// SessionPrefix : "sessions:<profileId>" compte les WebSocket ouvertes sur toutes les instances.
	SessionPrefix = "sessions:"
	// sessionTTL borne la vie d'un compteur laissé par une instance arrêtée brutalement.
	sessionTTL = 24 * time.Hour
)

// RedisSessions partage le nombre de connexions par profil entre les instances.
type RedisSessions struct {
	client redis.UniversalClient
}

func NewRedisSessions(client redis.UniversalClient) *RedisSessions {
	return &RedisSessions{client: client}
}

// Join renvoie le nombre de connexions du profil après l'ouverture.
func (s *RedisSessions) Join(ctx context.Context, profileID string) (int64, error) {
	key := SessionPrefix + profileID

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: session join: %v", domain.ErrDependencyUnavailable, err)
	}
	return incr.Val(), nil
}

// Leave renvoie le nombre de connexions restantes ; la clé disparaît à zéro.
func (s *RedisSessions) Leave(ctx context.Context, profileID string) (int64, error) {
	key := SessionPrefix + profileID

	n, err := s.client.Decr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: session leave: %v", domain.ErrDependencyUnavailable, err)
	}
	if n <= 0 {
		// Un compteur expiré puis décrémenté passe sous zéro : on repart proprement.
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return 0, fmt.Errorf("%w: session reset: %v", domain.ErrDependencyUnavailable, err)
		}
		return 0, nil
	}
	return n, nil
}
