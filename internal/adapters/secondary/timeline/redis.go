package timeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
	"github.com/jupiterclapton/agora/pkg/telemetry"
)

const (
	defaultTTL     = 24 * 30 * time.Hour // on ne garde pas l'infini en RAM
	defaultMaxSize = 500
)

type RedisTimelineRepo struct {
	client  redis.UniversalClient
	ttl     time.Duration
	maxSize int64
}

var _ ports.TimelineRepository = (*RedisTimelineRepo)(nil)

func NewRedisTimelineRepo(client redis.UniversalClient) *RedisTimelineRepo {
	return &RedisTimelineRepo{
		client:  client,
		ttl:     defaultTTL,
		maxSize: defaultMaxSize,
	}
}

func timelineKey(profileID string) string {
	return fmt.Sprintf("timeline:%s", profileID)
}

// Format du membre : "video:author-id:post-id"
func member(t domain.ContentType, authorID, postID string) string {
	return fmt.Sprintf("%s:%s:%s", t, authorID, postID)
}

// AddToTimelines implémente le Fan-out massif
func (r *RedisTimelineRepo) AddToTimelines(ctx context.Context, profileIDs []string, item *domain.FeedItem) error {
	if len(profileIDs) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()

	m := member(item.Type, item.AuthorID, item.PostID)
	score := float64(item.CreatedAt.Unix())

	for _, id := range profileIDs {
		key := timelineKey(id)

		// 1. Ajout au Sorted Set
		pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: m})
		// 2. Capping : on garde les maxSize plus récents
		pipe.ZRemRangeByRank(ctx, key, 0, -(r.maxSize + 1))
		// 3. Refresh TTL
		pipe.Expire(ctx, key, r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	telemetry.FeedFanout.Add(float64(len(profileIDs)))
	return nil
}

// RemoveFromTimeline retire le post quel que soit son type : une édition a pu le changer.
func (r *RedisTimelineRepo) RemoveFromTimeline(ctx context.Context, profileID string, item *domain.FeedItem) error {
	members := make([]any, 0, 3)
	for _, t := range []domain.ContentType{domain.TypePost, domain.TypeImage, domain.TypeVideo} {
		members = append(members, member(t, item.AuthorID, item.PostID))
	}
	return r.client.ZRem(ctx, timelineKey(profileID), members...).Err()
}

// GetTimeline lit la page demandée, plus récents d'abord.
func (r *RedisTimelineRepo) GetTimeline(ctx context.Context, req domain.FeedRequest) ([]*domain.FeedItem, error) {
	// Pagination Redis (Inclusive)
	start := req.Offset
	stop := req.Offset + req.Limit - 1

	results, err := r.client.ZRevRangeWithScores(ctx, timelineKey(req.ProfileID), start, stop).Result()
	if err != nil {
		return nil, err
	}

	items := make([]*domain.FeedItem, 0, len(results))
	for _, z := range results {
		raw, ok := z.Member.(string)
		if !ok {
			continue
		}
		parts := strings.Split(raw, ":")
		if len(parts) != 3 {
			// Format inconnu (donnée corrompue ?)
			continue
		}
		items = append(items, &domain.FeedItem{
			Type:      domain.ContentType(parts[0]),
			AuthorID:  parts[1],
			PostID:    parts[2],
			CreatedAt: time.Unix(int64(z.Score), 0),
		})
	}
	return items, nil
}
