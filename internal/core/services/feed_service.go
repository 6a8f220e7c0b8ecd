package services

import (
	"context"
	"log/slog"

	"github.com/samber/lo"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
)

const BatchSize = 1000 // Taille des paquets pour Redis

type FeedService struct {
	timelines ports.TimelineRepository
	store     ports.Store
	logger    *slog.Logger
}

func NewFeedService(timelines ports.TimelineRepository, store ports.Store, logger *slog.Logger) *FeedService {
	return &FeedService{
		timelines: timelines,
		store:     store,
		logger:    logger.With("component", "feed"),
	}
}

// DistributePost écrit le post dans la timeline de l'auteur puis de ses followers, par paquets.
// Les posts PRIVATE ne sortent pas de la timeline de l'auteur.
func (s *FeedService) DistributePost(ctx context.Context, item *domain.FeedItem) error {
	s.logger.Info("📢 Fan-out starting", "post_id", item.PostID, "author_id", item.AuthorID)

	if err := s.timelines.AddToTimelines(ctx, []string{item.AuthorID}, item); err != nil {
		return err
	}
	if item.Privacy == domain.PrivacyPrivate {
		return nil
	}

	total := 0
	err := s.store.StreamFollowerIDs(ctx, item.AuthorID, BatchSize, func(batch []string) error {
		if err := s.timelines.AddToTimelines(ctx, batch, item); err != nil {
			// Un paquet raté ne bloque pas les suivants.
			s.logger.Error("❌ Failed to push batch to redis", "error", err, "batch_start", total)
		}
		total += len(batch)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("✅ Fan-out complete", "post_id", item.PostID, "count", total)
	return nil
}

// RetractPost retire le post de la timeline de l'auteur. Chez les followers,
// l'hydratation ignore les posts supprimés.
func (s *FeedService) RetractPost(ctx context.Context, item *domain.FeedItem) error {
	return s.timelines.RemoveFromTimeline(ctx, item.AuthorID, item)
}

// GetFeed lit la timeline puis hydrate les posts en une seule requête.
// Les entrées supprimées, devenues invisibles ou bloquées sont ignorées.
func (s *FeedService) GetFeed(ctx context.Context, viewerID string, page domain.Page) ([]*domain.Post, error) {
	page = page.Normalize(20, 100)
	items, err := s.timelines.GetTimeline(ctx, domain.FeedRequest{
		ProfileID: viewerID,
		Limit:     int64(page.Limit),
		Offset:    int64(page.Offset),
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []*domain.Post{}, nil
	}

	posts, err := s.store.GetPosts(ctx, lo.Map(items, func(it *domain.FeedItem, _ int) string { return it.PostID }))
	if err != nil {
		return nil, err
	}
	byID := lo.KeyBy(posts, func(p *domain.Post) string { return p.ID })

	// Une seule lecture de relation par auteur distinct.
	relations := make(map[string]*domain.RelationStatus)
	for _, authorID := range lo.Uniq(lo.Map(posts, func(p *domain.Post, _ int) string { return p.AuthorID })) {
		if authorID == viewerID {
			continue
		}
		status, err := s.store.GetRelationStatus(ctx, viewerID, authorID)
		if err != nil {
			return nil, err
		}
		relations[authorID] = status
	}

	feed := make([]*domain.Post, 0, len(items))
	for _, it := range items {
		post, ok := byID[it.PostID]
		if !ok {
			continue
		}
		if post.AuthorID != viewerID {
			status := relations[post.AuthorID]
			if status.Blocked() || !domain.CanView(post.Privacy, false, status.IsFollowing) {
				continue
			}
		}
		feed = append(feed, post)
	}
	return feed, nil
}
