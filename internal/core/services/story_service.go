package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
)

type StoryService struct {
	store    ports.Store
	uploader ports.MediaUploader
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewStoryService(store ports.Store, uploader ports.MediaUploader, ttl time.Duration, logger *slog.Logger) *StoryService {
	if ttl <= 0 {
		ttl = domain.StoryTTL
	}
	return &StoryService{
		store:    store,
		uploader: uploader,
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With("component", "story"),
	}
}

func (s *StoryService) CreateStory(ctx context.Context, cmd ports.CreateStoryCmd) (*domain.Story, error) {
	privacy, err := domain.ParsePrivacy(string(cmd.Privacy))
	if err != nil {
		return nil, err
	}
	// Validation avant l'upload : on n'envoie rien au CDN pour une story invalide.
	story, err := domain.NewStory(cmd.AuthorID, cmd.Content, privacy, nil, s.now(), s.ttl)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetProfile(ctx, cmd.AuthorID); err != nil {
		return nil, err
	}

	media, err := uploadOne(ctx, s.uploader, "stories", cmd.Upload, s.logger)
	if err != nil {
		return nil, err
	}
	story.Media = media

	if err := s.store.CreateStory(ctx, story); err != nil {
		discardMedia(ctx, s.uploader, mediaOf(media), s.logger)
		return nil, err
	}
	return story, nil
}

func (s *StoryService) DeleteStory(ctx context.Context, actorID, storyID string) error {
	story, err := s.store.GetStory(ctx, storyID)
	if err != nil {
		return err
	}
	if story.AuthorID != actorID {
		return domain.ErrNotOwner
	}
	if err := s.store.DeleteStory(ctx, storyID); err != nil {
		return err
	}
	discardMedia(ctx, s.uploader, mediaOf(story.Media), s.logger)
	return nil
}

// ListStories : PUBLIC pour tous, FRIENDS pour les followers, tout pour l'auteur.
func (s *StoryService) ListStories(ctx context.Context, viewerID, authorID string) ([]*domain.Story, error) {
	if _, err := s.store.GetProfile(ctx, authorID); err != nil {
		return nil, err
	}

	privacies := domain.VisiblePrivacies(true, true)
	if viewerID != authorID {
		status, err := s.store.GetRelationStatus(ctx, viewerID, authorID)
		if err != nil {
			return nil, err
		}
		if status.Blocked() {
			return nil, domain.ErrProfileNotFound
		}
		privacies = domain.VisiblePrivacies(false, status.IsFollowing)
	}
	return s.store.ListStories(ctx, authorID, privacies, s.now())
}

func (s *StoryService) ListArchive(ctx context.Context, ownerID string) ([]*domain.Story, error) {
	return s.store.ListArchivedStories(ctx, ownerID)
}

// ArchiveExpired masque toutes les stories expirées en une seule instruction.
func (s *StoryService) ArchiveExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.store.ArchiveExpiredStories(ctx, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("stories archived", "count", n)
	}
	return n, nil
}
