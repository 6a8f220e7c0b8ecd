package services

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
)

const postsFolder = "posts"

type PostService struct {
	flow      workflow
	store     ports.Store
	uploader  ports.MediaUploader
	publisher ports.EventPublisher
	logger    *slog.Logger
}

func NewPostService(store ports.Store, uploader ports.MediaUploader, notifier ports.Notifier, pub ports.EventPublisher, logger *slog.Logger) *PostService {
	logger = logger.With("component", "post")
	return &PostService{
		flow:      workflow{store: store, uploader: uploader, notifier: notifier, logger: logger},
		store:     store,
		uploader:  uploader,
		publisher: pub,
		logger:    logger,
	}
}

// CreatePost : upload → insertion + postsCount → push aux mentionnés → événement de fan-out.
func (s *PostService) CreatePost(ctx context.Context, cmd ports.CreatePostCmd) (*domain.Post, error) {
	privacy, err := domain.ParsePrivacy(string(cmd.Privacy))
	if err != nil {
		return nil, err
	}
	if _, err := domain.ValidateContent(cmd.Content); err != nil {
		return nil, err
	}

	var post *domain.Post
	err = s.flow.execute(ctx, cmd.AuthorID, postsFolder, cmd.Uploads, func(repo ports.Repository, media []domain.Media) ([]domain.Recipient, error) {
		author, err := repo.GetProfile(ctx, cmd.AuthorID)
		if err != nil {
			return nil, err
		}
		mentions, err := resolveMentions(ctx, repo, cmd.Mentions)
		if err != nil {
			return nil, err
		}

		post, err = domain.NewPost(author.ID, cmd.Content, privacy, cmd.CommentsEnabled, cmd.SharesEnabled, mentions, media)
		if err != nil {
			return nil, err
		}
		if err := repo.CreatePost(ctx, post); err != nil {
			return nil, err
		}
		if err := repo.AdjustProfileCounters(ctx, author.ID, domain.ProfileCounters{Posts: 1}); err != nil {
			return nil, err
		}

		recipients := make([]domain.Recipient, 0, len(mentions))
		for _, id := range mentions {
			recipients = append(recipients, domain.Recipient{ProfileID: id, Notification: domain.PostMentionNotification(author, post.ID)})
		}
		return recipients, nil
	})
	if err != nil {
		return nil, err
	}

	// Déclencheur du fan-out. La donnée est sauvée : un échec ici ne fait pas échouer la requête.
	if err := s.publisher.PublishPostCreated(ctx, post); err != nil {
		s.logger.Warn("failed to publish post created", "post_id", post.ID, "error", err)
	}
	return post, nil
}

func (s *PostService) GetPost(ctx context.Context, viewerID, postID string) (*domain.Post, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	ok, err := canSee(ctx, s.store, viewerID, post.AuthorID, post.Privacy)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrPostNotFound
	}
	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, cmd ports.UpdatePostCmd) (*domain.Post, error) {
	if _, err := domain.ValidateContent(cmd.Content); err != nil {
		return nil, err
	}
	post, err := s.store.GetPost(ctx, cmd.PostID)
	if err != nil {
		return nil, err
	}
	// Seul l'auteur peut modifier
	if post.AuthorID != cmd.ActorID {
		return nil, domain.ErrNotOwner
	}

	media, err := uploadAll(ctx, s.uploader, postsFolder, cmd.Uploads, s.logger)
	if err != nil {
		return nil, err
	}
	if err := post.Edit(cmd.Content, cmd.Privacy, media); err != nil {
		discardMedia(ctx, s.uploader, media, s.logger)
		return nil, err
	}
	if err := s.store.UpdatePost(ctx, post); err != nil {
		discardMedia(ctx, s.uploader, media, s.logger)
		return nil, err
	}
	return post, nil
}

func (s *PostService) DeletePost(ctx context.Context, actorID, postID string) error {
	var post *domain.Post
	err := s.store.WithinTx(ctx, func(repo ports.Repository) error {
		var err error
		post, err = repo.GetPost(ctx, postID)
		if err != nil {
			return err
		}
		if post.AuthorID != actorID {
			return domain.ErrNotOwner
		}
		if err := repo.DeletePost(ctx, postID); err != nil {
			return err
		}
		return repo.AdjustProfileCounters(ctx, actorID, domain.ProfileCounters{Posts: -1})
	})
	if err != nil {
		return err
	}

	if err := s.publisher.PublishPostDeleted(ctx, post); err != nil {
		s.logger.Warn("failed to publish post deleted", "post_id", post.ID, "error", err)
	}
	discardMedia(ctx, s.uploader, post.Media, s.logger)
	return nil
}

// ListPostsByAuthor : pagination keyset. Le curseur encode (created_at, id) du dernier post vu.
func (s *PostService) ListPostsByAuthor(ctx context.Context, cmd ports.ListPostsCmd) (*ports.PostPage, error) {
	var before domain.PostCursor
	if cmd.Cursor != "" {
		c, err := domain.ParsePostCursor(cmd.Cursor)
		if err != nil {
			return nil, err
		}
		before = c
	}

	if _, err := s.store.GetProfile(ctx, cmd.AuthorID); err != nil {
		return nil, err
	}

	privacies := []domain.Privacy{domain.PrivacyPublic, domain.PrivacyFriends, domain.PrivacyPrivate}
	if cmd.ViewerID != cmd.AuthorID {
		status, err := s.store.GetRelationStatus(ctx, cmd.ViewerID, cmd.AuthorID)
		if err != nil {
			return nil, err
		}
		if status.IsBlockedBy {
			return nil, domain.ErrProfileNotFound
		}
		privacies = domain.VisiblePrivacies(false, status.IsFollowing)
	}

	if cmd.Privacy != "" {
		if !slices.Contains(privacies, cmd.Privacy) {
			return &ports.PostPage{Posts: []*domain.Post{}}, nil
		}
		privacies = []domain.Privacy{cmd.Privacy}
	}

	page := domain.Page{Limit: cmd.Limit}.Normalize(20, 100)
	posts, err := s.store.ListPostsByAuthor(ctx, domain.PostQuery{
		AuthorID:  cmd.AuthorID,
		Privacies: privacies,
		Limit:     page.Limit,
		Before:    before,
	})
	if err != nil {
		return nil, err
	}

	next := ""
	if len(posts) == page.Limit {
		next = domain.CursorAfter(posts[len(posts)-1]).Encode()
	}
	return &ports.PostPage{Posts: posts, NextCursor: next}, nil
}

// SharePost enregistre un partage unique par profil et incrémente sharesCount.
func (s *PostService) SharePost(ctx context.Context, actorID, postID string) error {
	return s.store.WithinTx(ctx, func(repo ports.Repository) error {
		post, err := repo.GetPost(ctx, postID)
		if err != nil {
			return err
		}
		ok, err := canSee(ctx, repo, actorID, post.AuthorID, post.Privacy)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrPostNotFound
		}
		if !post.SharesEnabled {
			return domain.ErrSharesDisabled
		}
		if err := repo.CreateShare(ctx, post.ID, actorID, time.Now().UTC()); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return domain.ErrAlreadyShared
			}
			return err
		}
		return repo.AdjustPostCounters(ctx, post.ID, domain.PostCounters{Shares: 1})
	})
}
