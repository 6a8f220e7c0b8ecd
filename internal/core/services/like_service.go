package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
)

type LikeService struct {
	flow  workflow
	store ports.Store
}

func NewLikeService(store ports.Store, notifier ports.Notifier, logger *slog.Logger) *LikeService {
	return &LikeService{
		flow:  workflow{store: store, notifier: notifier, logger: logger.With("component", "like")},
		store: store,
	}
}

// likeTarget est la cible résolue d'un like : son auteur et le post qui la porte.
type likeTarget struct {
	ownerID string
	postID  string
}

// Like : ligne de like + likesCount+1 dans la même transaction, puis push au propriétaire.
func (s *LikeService) Like(ctx context.Context, actorID string, target domain.LikeTarget) error {
	if err := target.Validate(); err != nil {
		return err
	}

	return s.flow.execute(ctx, actorID, "", nil, func(repo ports.Repository, _ []domain.Media) ([]domain.Recipient, error) {
		actor, err := repo.GetProfile(ctx, actorID)
		if err != nil {
			return nil, err
		}
		resolved, err := s.resolve(ctx, repo, actorID, target)
		if err != nil {
			return nil, err
		}

		like := domain.Like{ProfileID: actorID, Target: target, CreatedAt: time.Now().UTC()}
		if err := repo.CreateLike(ctx, like); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return nil, domain.ErrAlreadyLiked
			}
			return nil, err
		}
		if err := s.adjust(ctx, repo, target, 1); err != nil {
			return nil, err
		}

		n := domain.PostLikeNotification(actor, resolved.postID)
		if target.Type == domain.LikeTargetComment {
			n = domain.CommentLikeNotification(actor, resolved.postID)
		}
		return []domain.Recipient{{ProfileID: resolved.ownerID, Notification: n}}, nil
	})
}

// Unlike ne notifie personne.
func (s *LikeService) Unlike(ctx context.Context, actorID string, target domain.LikeTarget) error {
	if err := target.Validate(); err != nil {
		return err
	}

	return s.store.WithinTx(ctx, func(repo ports.Repository) error {
		if _, err := s.resolve(ctx, repo, actorID, target); err != nil {
			return err
		}
		removed, err := repo.DeleteLike(ctx, actorID, target)
		if err != nil {
			return err
		}
		if !removed {
			return domain.ErrNotLiked
		}
		return s.adjust(ctx, repo, target, -1)
	})
}

func (s *LikeService) resolve(ctx context.Context, repo ports.Repository, actorID string, target domain.LikeTarget) (*likeTarget, error) {
	postID := target.ID
	var ownerID string

	if target.Type == domain.LikeTargetComment {
		comment, err := repo.GetComment(ctx, target.ID)
		if err != nil {
			return nil, err
		}
		postID = comment.PostID
		ownerID = comment.AuthorID
	}

	post, err := repo.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if ownerID == "" {
		ownerID = post.AuthorID
	}

	visible, err := canSee(ctx, repo, actorID, post.AuthorID, post.Privacy)
	if err != nil {
		return nil, err
	}
	if !visible {
		if target.Type == domain.LikeTargetComment {
			return nil, domain.ErrCommentNotFound
		}
		return nil, domain.ErrPostNotFound
	}
	return &likeTarget{ownerID: ownerID, postID: post.ID}, nil
}

func (s *LikeService) adjust(ctx context.Context, repo ports.Repository, target domain.LikeTarget, delta int) error {
	if target.Type == domain.LikeTargetComment {
		return repo.AdjustCommentCounters(ctx, target.ID, domain.CommentCounters{Likes: delta})
	}
	return repo.AdjustPostCounters(ctx, target.ID, domain.PostCounters{Likes: delta})
}
