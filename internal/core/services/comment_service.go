package services

import (
	"context"
	"log/slog"

	"github.com/samber/lo"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
)

const commentsFolder = "comments"

type CommentService struct {
	flow     workflow
	store    ports.Store
	uploader ports.MediaUploader
	logger   *slog.Logger
}

func NewCommentService(store ports.Store, uploader ports.MediaUploader, notifier ports.Notifier, logger *slog.Logger) *CommentService {
	logger = logger.With("component", "comment")
	return &CommentService{
		flow:     workflow{store: store, uploader: uploader, notifier: notifier, logger: logger},
		store:    store,
		uploader: uploader,
		logger:   logger,
	}
}

// AddComment crée un commentaire (ou une réponse si ParentID est fourni).
// Le propriétaire du contenu parent est notifié avant les mentionnés.
func (s *CommentService) AddComment(ctx context.Context, cmd ports.AddCommentCmd) (*domain.Comment, error) {
	if _, err := domain.ValidateContent(cmd.Content); err != nil {
		return nil, err
	}
	var uploads []ports.Upload
	if cmd.Upload != nil {
		uploads = []ports.Upload{*cmd.Upload}
	}

	var comment *domain.Comment
	err := s.flow.execute(ctx, cmd.AuthorID, commentsFolder, uploads, func(repo ports.Repository, media []domain.Media) ([]domain.Recipient, error) {
		author, err := repo.GetProfile(ctx, cmd.AuthorID)
		if err != nil {
			return nil, err
		}

		var parent *domain.Comment
		postID := cmd.PostID
		if cmd.ParentID != "" {
			parent, err = repo.GetComment(ctx, cmd.ParentID)
			if err != nil {
				return nil, err
			}
			// Une réponse à une réponse est rattachée au fil de premier niveau.
			if parent.IsReply() {
				if parent, err = repo.GetComment(ctx, parent.ParentID); err != nil {
					return nil, err
				}
			}
			postID = parent.PostID
		}

		post, err := repo.GetPost(ctx, postID)
		if err != nil {
			return nil, err
		}
		visible, err := canSee(ctx, repo, author.ID, post.AuthorID, post.Privacy)
		if err != nil {
			return nil, err
		}
		if !visible {
			return nil, domain.ErrPostNotFound
		}
		if !post.CommentsEnabled {
			return nil, domain.ErrCommentsDisabled
		}

		mentions, err := resolveMentions(ctx, repo, cmd.Mentions)
		if err != nil {
			return nil, err
		}

		var attached *domain.Media
		if len(media) > 0 {
			attached = &media[0]
		}
		parentID := ""
		if parent != nil {
			parentID = parent.ID
		}
		comment, err = domain.NewComment(post.ID, parentID, author.ID, cmd.Content, mentions, attached)
		if err != nil {
			return nil, err
		}
		if err := repo.CreateComment(ctx, comment); err != nil {
			return nil, err
		}

		var recipients []domain.Recipient
		if parent != nil {
			if err := repo.AdjustCommentCounters(ctx, parent.ID, domain.CommentCounters{Replies: 1}); err != nil {
				return nil, err
			}
			recipients = append(recipients, domain.Recipient{ProfileID: parent.AuthorID, Notification: domain.ReplyNotification(author, post.ID)})
		} else {
			if err := repo.AdjustPostCounters(ctx, post.ID, domain.PostCounters{Comments: 1}); err != nil {
				return nil, err
			}
			recipients = append(recipients, domain.Recipient{ProfileID: post.AuthorID, Notification: domain.CommentNotification(author, post.ID)})
		}
		for _, id := range mentions {
			recipients = append(recipients, domain.Recipient{ProfileID: id, Notification: domain.CommentMentionNotification(author, post.ID)})
		}
		return recipients, nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *CommentService) UpdateComment(ctx context.Context, cmd ports.UpdateCommentCmd) (*domain.Comment, error) {
	if _, err := domain.ValidateContent(cmd.Content); err != nil {
		return nil, err
	}
	comment, err := s.store.GetComment(ctx, cmd.CommentID)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != cmd.ActorID {
		return nil, domain.ErrNotOwner
	}

	media, err := uploadOne(ctx, s.uploader, commentsFolder, cmd.Upload, s.logger)
	if err != nil {
		return nil, err
	}
	previous := comment.Media
	if err := comment.Edit(cmd.Content, media); err != nil {
		discardMedia(ctx, s.uploader, mediaOf(media), s.logger)
		return nil, err
	}
	if err := s.store.UpdateComment(ctx, comment); err != nil {
		discardMedia(ctx, s.uploader, mediaOf(media), s.logger)
		return nil, err
	}
	if media != nil {
		discardMedia(ctx, s.uploader, mediaOf(previous), s.logger)
	}
	return comment, nil
}

// DeleteComment décrémente le compteur du parent (post ou commentaire) dans la même transaction.
func (s *CommentService) DeleteComment(ctx context.Context, actorID, commentID string) error {
	var comment *domain.Comment
	err := s.store.WithinTx(ctx, func(repo ports.Repository) error {
		var err error
		comment, err = repo.GetComment(ctx, commentID)
		if err != nil {
			return err
		}
		if comment.AuthorID != actorID {
			return domain.ErrNotOwner
		}
		if err := repo.DeleteComment(ctx, comment.ID); err != nil {
			return err
		}
		if comment.IsReply() {
			return repo.AdjustCommentCounters(ctx, comment.ParentID, domain.CommentCounters{Replies: -1})
		}
		return repo.AdjustPostCounters(ctx, comment.PostID, domain.PostCounters{Comments: -1})
	})
	if err != nil {
		return err
	}
	discardMedia(ctx, s.uploader, mediaOf(comment.Media), s.logger)
	return nil
}

// ListPostComments renvoie les commentaires de premier niveau avec leurs réponses.
func (s *CommentService) ListPostComments(ctx context.Context, viewerID, postID string, page domain.Page) ([]*domain.Comment, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	visible, err := canSee(ctx, s.store, viewerID, post.AuthorID, post.Privacy)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, domain.ErrPostNotFound
	}

	comments, err := s.store.ListComments(ctx, postID, page.Normalize(20, 100))
	if err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return comments, nil
	}

	replies, err := s.store.ListReplies(ctx, lo.Map(comments, func(c *domain.Comment, _ int) string { return c.ID }))
	if err != nil {
		return nil, err
	}
	byParent := lo.GroupBy(replies, func(r *domain.Comment) string { return r.ParentID })
	for _, c := range comments {
		c.Replies = byParent[c.ID]
	}
	return comments, nil
}
