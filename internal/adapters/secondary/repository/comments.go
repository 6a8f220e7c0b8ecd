package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/jupiterclapton/agora/internal/core/domain"
)

const commentColumns = `id, post_id, COALESCE(parent_id, ''), author_id, content, media, mentions,
	likes_count, replies_count, edited, created_at, updated_at`

func scanComment(row pgx.Row) (*domain.Comment, error) {
	var (
		c         domain.Comment
		mediaJSON []byte
	)
	err := row.Scan(
		&c.ID, &c.PostID, &c.ParentID, &c.AuthorID, &c.Content, &mediaJSON, &c.Mentions,
		&c.LikesCount, &c.RepliesCount, &c.Edited, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Media = unmarshalOneMedia(mediaJSON)
	return &c, nil
}

func collectComments(rows pgx.Rows, err error) ([]*domain.Comment, error) {
	if err != nil {
		return nil, handleError(err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Comment, error) {
		return scanComment(row)
	})
}

func (r *PostgresRepo) CreateComment(ctx context.Context, c *domain.Comment) error {
	mediaJSON, err := marshalOneMedia(c.Media)
	if err != nil {
		return err
	}
	var parentID *string
	if c.ParentID != "" {
		parentID = &c.ParentID
	}
	q := `
		INSERT INTO comments (id, post_id, parent_id, author_id, content, media, mentions, created_at, updated_at)
		VALUES (@id, @post_id, @parent_id, @author_id, @content, @media, @mentions, @created_at, @updated_at)
	`
	args := pgx.NamedArgs{
		"id":         c.ID,
		"post_id":    c.PostID,
		"parent_id":  parentID,
		"author_id":  c.AuthorID,
		"content":    c.Content,
		"media":      mediaJSON,
		"mentions":   nonNil(c.Mentions),
		"created_at": c.CreatedAt,
		"updated_at": c.UpdatedAt,
	}
	_, err = r.db.Exec(ctx, q, args)
	return handleError(err)
}

func (r *PostgresRepo) GetComment(ctx context.Context, id string) (*domain.Comment, error) {
	c, err := scanComment(r.db.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, domain.ErrCommentNotFound)
	}
	return c, nil
}

func (r *PostgresRepo) UpdateComment(ctx context.Context, c *domain.Comment) error {
	mediaJSON, err := marshalOneMedia(c.Media)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE comments SET content = $1, media = $2, edited = $3, updated_at = $4 WHERE id = $5`,
		c.Content, mediaJSON, c.Edited, c.UpdatedAt, c.ID,
	)
	return rowsAffected(tag, err, domain.ErrCommentNotFound)
}

// DeleteComment : les réponses et les likes suivent par ON DELETE CASCADE.
func (r *PostgresRepo) DeleteComment(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	return rowsAffected(tag, err, domain.ErrCommentNotFound)
}

func (r *PostgresRepo) ListComments(ctx context.Context, postID string, page domain.Page) ([]*domain.Comment, error) {
	q := `
		SELECT ` + commentColumns + `
		FROM comments
		WHERE post_id = $1 AND parent_id IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return collectComments(r.db.Query(ctx, q, postID, page.Limit, page.Offset))
}

// ListReplies charge les réponses de plusieurs fils en une requête, du plus ancien au plus récent.
func (r *PostgresRepo) ListReplies(ctx context.Context, parentIDs []string) ([]*domain.Comment, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	q := `SELECT ` + commentColumns + ` FROM comments WHERE parent_id = ANY($1) ORDER BY created_at ASC`
	return collectComments(r.db.Query(ctx, q, parentIDs))
}

func (r *PostgresRepo) AdjustCommentCounters(ctx context.Context, id string, delta domain.CommentCounters) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE comments SET likes_count = likes_count + $2, replies_count = replies_count + $3 WHERE id = $1`,
		id, delta.Likes, delta.Replies,
	)
	return rowsAffected(tag, err, domain.ErrCommentNotFound)
}

// --- LIKES ---

// Un like par (profil, cible) : la clé primaire de chaque table de likes le garantit.

func (r *PostgresRepo) CreateLike(ctx context.Context, l domain.Like) error {
	q := `INSERT INTO post_likes (profile_id, post_id, created_at) VALUES ($1, $2, $3)`
	if l.Target.Type == domain.LikeTargetComment {
		q = `INSERT INTO comment_likes (profile_id, comment_id, created_at) VALUES ($1, $2, $3)`
	}
	_, err := r.db.Exec(ctx, q, l.ProfileID, l.Target.ID, l.CreatedAt)
	return handleError(err)
}

func (r *PostgresRepo) DeleteLike(ctx context.Context, profileID string, target domain.LikeTarget) (bool, error) {
	q := `DELETE FROM post_likes WHERE profile_id = $1 AND post_id = $2`
	if target.Type == domain.LikeTargetComment {
		q = `DELETE FROM comment_likes WHERE profile_id = $1 AND comment_id = $2`
	}
	tag, err := r.db.Exec(ctx, q, profileID, target.ID)
	if err != nil {
		return false, handleError(err)
	}
	return tag.RowsAffected() > 0, nil
}
