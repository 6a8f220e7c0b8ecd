package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jupiterclapton/agora/internal/core/domain"
)

const storyColumns = `id, author_id, content, privacy, media, is_visible, expires_at, archived_at, created_at`

func scanStory(row pgx.Row) (*domain.Story, error) {
	var (
		s         domain.Story
		privacy   string
		mediaJSON []byte
	)
	if err := row.Scan(&s.ID, &s.AuthorID, &s.Content, &privacy, &mediaJSON, &s.IsVisible, &s.ExpiresAt, &s.ArchivedAt, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Privacy = domain.Privacy(privacy)
	s.Media = unmarshalOneMedia(mediaJSON)
	return &s, nil
}

func collectStories(rows pgx.Rows, err error) ([]*domain.Story, error) {
	if err != nil {
		return nil, handleError(err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Story, error) {
		return scanStory(row)
	})
}

func (r *PostgresRepo) CreateStory(ctx context.Context, s *domain.Story) error {
	mediaJSON, err := marshalOneMedia(s.Media)
	if err != nil {
		return err
	}
	q := `
		INSERT INTO stories (id, author_id, content, privacy, media, is_visible, expires_at, created_at)
		VALUES (@id, @author_id, @content, @privacy, @media, @is_visible, @expires_at, @created_at)
	`
	args := pgx.NamedArgs{
		"id":         s.ID,
		"author_id":  s.AuthorID,
		"content":    s.Content,
		"privacy":    string(s.Privacy),
		"media":      mediaJSON,
		"is_visible": s.IsVisible,
		"expires_at": s.ExpiresAt,
		"created_at": s.CreatedAt,
	}
	_, err = r.db.Exec(ctx, q, args)
	return handleError(err)
}

func (r *PostgresRepo) GetStory(ctx context.Context, id string) (*domain.Story, error) {
	s, err := scanStory(r.db.QueryRow(ctx, `SELECT `+storyColumns+` FROM stories WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, domain.ErrStoryNotFound)
	}
	return s, nil
}

func (r *PostgresRepo) DeleteStory(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM stories WHERE id = $1`, id)
	return rowsAffected(tag, err, domain.ErrStoryNotFound)
}

func (r *PostgresRepo) ListStories(ctx context.Context, authorID string, privacies []domain.Privacy, now time.Time) ([]*domain.Story, error) {
	levels := make([]string, len(privacies))
	for i, p := range privacies {
		levels[i] = string(p)
	}
	q := `
		SELECT ` + storyColumns + `
		FROM stories
		WHERE author_id = $1 AND is_visible AND expires_at > $2 AND privacy = ANY($3)
		ORDER BY created_at DESC
	`
	return collectStories(r.db.Query(ctx, q, authorID, now, levels))
}

func (r *PostgresRepo) ListArchivedStories(ctx context.Context, authorID string) ([]*domain.Story, error) {
	q := `SELECT ` + storyColumns + ` FROM stories WHERE author_id = $1 AND NOT is_visible ORDER BY created_at DESC`
	return collectStories(r.db.Query(ctx, q, authorID))
}

// ArchiveExpiredStories masque toutes les stories expirées en une seule instruction.
func (r *PostgresRepo) ArchiveExpiredStories(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE stories SET is_visible = FALSE, archived_at = $1 WHERE is_visible AND expires_at <= $1`, now)
	if err != nil {
		return 0, handleError(err)
	}
	return tag.RowsAffected(), nil
}
