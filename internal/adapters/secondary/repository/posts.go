package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jupiterclapton/agora/internal/core/domain"
)

const postColumns = `id, author_id, content, privacy, comments_enabled, shares_enabled, media, mentions,
	likes_count, comments_count, shares_count, edited, created_at, updated_at`

func scanPost(row pgx.Row) (*domain.Post, error) {
	var (
		p         domain.Post
		privacy   string
		mediaJSON []byte
	)
	err := row.Scan(
		&p.ID, &p.AuthorID, &p.Content, &privacy, &p.CommentsEnabled, &p.SharesEnabled, &mediaJSON, &p.Mentions,
		&p.LikesCount, &p.CommentsCount, &p.SharesCount, &p.Edited, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Privacy = domain.Privacy(privacy)
	p.Media = unmarshalMedia(mediaJSON)
	return &p, nil
}

func collectPosts(rows pgx.Rows, err error) ([]*domain.Post, error) {
	if err != nil {
		return nil, handleError(err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Post, error) {
		return scanPost(row)
	})
}

func (r *PostgresRepo) CreatePost(ctx context.Context, p *domain.Post) error {
	mediaJSON, err := marshalMedia(p.Media)
	if err != nil {
		return err
	}
	q := `
		INSERT INTO posts (id, author_id, content, privacy, comments_enabled, shares_enabled, media, mentions, created_at, updated_at)
		VALUES (@id, @author_id, @content, @privacy, @comments_enabled, @shares_enabled, @media, @mentions, @created_at, @updated_at)
	`
	args := pgx.NamedArgs{
		"id":               p.ID,
		"author_id":        p.AuthorID,
		"content":          p.Content,
		"privacy":          string(p.Privacy),
		"comments_enabled": p.CommentsEnabled,
		"shares_enabled":   p.SharesEnabled,
		"media":            mediaJSON,
		"mentions":         nonNil(p.Mentions),
		"created_at":       p.CreatedAt,
		"updated_at":       p.UpdatedAt,
	}
	_, err = r.db.Exec(ctx, q, args)
	return handleError(err)
}

func (r *PostgresRepo) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	p, err := scanPost(r.db.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, domain.ErrPostNotFound)
	}
	return p, nil
}

// GetPosts : BATCH FETCH (Hydratation Feed)
// Utilise WHERE id = ANY($1) pour récupérer plusieurs posts en une seule requête SQL
func (r *PostgresRepo) GetPosts(ctx context.Context, ids []string) ([]*domain.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return collectPosts(r.db.Query(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ANY($1)`, ids))
}

func (r *PostgresRepo) UpdatePost(ctx context.Context, p *domain.Post) error {
	mediaJSON, err := marshalMedia(p.Media)
	if err != nil {
		return err
	}
	q := `
		UPDATE posts
		SET content = $1, privacy = $2, media = $3, edited = $4, updated_at = $5
		WHERE id = $6
	`
	tag, err := r.db.Exec(ctx, q, p.Content, string(p.Privacy), mediaJSON, p.Edited, p.UpdatedAt, p.ID)
	return rowsAffected(tag, err, domain.ErrPostNotFound)
}

// DeletePost : commentaires, likes et partages suivent par ON DELETE CASCADE.
func (r *PostgresRepo) DeletePost(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	return rowsAffected(tag, err, domain.ErrPostNotFound)
}

// ListPostsByAuthor : PAGINATION KEYSET (Cursor-based)
// Before est la clé (created_at, id) du dernier post vu ; zéro pour la première page.
// L'id départage les posts créés au même instant.
func (r *PostgresRepo) ListPostsByAuthor(ctx context.Context, q domain.PostQuery) ([]*domain.Post, error) {
	privacies := make([]string, len(q.Privacies))
	for i, p := range q.Privacies {
		privacies[i] = string(p)
	}

	// Cas 1: Première page (pas de curseur)
	if q.Before.IsZero() {
		query := `
			SELECT ` + postColumns + `
			FROM posts
			WHERE author_id = $1 AND privacy = ANY($2)
			ORDER BY created_at DESC, id DESC
			LIMIT $3
		`
		return collectPosts(r.db.Query(ctx, query, q.AuthorID, privacies, q.Limit))
	}

	// Cas 2: Page suivante (comparaison de ligne sur la clé composite)
	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE author_id = $1 AND privacy = ANY($2) AND (created_at, id) < ($3, $4)
		ORDER BY created_at DESC, id DESC
		LIMIT $5
	`
	return collectPosts(r.db.Query(ctx, query, q.AuthorID, privacies, q.Before.CreatedAt, q.Before.ID, q.Limit))
}

func (r *PostgresRepo) CreateShare(ctx context.Context, postID, profileID string, at time.Time) error {
	_, err := r.db.Exec(ctx, `INSERT INTO post_shares (post_id, profile_id, created_at) VALUES ($1, $2, $3)`, postID, profileID, at)
	return handleError(err)
}

func (r *PostgresRepo) AdjustPostCounters(ctx context.Context, id string, delta domain.PostCounters) error {
	q := `
		UPDATE posts
		SET likes_count = likes_count + $2,
			comments_count = comments_count + $3,
			shares_count = shares_count + $4
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, q, id, delta.Likes, delta.Comments, delta.Shares)
	return rowsAffected(tag, err, domain.ErrPostNotFound)
}

// nonNil évite d'insérer NULL dans une colonne text[] NOT NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
