package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jupiterclapton/agora/internal/core/domain"
)

// Les profils d'un compte désactivé sont invisibles partout.
const profileColumns = `p.id, p.account_id, p.username, p.full_name, p.bio, p.picture_url, p.birth_date,
	p.followers_count, p.following_count, p.posts_count, p.is_online, p.last_seen_at, p.created_at, p.updated_at`

const activeProfiles = `profiles p JOIN accounts a ON a.id = p.account_id AND a.is_active`

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(
		&p.ID, &p.AccountID, &p.Username, &p.FullName, &p.Bio, &p.PictureURL, &p.BirthDate,
		&p.FollowersCount, &p.FollowingCount, &p.PostsCount, &p.IsOnline, &p.LastSeenAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectProfiles(rows pgx.Rows, err error) ([]*domain.Profile, error) {
	if err != nil {
		return nil, handleError(err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Profile, error) {
		return scanProfile(row)
	})
}

func (r *PostgresRepo) CreateProfile(ctx context.Context, p *domain.Profile) error {
	q := `
		INSERT INTO profiles (id, account_id, username, full_name, bio, picture_url, birth_date, created_at, updated_at)
		VALUES (@id, @account_id, @username, @full_name, @bio, @picture_url, @birth_date, @created_at, @updated_at)
	`
	args := pgx.NamedArgs{
		"id":          p.ID,
		"account_id":  p.AccountID,
		"username":    p.Username,
		"full_name":   p.FullName,
		"bio":         p.Bio,
		"picture_url": p.PictureURL,
		"birth_date":  p.BirthDate,
		"created_at":  p.CreatedAt,
		"updated_at":  p.UpdatedAt,
	}
	_, err := r.db.Exec(ctx, q, args)
	return handleError(err)
}

func (r *PostgresRepo) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM `+activeProfiles+` WHERE p.id = $1`, id))
	if err != nil {
		return nil, notFound(err, domain.ErrProfileNotFound)
	}
	return p, nil
}

// GetProfileByAccount ne filtre pas sur is_active : l'appelant a déjà le compte.
func (r *PostgresRepo) GetProfileByAccount(ctx context.Context, accountID string) (*domain.Profile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles p WHERE p.account_id = $1`, accountID))
	if err != nil {
		return nil, notFound(err, domain.ErrProfileNotFound)
	}
	return p, nil
}

// GetProfiles : BATCH FETCH via id = ANY($1)
func (r *PostgresRepo) GetProfiles(ctx context.Context, ids []string) ([]*domain.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return collectProfiles(r.db.Query(ctx, `SELECT `+profileColumns+` FROM `+activeProfiles+` WHERE p.id = ANY($1)`, ids))
}

func (r *PostgresRepo) UpdateProfile(ctx context.Context, p *domain.Profile) error {
	q := `
		UPDATE profiles
		SET full_name = @full_name, bio = @bio, picture_url = @picture_url, updated_at = @updated_at
		WHERE id = @id
	`
	args := pgx.NamedArgs{
		"id":          p.ID,
		"full_name":   p.FullName,
		"bio":         p.Bio,
		"picture_url": p.PictureURL,
		"updated_at":  p.UpdatedAt,
	}
	tag, err := r.db.Exec(ctx, q, args)
	return rowsAffected(tag, err, domain.ErrProfileNotFound)
}

func (r *PostgresRepo) SearchProfiles(ctx context.Context, query string, page domain.Page) ([]*domain.Profile, error) {
	q := `
		SELECT ` + profileColumns + `
		FROM ` + activeProfiles + `
		WHERE p.full_name ILIKE '%' || $1 || '%' OR p.username ILIKE '%' || $1 || '%'
		ORDER BY p.username
		LIMIT $2 OFFSET $3
	`
	return collectProfiles(r.db.Query(ctx, q, query, page.Limit, page.Offset))
}

// AdjustProfileCounters applique un delta en une seule instruction (pas de read-modify-write).
func (r *PostgresRepo) AdjustProfileCounters(ctx context.Context, id string, delta domain.ProfileCounters) error {
	q := `
		UPDATE profiles
		SET followers_count = followers_count + $2,
			following_count = following_count + $3,
			posts_count = posts_count + $4
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, q, id, delta.Followers, delta.Following, delta.Posts)
	return rowsAffected(tag, err, domain.ErrProfileNotFound)
}

func (r *PostgresRepo) SetPresence(ctx context.Context, id string, online bool, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE profiles SET is_online = $2, last_seen_at = $3 WHERE id = $1`, id, online, at)
	return rowsAffected(tag, err, domain.ErrProfileNotFound)
}
