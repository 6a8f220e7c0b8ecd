package repository

import (
	"context"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"

	"github.com/jupiterclapton/agora/internal/core/domain"
)

// Une arête = une ligne (from, to). La clé primaire garantit l'unicité.

// LockProfiles prend les verrous de ligne des profils (SELECT ... FOR UPDATE).
// Follow et Block sur la même paire s'attendent ainsi au lieu de lire un état périmé.
// Le tri fixe l'ordre d'acquisition : deux transactions croisées ne s'interbloquent pas.
func (r *PostgresRepo) LockProfiles(ctx context.Context, ids ...string) error {
	ids = lo.Uniq(ids)
	slices.Sort(ids)

	rows, err := r.db.Query(ctx, `SELECT id FROM profiles WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return handleError(err)
	}
	locked, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return handleError(err)
	}
	if len(locked) != len(ids) {
		return domain.ErrProfileNotFound
	}
	return nil
}

func (r *PostgresRepo) CreateFollow(ctx context.Context, followerID, followeeID string) error {
	_, err := r.db.Exec(ctx, `INSERT INTO follows (follower_id, followee_id) VALUES ($1, $2)`, followerID, followeeID)
	return handleError(err)
}

func (r *PostgresRepo) DeleteFollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`, followerID, followeeID)
	if err != nil {
		return false, handleError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepo) CreateBlock(ctx context.Context, blockerID, blockedID string) error {
	_, err := r.db.Exec(ctx, `INSERT INTO blocks (blocker_id, blocked_id) VALUES ($1, $2)`, blockerID, blockedID)
	return handleError(err)
}

func (r *PostgresRepo) DeleteBlock(ctx context.Context, blockerID, blockedID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM blocks WHERE blocker_id = $1 AND blocked_id = $2`, blockerID, blockedID)
	if err != nil {
		return false, handleError(err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetRelationStatus lit les quatre arêtes possibles en un aller-retour.
func (r *PostgresRepo) GetRelationStatus(ctx context.Context, actorID, targetID string) (*domain.RelationStatus, error) {
	q := `
		SELECT
			EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND followee_id = $2),
			EXISTS (SELECT 1 FROM follows WHERE follower_id = $2 AND followee_id = $1),
			EXISTS (SELECT 1 FROM blocks WHERE blocker_id = $1 AND blocked_id = $2),
			EXISTS (SELECT 1 FROM blocks WHERE blocker_id = $2 AND blocked_id = $1)
	`
	var s domain.RelationStatus
	if err := r.db.QueryRow(ctx, q, actorID, targetID).Scan(&s.IsFollowing, &s.IsFollowedBy, &s.IsBlocking, &s.IsBlockedBy); err != nil {
		return nil, handleError(err)
	}
	return &s, nil
}

func (r *PostgresRepo) ListFollowers(ctx context.Context, profileID string, page domain.Page) ([]*domain.Profile, error) {
	q := `
		SELECT ` + profileColumns + `
		FROM follows f JOIN ` + activeProfiles + ` ON p.id = f.follower_id
		WHERE f.followee_id = $1
		ORDER BY f.created_at DESC
		LIMIT $2 OFFSET $3
	`
	return collectProfiles(r.db.Query(ctx, q, profileID, page.Limit, page.Offset))
}

func (r *PostgresRepo) ListFollowing(ctx context.Context, profileID string, page domain.Page) ([]*domain.Profile, error) {
	q := `
		SELECT ` + profileColumns + `
		FROM follows f JOIN ` + activeProfiles + ` ON p.id = f.followee_id
		WHERE f.follower_id = $1
		ORDER BY f.created_at DESC
		LIMIT $2 OFFSET $3
	`
	return collectProfiles(r.db.Query(ctx, q, profileID, page.Limit, page.Offset))
}

// StreamFollowerIDs parcourt les followers par paquets en pagination keyset sur follower_id.
func (r *PostgresRepo) StreamFollowerIDs(ctx context.Context, profileID string, batchSize int, yield func([]string) error) error {
	q := `
		SELECT follower_id FROM follows
		WHERE followee_id = $1 AND follower_id > $2
		ORDER BY follower_id
		LIMIT $3
	`
	after := ""
	for {
		rows, err := r.db.Query(ctx, q, profileID, after, batchSize)
		if err != nil {
			return handleError(err)
		}
		batch, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := yield(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		after = batch[len(batch)-1]
	}
}
