package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
)

// querier est la surface commune à *pgxpool.Pool et pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepo implémente ports.Repository sur un pool ou une transaction.
type PostgresRepo struct {
	db querier
}

// Store ajoute les transactions au repo.
type Store struct {
	*PostgresRepo
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{PostgresRepo: &PostgresRepo{db: pool}, pool: pool}
}

var _ ports.Store = (*Store)(nil)

// WithinTx exécute fn dans une transaction : COMMIT si fn réussit, ROLLBACK sinon.
func (s *Store) WithinTx(ctx context.Context, fn func(repo ports.Repository) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&PostgresRepo{db: tx})
	})
}

// Ping sert au health check.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- ERREURS ---

// Noms des contraintes déclarées dans les migrations.
const (
	constraintAccountEmail    = "accounts_email_key"
	constraintAccountUsername = "accounts_username_key"
)

// handleError traduit les codes d'erreur PostgreSQL en erreurs du Domaine
func handleError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505": // unique_violation
		switch pgErr.ConstraintName {
		case constraintAccountEmail:
			return domain.ErrEmailAlreadyExists
		case constraintAccountUsername:
			return domain.ErrUsernameTaken
		}
		return domain.ErrDuplicate
	case "23503": // foreign_key_violation
		return fmt.Errorf("%w: %s", domain.ErrNotFound, pgErr.ConstraintName)
	case "23514": // check_violation
		return fmt.Errorf("%w: %s", domain.ErrInvalidOperation, pgErr.ConstraintName)
	}
	return err
}

// notFound remplace pgx.ErrNoRows par l'erreur métier fournie.
func notFound(err, target error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return target
	}
	return handleError(err)
}

// --- MÉDIAS (JSONB) ---

// DTO interne pour mapper le JSONB proprement sans polluer le Domain avec des tags JSON
type mediaDTO struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

func marshalMedia(media []domain.Media) ([]byte, error) {
	dtos := make([]mediaDTO, len(media))
	for i, m := range media {
		dtos[i] = mediaDTO{ID: m.ID, URL: m.URL, Type: string(m.Type)}
	}
	b, err := json.Marshal(dtos)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal media: %w", err)
	}
	return b, nil
}

func unmarshalMedia(data []byte) []domain.Media {
	var dtos []mediaDTO
	if len(data) == 0 || json.Unmarshal(data, &dtos) != nil {
		return []domain.Media{}
	}
	out := make([]domain.Media, len(dtos))
	for i, d := range dtos {
		out[i] = domain.Media{ID: d.ID, URL: d.URL, Type: domain.MediaType(d.Type)}
	}
	return out
}

// marshalOneMedia encode un média optionnel ; nil donne un NULL.
func marshalOneMedia(m *domain.Media) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return marshalMedia([]domain.Media{*m})
}

func unmarshalOneMedia(data []byte) *domain.Media {
	media := unmarshalMedia(data)
	if len(media) == 0 {
		return nil
	}
	return &media[0]
}

// rowsAffected renvoie target si aucune ligne n'a été touchée.
func rowsAffected(tag pgconn.CommandTag, err error, target error) error {
	if err != nil {
		return handleError(err)
	}
	if tag.RowsAffected() == 0 {
		return target
	}
	return nil
}
