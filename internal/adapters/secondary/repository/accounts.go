package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/jupiterclapton/agora/internal/core/domain"
)

const accountColumns = `id, email, username, password_hash, is_active, last_login_at,
	reset_token_hash, reset_token_expires_at, created_at, updated_at`

func (r *PostgresRepo) CreateAccount(ctx context.Context, a *domain.Account) error {
	q := `
		INSERT INTO accounts (id, email, username, password_hash, is_active, created_at, updated_at)
		VALUES (@id, @email, @username, @password_hash, @is_active, @created_at, @updated_at)
	`
	// Utilisation de pgx.NamedArgs pour la clarté
	args := pgx.NamedArgs{
		"id":            a.ID,
		"email":         a.Email,
		"username":      a.Username,
		"password_hash": a.PasswordHash,
		"is_active":     a.IsActive,
		"created_at":    a.CreatedAt,
		"updated_at":    a.UpdatedAt,
	}
	_, err := r.db.Exec(ctx, q, args)
	return handleError(err)
}

func (r *PostgresRepo) GetAccountByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (r *PostgresRepo) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
}

func (r *PostgresRepo) GetAccountByResetToken(ctx context.Context, tokenHash string) (*domain.Account, error) {
	return r.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE reset_token_hash = $1 AND reset_token_hash <> ''`, tokenHash)
}

func (r *PostgresRepo) UpdateAccount(ctx context.Context, a *domain.Account) error {
	q := `
		UPDATE accounts
		SET email = @email, password_hash = @password_hash, is_active = @is_active,
			last_login_at = @last_login_at, reset_token_hash = @reset_token_hash,
			reset_token_expires_at = @reset_token_expires_at, updated_at = @updated_at
		WHERE id = @id
	`
	args := pgx.NamedArgs{
		"id":                     a.ID,
		"email":                  a.Email,
		"password_hash":          a.PasswordHash,
		"is_active":              a.IsActive,
		"last_login_at":          a.LastLoginAt,
		"reset_token_hash":       a.ResetTokenHash,
		"reset_token_expires_at": a.ResetTokenExpiresAt,
		"updated_at":             a.UpdatedAt,
	}
	tag, err := r.db.Exec(ctx, q, args)
	return rowsAffected(tag, err, domain.ErrAccountNotFound)
}

func (r *PostgresRepo) getAccount(ctx context.Context, q string, arg string) (*domain.Account, error) {
	var a domain.Account
	err := r.db.QueryRow(ctx, q, arg).Scan(
		&a.ID, &a.Email, &a.Username, &a.PasswordHash, &a.IsActive, &a.LastLoginAt,
		&a.ResetTokenHash, &a.ResetTokenExpiresAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, domain.ErrAccountNotFound)
	}
	return &a, nil
}
