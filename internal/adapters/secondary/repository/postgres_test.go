package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/agora/internal/core/domain"
)

var errBoom = errors.New("boom")

// newMockRepo branche le repo sur une connexion simulée ; chaque attente doit être consommée.
func newMockRepo(t *testing.T) (*PostgresRepo, pgxmock.PgxConnIface) {
	t.Helper()
	mock, err := pgxmock.NewConn()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })
	return &PostgresRepo{db: mock}, mock
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"email unique", &pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"}, domain.ErrEmailAlreadyExists},
		{"username unique", &pgconn.PgError{Code: "23505", ConstraintName: "accounts_username_key"}, domain.ErrUsernameTaken},
		{"edge unique", &pgconn.PgError{Code: "23505", ConstraintName: "follows_pkey"}, domain.ErrDuplicate},
		{"wrapped unique", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505", ConstraintName: "post_likes_pkey"}), domain.ErrDuplicate},
		{"foreign key", &pgconn.PgError{Code: "23503", ConstraintName: "follows_followee_id_fkey"}, domain.ErrNotFound},
		{"check", &pgconn.PgError{Code: "23514", ConstraintName: "profiles_followers_count_check"}, domain.ErrInvalidOperation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := handleError(tt.err)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestHandleError_PassThrough(t *testing.T) {
	boom := errors.New("connection reset")
	assert.Same(t, boom, handleError(boom))

	serialization := &pgconn.PgError{Code: "40001"}
	assert.ErrorIs(t, handleError(serialization), serialization)
}

func TestNotFound(t *testing.T) {
	assert.ErrorIs(t, notFound(pgx.ErrNoRows, domain.ErrPostNotFound), domain.ErrPostNotFound)
	assert.ErrorIs(t, notFound(fmt.Errorf("scan: %w", pgx.ErrNoRows), domain.ErrPostNotFound), domain.ErrPostNotFound)

	other := errors.New("timeout")
	assert.ErrorIs(t, notFound(other, domain.ErrPostNotFound), other)
}

func TestRowsAffected(t *testing.T) {
	assert.NoError(t, rowsAffected(pgconn.NewCommandTag("UPDATE 1"), nil, domain.ErrPostNotFound))
	assert.ErrorIs(t, rowsAffected(pgconn.NewCommandTag("UPDATE 0"), nil, domain.ErrPostNotFound), domain.ErrPostNotFound)

	dup := &pgconn.PgError{Code: "23505"}
	assert.ErrorIs(t, rowsAffected(pgconn.CommandTag{}, dup, domain.ErrPostNotFound), domain.ErrDuplicate)
}

func TestMediaJSON(t *testing.T) {
	media := []domain.Media{
		{ID: "posts/a", URL: "https://cdn/a.jpg", Type: domain.MediaTypeImage},
		{ID: "posts/b", URL: "https://cdn/b.mp4", Type: domain.MediaTypeVideo},
	}

	raw, err := marshalMedia(media)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"posts/a","url":"https://cdn/a.jpg","type":"image"},{"id":"posts/b","url":"https://cdn/b.mp4","type":"video"}]`, string(raw))
	assert.Equal(t, media, unmarshalMedia(raw))

	empty, err := marshalMedia(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))

	assert.Empty(t, unmarshalMedia(nil))
	assert.Empty(t, unmarshalMedia([]byte("not json")))
}

func TestOneMediaJSON(t *testing.T) {
	raw, err := marshalOneMedia(nil)
	require.NoError(t, err)
	assert.Nil(t, raw)
	assert.Nil(t, unmarshalOneMedia(raw))

	m := &domain.Media{ID: "comments/x", URL: "https://cdn/x.png", Type: domain.MediaTypeImage}
	raw, err = marshalOneMedia(m)
	require.NoError(t, err)
	assert.Equal(t, m, unmarshalOneMedia(raw))
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/agora?sslmode=disable", migrateURL("postgres://u:p@db:5432/agora?sslmode=disable"))
	assert.Equal(t, "pgx5://db/agora", migrateURL("postgresql://db/agora"))
	assert.Equal(t, "pgx5://db/agora", migrateURL("pgx5://db/agora"))
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_init.up.sql")
	assert.Contains(t, names, "000001_init.down.sql")
	assert.Contains(t, names, "000002_posts_keyset_index.up.sql")
	assert.Contains(t, names, "000002_posts_keyset_index.down.sql")

	up, err := migrationsFS.ReadFile("migrations/000001_init.up.sql")
	require.NoError(t, err)
	// handleError dépend de ces noms de contrainte.
	assert.Contains(t, string(up), constraintAccountEmail)
	assert.Contains(t, string(up), constraintAccountUsername)
}
