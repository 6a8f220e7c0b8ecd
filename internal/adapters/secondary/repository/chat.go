package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jupiterclapton/agora/internal/core/domain"
)

const conversationColumns = `id, profile_a, profile_b, last_message_at, created_at`

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := row.Scan(&c.ID, &c.ProfileA, &c.ProfileB, &c.LastMessageAt, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertConversation renvoie la conversation existante pour la paire, ou celle fournie.
// Le DO UPDATE sans effet permet à RETURNING de renvoyer la ligne existante.
func (r *PostgresRepo) UpsertConversation(ctx context.Context, c *domain.Conversation) (*domain.Conversation, error) {
	q := `
		INSERT INTO conversations (id, profile_a, profile_b, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (profile_a, profile_b) DO UPDATE SET profile_a = EXCLUDED.profile_a
		RETURNING ` + conversationColumns
	conv, err := scanConversation(r.db.QueryRow(ctx, q, c.ID, c.ProfileA, c.ProfileB, c.CreatedAt))
	if err != nil {
		return nil, handleError(err)
	}
	return conv, nil
}

func (r *PostgresRepo) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	c, err := scanConversation(r.db.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, domain.ErrConversationNotFound)
	}
	return c, nil
}

func (r *PostgresRepo) FindConversation(ctx context.Context, a, b string) (*domain.Conversation, error) {
	c, err := scanConversation(r.db.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE profile_a = $1 AND profile_b = $2`, a, b))
	if err != nil {
		return nil, notFound(err, domain.ErrConversationNotFound)
	}
	return c, nil
}

func (r *PostgresRepo) TouchConversation(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE conversations SET last_message_at = $2 WHERE id = $1`, id, at)
	return rowsAffected(tag, err, domain.ErrConversationNotFound)
}

// --- MESSAGES ---

const messageColumns = `id, conversation_id, sender_id, recipient_id, content, media,
	delivered, delivered_at, edited, deleted, created_at, updated_at`

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var (
		m         domain.Message
		mediaJSON []byte
	)
	err := row.Scan(
		&m.ID, &m.ConversationID, &m.SenderID, &m.RecipientID, &m.Content, &mediaJSON,
		&m.Delivered, &m.DeliveredAt, &m.Edited, &m.Deleted, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Media = unmarshalMedia(mediaJSON)
	return &m, nil
}

func collectMessages(rows pgx.Rows, err error) ([]*domain.Message, error) {
	if err != nil {
		return nil, handleError(err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Message, error) {
		return scanMessage(row)
	})
}

func (r *PostgresRepo) CreateMessage(ctx context.Context, m *domain.Message) error {
	mediaJSON, err := marshalMedia(m.Media)
	if err != nil {
		return err
	}
	q := `
		INSERT INTO messages (id, conversation_id, sender_id, recipient_id, content, media, delivered, delivered_at, created_at, updated_at)
		VALUES (@id, @conversation_id, @sender_id, @recipient_id, @content, @media, @delivered, @delivered_at, @created_at, @updated_at)
	`
	args := pgx.NamedArgs{
		"id":              m.ID,
		"conversation_id": m.ConversationID,
		"sender_id":       m.SenderID,
		"recipient_id":    m.RecipientID,
		"content":         m.Content,
		"media":           mediaJSON,
		"delivered":       m.Delivered,
		"delivered_at":    m.DeliveredAt,
		"created_at":      m.CreatedAt,
		"updated_at":      m.UpdatedAt,
	}
	_, err = r.db.Exec(ctx, q, args)
	return handleError(err)
}

func (r *PostgresRepo) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	m, err := scanMessage(r.db.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, domain.ErrMessageNotFound)
	}
	return m, nil
}

func (r *PostgresRepo) UpdateMessage(ctx context.Context, m *domain.Message) error {
	mediaJSON, err := marshalMedia(m.Media)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE messages SET content = $1, media = $2, edited = $3, deleted = $4, updated_at = $5 WHERE id = $6`,
		m.Content, mediaJSON, m.Edited, m.Deleted, m.UpdatedAt, m.ID,
	)
	return rowsAffected(tag, err, domain.ErrMessageNotFound)
}

func (r *PostgresRepo) ListMessages(ctx context.Context, conversationID string, page domain.Page) ([]*domain.Message, error) {
	q := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return collectMessages(r.db.Query(ctx, q, conversationID, page.Limit, page.Offset))
}

// MarkDelivered passe en "reçu" tous les messages en attente du destinataire et les renvoie.
func (r *PostgresRepo) MarkDelivered(ctx context.Context, recipientID string, at time.Time) ([]*domain.Message, error) {
	q := `
		UPDATE messages SET delivered = TRUE, delivered_at = $2
		WHERE recipient_id = $1 AND NOT delivered
		RETURNING ` + messageColumns
	return collectMessages(r.db.Query(ctx, q, recipientID, at))
}

// --- ABONNEMENTS PUSH ---

func (r *PostgresRepo) UpsertSubscription(ctx context.Context, s *domain.Subscription) error {
	q := `
		INSERT INTO push_subscriptions (id, profile_id, type, endpoint, p256dh, auth, created_at)
		VALUES (@id, @profile_id, @type, @endpoint, @p256dh, @auth, @created_at)
		ON CONFLICT (profile_id, type) DO UPDATE
		SET endpoint = EXCLUDED.endpoint, p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth, created_at = EXCLUDED.created_at
	`
	args := pgx.NamedArgs{
		"id":         s.ID,
		"profile_id": s.ProfileID,
		"type":       string(s.Type),
		"endpoint":   s.Endpoint,
		"p256dh":     s.P256dh,
		"auth":       s.Auth,
		"created_at": s.CreatedAt,
	}
	_, err := r.db.Exec(ctx, q, args)
	return handleError(err)
}

func (r *PostgresRepo) GetSubscription(ctx context.Context, profileID string, t domain.NotificationType) (*domain.Subscription, error) {
	var (
		s    domain.Subscription
		kind string
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, profile_id, type, endpoint, p256dh, auth, created_at FROM push_subscriptions WHERE profile_id = $1 AND type = $2`,
		profileID, string(t),
	).Scan(&s.ID, &s.ProfileID, &kind, &s.Endpoint, &s.P256dh, &s.Auth, &s.CreatedAt)
	if err != nil {
		return nil, notFound(err, domain.ErrSubscriptionNotFound)
	}
	s.Type = domain.NotificationType(kind)
	return &s, nil
}

func (r *PostgresRepo) DeleteSubscription(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM push_subscriptions WHERE id = $1`, id)
	return handleError(err)
}
