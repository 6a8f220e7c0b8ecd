package live

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
	"github.com/jupiterclapton/agora/pkg/telemetry"
)

// ChannelPrefix préfixe les canaux Pub/Sub : "live:profile:<id>".
const ChannelPrefix = "live:"

// RedisBroadcaster publie les événements temps réel sur Redis Pub/Sub.
// Chaque instance relaie ensuite à ses propres connexions WebSocket.
type RedisBroadcaster struct {
	client redis.UniversalClient
}

var _ ports.LiveBroadcaster = (*RedisBroadcaster)(nil)

func NewRedisBroadcaster(client redis.UniversalClient) *RedisBroadcaster {
	return &RedisBroadcaster{client: client}
}

// Envelope est la trame JSON reçue par les clients.
type Envelope struct {
	Type    string `json:"type"`
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

type MediaDTO struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

type MessageDTO struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	SenderID       string     `json:"senderId"`
	RecipientID    string     `json:"recipientId"`
	Content        string     `json:"content"`
	Media          []MediaDTO `json:"media"`
	Delivered      bool       `json:"delivered"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty"`
	Edited         bool       `json:"edited"`
	Deleted        bool       `json:"deleted"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func ToMessageDTO(m *domain.Message) MessageDTO {
	media := make([]MediaDTO, len(m.Media))
	for i, md := range m.Media {
		media[i] = MediaDTO{ID: md.ID, URL: md.URL, Type: string(md.Type)}
	}
	return MessageDTO{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		RecipientID:    m.RecipientID,
		Content:        m.Content,
		Media:          media,
		Delivered:      m.Delivered,
		DeliveredAt:    m.DeliveredAt,
		Edited:         m.Edited,
		Deleted:        m.Deleted,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func encodePayload(p any) any {
	switch v := p.(type) {
	case *domain.Message:
		return ToMessageDTO(v)
	default:
		return v
	}
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context, topic string, event domain.LiveEvent) error {
	data, err := json.Marshal(Envelope{
		Type:    string(event.Type),
		Topic:   topic,
		Payload: encodePayload(event.Payload),
	})
	if err != nil {
		telemetry.LiveBroadcasts.WithLabelValues(telemetry.ResultError).Inc()
		return fmt.Errorf("marshal live event: %w", err)
	}

	if err := b.client.Publish(ctx, ChannelPrefix+topic, data).Err(); err != nil {
		telemetry.LiveBroadcasts.WithLabelValues(telemetry.ResultError).Inc()
		return fmt.Errorf("%w: live publish: %v", domain.ErrDependencyUnavailable, err)
	}
	telemetry.LiveBroadcasts.WithLabelValues(telemetry.ResultOK).Inc()
	return nil
}
