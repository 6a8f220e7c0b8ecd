package eventbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
)

const snippetLength = 80

// msgPublisher est la partie de jetstream.JetStream utilisée ici.
type msgPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

type NatsBroker struct {
	js     msgPublisher
	logger *slog.Logger
}

var _ ports.EventPublisher = (*NatsBroker)(nil)

// NewNatsBroker s'assure que le Stream existe (Idempotent)
func NewNatsBroker(ctx context.Context, js jetstream.JetStream, logger *slog.Logger) (*NatsBroker, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectPattern},
		Storage:  jetstream.FileStorage, // Persistance sur disque (Important !)
		Replicas: 1,                     // Mettre 3 en cluster
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}

	return newNatsBroker(js, logger), nil
}

func newNatsBroker(js msgPublisher, logger *slog.Logger) *NatsBroker {
	return &NatsBroker{js: js, logger: logger.With("component", "eventbroker")}
}

func (n *NatsBroker) PublishUserRegistered(ctx context.Context, accountID, profileID, email string) error {
	return n.publish(ctx, SubjectUserRegistered, UserRegisteredEvent{
		AccountID: accountID,
		ProfileID: profileID,
		Email:     email,
	})
}

// PublishRelationChanged publie sur social.relation.<kind> pour permettre le filtrage par sujet.
func (n *NatsBroker) PublishRelationChanged(ctx context.Context, event domain.RelationEvent) error {
	return n.publish(ctx, subjectRelationPrefix+string(event.Kind), RelationChangedEvent{
		Kind:       string(event.Kind),
		ActorID:    event.ActorID,
		TargetID:   event.TargetID,
		OccurredAt: event.OccurredAt,
	})
}

func (n *NatsBroker) PublishPostCreated(ctx context.Context, post *domain.Post) error {
	return n.publish(ctx, SubjectPostCreated, newPostEvent(post))
}

func (n *NatsBroker) PublishPostDeleted(ctx context.Context, post *domain.Post) error {
	return n.publish(ctx, SubjectPostDeleted, newPostEvent(post))
}

func newPostEvent(post *domain.Post) PostEvent {
	snippet := []rune(post.Content)
	if len(snippet) > snippetLength {
		snippet = snippet[:snippetLength]
	}
	return PostEvent{
		ID:        post.ID,
		AuthorID:  post.AuthorID,
		Content:   string(snippet),
		Type:      string(post.FeedType()),
		Privacy:   string(post.Privacy),
		CreatedAt: post.CreatedAt,
	}
}

func (n *NatsBroker) publish(ctx context.Context, subject string, payload any) error {
	// 1. Préparation du payload
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  nats.Header{},
	}
	// 2. Injection du trace ID dans les headers NATS
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	// 3. Publication avec confirmation : JetStream garantit que le serveur a persisté le message
	ack, err := n.js.PublishMsg(ctx, msg)
	if err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}

	n.logger.Debug("📢 Event published", "subject", subject, "seq", ack.Sequence)
	return nil
}
