package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jupiterclapton/agora/internal/adapters/secondary/eventbroker"
	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
	"github.com/jupiterclapton/agora/pkg/telemetry"
)

// ConsumerName est le consumer durable partagé par toutes les instances.
const ConsumerName = "feed-fanout"

const handleTimeout = 30 * time.Second

// errMalformed : le message ne sera jamais traitable, inutile de le relivrer.
var errMalformed = errors.New("malformed event")

type FeedConsumer struct {
	js     jetstream.JetStream
	feed   ports.FeedService
	logger *slog.Logger
}

func NewFeedConsumer(js jetstream.JetStream, feed ports.FeedService, logger *slog.Logger) *FeedConsumer {
	return &FeedConsumer{
		js:     js,
		feed:   feed,
		logger: logger.With("component", "events.FeedConsumer"),
	}
}

// Run consomme social.post.created/deleted jusqu'à l'annulation de ctx.
func (c *FeedConsumer) Run(ctx context.Context) error {
	cons, err := c.js.CreateOrUpdateConsumer(ctx, eventbroker.StreamName, jetstream.ConsumerConfig{
		Durable:        ConsumerName,
		FilterSubjects: []string{eventbroker.SubjectPostCreated, eventbroker.SubjectPostDeleted},
		AckPolicy:      jetstream.AckExplicitPolicy,
		AckWait:        handleTimeout + 10*time.Second,
		MaxDeliver:     5,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer %s: %w", ConsumerName, err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		c.onMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to start consumer %s: %w", ConsumerName, err)
	}
	c.logger.Info("🎧 Feed fan-out consumer started", "stream", eventbroker.StreamName, "durable", ConsumerName)

	<-ctx.Done()
	cc.Drain()
	<-cc.Closed()
	c.logger.Info("🛑 Feed fan-out consumer stopped")
	return nil
}

func (c *FeedConsumer) onMessage(ctx context.Context, msg jetstream.Msg) {
	err := c.handle(ctx, msg.Subject(), msg.Headers(), msg.Data())
	switch {
	case err == nil:
		_ = msg.Ack()
	case errors.Is(err, errMalformed):
		_ = msg.Term()
	default:
		// Relivré par JetStream jusqu'à MaxDeliver.
		_ = msg.Nak()
	}
}

// handle traite un événement. Il est séparé de jetstream.Msg pour être testable.
func (c *FeedConsumer) handle(ctx context.Context, subject string, header nats.Header, data []byte) (err error) {
	// 1. Extraction du contexte de trace posé par le publisher
	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(header))

	// 2. Span consommateur
	ctx, span := otel.Tracer("agora/events").Start(ctx, "process "+subject,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.String("messaging.destination.name", subject)),
	)
	defer func() {
		result := telemetry.ResultOK
		switch {
		case errors.Is(err, errMalformed):
			result = telemetry.ResultSkipped
		case err != nil:
			result = telemetry.ResultError
			span.SetStatus(codes.Error, err.Error())
		}
		if err != nil {
			span.RecordError(err)
		}
		telemetry.EventsConsumed.WithLabelValues(subject, result).Inc()
		span.End()
	}()

	var event eventbroker.PostEvent
	if err := json.Unmarshal(data, &event); err != nil || event.ID == "" || event.AuthorID == "" {
		c.logger.ErrorContext(ctx, "❌ Invalid event format", "subject", subject, "error", err)
		return errMalformed
	}

	item := &domain.FeedItem{
		PostID:    event.ID,
		AuthorID:  event.AuthorID,
		Type:      domain.ContentType(event.Type),
		Privacy:   domain.Privacy(event.Privacy),
		CreatedAt: event.CreatedAt,
	}

	// 3. Le contexte porte la trace jusqu'à Redis
	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	c.logger.InfoContext(ctx, "📨 Event received", "subject", subject, "post_id", event.ID)

	switch subject {
	case eventbroker.SubjectPostCreated:
		err = c.feed.DistributePost(ctx, item)
	case eventbroker.SubjectPostDeleted:
		err = c.feed.RetractPost(ctx, item)
	default:
		c.logger.WarnContext(ctx, "unexpected subject", "subject", subject)
		return errMalformed
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "❌ Fan-out failed", "post_id", event.ID, "error", err)
		return err
	}
	return nil
}
