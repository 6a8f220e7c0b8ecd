package eventbroker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/pkg/telemetry"
)

type fakeJS struct {
	err  error
	msgs []*nats.Msg
}

func (f *fakeJS) PublishMsg(_ context.Context, msg *nats.Msg, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.msgs = append(f.msgs, msg)
	return &jetstream.PubAck{Stream: StreamName, Sequence: uint64(len(f.msgs))}, nil
}

func TestPublishPostCreated(t *testing.T) {
	js := &fakeJS{}
	broker := newNatsBroker(js, telemetry.Discard())
	created := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	post := &domain.Post{
		ID:        "p1",
		AuthorID:  "a1",
		Content:   strings.Repeat("é", 100),
		Privacy:   domain.PrivacyFriends,
		Media:     []domain.Media{{ID: "m", Type: domain.MediaTypeVideo}},
		CreatedAt: created,
	}
	require.NoError(t, broker.PublishPostCreated(context.Background(), post))

	require.Len(t, js.msgs, 1)
	assert.Equal(t, SubjectPostCreated, js.msgs[0].Subject)

	var event PostEvent
	require.NoError(t, json.Unmarshal(js.msgs[0].Data, &event))
	assert.Equal(t, "p1", event.ID)
	assert.Equal(t, "a1", event.AuthorID)
	assert.Equal(t, "video", event.Type)
	assert.Equal(t, "FRIENDS", event.Privacy)
	assert.Len(t, []rune(event.Content), snippetLength)
	assert.True(t, created.Equal(event.CreatedAt))
}

func TestPublishRelationChanged_Subject(t *testing.T) {
	js := &fakeJS{}
	broker := newNatsBroker(js, telemetry.Discard())

	err := broker.PublishRelationChanged(context.Background(), domain.RelationEvent{
		Kind: domain.RelationBlocked, ActorID: "a", TargetID: "b", OccurredAt: time.Now(),
	})
	require.NoError(t, err)
	require.Len(t, js.msgs, 1)
	assert.Equal(t, "social.relation.blocked", js.msgs[0].Subject)

	var event RelationChangedEvent
	require.NoError(t, json.Unmarshal(js.msgs[0].Data, &event))
	assert.Equal(t, "blocked", event.Kind)
	assert.Equal(t, "b", event.TargetID)
}

func TestPublish_InjectsTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	js := &fakeJS{}
	broker := newNatsBroker(js, telemetry.Discard())
	require.NoError(t, broker.PublishUserRegistered(ctx, "acc", "prof", "a@b.c"))

	require.Len(t, js.msgs, 1)
	assert.Contains(t, js.msgs[0].Header.Get("traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")
}

func TestPublish_Error(t *testing.T) {
	boom := errors.New("no responders")
	broker := newNatsBroker(&fakeJS{err: boom}, telemetry.Discard())

	err := broker.PublishPostDeleted(context.Background(), &domain.Post{ID: "p1"})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), SubjectPostDeleted)
}
