package live

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/agora/internal/core/domain"
)

func TestBroadcast(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sub := client.Subscribe(ctx, "live:profile:bob")
	defer sub.Close()
	_, err := sub.Receive(ctx) // confirmation d'abonnement
	require.NoError(t, err)

	msg := &domain.Message{
		ID:             "m1",
		ConversationID: "c1",
		SenderID:       "alice",
		RecipientID:    "bob",
		Content:        "hello",
		Media:          []domain.Media{{ID: "x", URL: "https://cdn/x", Type: domain.MediaTypeImage}},
		CreatedAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	b := NewRedisBroadcaster(client)
	require.NoError(t, b.Broadcast(ctx, domain.ProfileTopic("bob"), domain.LiveEvent{Type: domain.LiveMessageCreated, Payload: msg}))

	select {
	case got := <-sub.Channel():
		var env struct {
			Type    string     `json:"type"`
			Topic   string     `json:"topic"`
			Payload MessageDTO `json:"payload"`
		}
		require.NoError(t, json.Unmarshal([]byte(got.Payload), &env))
		assert.Equal(t, "message.created", env.Type)
		assert.Equal(t, "profile:bob", env.Topic)
		assert.Equal(t, "m1", env.Payload.ID)
		assert.Equal(t, "hello", env.Payload.Content)
		require.Len(t, env.Payload.Media, 1)
		assert.Equal(t, "image", env.Payload.Media[0].Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no live event received")
	}
}

func TestBroadcast_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	err := NewRedisBroadcaster(client).Broadcast(context.Background(), "profile:x", domain.LiveEvent{Type: domain.LiveMessageDeleted})
	assert.ErrorIs(t, err, domain.ErrDependencyUnavailable)
}

func TestRedisSessions_CountsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	// Deux clients = deux instances de l'API sur le même Redis.
	a := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = a.Close(); _ = b.Close() })

	first, second := NewRedisSessions(a), NewRedisSessions(b)

	n, err := first.Join(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = second.Join(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Positive(t, mr.TTL(SessionPrefix+"bob"))

	n, err = first.Leave(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "bob is still connected to the other instance")

	n, err = second.Leave(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, mr.Exists(SessionPrefix+"bob"))

	// Compteur expiré : Leave ne descend pas sous zéro.
	n, err = first.Leave(ctx, "carol")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, mr.Exists(SessionPrefix+"carol"))
}
