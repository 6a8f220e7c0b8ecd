package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
	"github.com/jupiterclapton/agora/pkg/telemetry"
)

var errBoom = errors.New("boom")

// --- NOTIFIER ---

type notifyCall struct {
	actorID    string
	recipients []domain.Recipient
}

// recordingNotifier capture les appels Notify de façon synchrone.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (n *recordingNotifier) Notify(_ context.Context, actorID string, recipients ...domain.Recipient) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{actorID: actorID, recipients: recipients})
}

func (n *recordingNotifier) recipients() []domain.Recipient {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.Recipient
	for _, c := range n.calls {
		out = append(out, c.recipients...)
	}
	return out
}

// --- PUSH ---

type pushCall struct {
	endpoint     string
	notification domain.Notification
}

type fakePush struct {
	mu    sync.Mutex
	sent  []pushCall
	errFn func(sub *domain.Subscription) error
	delay time.Duration
}

func (p *fakePush) Send(ctx context.Context, sub *domain.Subscription, n domain.Notification) error {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if p.errFn != nil {
		if err := p.errFn(sub); err != nil {
			return err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, pushCall{endpoint: sub.Endpoint, notification: n})
	return nil
}

func (p *fakePush) calls() []pushCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pushCall(nil), p.sent...)
}

// --- MEDIA ---

type fakeUploader struct {
	mu       sync.Mutex
	failOn   map[string]error
	uploaded []domain.Media
	deleted  []domain.Media
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{failOn: map[string]error{}}
}

func (u *fakeUploader) Upload(_ context.Context, folder string, f ports.Upload) (*domain.Media, error) {
	if err := u.failOn[f.Filename]; err != nil {
		return nil, err
	}
	m := domain.Media{ID: folder + "/" + f.Filename, URL: "https://cdn.test/" + folder + "/" + f.Filename, Type: domain.MediaTypeImage}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.uploaded = append(u.uploaded, m)
	return &m, nil
}

func (u *fakeUploader) Delete(_ context.Context, m domain.Media) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.deleted = append(u.deleted, m)
	return nil
}

func (u *fakeUploader) deletedIDs() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	ids := make([]string, 0, len(u.deleted))
	for _, m := range u.deleted {
		ids = append(ids, m.ID)
	}
	return ids
}

func upload(name string) ports.Upload {
	return ports.Upload{Filename: name, ContentType: "image/png", Size: 3, Body: strings.NewReader("png")}
}

// --- BROKER ---

type fakeBroker struct {
	mu         sync.Mutex
	err        error
	registered []string
	relations  []domain.RelationEvent
	created    []*domain.Post
	deleted    []*domain.Post
}

func (b *fakeBroker) PublishUserRegistered(_ context.Context, accountID, _, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registered = append(b.registered, accountID)
	return b.err
}

func (b *fakeBroker) PublishRelationChanged(_ context.Context, e domain.RelationEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.relations = append(b.relations, e)
	return b.err
}

func (b *fakeBroker) PublishPostCreated(_ context.Context, p *domain.Post) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created = append(b.created, p)
	return b.err
}

func (b *fakeBroker) PublishPostDeleted(_ context.Context, p *domain.Post) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, p)
	return b.err
}

// --- LIVE ---

type fakeLive struct {
	mu     sync.Mutex
	err    error
	events map[string][]domain.LiveEvent
}

func newFakeLive() *fakeLive {
	return &fakeLive{events: map[string][]domain.LiveEvent{}}
}

func (l *fakeLive) Broadcast(_ context.Context, topic string, e domain.LiveEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.events[topic] = append(l.events[topic], e)
	return nil
}

func (l *fakeLive) on(topic string) []domain.LiveEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.LiveEvent(nil), l.events[topic]...)
}

// --- TIMELINES ---

type fakeTimelines struct {
	mu      sync.Mutex
	err     error
	entries map[string][]*domain.FeedItem
}

func newFakeTimelines() *fakeTimelines {
	return &fakeTimelines{entries: map[string][]*domain.FeedItem{}}
}

func (t *fakeTimelines) AddToTimelines(_ context.Context, ids []string, item *domain.FeedItem) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	for _, id := range ids {
		// Plus récent en tête, comme un ZREVRANGE.
		t.entries[id] = append([]*domain.FeedItem{item}, t.entries[id]...)
	}
	return nil
}

func (t *fakeTimelines) RemoveFromTimeline(_ context.Context, profileID string, item *domain.FeedItem) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.entries[profileID][:0]
	for _, it := range t.entries[profileID] {
		if it.PostID != item.PostID {
			kept = append(kept, it)
		}
	}
	t.entries[profileID] = kept
	return nil
}

func (t *fakeTimelines) GetTimeline(_ context.Context, req domain.FeedRequest) ([]*domain.FeedItem, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	items := t.entries[req.ProfileID]
	if req.Offset >= int64(len(items)) {
		return nil, nil
	}
	end := min(req.Offset+req.Limit, int64(len(items)))
	return items[req.Offset:end], nil
}

func (t *fakeTimelines) timeline(profileID string) []*domain.FeedItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*domain.FeedItem(nil), t.entries[profileID]...)
}

// --- IDENTITÉ ---

// plainHasher préfixe le mot de passe : suffisant pour tester le flux sans argon2.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "hashed:" + p, nil }

// Compare accepte aussi "legacy:" : l'ancien format que Login doit migrer.
func (plainHasher) Compare(hash, p string) error {
	if hash != "hashed:"+p && hash != "legacy:"+p {
		return errors.New("mismatch")
	}
	return nil
}

func (plainHasher) NeedsRehash(hash string) bool { return strings.HasPrefix(hash, "legacy:") }

type fakeTokens struct {
	mu     sync.Mutex
	issued int
}

func (f *fakeTokens) GenerateTokens(a *domain.Account, profileID string) (*domain.TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued++
	return &domain.TokenPair{
		AccessToken:     fmt.Sprintf("access|%s|%s|jti-%d", a.ID, profileID, f.issued),
		RefreshToken:    "refresh|" + a.ID,
		AccessExpiresAt: time.Now().Add(15 * time.Minute),
	}, nil
}

func (f *fakeTokens) ValidateAccess(token string) (*domain.Principal, error) {
	parts := strings.Split(token, "|")
	if len(parts) != 4 || parts[0] != "access" {
		return nil, errors.New("bad token")
	}
	return &domain.Principal{AccountID: parts[1], ProfileID: parts[2], TokenID: parts[3], ExpiresAt: time.Now().Add(15 * time.Minute)}, nil
}

func (f *fakeTokens) ValidateRefresh(token string) (string, error) {
	id, ok := strings.CutPrefix(token, "refresh|")
	if !ok {
		return "", errors.New("bad token")
	}
	return id, nil
}

type fakeRevoker struct {
	mu      sync.Mutex
	err     error
	revoked map[string]time.Duration
}

func newFakeRevoker() *fakeRevoker {
	return &fakeRevoker{revoked: map[string]time.Duration{}}
}

func (r *fakeRevoker) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[tokenID] = ttl
	return nil
}

func (r *fakeRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	_, ok := r.revoked[tokenID]
	return ok, nil
}

type fakeMailer struct {
	mu    sync.Mutex
	err   error
	links map[string]string
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{links: map[string]string{}}
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.links[to] = link
	return nil
}

// --- FIXTURES ---

// seedProfile crée un compte actif et son profil.
func seedProfile(t *testing.T, s *memStore, username string) *domain.Profile {
	t.Helper()
	ctx := context.Background()

	account, err := domain.NewAccount(username+"@agora.test", username, "hashed:password123")
	require.NoError(t, err)
	profile, err := domain.NewProfile(account.ID, account.Username, "Name "+username, nil)
	require.NoError(t, err)

	require.NoError(t, s.CreateAccount(ctx, account))
	require.NoError(t, s.CreateProfile(ctx, profile))
	return profile
}

func seedSubscription(t *testing.T, s *memStore, profileID string, kind domain.NotificationType) *domain.Subscription {
	t.Helper()
	sub, err := domain.NewSubscription(profileID, kind, "https://push.test/"+profileID, "p256dh", "auth")
	require.NoError(t, err)
	require.NoError(t, s.UpsertSubscription(context.Background(), sub))
	return sub
}

func testLogger() *slog.Logger {
	return telemetry.Discard()
}
