package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
)

type postFixture struct {
	store    *memStore
	uploader *fakeUploader
	notifier *recordingNotifier
	broker   *fakeBroker
	svc      *PostService
	graph    *GraphService
}

func newPostFixture() *postFixture {
	f := &postFixture{
		store:    newMemStore(),
		uploader: newFakeUploader(),
		notifier: &recordingNotifier{},
		broker:   &fakeBroker{},
	}
	f.svc = NewPostService(f.store, f.uploader, f.notifier, f.broker, testLogger())
	f.graph = NewGraphService(f.store, &recordingNotifier{}, &fakeBroker{}, testLogger())
	return f
}

func (f *postFixture) create(t *testing.T, authorID string, privacy domain.Privacy) *domain.Post {
	t.Helper()
	post, err := f.svc.CreatePost(context.Background(), ports.CreatePostCmd{
		AuthorID:        authorID,
		Content:         "hello " + string(privacy),
		Privacy:         privacy,
		CommentsEnabled: true,
		SharesEnabled:   true,
	})
	require.NoError(t, err)
	return post
}

func TestCreatePost_PersistsAndNotifiesMentions(t *testing.T) {
	f := newPostFixture()
	ctx := context.Background()
	alice := seedProfile(t, f.store, "alice")
	bob := seedProfile(t, f.store, "bob")
	carol := seedProfile(t, f.store, "carol")

	post, err := f.svc.CreatePost(ctx, ports.CreatePostCmd{
		AuthorID: alice.ID,
		Content:  "  trip photos  ",
		Mentions: []string{bob.ID, "ghost", carol.ID, bob.ID},
		Uploads:  []ports.Upload{upload("a.png"), upload("b.png")},
	})
	require.NoError(t, err)

	assert.Equal(t, "trip photos", post.Content)
	assert.Equal(t, domain.PrivacyPublic, post.Privacy)
	assert.Equal(t, []string{bob.ID, carol.ID}, post.Mentions)
	require.Len(t, post.Media, 2)
	assert.Equal(t, "posts/a.png", post.Media[0].ID)
	assert.Equal(t, "posts/b.png", post.Media[1].ID)

	assert.Equal(t, 1, f.store.profile(alice.ID).PostsCount)
	assert.Equal(t, post.Content, f.store.post(post.ID).Content)

	recipients := f.notifier.recipients()
	require.Len(t, recipients, 2)
	assert.Equal(t, bob.ID, recipients[0].ProfileID)
	assert.Equal(t, carol.ID, recipients[1].ProfileID)
	assert.Equal(t, domain.NotifNewMention, recipients[0].Notification.Type)
	assert.Equal(t, "/posts/"+post.ID, recipients[0].Notification.URL)

	require.Len(t, f.broker.created, 1)
	assert.Equal(t, post.ID, f.broker.created[0].ID)
}

func TestCreatePost_UploadFailureAbortsAction(t *testing.T) {
	f := newPostFixture()
	alice := seedProfile(t, f.store, "alice")
	bob := seedProfile(t, f.store, "bob")
	f.uploader.failOn["b.png"] = errBoom

	_, err := f.svc.CreatePost(context.Background(), ports.CreatePostCmd{
		AuthorID: alice.ID,
		Content:  "with media",
		Mentions: []string{bob.ID},
		Uploads:  []ports.Upload{upload("a.png"), upload("b.png")},
	})

	assert.ErrorIs(t, err, domain.ErrMediaUpload)
	assert.ErrorIs(t, err, domain.ErrDependencyUnavailable)
	assert.Zero(t, f.store.postCount())
	assert.Equal(t, 0, f.store.profile(alice.ID).PostsCount)
	assert.Equal(t, []string{"posts/a.png"}, f.uploader.deletedIDs(), "already hosted files are discarded")
	assert.Empty(t, f.notifier.recipients())
	assert.Empty(t, f.broker.created)
}

func TestCreatePost_TxFailureDiscardsMedia(t *testing.T) {
	f := newPostFixture()
	alice := seedProfile(t, f.store, "alice")
	f.store.faults.set("AdjustProfileCounters", errBoom)

	_, err := f.svc.CreatePost(context.Background(), ports.CreatePostCmd{
		AuthorID: alice.ID,
		Content:  "with media",
		Uploads:  []ports.Upload{upload("a.png")},
	})

	assert.ErrorIs(t, err, errBoom)
	assert.Zero(t, f.store.postCount(), "post insert rolled back with the counter")
	assert.Equal(t, []string{"posts/a.png"}, f.uploader.deletedIDs())
}

func TestCreatePost_Validation(t *testing.T) {
	f := newPostFixture()
	alice := seedProfile(t, f.store, "alice")
	ctx := context.Background()

	_, err := f.svc.CreatePost(ctx, ports.CreatePostCmd{AuthorID: alice.ID, Content: "   ", Uploads: []ports.Upload{upload("a.png")}})
	assert.ErrorIs(t, err, domain.ErrInvalidContent)
	assert.Empty(t, f.uploader.uploaded, "nothing is uploaded for an invalid post")

	_, err = f.svc.CreatePost(ctx, ports.CreatePostCmd{AuthorID: alice.ID, Content: "ok", Privacy: "SECRET"})
	assert.ErrorIs(t, err, domain.ErrInvalidPrivacy)

	_, err = f.svc.CreatePost(ctx, ports.CreatePostCmd{AuthorID: "missing", Content: "ok"})
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestGetPost_Visibility(t *testing.T) {
	f := newPostFixture()
	ctx := context.Background()
	alice := seedProfile(t, f.store, "alice")
	follower := seedProfile(t, f.store, "follower")
	stranger := seedProfile(t, f.store, "stranger")
	require.NoError(t, f.graph.Follow(ctx, follower.ID, alice.ID))

	public := f.create(t, alice.ID, domain.PrivacyPublic)
	friends := f.create(t, alice.ID, domain.PrivacyFriends)
	private := f.create(t, alice.ID, domain.PrivacyPrivate)

	cases := []struct {
		viewer  string
		post    *domain.Post
		visible bool
	}{
		{alice.ID, private, true},
		{follower.ID, public, true},
		{follower.ID, friends, true},
		{follower.ID, private, false},
		{stranger.ID, public, true},
		{stranger.ID, friends, false},
	}
	for _, tc := range cases {
		_, err := f.svc.GetPost(ctx, tc.viewer, tc.post.ID)
		if tc.visible {
			assert.NoError(t, err, "%s on %s", tc.viewer, tc.post.Privacy)
		} else {
			assert.ErrorIs(t, err, domain.ErrPostNotFound, "%s on %s", tc.viewer, tc.post.Privacy)
		}
	}

	require.NoError(t, f.graph.Block(ctx, alice.ID, stranger.ID))
	_, err := f.svc.GetPost(ctx, stranger.ID, public.ID)
	assert.ErrorIs(t, err, domain.ErrPostNotFound)
}

func TestListPostsByAuthor_KeysetPagination(t *testing.T) {
	f := newPostFixture()
	ctx := context.Background()
	alice := seedProfile(t, f.store, "alice")
	bob := seedProfile(t, f.store, "bob")

	first := f.create(t, alice.ID, domain.PrivacyPublic)
	f.create(t, alice.ID, domain.PrivacyFriends)
	second := f.create(t, alice.ID, domain.PrivacyPublic)
	third := f.create(t, alice.ID, domain.PrivacyPublic)

	page, err := f.svc.ListPostsByAuthor(ctx, ports.ListPostsCmd{ViewerID: bob.ID, AuthorID: alice.ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Posts, 2)
	assert.Equal(t, third.ID, page.Posts[0].ID)
	assert.Equal(t, second.ID, page.Posts[1].ID)
	require.NotEmpty(t, page.NextCursor)

	page, err = f.svc.ListPostsByAuthor(ctx, ports.ListPostsCmd{ViewerID: bob.ID, AuthorID: alice.ID, Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, first.ID, page.Posts[0].ID)
	assert.Empty(t, page.NextCursor)

	own, err := f.svc.ListPostsByAuthor(ctx, ports.ListPostsCmd{ViewerID: alice.ID, AuthorID: alice.ID, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, own.Posts, 4)

	filtered, err := f.svc.ListPostsByAuthor(ctx, ports.ListPostsCmd{ViewerID: bob.ID, AuthorID: alice.ID, Privacy: domain.PrivacyFriends})
	require.NoError(t, err)
	assert.Empty(t, filtered.Posts, "stranger cannot filter into FRIENDS posts")

	_, err = f.svc.ListPostsByAuthor(ctx, ports.ListPostsCmd{ViewerID: bob.ID, AuthorID: alice.ID, Cursor: "yesterday"})
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}

func TestListPostsByAuthor_TiedTimestampsAcrossPages(t *testing.T) {
	f := newPostFixture()
	ctx := context.Background()
	alice := seedProfile(t, f.store, "alice")

	// Trois posts au même instant : la limite de page tombe au milieu de l'égalité.
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := map[string]bool{}
	for range 3 {
		p := f.create(t, alice.ID, domain.PrivacyPublic)
		f.store.setPostCreatedAt(p.ID, at)
		want[p.ID] = true
	}

	seen := map[string]bool{}
	cursor := ""
	for range 3 {
		page, err := f.svc.ListPostsByAuthor(ctx, ports.ListPostsCmd{ViewerID: alice.ID, AuthorID: alice.ID, Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		for _, p := range page.Posts {
			assert.False(t, seen[p.ID], "post %s returned twice", p.ID)
			seen[p.ID] = true
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	assert.Equal(t, want, seen)
}

func TestPostCursor_RoundTrip(t *testing.T) {
	c := domain.PostCursor{CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 42, time.UTC), ID: "p-1"}
	parsed, err := domain.ParsePostCursor(c.Encode())
	require.NoError(t, err)
	assert.True(t, c.CreatedAt.Equal(parsed.CreatedAt))
	assert.Equal(t, "p-1", parsed.ID)

	_, err = domain.ParsePostCursor("2026-03-01T12:00:00Z")
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}

func TestUpdatePost(t *testing.T) {
	f := newPostFixture()
	ctx := context.Background()
	alice := seedProfile(t, f.store, "alice")
	bob := seedProfile(t, f.store, "bob")
	post := f.create(t, alice.ID, domain.PrivacyPublic)

	_, err := f.svc.UpdatePost(ctx, ports.UpdatePostCmd{ActorID: bob.ID, PostID: post.ID, Content: "hijack"})
	assert.ErrorIs(t, err, domain.ErrNotOwner)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	private := domain.PrivacyPrivate
	updated, err := f.svc.UpdatePost(ctx, ports.UpdatePostCmd{
		ActorID: alice.ID,
		PostID:  post.ID,
		Content: "edited",
		Privacy: &private,
		Uploads: []ports.Upload{upload("c.png")},
	})
	require.NoError(t, err)
	assert.True(t, updated.Edited)

	stored := f.store.post(post.ID)
	assert.Equal(t, "edited", stored.Content)
	assert.Equal(t, domain.PrivacyPrivate, stored.Privacy)
	assert.Len(t, stored.Media, 1)
}

func TestDeletePost(t *testing.T) {
	f := newPostFixture()
	ctx := context.Background()
	alice := seedProfile(t, f.store, "alice")
	bob := seedProfile(t, f.store, "bob")

	post, err := f.svc.CreatePost(ctx, ports.CreatePostCmd{AuthorID: alice.ID, Content: "bye", Uploads: []ports.Upload{upload("a.png")}})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeletePost(ctx, bob.ID, post.ID), domain.ErrNotOwner)
	require.NoError(t, f.svc.DeletePost(ctx, alice.ID, post.ID))

	assert.Zero(t, f.store.postCount())
	assert.Equal(t, 0, f.store.profile(alice.ID).PostsCount)
	assert.Equal(t, []string{"posts/a.png"}, f.uploader.deletedIDs())
	require.Len(t, f.broker.deleted, 1)

	assert.ErrorIs(t, f.svc.DeletePost(ctx, alice.ID, post.ID), domain.ErrPostNotFound)
}

func TestSharePost(t *testing.T) {
	f := newPostFixture()
	ctx := context.Background()
	alice := seedProfile(t, f.store, "alice")
	bob := seedProfile(t, f.store, "bob")
	post := f.create(t, alice.ID, domain.PrivacyPublic)

	require.NoError(t, f.svc.SharePost(ctx, bob.ID, post.ID))
	assert.Equal(t, 1, f.store.post(post.ID).SharesCount)

	assert.ErrorIs(t, f.svc.SharePost(ctx, bob.ID, post.ID), domain.ErrAlreadyShared)
	assert.Equal(t, 1, f.store.post(post.ID).SharesCount)

	closed, err := f.svc.CreatePost(ctx, ports.CreatePostCmd{AuthorID: alice.ID, Content: "no shares"})
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.SharePost(ctx, bob.ID, closed.ID), domain.ErrSharesDisabled)

	private := f.create(t, alice.ID, domain.PrivacyPrivate)
	assert.ErrorIs(t, f.svc.SharePost(ctx, bob.ID, private.ID), domain.ErrPostNotFound)
}
