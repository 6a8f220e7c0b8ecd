package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
)

// memStore est un ports.Store en mémoire. WithinTx sérialise les transactions
// et restaure un instantané si fn échoue, comme un ROLLBACK.
// En mode concurrent (newConcurrentMemStore), les transactions s'entrelacent comme
// sous READ COMMITTED : seul LockProfiles les ordonne, et il n'y a pas de ROLLBACK.
type memStore struct {
	*memRepo
	concurrent bool
}

// rowLocks imite SELECT ... FOR UPDATE : un verrou par profil, tenu jusqu'à la fin de la transaction.
type rowLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *rowLocks) get(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

type edge struct{ from, to string }

type likeKey struct {
	profileID string
	target    domain.LikeTarget
}

type subKey struct {
	profileID string
	kind      domain.NotificationType
}

type memData struct {
	accounts      map[string]domain.Account
	profiles      map[string]domain.Profile
	follows       map[edge]time.Time
	blocks        map[edge]time.Time
	posts         map[string]domain.Post
	shares        map[edge]time.Time // from = profil, to = post
	comments      map[string]domain.Comment
	likes         map[likeKey]time.Time
	stories       map[string]domain.Story
	conversations map[string]domain.Conversation
	messages      map[string]domain.Message
	subs          map[subKey]domain.Subscription
}

func newMemData() *memData {
	return &memData{
		accounts:      map[string]domain.Account{},
		profiles:      map[string]domain.Profile{},
		follows:       map[edge]time.Time{},
		blocks:        map[edge]time.Time{},
		posts:         map[string]domain.Post{},
		shares:        map[edge]time.Time{},
		comments:      map[string]domain.Comment{},
		likes:         map[likeKey]time.Time{},
		stories:       map[string]domain.Story{},
		conversations: map[string]domain.Conversation{},
		messages:      map[string]domain.Message{},
		subs:          map[subKey]domain.Subscription{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *memData) clone() *memData {
	return &memData{
		accounts:      cloneMap(d.accounts),
		profiles:      cloneMap(d.profiles),
		follows:       cloneMap(d.follows),
		blocks:        cloneMap(d.blocks),
		posts:         cloneMap(d.posts),
		shares:        cloneMap(d.shares),
		comments:      cloneMap(d.comments),
		likes:         cloneMap(d.likes),
		stories:       cloneMap(d.stories),
		conversations: cloneMap(d.conversations),
		messages:      cloneMap(d.messages),
		subs:          cloneMap(d.subs),
	}
}

// memFaults injecte une erreur sur un appel nommé (ex: "CreateFollow").
type memFaults struct {
	mu     sync.Mutex
	errors map[string]error
}

func (f *memFaults) set(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[method] = err
}

func (f *memFaults) get(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errors[method]
}

type memRepo struct {
	d       *memData
	mu      *sync.Mutex
	locking bool
	faults  *memFaults
	rows    *rowLocks
	held    *[]*sync.Mutex // nil hors transaction
}

func newMemStore() *memStore {
	return &memStore{memRepo: &memRepo{
		d:       newMemData(),
		mu:      &sync.Mutex{},
		locking: true,
		faults:  &memFaults{errors: map[string]error{}},
		rows:    &rowLocks{locks: map[string]*sync.Mutex{}},
	}}
}

func newConcurrentMemStore() *memStore {
	s := newMemStore()
	s.concurrent = true
	return s
}

func (s *memStore) WithinTx(_ context.Context, fn func(repo ports.Repository) error) error {
	var held []*sync.Mutex
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}()

	if s.concurrent {
		return fn(&memRepo{d: s.d, mu: s.mu, locking: true, faults: s.faults, rows: s.rows, held: &held})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.d.clone()
	tx := &memRepo{d: s.d, mu: s.mu, locking: false, faults: s.faults, rows: s.rows, held: &held}
	if err := fn(tx); err != nil {
		*s.d = *snapshot
		return err
	}
	return nil
}

func (r *memRepo) guard() func() {
	if !r.locking {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func (r *memRepo) fault(method string) error {
	return r.faults.get(method)
}

// --- ACCOUNTS ---

func (r *memRepo) CreateAccount(_ context.Context, a *domain.Account) error {
	defer r.guard()()
	for _, existing := range r.d.accounts {
		if existing.Email == a.Email {
			return domain.ErrEmailAlreadyExists
		}
		if strings.EqualFold(existing.Username, a.Username) {
			return domain.ErrUsernameTaken
		}
	}
	r.d.accounts[a.ID] = *a
	return nil
}

func (r *memRepo) GetAccountByID(_ context.Context, id string) (*domain.Account, error) {
	defer r.guard()()
	a, ok := r.d.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &a, nil
}

func (r *memRepo) GetAccountByEmail(_ context.Context, email string) (*domain.Account, error) {
	defer r.guard()()
	for _, a := range r.d.accounts {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r *memRepo) GetAccountByResetToken(_ context.Context, tokenHash string) (*domain.Account, error) {
	defer r.guard()()
	for _, a := range r.d.accounts {
		if a.ResetTokenHash != "" && a.ResetTokenHash == tokenHash {
			return &a, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r *memRepo) UpdateAccount(_ context.Context, a *domain.Account) error {
	defer r.guard()()
	if err := r.fault("UpdateAccount"); err != nil {
		return err
	}
	if _, ok := r.d.accounts[a.ID]; !ok {
		return domain.ErrAccountNotFound
	}
	r.d.accounts[a.ID] = *a
	return nil
}

// --- PROFILES ---

func (r *memRepo) active(p domain.Profile) bool {
	a, ok := r.d.accounts[p.AccountID]
	return !ok || a.IsActive
}

func (r *memRepo) CreateProfile(_ context.Context, p *domain.Profile) error {
	defer r.guard()()
	if err := r.fault("CreateProfile"); err != nil {
		return err
	}
	r.d.profiles[p.ID] = *p
	return nil
}

func (r *memRepo) GetProfile(_ context.Context, id string) (*domain.Profile, error) {
	defer r.guard()()
	p, ok := r.d.profiles[id]
	if !ok || !r.active(p) {
		return nil, domain.ErrProfileNotFound
	}
	return &p, nil
}

func (r *memRepo) GetProfileByAccount(_ context.Context, accountID string) (*domain.Profile, error) {
	defer r.guard()()
	for _, p := range r.d.profiles {
		if p.AccountID == accountID {
			return &p, nil
		}
	}
	return nil, domain.ErrProfileNotFound
}

func (r *memRepo) GetProfiles(_ context.Context, ids []string) ([]*domain.Profile, error) {
	defer r.guard()()
	var out []*domain.Profile
	for _, id := range ids {
		if p, ok := r.d.profiles[id]; ok && r.active(p) {
			out = append(out, &p)
		}
	}
	return out, nil
}

func (r *memRepo) UpdateProfile(_ context.Context, p *domain.Profile) error {
	defer r.guard()()
	stored, ok := r.d.profiles[p.ID]
	if !ok {
		return domain.ErrProfileNotFound
	}
	stored.FullName, stored.Bio, stored.PictureURL, stored.UpdatedAt = p.FullName, p.Bio, p.PictureURL, p.UpdatedAt
	r.d.profiles[p.ID] = stored
	return nil
}

func (r *memRepo) SearchProfiles(_ context.Context, query string, page domain.Page) ([]*domain.Profile, error) {
	defer r.guard()()
	q := strings.ToLower(query)
	var out []*domain.Profile
	for _, p := range r.d.profiles {
		if !r.active(p) {
			continue
		}
		if strings.Contains(strings.ToLower(p.FullName), q) || strings.Contains(strings.ToLower(p.Username), q) {
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return paginate(out, page), nil
}

func (r *memRepo) AdjustProfileCounters(_ context.Context, id string, delta domain.ProfileCounters) error {
	defer r.guard()()
	if err := r.fault("AdjustProfileCounters"); err != nil {
		return err
	}
	p, ok := r.d.profiles[id]
	if !ok {
		return domain.ErrProfileNotFound
	}
	p.FollowersCount += delta.Followers
	p.FollowingCount += delta.Following
	p.PostsCount += delta.Posts
	r.d.profiles[id] = p
	return nil
}

func (r *memRepo) SetPresence(_ context.Context, id string, online bool, at time.Time) error {
	defer r.guard()()
	p, ok := r.d.profiles[id]
	if !ok {
		return domain.ErrProfileNotFound
	}
	p.IsOnline = online
	p.LastSeenAt = &at
	r.d.profiles[id] = p
	return nil
}

// --- GRAPH ---

func (r *memRepo) LockProfiles(_ context.Context, ids ...string) error {
	ids = lo.Uniq(ids)
	sort.Strings(ids)

	if err := func() error {
		defer r.guard()()
		for _, id := range ids {
			if _, ok := r.d.profiles[id]; !ok {
				return domain.ErrProfileNotFound
			}
		}
		return nil
	}(); err != nil {
		return err
	}

	if r.held == nil {
		return nil
	}
	for _, id := range ids {
		m := r.rows.get(id)
		m.Lock()
		*r.held = append(*r.held, m)
	}
	return nil
}

func (r *memRepo) CreateFollow(_ context.Context, followerID, followeeID string) error {
	defer r.guard()()
	if err := r.fault("CreateFollow"); err != nil {
		return err
	}
	e := edge{followerID, followeeID}
	if _, ok := r.d.follows[e]; ok {
		return domain.ErrDuplicate
	}
	r.d.follows[e] = time.Now()
	return nil
}

func (r *memRepo) DeleteFollow(_ context.Context, followerID, followeeID string) (bool, error) {
	defer r.guard()()
	e := edge{followerID, followeeID}
	if _, ok := r.d.follows[e]; !ok {
		return false, nil
	}
	delete(r.d.follows, e)
	return true, nil
}

func (r *memRepo) CreateBlock(_ context.Context, blockerID, blockedID string) error {
	defer r.guard()()
	if err := r.fault("CreateBlock"); err != nil {
		return err
	}
	e := edge{blockerID, blockedID}
	if _, ok := r.d.blocks[e]; ok {
		return domain.ErrDuplicate
	}
	r.d.blocks[e] = time.Now()
	return nil
}

func (r *memRepo) DeleteBlock(_ context.Context, blockerID, blockedID string) (bool, error) {
	defer r.guard()()
	e := edge{blockerID, blockedID}
	if _, ok := r.d.blocks[e]; !ok {
		return false, nil
	}
	delete(r.d.blocks, e)
	return true, nil
}

func (r *memRepo) GetRelationStatus(_ context.Context, actorID, targetID string) (*domain.RelationStatus, error) {
	defer r.guard()()
	_, following := r.d.follows[edge{actorID, targetID}]
	_, followedBy := r.d.follows[edge{targetID, actorID}]
	_, blocking := r.d.blocks[edge{actorID, targetID}]
	_, blockedBy := r.d.blocks[edge{targetID, actorID}]
	return &domain.RelationStatus{
		IsFollowing:  following,
		IsFollowedBy: followedBy,
		IsBlocking:   blocking,
		IsBlockedBy:  blockedBy,
	}, nil
}

func (r *memRepo) ListFollowers(_ context.Context, profileID string, page domain.Page) ([]*domain.Profile, error) {
	defer r.guard()()
	var out []*domain.Profile
	for e := range r.d.follows {
		if e.to == profileID {
			p := r.d.profiles[e.from]
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, page), nil
}

func (r *memRepo) ListFollowing(_ context.Context, profileID string, page domain.Page) ([]*domain.Profile, error) {
	defer r.guard()()
	var out []*domain.Profile
	for e := range r.d.follows {
		if e.from == profileID {
			p := r.d.profiles[e.to]
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, page), nil
}

func (r *memRepo) StreamFollowerIDs(_ context.Context, profileID string, batchSize int, yield func([]string) error) error {
	unlock := r.guard()
	var ids []string
	for e := range r.d.follows {
		if e.to == profileID {
			ids = append(ids, e.from)
		}
	}
	unlock()

	sort.Strings(ids)
	for i := 0; i < len(ids); i += batchSize {
		end := min(i+batchSize, len(ids))
		if err := yield(ids[i:end]); err != nil {
			return err
		}
	}
	return nil
}

// --- POSTS ---

func (r *memRepo) CreatePost(_ context.Context, p *domain.Post) error {
	defer r.guard()()
	if err := r.fault("CreatePost"); err != nil {
		return err
	}
	r.d.posts[p.ID] = *p
	return nil
}

func (r *memRepo) GetPost(_ context.Context, id string) (*domain.Post, error) {
	defer r.guard()()
	p, ok := r.d.posts[id]
	if !ok {
		return nil, domain.ErrPostNotFound
	}
	return &p, nil
}

func (r *memRepo) GetPosts(_ context.Context, ids []string) ([]*domain.Post, error) {
	defer r.guard()()
	var out []*domain.Post
	for _, id := range ids {
		if p, ok := r.d.posts[id]; ok {
			out = append(out, &p)
		}
	}
	return out, nil
}

func (r *memRepo) UpdatePost(_ context.Context, p *domain.Post) error {
	defer r.guard()()
	stored, ok := r.d.posts[p.ID]
	if !ok {
		return domain.ErrPostNotFound
	}
	stored.Content, stored.Privacy, stored.Media, stored.Edited, stored.UpdatedAt = p.Content, p.Privacy, p.Media, p.Edited, p.UpdatedAt
	r.d.posts[p.ID] = stored
	return nil
}

func (r *memRepo) DeletePost(_ context.Context, id string) error {
	defer r.guard()()
	if _, ok := r.d.posts[id]; !ok {
		return domain.ErrPostNotFound
	}
	delete(r.d.posts, id)
	for cid, c := range r.d.comments {
		if c.PostID == id {
			delete(r.d.comments, cid)
		}
	}
	return nil
}

func (r *memRepo) ListPostsByAuthor(_ context.Context, q domain.PostQuery) ([]*domain.Post, error) {
	defer r.guard()()
	allowed := map[domain.Privacy]bool{}
	for _, p := range q.Privacies {
		allowed[p] = true
	}
	var out []*domain.Post
	for _, p := range r.d.posts {
		if p.AuthorID != q.AuthorID || !allowed[p.Privacy] {
			continue
		}
		if !q.Before.IsZero() && !q.Before.Less(&p) {
			continue
		}
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *memRepo) CreateShare(_ context.Context, postID, profileID string, at time.Time) error {
	defer r.guard()()
	e := edge{profileID, postID}
	if _, ok := r.d.shares[e]; ok {
		return domain.ErrDuplicate
	}
	r.d.shares[e] = at
	return nil
}

func (r *memRepo) AdjustPostCounters(_ context.Context, id string, delta domain.PostCounters) error {
	defer r.guard()()
	if err := r.fault("AdjustPostCounters"); err != nil {
		return err
	}
	p, ok := r.d.posts[id]
	if !ok {
		return domain.ErrPostNotFound
	}
	p.LikesCount += delta.Likes
	p.CommentsCount += delta.Comments
	p.SharesCount += delta.Shares
	r.d.posts[id] = p
	return nil
}

// --- COMMENTS ---

func (r *memRepo) CreateComment(_ context.Context, c *domain.Comment) error {
	defer r.guard()()
	r.d.comments[c.ID] = *c
	return nil
}

func (r *memRepo) GetComment(_ context.Context, id string) (*domain.Comment, error) {
	defer r.guard()()
	c, ok := r.d.comments[id]
	if !ok {
		return nil, domain.ErrCommentNotFound
	}
	return &c, nil
}

func (r *memRepo) UpdateComment(_ context.Context, c *domain.Comment) error {
	defer r.guard()()
	stored, ok := r.d.comments[c.ID]
	if !ok {
		return domain.ErrCommentNotFound
	}
	stored.Content, stored.Media, stored.Edited, stored.UpdatedAt = c.Content, c.Media, c.Edited, c.UpdatedAt
	r.d.comments[c.ID] = stored
	return nil
}

func (r *memRepo) DeleteComment(_ context.Context, id string) error {
	defer r.guard()()
	if _, ok := r.d.comments[id]; !ok {
		return domain.ErrCommentNotFound
	}
	delete(r.d.comments, id)
	for cid, c := range r.d.comments {
		if c.ParentID == id {
			delete(r.d.comments, cid)
		}
	}
	return nil
}

func (r *memRepo) ListComments(_ context.Context, postID string, page domain.Page) ([]*domain.Comment, error) {
	defer r.guard()()
	var out []*domain.Comment
	for _, c := range r.d.comments {
		if c.PostID == postID && c.ParentID == "" {
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page), nil
}

func (r *memRepo) ListReplies(_ context.Context, parentIDs []string) ([]*domain.Comment, error) {
	defer r.guard()()
	wanted := map[string]bool{}
	for _, id := range parentIDs {
		wanted[id] = true
	}
	var out []*domain.Comment
	for _, c := range r.d.comments {
		if wanted[c.ParentID] {
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepo) AdjustCommentCounters(_ context.Context, id string, delta domain.CommentCounters) error {
	defer r.guard()()
	c, ok := r.d.comments[id]
	if !ok {
		return domain.ErrCommentNotFound
	}
	c.LikesCount += delta.Likes
	c.RepliesCount += delta.Replies
	r.d.comments[id] = c
	return nil
}

// --- LIKES ---

func (r *memRepo) CreateLike(_ context.Context, l domain.Like) error {
	defer r.guard()()
	if err := r.fault("CreateLike"); err != nil {
		return err
	}
	k := likeKey{l.ProfileID, l.Target}
	if _, ok := r.d.likes[k]; ok {
		return domain.ErrDuplicate
	}
	r.d.likes[k] = l.CreatedAt
	return nil
}

func (r *memRepo) DeleteLike(_ context.Context, profileID string, target domain.LikeTarget) (bool, error) {
	defer r.guard()()
	k := likeKey{profileID, target}
	if _, ok := r.d.likes[k]; !ok {
		return false, nil
	}
	delete(r.d.likes, k)
	return true, nil
}

// --- STORIES ---

func (r *memRepo) CreateStory(_ context.Context, s *domain.Story) error {
	defer r.guard()()
	r.d.stories[s.ID] = *s
	return nil
}

func (r *memRepo) GetStory(_ context.Context, id string) (*domain.Story, error) {
	defer r.guard()()
	s, ok := r.d.stories[id]
	if !ok {
		return nil, domain.ErrStoryNotFound
	}
	return &s, nil
}

func (r *memRepo) DeleteStory(_ context.Context, id string) error {
	defer r.guard()()
	if _, ok := r.d.stories[id]; !ok {
		return domain.ErrStoryNotFound
	}
	delete(r.d.stories, id)
	return nil
}

func (r *memRepo) ListStories(_ context.Context, authorID string, privacies []domain.Privacy, now time.Time) ([]*domain.Story, error) {
	defer r.guard()()
	allowed := map[domain.Privacy]bool{}
	for _, p := range privacies {
		allowed[p] = true
	}
	var out []*domain.Story
	for _, s := range r.d.stories {
		if s.AuthorID == authorID && s.IsVisible && s.ExpiresAt.After(now) && allowed[s.Privacy] {
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepo) ListArchivedStories(_ context.Context, authorID string) ([]*domain.Story, error) {
	defer r.guard()()
	var out []*domain.Story
	for _, s := range r.d.stories {
		if s.AuthorID == authorID && !s.IsVisible {
			out = append(out, &s)
		}
	}
	return out, nil
}

func (r *memRepo) ArchiveExpiredStories(_ context.Context, now time.Time) (int64, error) {
	defer r.guard()()
	var n int64
	for id, s := range r.d.stories {
		if s.IsVisible && !s.ExpiresAt.After(now) {
			s.IsVisible = false
			at := now
			s.ArchivedAt = &at
			r.d.stories[id] = s
			n++
		}
	}
	return n, nil
}

// --- CHAT ---

func (r *memRepo) UpsertConversation(_ context.Context, c *domain.Conversation) (*domain.Conversation, error) {
	defer r.guard()()
	for _, existing := range r.d.conversations {
		if existing.ProfileA == c.ProfileA && existing.ProfileB == c.ProfileB {
			return &existing, nil
		}
	}
	r.d.conversations[c.ID] = *c
	stored := *c
	return &stored, nil
}

func (r *memRepo) GetConversation(_ context.Context, id string) (*domain.Conversation, error) {
	defer r.guard()()
	c, ok := r.d.conversations[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return &c, nil
}

func (r *memRepo) FindConversation(_ context.Context, a, b string) (*domain.Conversation, error) {
	defer r.guard()()
	for _, c := range r.d.conversations {
		if c.ProfileA == a && c.ProfileB == b {
			return &c, nil
		}
	}
	return nil, domain.ErrConversationNotFound
}

func (r *memRepo) TouchConversation(_ context.Context, id string, at time.Time) error {
	defer r.guard()()
	c, ok := r.d.conversations[id]
	if !ok {
		return domain.ErrConversationNotFound
	}
	c.LastMessageAt = &at
	r.d.conversations[id] = c
	return nil
}

func (r *memRepo) CreateMessage(_ context.Context, m *domain.Message) error {
	defer r.guard()()
	r.d.messages[m.ID] = *m
	return nil
}

func (r *memRepo) GetMessage(_ context.Context, id string) (*domain.Message, error) {
	defer r.guard()()
	m, ok := r.d.messages[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	return &m, nil
}

func (r *memRepo) UpdateMessage(_ context.Context, m *domain.Message) error {
	defer r.guard()()
	if _, ok := r.d.messages[m.ID]; !ok {
		return domain.ErrMessageNotFound
	}
	r.d.messages[m.ID] = *m
	return nil
}

func (r *memRepo) ListMessages(_ context.Context, conversationID string, page domain.Page) ([]*domain.Message, error) {
	defer r.guard()()
	var out []*domain.Message
	for _, m := range r.d.messages {
		if m.ConversationID == conversationID {
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page), nil
}

func (r *memRepo) MarkDelivered(_ context.Context, recipientID string, at time.Time) ([]*domain.Message, error) {
	defer r.guard()()
	var out []*domain.Message
	for id, m := range r.d.messages {
		if m.RecipientID == recipientID && !m.Delivered {
			m.Delivered = true
			t := at
			m.DeliveredAt = &t
			r.d.messages[id] = m
			out = append(out, &m)
		}
	}
	return out, nil
}

// --- SUBSCRIPTIONS ---

func (r *memRepo) UpsertSubscription(_ context.Context, s *domain.Subscription) error {
	defer r.guard()()
	r.d.subs[subKey{s.ProfileID, s.Type}] = *s
	return nil
}

func (r *memRepo) GetSubscription(_ context.Context, profileID string, t domain.NotificationType) (*domain.Subscription, error) {
	defer r.guard()()
	s, ok := r.d.subs[subKey{profileID, t}]
	if !ok {
		return nil, domain.ErrSubscriptionNotFound
	}
	return &s, nil
}

func (r *memRepo) DeleteSubscription(_ context.Context, id string) error {
	defer r.guard()()
	for k, s := range r.d.subs {
		if s.ID == id {
			delete(r.d.subs, k)
		}
	}
	return nil
}

func paginate[T any](items []T, page domain.Page) []T {
	if page.Offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if page.Limit > 0 && page.Offset+page.Limit < end {
		end = page.Offset + page.Limit
	}
	return items[page.Offset:end]
}

// --- HELPERS DE TEST ---

func (s *memStore) profile(id string) domain.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.profiles[id]
}

func (s *memStore) post(id string) domain.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.posts[id]
}

func (s *memStore) comment(id string) domain.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.comments[id]
}

func (s *memStore) followCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.d.follows)
}

func (s *memStore) hasFollow(from, to string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.d.follows[edge{from, to}]
	return ok
}

func (s *memStore) hasBlock(from, to string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.d.blocks[edge{from, to}]
	return ok
}

func (s *memStore) postCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.d.posts)
}

// setPostCreatedAt force la date de création, pour fabriquer des égalités d'horodatage.
func (s *memStore) setPostCreatedAt(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.d.posts[id]
	p.CreatedAt = at
	s.d.posts[id] = p
}

func (s *memStore) commentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.d.comments)
}

func (s *memStore) likeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.d.likes)
}
