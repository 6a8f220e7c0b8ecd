package ports

import (
	"context"
	"time"

	"github.com/jupiterclapton/agora/internal/core/domain"
)

// --- INPUTS (Command Pattern) ---

type RegisterCmd struct {
	Email     string
	Password  string
	Username  string
	FullName  string
	BirthDate *time.Time
}

type LoginCmd struct {
	Email    string
	Password string
	IP       string
	Device   string
}

type UpdateProfileCmd struct {
	ProfileID string
	FullName  *string // nil = pas de changement
	Bio       *string
	Picture   *Upload
}

type SubscribeCmd struct {
	ProfileID string
	Type      domain.NotificationType
	Endpoint  string
	P256dh    string
	Auth      string
}

type CreatePostCmd struct {
	AuthorID        string
	Content         string
	Privacy         domain.Privacy
	CommentsEnabled bool
	SharesEnabled   bool
	Mentions        []string
	Uploads         []Upload
}

type UpdatePostCmd struct {
	ActorID string
	PostID  string
	Content string
	Privacy *domain.Privacy
	Uploads []Upload
}

type ListPostsCmd struct {
	ViewerID string
	AuthorID string
	Privacy  domain.Privacy // filtre optionnel
	Limit    int
	Cursor   string
}

type AddCommentCmd struct {
	AuthorID string
	PostID   string
	ParentID string // vide = commentaire de premier niveau
	Content  string
	Mentions []string
	Upload   *Upload
}

type UpdateCommentCmd struct {
	ActorID   string
	CommentID string
	Content   string
	Upload    *Upload
}

type CreateStoryCmd struct {
	AuthorID string
	Content  string
	Privacy  domain.Privacy
	Upload   *Upload
}

type SendMessageCmd struct {
	SenderID       string
	ConversationID string
	Content        string
	Uploads        []Upload
}

// --- OUTPUTS ---

type AuthResponse struct {
	Account *domain.Account
	Profile *domain.Profile
	Tokens  *domain.TokenPair
}

type PostPage struct {
	Posts      []*domain.Post
	NextCursor string
}

// --- PORTS PRIMAIRES (Driving) ---

type IdentityService interface {
	Register(ctx context.Context, cmd RegisterCmd) (*AuthResponse, error)
	Login(ctx context.Context, cmd LoginCmd) (*AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error)
	Authenticate(ctx context.Context, accessToken string) (*domain.Principal, error)
	Logout(ctx context.Context, principal domain.Principal) error
	ChangePassword(ctx context.Context, accountID, oldPass, newPass string) error
	ForgotPassword(ctx context.Context, email, resetBaseURL string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	Deactivate(ctx context.Context, accountID string) error
}

// GraphService est l'orchestrateur des relations sociales.
type GraphService interface {
	Follow(ctx context.Context, actorID, targetID string) error
	Unfollow(ctx context.Context, actorID, targetID string) error
	Block(ctx context.Context, actorID, targetID string) error
	Unblock(ctx context.Context, actorID, targetID string) error
	RelationStatus(ctx context.Context, actorID, targetID string) (*domain.RelationStatus, error)
	ListFollowers(ctx context.Context, profileID string, page domain.Page) ([]*domain.Profile, error)
	ListFollowing(ctx context.Context, profileID string, page domain.Page) ([]*domain.Profile, error)
	StreamFollowers(ctx context.Context, profileID string, batchSize int, yield func([]string) error) error
}

type ProfileService interface {
	GetProfile(ctx context.Context, viewerID, profileID string) (*domain.ProfileView, error)
	UpdateProfile(ctx context.Context, cmd UpdateProfileCmd) (*domain.Profile, error)
	SearchProfiles(ctx context.Context, query string, skip int) ([]*domain.Profile, error)
	Subscribe(ctx context.Context, cmd SubscribeCmd) (*domain.Subscription, error)
}

type PostService interface {
	CreatePost(ctx context.Context, cmd CreatePostCmd) (*domain.Post, error)
	GetPost(ctx context.Context, viewerID, postID string) (*domain.Post, error)
	UpdatePost(ctx context.Context, cmd UpdatePostCmd) (*domain.Post, error)
	DeletePost(ctx context.Context, actorID, postID string) error
	ListPostsByAuthor(ctx context.Context, cmd ListPostsCmd) (*PostPage, error)
	SharePost(ctx context.Context, actorID, postID string) error
}

type CommentService interface {
	AddComment(ctx context.Context, cmd AddCommentCmd) (*domain.Comment, error)
	UpdateComment(ctx context.Context, cmd UpdateCommentCmd) (*domain.Comment, error)
	DeleteComment(ctx context.Context, actorID, commentID string) error
	ListPostComments(ctx context.Context, viewerID, postID string, page domain.Page) ([]*domain.Comment, error)
}

type LikeService interface {
	Like(ctx context.Context, actorID string, target domain.LikeTarget) error
	Unlike(ctx context.Context, actorID string, target domain.LikeTarget) error
}

type StoryService interface {
	CreateStory(ctx context.Context, cmd CreateStoryCmd) (*domain.Story, error)
	DeleteStory(ctx context.Context, actorID, storyID string) error
	ListStories(ctx context.Context, viewerID, authorID string) ([]*domain.Story, error)
	ListArchive(ctx context.Context, ownerID string) ([]*domain.Story, error)
	ArchiveExpired(ctx context.Context, now time.Time) (int64, error)
}

type ChatService interface {
	OpenConversation(ctx context.Context, actorID, otherID string) (*domain.Conversation, error)
	GetConversation(ctx context.Context, actorID, otherID string) (*domain.Conversation, error)
	SendMessage(ctx context.Context, cmd SendMessageCmd) (*domain.Message, error)
	UpdateMessage(ctx context.Context, actorID, messageID, content string) (*domain.Message, error)
	DeleteMessage(ctx context.Context, actorID, messageID string) error
	ListMessages(ctx context.Context, actorID, conversationID string, page domain.Page) ([]*domain.Message, error)

	// Présence : appelés par l'adapter temps réel.
	Connect(ctx context.Context, profileID string) error
	Disconnect(ctx context.Context, profileID string) error
}

type FeedService interface {
	DistributePost(ctx context.Context, item *domain.FeedItem) error
	RetractPost(ctx context.Context, item *domain.FeedItem) error
	GetFeed(ctx context.Context, viewerID string, page domain.Page) ([]*domain.Post, error)
}
