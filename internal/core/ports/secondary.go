package ports

import (
	"context"
	"io"
	"time"

	"github.com/jupiterclapton/agora/internal/core/domain"
)

// --- PERSISTANCE (DB) ---
// Les repositories renvoient des erreurs du domaine : ErrXxxNotFound, ou
// domain.ErrDuplicate (famille ErrConflict) quand une contrainte d'unicité saute.

type AccountRepository interface {
	CreateAccount(ctx context.Context, account *domain.Account) error
	GetAccountByID(ctx context.Context, id string) (*domain.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetAccountByResetToken(ctx context.Context, tokenHash string) (*domain.Account, error)
	UpdateAccount(ctx context.Context, account *domain.Account) error
}

type ProfileRepository interface {
	CreateProfile(ctx context.Context, profile *domain.Profile) error
	// GetProfile ne renvoie que les profils dont le compte est actif.
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
	GetProfileByAccount(ctx context.Context, accountID string) (*domain.Profile, error)
	GetProfiles(ctx context.Context, ids []string) ([]*domain.Profile, error)
	UpdateProfile(ctx context.Context, profile *domain.Profile) error
	SearchProfiles(ctx context.Context, query string, page domain.Page) ([]*domain.Profile, error)
	// AdjustProfileCounters applique un delta atomique (SET n = n + delta).
	AdjustProfileCounters(ctx context.Context, id string, delta domain.ProfileCounters) error
	SetPresence(ctx context.Context, id string, online bool, at time.Time) error
}

// GraphRepository stocke chaque arête (follow ou block) comme UNE ligne (from, to).
// Les deux vues (following/followers, blockList/blockedBy) lisent cette même ligne.
type GraphRepository interface {
	// LockProfiles verrouille les profils jusqu'à la fin de la transaction, dans l'ordre des ids triés.
	// Renvoie ErrProfileNotFound si l'un d'eux n'existe pas (actif ou non).
	LockProfiles(ctx context.Context, ids ...string) error
	CreateFollow(ctx context.Context, followerID, followeeID string) error
	// DeleteFollow renvoie false si l'arête n'existait pas.
	DeleteFollow(ctx context.Context, followerID, followeeID string) (bool, error)
	CreateBlock(ctx context.Context, blockerID, blockedID string) error
	DeleteBlock(ctx context.Context, blockerID, blockedID string) (bool, error)
	GetRelationStatus(ctx context.Context, actorID, targetID string) (*domain.RelationStatus, error)
	ListFollowers(ctx context.Context, profileID string, page domain.Page) ([]*domain.Profile, error)
	ListFollowing(ctx context.Context, profileID string, page domain.Page) ([]*domain.Profile, error)

	// StreamFollowerIDs parcourt les followers par paquets via le callback 'yield'.
	StreamFollowerIDs(ctx context.Context, profileID string, batchSize int, yield func([]string) error) error
}

type PostRepository interface {
	CreatePost(ctx context.Context, post *domain.Post) error
	GetPost(ctx context.Context, id string) (*domain.Post, error)
	GetPosts(ctx context.Context, ids []string) ([]*domain.Post, error)
	UpdatePost(ctx context.Context, post *domain.Post) error
	DeletePost(ctx context.Context, id string) error
	ListPostsByAuthor(ctx context.Context, q domain.PostQuery) ([]*domain.Post, error)
	CreateShare(ctx context.Context, postID, profileID string, at time.Time) error
	AdjustPostCounters(ctx context.Context, id string, delta domain.PostCounters) error
}

type CommentRepository interface {
	CreateComment(ctx context.Context, comment *domain.Comment) error
	GetComment(ctx context.Context, id string) (*domain.Comment, error)
	UpdateComment(ctx context.Context, comment *domain.Comment) error
	DeleteComment(ctx context.Context, id string) error
	// ListComments renvoie les commentaires de premier niveau, plus récents d'abord.
	ListComments(ctx context.Context, postID string, page domain.Page) ([]*domain.Comment, error)
	ListReplies(ctx context.Context, parentIDs []string) ([]*domain.Comment, error)
	AdjustCommentCounters(ctx context.Context, id string, delta domain.CommentCounters) error
}

type LikeRepository interface {
	CreateLike(ctx context.Context, like domain.Like) error
	DeleteLike(ctx context.Context, profileID string, target domain.LikeTarget) (bool, error)
}

type StoryRepository interface {
	CreateStory(ctx context.Context, story *domain.Story) error
	GetStory(ctx context.Context, id string) (*domain.Story, error)
	DeleteStory(ctx context.Context, id string) error
	// ListStories renvoie les stories visibles et non expirées d'un auteur.
	ListStories(ctx context.Context, authorID string, privacies []domain.Privacy, now time.Time) ([]*domain.Story, error)
	ListArchivedStories(ctx context.Context, authorID string) ([]*domain.Story, error)
	// ArchiveExpiredStories masque en une seule instruction toutes les stories expirées.
	ArchiveExpiredStories(ctx context.Context, now time.Time) (int64, error)
}

type ChatRepository interface {
	// UpsertConversation est idempotent sur la paire ordonnée.
	UpsertConversation(ctx context.Context, conv *domain.Conversation) (*domain.Conversation, error)
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)
	FindConversation(ctx context.Context, profileA, profileB string) (*domain.Conversation, error)
	TouchConversation(ctx context.Context, id string, at time.Time) error
	CreateMessage(ctx context.Context, msg *domain.Message) error
	GetMessage(ctx context.Context, id string) (*domain.Message, error)
	UpdateMessage(ctx context.Context, msg *domain.Message) error
	ListMessages(ctx context.Context, conversationID string, page domain.Page) ([]*domain.Message, error)
	// MarkDelivered marque comme reçus tous les messages en attente d'un destinataire.
	MarkDelivered(ctx context.Context, recipientID string, at time.Time) ([]*domain.Message, error)
}

type SubscriptionRepository interface {
	UpsertSubscription(ctx context.Context, sub *domain.Subscription) error
	GetSubscription(ctx context.Context, profileID string, t domain.NotificationType) (*domain.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error
}

// Repository regroupe tous les accès utilisables dans une même transaction.
type Repository interface {
	AccountRepository
	ProfileRepository
	GraphRepository
	PostRepository
	CommentRepository
	LikeRepository
	StoryRepository
	ChatRepository
	SubscriptionRepository
}

// Store ouvre des transactions. fn voit un Repository lié à la transaction :
// si fn renvoie une erreur, tout est annulé.
type Store interface {
	Repository
	WithinTx(ctx context.Context, fn func(repo Repository) error) error
}

// --- TIMELINES (REDIS) ---

type TimelineRepository interface {
	AddToTimelines(ctx context.Context, profileIDs []string, item *domain.FeedItem) error
	RemoveFromTimeline(ctx context.Context, profileID string, item *domain.FeedItem) error
	GetTimeline(ctx context.Context, req domain.FeedRequest) ([]*domain.FeedItem, error)
}

// --- MESSAGERIE (BROKER) ---

// EventPublisher notifie les consommateurs asynchrones (fan-out, analytics).
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, accountID, profileID, email string) error
	PublishRelationChanged(ctx context.Context, event domain.RelationEvent) error
	PublishPostCreated(ctx context.Context, post *domain.Post) error
	PublishPostDeleted(ctx context.Context, post *domain.Post) error
}

// --- SÉCURITÉ (CRYPTO) ---

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
	// NeedsRehash signale un hash calculé avec un coût différent du coût courant.
	NeedsRehash(hash string) bool
}

type TokenProvider interface {
	GenerateTokens(account *domain.Account, profileID string) (*domain.TokenPair, error)
	ValidateAccess(token string) (*domain.Principal, error)
	// ValidateRefresh renvoie l'AccountID porté par un refresh token.
	ValidateRefresh(token string) (string, error)
}

// TokenRevoker tient la liste des access tokens révoqués jusqu'à leur expiration.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// --- SERVICES EXTERNES ---

// Upload est un fichier brut reçu par un adapter primaire.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type MediaUploader interface {
	Upload(ctx context.Context, folder string, file Upload) (*domain.Media, error)
	Delete(ctx context.Context, media domain.Media) error
}

// PushSender envoie un push Web. domain.ErrSubscriptionGone signale un endpoint mort.
type PushSender interface {
	Send(ctx context.Context, sub *domain.Subscription, n domain.Notification) error
}

type Mailer interface {
	SendPasswordReset(ctx context.Context, to, resetURL string) error
}

// LiveBroadcaster diffuse un événement à toutes les connexions d'un topic, toutes instances confondues.
type LiveBroadcaster interface {
	Broadcast(ctx context.Context, topic string, event domain.LiveEvent) error
}

// Notifier déclenche les pushs best-effort après commit.
type Notifier interface {
	Notify(ctx context.Context, actorID string, recipients ...domain.Recipient)
}
