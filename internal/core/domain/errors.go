package domain

import "errors"

// --- FAMILLES D'ERREURS ---
// Les adapters primaires (HTTP, WS) ne testent que ces familles via errors.Is.
var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidOperation      = errors.New("invalid operation")
	ErrForbidden             = errors.New("forbidden")
	ErrConflict              = errors.New("conflict")
	ErrUnauthenticated       = errors.New("unauthenticated")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// kindError porte un message métier précis tout en restant rattaché à sa famille.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// --- ERREURS DU DOMAINE ---
var (
	// Introuvables
	ErrAccountNotFound      = newError(ErrNotFound, "account not found")
	ErrProfileNotFound      = newError(ErrNotFound, "profile not found")
	ErrPostNotFound         = newError(ErrNotFound, "post not found")
	ErrCommentNotFound      = newError(ErrNotFound, "comment not found")
	ErrStoryNotFound        = newError(ErrNotFound, "story not found")
	ErrConversationNotFound = newError(ErrNotFound, "conversation not found")
	ErrMessageNotFound      = newError(ErrNotFound, "message not found")
	ErrSubscriptionNotFound = newError(ErrNotFound, "subscription not found")

	// Graphe social
	ErrSelfFollow       = newError(ErrInvalidOperation, "you cannot follow yourself")
	ErrSelfBlock        = newError(ErrInvalidOperation, "you cannot block yourself")
	ErrAlreadyFollowing = newError(ErrInvalidOperation, "you are already following this profile")
	ErrNotFollowing     = newError(ErrInvalidOperation, "you are not following this profile")
	ErrAlreadyBlocked   = newError(ErrInvalidOperation, "profile is already blocked")
	ErrNotBlocked       = newError(ErrInvalidOperation, "profile is not blocked")
	ErrBlocked          = newError(ErrInvalidOperation, "interaction is blocked between these profiles")

	// Contenu
	ErrAlreadyLiked      = newError(ErrInvalidOperation, "you already liked this content")
	ErrNotLiked          = newError(ErrInvalidOperation, "you have not liked this content")
	ErrCommentsDisabled  = newError(ErrInvalidOperation, "comments are disabled for this post")
	ErrSharesDisabled    = newError(ErrInvalidOperation, "sharing is disabled for this post")
	ErrAlreadyShared     = newError(ErrInvalidOperation, "you already shared this post")
	ErrSelfConversation  = newError(ErrInvalidOperation, "you cannot open a conversation with yourself")
	ErrInvalidContent    = newError(ErrInvalidOperation, "content must be between 1 and 255 characters")
	ErrInvalidStory      = newError(ErrInvalidOperation, "story content must be at least 3 characters")
	ErrInvalidPrivacy    = newError(ErrInvalidOperation, "privacy must be PUBLIC, PRIVATE or FRIENDS")
	ErrInvalidLikeTarget = newError(ErrInvalidOperation, "like target must be a post or a comment")
	ErrInvalidPageToken  = newError(ErrInvalidOperation, "invalid page token")
	ErrInvalidNotifType  = newError(ErrInvalidOperation, "unknown notification type")
	ErrInvalidEndpoint   = newError(ErrInvalidOperation, "subscription endpoint and keys are required")
	ErrInvalidEmail      = newError(ErrInvalidOperation, "invalid email format")
	ErrInvalidUsername   = newError(ErrInvalidOperation, "username must be between 3 and 20 characters")
	ErrInvalidPassword   = newError(ErrInvalidOperation, "password must be between 8 and 64 characters")
	ErrInvalidFullName   = newError(ErrInvalidOperation, "full name must be between 3 and 50 characters")
	ErrInvalidResetToken = newError(ErrInvalidOperation, "reset token is invalid or has expired")
	ErrSamePassword      = newError(ErrInvalidOperation, "new password must differ from the current one")

	// Propriété
	ErrNotOwner       = newError(ErrForbidden, "you are not the owner of this resource")
	ErrNotParticipant = newError(ErrForbidden, "you are not a participant of this conversation")

	// Unicité
	ErrDuplicate          = newError(ErrConflict, "resource already exists")
	ErrEmailAlreadyExists = newError(ErrConflict, "email already exists")
	ErrUsernameTaken      = newError(ErrConflict, "username already taken")

	// Authentification
	ErrNotLoggedIn        = newError(ErrUnauthenticated, "you are not logged in")
	ErrInvalidCredentials = newError(ErrUnauthenticated, "invalid email or password")
	ErrInvalidToken       = newError(ErrUnauthenticated, "invalid token")
	ErrTokenRevoked       = newError(ErrUnauthenticated, "token has been revoked")
	ErrAccountInactive    = newError(ErrUnauthenticated, "account is deactivated")

	// Dépendances externes
	ErrMediaUpload      = newError(ErrDependencyUnavailable, "media upload failed")
	ErrMailDelivery     = newError(ErrDependencyUnavailable, "mail delivery failed")
	ErrSubscriptionGone = newError(ErrDependencyUnavailable, "push subscription expired")
)
