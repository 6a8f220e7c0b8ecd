package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotifNewFollower NotificationType = "NEW_FOLLOWER"
	NotifNewLike     NotificationType = "NEW_LIKE"
	NotifNewComment  NotificationType = "NEW_COMMENT"
	NotifNewMention  NotificationType = "NEW_MENTION"
	NotifNewMessage  NotificationType = "NEW_MESSAGE"
)

func ParseNotificationType(s string) (NotificationType, error) {
	switch t := NotificationType(strings.ToUpper(strings.TrimSpace(s))); t {
	case NotifNewFollower, NotifNewLike, NotifNewComment, NotifNewMention, NotifNewMessage:
		return t, nil
	default:
		return "", ErrInvalidNotifType
	}
}

// Notification est le contenu visible d'un push.
type Notification struct {
	Type  NotificationType
	Title string
	Body  string
	URL   string
}

// Recipient associe un destinataire à sa notification.
type Recipient struct {
	ProfileID    string
	Notification Notification
}

// Subscription : au plus un endpoint push par (profil, type de notification).
type Subscription struct {
	ID        string
	ProfileID string
	Type      NotificationType
	Endpoint  string
	P256dh    string
	Auth      string
	CreatedAt time.Time
}

func NewSubscription(profileID string, t NotificationType, endpoint, p256dh, auth string) (*Subscription, error) {
	if strings.TrimSpace(endpoint) == "" || p256dh == "" || auth == "" {
		return nil, ErrInvalidEndpoint
	}
	return &Subscription{
		ID:        uuid.NewString(),
		ProfileID: profileID,
		Type:      t,
		Endpoint:  strings.TrimSpace(endpoint),
		P256dh:    p256dh,
		Auth:      auth,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// --- FABRIQUES DE NOTIFICATIONS ---

func FollowerNotification(actor *Profile) Notification {
	return Notification{
		Type:  NotifNewFollower,
		Title: "New follower",
		Body:  actor.DisplayName() + " started following you",
		URL:   "/profiles/" + actor.ID,
	}
}

func PostLikeNotification(actor *Profile, postID string) Notification {
	return Notification{
		Type:  NotifNewLike,
		Title: "New post like",
		Body:  actor.DisplayName() + " liked your post",
		URL:   "/posts/" + postID,
	}
}

func CommentLikeNotification(actor *Profile, postID string) Notification {
	return Notification{
		Type:  NotifNewLike,
		Title: "New comment like",
		Body:  actor.DisplayName() + " liked your comment",
		URL:   "/posts/" + postID,
	}
}

func CommentNotification(actor *Profile, postID string) Notification {
	return Notification{
		Type:  NotifNewComment,
		Title: "New comment",
		Body:  actor.DisplayName() + " commented on your post",
		URL:   "/posts/" + postID,
	}
}

func ReplyNotification(actor *Profile, postID string) Notification {
	return Notification{
		Type:  NotifNewComment,
		Title: "New reply",
		Body:  actor.DisplayName() + " replied to your comment",
		URL:   "/posts/" + postID,
	}
}

func PostMentionNotification(actor *Profile, postID string) Notification {
	return Notification{
		Type:  NotifNewMention,
		Title: "New post mention",
		Body:  actor.DisplayName() + " mentioned you in a post",
		URL:   "/posts/" + postID,
	}
}

func CommentMentionNotification(actor *Profile, postID string) Notification {
	return Notification{
		Type:  NotifNewMention,
		Title: "New comment mention",
		Body:  actor.DisplayName() + " mentioned you in a comment",
		URL:   "/posts/" + postID,
	}
}

func MessageNotification(actor *Profile, conversationID string) Notification {
	return Notification{
		Type:  NotifNewMessage,
		Title: "New message",
		Body:  actor.DisplayName() + " sent you a message",
		URL:   "/conversations/" + conversationID,
	}
}
