package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	ContentMaxLen      = 255
	StoryContentMinLen = 3
	StoryTTL           = 24 * time.Hour
)

// Privacy contrôle qui peut voir un contenu.
type Privacy string

const (
	PrivacyPublic  Privacy = "PUBLIC"
	PrivacyPrivate Privacy = "PRIVATE"
	PrivacyFriends Privacy = "FRIENDS" // auteur + followers
)

// ParsePrivacy accepte une chaîne vide (valeur par défaut PUBLIC).
func ParsePrivacy(s string) (Privacy, error) {
	switch p := Privacy(strings.ToUpper(strings.TrimSpace(s))); p {
	case "":
		return PrivacyPublic, nil
	case PrivacyPublic, PrivacyPrivate, PrivacyFriends:
		return p, nil
	default:
		return "", ErrInvalidPrivacy
	}
}

// VisiblePrivacies retourne les niveaux qu'un lecteur peut voir chez un auteur.
func VisiblePrivacies(isOwner, isFollower bool) []Privacy {
	switch {
	case isOwner:
		return []Privacy{PrivacyPublic, PrivacyFriends, PrivacyPrivate}
	case isFollower:
		return []Privacy{PrivacyPublic, PrivacyFriends}
	default:
		return []Privacy{PrivacyPublic}
	}
}

// CanView applique la même règle à un contenu unique.
func CanView(p Privacy, isOwner, isFollower bool) bool {
	for _, v := range VisiblePrivacies(isOwner, isFollower) {
		if v == p {
			return true
		}
	}
	return false
}

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
	MediaTypeRaw   MediaType = "raw"
)

// Media est un fichier déjà hébergé par le CDN. ID = identifiant public côté CDN.
type Media struct {
	ID   string
	URL  string
	Type MediaType
}

// ValidateContent vérifie la borne 1..255 commune aux posts, commentaires et messages.
func ValidateContent(content string) (string, error) {
	c := strings.TrimSpace(content)
	n := utf8.RuneCountInString(c)
	if n < 1 || n > ContentMaxLen {
		return "", ErrInvalidContent
	}
	return c, nil
}

// ContentType classe une entrée de timeline.
type ContentType string

const (
	TypePost  ContentType = "post"
	TypeImage ContentType = "image"
	TypeVideo ContentType = "video"
)

// FeedItem est une référence légère stockée dans les timelines.
type FeedItem struct {
	PostID    string
	AuthorID  string
	Type      ContentType
	Privacy   Privacy
	CreatedAt time.Time
}

// FeedRequest encapsule la lecture d'une timeline.
type FeedRequest struct {
	ProfileID string
	Limit     int64
	Offset    int64
}

// Page est une pagination offset/limit classique.
type Page struct {
	Limit  int
	Offset int
}

// Normalize borne la page entre 1 et max éléments.
func (p Page) Normalize(def, max int) Page {
	if p.Limit <= 0 {
		p.Limit = def
	}
	if p.Limit > max {
		p.Limit = max
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
