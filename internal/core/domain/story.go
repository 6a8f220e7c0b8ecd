package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Story est un contenu éphémère : visible jusqu'à ExpiresAt puis archivé.
type Story struct {
	ID         string
	AuthorID   string
	Content    string
	Privacy    Privacy
	Media      *Media
	IsVisible  bool
	ExpiresAt  time.Time
	ArchivedAt *time.Time
	CreatedAt  time.Time
}

func NewStory(authorID, content string, privacy Privacy, media *Media, now time.Time, ttl time.Duration) (*Story, error) {
	c := strings.TrimSpace(content)
	if n := utf8.RuneCountInString(c); n < StoryContentMinLen || n > ContentMaxLen {
		return nil, ErrInvalidStory
	}
	if privacy == "" {
		privacy = PrivacyPublic
	}
	if ttl <= 0 {
		ttl = StoryTTL
	}
	return &Story{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Content:   c,
		Privacy:   privacy,
		Media:     media,
		IsVisible: true,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}, nil
}

// Expired indique si la story doit passer dans les archives.
func (s *Story) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
