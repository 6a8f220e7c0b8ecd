package domain

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Post struct {
	ID              string
	AuthorID        string
	Content         string
	Privacy         Privacy
	CommentsEnabled bool
	SharesEnabled   bool
	Media           []Media
	Mentions        []string

	LikesCount    int
	CommentsCount int
	SharesCount   int

	Edited    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPost valide le contenu et fixe l'identité côté application.
func NewPost(authorID, content string, privacy Privacy, commentsEnabled, sharesEnabled bool, mentions []string, media []Media) (*Post, error) {
	c, err := ValidateContent(content)
	if err != nil {
		return nil, err
	}
	if privacy == "" {
		privacy = PrivacyPublic
	}
	now := time.Now().UTC()
	return &Post{
		ID:              uuid.NewString(),
		AuthorID:        authorID,
		Content:         c,
		Privacy:         privacy,
		CommentsEnabled: commentsEnabled,
		SharesEnabled:   sharesEnabled,
		Media:           media,
		Mentions:        mentions,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Edit remplace le texte, ajoute les nouveaux médias et marque le post comme modifié.
func (p *Post) Edit(content string, privacy *Privacy, media []Media) error {
	c, err := ValidateContent(content)
	if err != nil {
		return err
	}
	p.Content = c
	if privacy != nil {
		p.Privacy = *privacy
	}
	p.Media = append(p.Media, media...)
	p.Edited = true
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// FeedType déduit le type de timeline à partir du premier média.
func (p *Post) FeedType() ContentType {
	if len(p.Media) == 0 {
		return TypePost
	}
	switch p.Media[0].Type {
	case MediaTypeVideo:
		return TypeVideo
	case MediaTypeImage:
		return TypeImage
	default:
		return TypePost
	}
}

// PostCounters est un delta atomique sur les compteurs d'un post.
type PostCounters struct {
	Likes    int
	Comments int
	Shares   int
}

// PostQuery filtre les posts d'un auteur en pagination keyset.
type PostQuery struct {
	AuthorID  string
	Privacies []Privacy
	Limit     int
	Before    PostCursor // zéro = première page
}

// PostCursor est la clé keyset (created_at, id) du dernier post vu.
// L'id départage les posts créés au même instant.
type PostCursor struct {
	CreatedAt time.Time
	ID        string
}

func (c PostCursor) IsZero() bool {
	return c.ID == "" && c.CreatedAt.IsZero()
}

// CursorAfter renvoie la position juste après p.
func CursorAfter(p *Post) PostCursor {
	return PostCursor{CreatedAt: p.CreatedAt, ID: p.ID}
}

// Encode produit un jeton opaque pour l'API.
func (c PostCursor) Encode() string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func ParsePostCursor(token string) (PostCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return PostCursor{}, ErrInvalidPageToken
	}
	ts, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return PostCursor{}, ErrInvalidPageToken
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return PostCursor{}, ErrInvalidPageToken
	}
	return PostCursor{CreatedAt: t, ID: id}, nil
}

// Less indique si p vient strictement après le curseur dans l'ordre (created_at DESC, id DESC).
func (c PostCursor) Less(p *Post) bool {
	if p.CreatedAt.Equal(c.CreatedAt) {
		return p.ID < c.ID
	}
	return p.CreatedAt.Before(c.CreatedAt)
}
