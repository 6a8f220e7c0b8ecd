package domain

import (
	"time"

	"github.com/google/uuid"
)

// Comment est soit un commentaire de premier niveau (ParentID vide), soit une réponse.
type Comment struct {
	ID       string
	PostID   string
	AuthorID string
	ParentID string
	Content  string
	Media    *Media
	Mentions []string

	LikesCount   int
	RepliesCount int

	Edited    bool
	CreatedAt time.Time
	UpdatedAt time.Time

	Replies []*Comment // rempli uniquement par les listings
}

func NewComment(postID, parentID, authorID, content string, mentions []string, media *Media) (*Comment, error) {
	c, err := ValidateContent(content)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		ParentID:  parentID,
		AuthorID:  authorID,
		Content:   c,
		Media:     media,
		Mentions:  mentions,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (c *Comment) IsReply() bool { return c.ParentID != "" }

func (c *Comment) Edit(content string, media *Media) error {
	text, err := ValidateContent(content)
	if err != nil {
		return err
	}
	c.Content = text
	if media != nil {
		c.Media = media
	}
	c.Edited = true
	c.UpdatedAt = time.Now().UTC()
	return nil
}

type CommentCounters struct {
	Likes   int
	Replies int
}

// --- LIKES ---

type LikeTargetType string

const (
	LikeTargetPost    LikeTargetType = "POST"
	LikeTargetComment LikeTargetType = "COMMENT"
)

type LikeTarget struct {
	Type LikeTargetType
	ID   string
}

func (t LikeTarget) Validate() error {
	if t.ID == "" || (t.Type != LikeTargetPost && t.Type != LikeTargetComment) {
		return ErrInvalidLikeTarget
	}
	return nil
}

type Like struct {
	ProfileID string
	Target    LikeTarget
	CreatedAt time.Time
}
