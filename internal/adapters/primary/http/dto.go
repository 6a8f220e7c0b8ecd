package http

import (
	"time"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
)

// --- REQUÊTES ---

type signupRequest struct {
	Email           string     `json:"email" validate:"required,email"`
	Username        string     `json:"username" validate:"required,min=3,max=20"`
	FullName        string     `json:"fullName" validate:"required,min=3,max=50"`
	Password        string     `json:"password" validate:"required,min=8,max=64"`
	PasswordConfirm string     `json:"passwordConfirm" validate:"required,eqfield=Password"`
	BirthDate       *time.Time `json:"birthDate"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=8,max=64"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	Password        string `json:"password" validate:"required,min=8,max=64"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type subscribeRequest struct {
	Type     string `json:"type" validate:"required"`
	Endpoint string `json:"endpoint" validate:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" validate:"required"`
		Auth   string `json:"auth" validate:"required"`
	} `json:"keys"`
}

type openConversationRequest struct {
	ProfileID string `json:"profileId" validate:"required"`
}

type updateMessageRequest struct {
	Content string `json:"content" validate:"required,max=255"`
}

// --- RÉPONSES ---

type mediaDTO struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

func toMediaDTOs(media []domain.Media) []mediaDTO {
	out := make([]mediaDTO, len(media))
	for i, m := range media {
		out[i] = mediaDTO{ID: m.ID, URL: m.URL, Type: string(m.Type)}
	}
	return out
}

func toOneMediaDTO(m *domain.Media) *mediaDTO {
	if m == nil {
		return nil
	}
	return &mediaDTO{ID: m.ID, URL: m.URL, Type: string(m.Type)}
}

type profileDTO struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	FullName       string     `json:"fullName"`
	Bio            string     `json:"bio"`
	PictureURL     string     `json:"picture,omitempty"`
	BirthDate      *time.Time `json:"birthDate,omitempty"`
	FollowersCount int        `json:"followersCount"`
	FollowingCount int        `json:"followingCount"`
	PostsCount     int        `json:"postsCount"`
	IsOnline       bool       `json:"isOnline"`
	LastSeenAt     *time.Time `json:"lastSeenAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func toProfileDTO(p *domain.Profile) profileDTO {
	return profileDTO{
		ID:             p.ID,
		Username:       p.Username,
		FullName:       p.FullName,
		Bio:            p.Bio,
		PictureURL:     p.PictureURL,
		BirthDate:      p.BirthDate,
		FollowersCount: p.FollowersCount,
		FollowingCount: p.FollowingCount,
		PostsCount:     p.PostsCount,
		IsOnline:       p.IsOnline,
		LastSeenAt:     p.LastSeenAt,
		CreatedAt:      p.CreatedAt,
	}
}

func toProfileDTOs(profiles []*domain.Profile) []profileDTO {
	out := make([]profileDTO, len(profiles))
	for i, p := range profiles {
		out[i] = toProfileDTO(p)
	}
	return out
}

type relationDTO struct {
	IsFollowing  bool `json:"isFollowing"`
	IsFollowedBy bool `json:"isFollowedBy"`
	IsBlocking   bool `json:"isBlocking"`
	IsBlockedBy  bool `json:"isBlockedBy"`
}

func toRelationDTO(s domain.RelationStatus) relationDTO {
	return relationDTO{
		IsFollowing:  s.IsFollowing,
		IsFollowedBy: s.IsFollowedBy,
		IsBlocking:   s.IsBlocking,
		IsBlockedBy:  s.IsBlockedBy,
	}
}

type profileViewDTO struct {
	profileDTO
	Relation relationDTO `json:"relation"`
}

type accountDTO struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

type authDTO struct {
	Account      accountDTO `json:"account"`
	Profile      profileDTO `json:"profile"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	ExpiresAt    time.Time  `json:"expiresAt"`
}

func toAuthDTO(res *ports.AuthResponse) authDTO {
	return authDTO{
		Account: accountDTO{
			ID:          res.Account.ID,
			Email:       res.Account.Email,
			Username:    res.Account.Username,
			LastLoginAt: res.Account.LastLoginAt,
		},
		Profile:      toProfileDTO(res.Profile),
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		ExpiresAt:    res.Tokens.AccessExpiresAt,
	}
}

type postDTO struct {
	ID              string     `json:"id"`
	AuthorID        string     `json:"authorId"`
	Content         string     `json:"content"`
	Privacy         string     `json:"privacy"`
	CommentsEnabled bool       `json:"commentsEnabled"`
	SharesEnabled   bool       `json:"sharesEnabled"`
	Media           []mediaDTO `json:"media"`
	Mentions        []string   `json:"mentions"`
	LikesCount      int        `json:"likesCount"`
	CommentsCount   int        `json:"commentsCount"`
	SharesCount     int        `json:"sharesCount"`
	Edited          bool       `json:"edited"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func toPostDTO(p *domain.Post) postDTO {
	mentions := p.Mentions
	if mentions == nil {
		mentions = []string{}
	}
	return postDTO{
		ID:              p.ID,
		AuthorID:        p.AuthorID,
		Content:         p.Content,
		Privacy:         string(p.Privacy),
		CommentsEnabled: p.CommentsEnabled,
		SharesEnabled:   p.SharesEnabled,
		Media:           toMediaDTOs(p.Media),
		Mentions:        mentions,
		LikesCount:      p.LikesCount,
		CommentsCount:   p.CommentsCount,
		SharesCount:     p.SharesCount,
		Edited:          p.Edited,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func toPostDTOs(posts []*domain.Post) []postDTO {
	out := make([]postDTO, len(posts))
	for i, p := range posts {
		out[i] = toPostDTO(p)
	}
	return out
}

type postPageDTO struct {
	Posts      []postDTO `json:"posts"`
	NextCursor string    `json:"nextCursor,omitempty"`
}

type commentDTO struct {
	ID           string       `json:"id"`
	PostID       string       `json:"postId"`
	ParentID     string       `json:"parentId,omitempty"`
	AuthorID     string       `json:"authorId"`
	Content      string       `json:"content"`
	Media        *mediaDTO    `json:"media,omitempty"`
	Mentions     []string     `json:"mentions"`
	LikesCount   int          `json:"likesCount"`
	RepliesCount int          `json:"repliesCount"`
	Edited       bool         `json:"edited"`
	CreatedAt    time.Time    `json:"createdAt"`
	Replies      []commentDTO `json:"replies,omitempty"`
}

func toCommentDTO(c *domain.Comment) commentDTO {
	mentions := c.Mentions
	if mentions == nil {
		mentions = []string{}
	}
	dto := commentDTO{
		ID:           c.ID,
		PostID:       c.PostID,
		ParentID:     c.ParentID,
		AuthorID:     c.AuthorID,
		Content:      c.Content,
		Media:        toOneMediaDTO(c.Media),
		Mentions:     mentions,
		LikesCount:   c.LikesCount,
		RepliesCount: c.RepliesCount,
		Edited:       c.Edited,
		CreatedAt:    c.CreatedAt,
	}
	if len(c.Replies) > 0 {
		dto.Replies = toCommentDTOs(c.Replies)
	}
	return dto
}

func toCommentDTOs(comments []*domain.Comment) []commentDTO {
	out := make([]commentDTO, len(comments))
	for i, c := range comments {
		out[i] = toCommentDTO(c)
	}
	return out
}

type storyDTO struct {
	ID         string     `json:"id"`
	AuthorID   string     `json:"authorId"`
	Content    string     `json:"content"`
	Privacy    string     `json:"privacy"`
	Media      *mediaDTO  `json:"media,omitempty"`
	IsVisible  bool       `json:"isVisible"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	ArchivedAt *time.Time `json:"archivedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func toStoryDTO(s *domain.Story) storyDTO {
	return storyDTO{
		ID:         s.ID,
		AuthorID:   s.AuthorID,
		Content:    s.Content,
		Privacy:    string(s.Privacy),
		Media:      toOneMediaDTO(s.Media),
		IsVisible:  s.IsVisible,
		ExpiresAt:  s.ExpiresAt,
		ArchivedAt: s.ArchivedAt,
		CreatedAt:  s.CreatedAt,
	}
}

func toStoryDTOs(stories []*domain.Story) []storyDTO {
	out := make([]storyDTO, len(stories))
	for i, s := range stories {
		out[i] = toStoryDTO(s)
	}
	return out
}

type conversationDTO struct {
	ID            string     `json:"id"`
	Participants  [2]string  `json:"participants"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func toConversationDTO(c *domain.Conversation) conversationDTO {
	return conversationDTO{
		ID:            c.ID,
		Participants:  [2]string{c.ProfileA, c.ProfileB},
		LastMessageAt: c.LastMessageAt,
		CreatedAt:     c.CreatedAt,
	}
}

type messageDTO struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	SenderID       string     `json:"senderId"`
	RecipientID    string     `json:"recipientId"`
	Content        string     `json:"content"`
	Media          []mediaDTO `json:"media"`
	Delivered      bool       `json:"delivered"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty"`
	Edited         bool       `json:"edited"`
	Deleted        bool       `json:"deleted"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func toMessageDTO(m *domain.Message) messageDTO {
	return messageDTO{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		RecipientID:    m.RecipientID,
		Content:        m.Content,
		Media:          toMediaDTOs(m.Media),
		Delivered:      m.Delivered,
		DeliveredAt:    m.DeliveredAt,
		Edited:         m.Edited,
		Deleted:        m.Deleted,
		CreatedAt:      m.CreatedAt,
	}
}

func toMessageDTOs(messages []*domain.Message) []messageDTO {
	out := make([]messageDTO, len(messages))
	for i, m := range messages {
		out[i] = toMessageDTO(m)
	}
	return out
}

type subscriptionDTO struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Endpoint  string    `json:"endpoint"`
	CreatedAt time.Time `json:"createdAt"`
}

func toSubscriptionDTO(s *domain.Subscription) subscriptionDTO {
	return subscriptionDTO{ID: s.ID, Type: string(s.Type), Endpoint: s.Endpoint, CreatedAt: s.CreatedAt}
}
