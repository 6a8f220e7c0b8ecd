package domain

import (
	"time"

	"github.com/google/uuid"
)

// Conversation relie exactement deux profils. La paire est stockée triée
// pour que (A,B) et (B,A) désignent la même ligne.
type Conversation struct {
	ID            string
	ProfileA      string
	ProfileB      string
	LastMessageAt *time.Time
	CreatedAt     time.Time
}

func NewConversation(p1, p2 string) *Conversation {
	a, b := OrderedPair(p1, p2)
	return &Conversation{
		ID:        uuid.NewString(),
		ProfileA:  a,
		ProfileB:  b,
		CreatedAt: time.Now().UTC(),
	}
}

// OrderedPair renvoie les deux identifiants dans l'ordre lexicographique.
func OrderedPair(p1, p2 string) (string, string) {
	if p1 > p2 {
		return p2, p1
	}
	return p1, p2
}

func (c *Conversation) HasParticipant(profileID string) bool {
	return c.ProfileA == profileID || c.ProfileB == profileID
}

// Other renvoie l'autre participant.
func (c *Conversation) Other(profileID string) string {
	if c.ProfileA == profileID {
		return c.ProfileB
	}
	return c.ProfileA
}

type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	RecipientID    string
	Content        string
	Media          []Media
	Delivered      bool
	DeliveredAt    *time.Time
	Edited         bool
	Deleted        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewMessage(conv *Conversation, senderID, content string, media []Media) (*Message, error) {
	c, err := ValidateContent(content)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		RecipientID:    conv.Other(senderID),
		Content:        c,
		Media:          media,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (m *Message) Edit(content string) error {
	c, err := ValidateContent(content)
	if err != nil {
		return err
	}
	m.Content = c
	m.Edited = true
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// SoftDelete efface le contenu mais garde la ligne pour l'historique.
func (m *Message) SoftDelete() {
	m.Content = ""
	m.Media = nil
	m.Deleted = true
	m.UpdatedAt = time.Now().UTC()
}

// --- LIVE UPDATES ---

type LiveEventType string

const (
	LiveMessageCreated LiveEventType = "message.created"
	LiveMessageUpdated LiveEventType = "message.updated"
	LiveMessageDeleted LiveEventType = "message.deleted"
)

// LiveEvent est poussé aux connexions temps réel abonnées à un topic.
type LiveEvent struct {
	Type    LiveEventType
	Payload any // *Message
}

// ProfileTopic est le canal personnel d'un profil.
func ProfileTopic(profileID string) string {
	return "profile:" + profileID
}
