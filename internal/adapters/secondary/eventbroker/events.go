package eventbroker

import "time"

const (
	StreamName     = "SOCIAL"
	SubjectPattern = "social.>" // Tous les events social.*

	SubjectUserRegistered = "social.user.registered"
	SubjectPostCreated    = "social.post.created"
	SubjectPostDeleted    = "social.post.deleted"
	subjectRelationPrefix = "social.relation."
)

// Payloads publiés sur le stream. Contrat partagé avec les consommateurs (feed fan-out).

type UserRegisteredEvent struct {
	AccountID string `json:"account_id"`
	ProfileID string `json:"profile_id"`
	Email     string `json:"email"`
}

type RelationChangedEvent struct {
	Kind       string    `json:"kind"`
	ActorID    string    `json:"actor_id"`
	TargetID   string    `json:"target_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

type PostEvent struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content,omitempty"` // Snippet optionnel
	Type      string    `json:"type"`              // "post", "video", "image"
	Privacy   string    `json:"privacy"`
	CreatedAt time.Time `json:"created_at"`
}
