package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Profile est la face publique d'un Account : c'est lui qui suit, bloque, publie.
type Profile struct {
	ID         string
	AccountID  string
	Username   string
	FullName   string
	Bio        string
	PictureURL string
	BirthDate  *time.Time

	// Compteurs dénormalisés. Ils ne bougent que par delta atomique dans la
	// même transaction que la ligne qu'ils comptent.
	FollowersCount int
	FollowingCount int
	PostsCount     int

	IsOnline   bool
	LastSeenAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewProfile(accountID, username, fullName string, birthDate *time.Time) (*Profile, error) {
	if err := ValidateFullName(fullName); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Profile{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Username:  strings.TrimSpace(username),
		FullName:  strings.TrimSpace(fullName),
		BirthDate: birthDate,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// DisplayName est utilisé dans le texte des notifications.
func (p *Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Username
}

// ProfileCounters est un delta appliqué en une seule instruction UPDATE.
type ProfileCounters struct {
	Followers int
	Following int
	Posts     int
}

// RelationStatus décrit le lien entre un acteur et une cible (vue UI).
type RelationStatus struct {
	IsFollowing  bool // Actor suit Target
	IsFollowedBy bool // Target suit Actor
	IsBlocking   bool // Actor bloque Target
	IsBlockedBy  bool // Target bloque Actor
}

// Blocked vaut true si un blocage existe dans un sens ou dans l'autre.
func (s RelationStatus) Blocked() bool {
	return s.IsBlocking || s.IsBlockedBy
}

// ProfileView est un profil vu par un autre profil.
type ProfileView struct {
	Profile  *Profile
	Relation RelationStatus
}

// RelationKind identifie une mutation du graphe social.
type RelationKind string

const (
	RelationFollowed   RelationKind = "followed"
	RelationUnfollowed RelationKind = "unfollowed"
	RelationBlocked    RelationKind = "blocked"
	RelationUnblocked  RelationKind = "unblocked"
)

// RelationEvent est publié sur le broker après chaque mutation validée.
type RelationEvent struct {
	Kind       RelationKind
	ActorID    string
	TargetID   string
	OccurredAt time.Time
}
