package domain

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Bornes de validation des identifiants
const (
	UsernameMinLen = 3
	UsernameMaxLen = 20
	PasswordMinLen = 8
	PasswordMaxLen = 64
	FullNameMinLen = 3
	FullNameMaxLen = 50

	// ResetTokenTTL est la durée de vie d'un lien de réinitialisation de mot de passe.
	ResetTokenTTL = 10 * time.Minute
)

// --- ENTITÉ ---

// Account porte les identifiants de connexion. Il possède exactement un Profile.
type Account struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	IsActive     bool // false = soft delete, jamais de suppression physique
	LastLoginAt  *time.Time

	// Réinitialisation du mot de passe : on ne stocke que le SHA-256 du jeton.
	ResetTokenHash      string
	ResetTokenExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// --- FACTORY ---

// NewAccount crée un compte actif après validation des invariants.
func NewAccount(email, username, passwordHash string) (*Account, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Account{
		ID:           uuid.NewString(),
		Email:        NormalizeEmail(email),
		Username:     strings.TrimSpace(username),
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// --- COMPORTEMENTS ---

func (a *Account) UpdatePassword(newHash string) {
	a.PasswordHash = newHash
	a.ClearResetToken()
	a.touch()
}

func (a *Account) RecordLogin(at time.Time) {
	a.LastLoginAt = &at
	a.touch()
}

// SetResetToken enregistre l'empreinte d'un jeton valable ResetTokenTTL.
func (a *Account) SetResetToken(tokenHash string, now time.Time) {
	expires := now.Add(ResetTokenTTL)
	a.ResetTokenHash = tokenHash
	a.ResetTokenExpiresAt = &expires
	a.touch()
}

func (a *Account) ClearResetToken() {
	a.ResetTokenHash = ""
	a.ResetTokenExpiresAt = nil
}

// ResetTokenValid indique si le jeton en cours est encore utilisable à l'instant now.
func (a *Account) ResetTokenValid(now time.Time) bool {
	return a.ResetTokenHash != "" && a.ResetTokenExpiresAt != nil && now.Before(*a.ResetTokenExpiresAt)
}

func (a *Account) Deactivate() {
	a.IsActive = false
	a.touch()
}

func (a *Account) touch() {
	a.UpdatedAt = time.Now().UTC()
}

// --- VALIDATEURS ---

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateEmail(email string) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

func ValidateUsername(username string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(username))
	if n < UsernameMinLen || n > UsernameMaxLen {
		return ErrInvalidUsername
	}
	return nil
}

func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < PasswordMinLen || n > PasswordMaxLen {
		return ErrInvalidPassword
	}
	return nil
}

func ValidateFullName(fullName string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(fullName))
	if n < FullNameMinLen || n > FullNameMaxLen {
		return ErrInvalidFullName
	}
	return nil
}
