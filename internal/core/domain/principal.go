package domain

import "time"

// Principal est l'identité authentifiée d'une requête.
// Il est construit par le middleware d'auth et passé explicitement aux services.
type Principal struct {
	AccountID string
	ProfileID string
	Username  string
	TokenID   string
	ExpiresAt time.Time
}

// TokenPair regroupe les jetons émis à la connexion.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
