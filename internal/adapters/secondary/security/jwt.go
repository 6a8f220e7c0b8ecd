package security

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	defaultIssuer = "agora-identity"
)

var ErrWrongTokenType = errors.New("wrong token type")

// AccountClaims étend les claims standards JWT
type AccountClaims struct {
	ProfileID string `json:"profile_id,omitempty"`
	Username  string `json:"username,omitempty"`
	Type      string `json:"typ"` // "access" ou "refresh"
	jwt.RegisteredClaims
}

type JWTProvider struct {
	privateKey    *rsa.PrivateKey
	publicKey     *rsa.PublicKey
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	issuer        string
	now           func() time.Time
}

var _ ports.TokenProvider = (*JWTProvider)(nil)

// NewJWTProvider charge les clés RSA depuis des PEM
func NewJWTProvider(privateKeyPEM, publicKeyPEM []byte) (*JWTProvider, error) {
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	return &JWTProvider{
		privateKey:    privKey,
		publicKey:     pubKey,
		accessExpiry:  15 * time.Minute,   // Court
		refreshExpiry: 7 * 24 * time.Hour, // Long
		issuer:        defaultIssuer,
		now:           time.Now,
	}, nil
}

// GenerateTokens crée la paire Access + Refresh. Chaque jeton a un JTI unique (révocation).
func (j *JWTProvider) GenerateTokens(account *domain.Account, profileID string) (*domain.TokenPair, error) {
	now := j.now()
	accessExp := now.Add(j.accessExpiry)
	refreshExp := now.Add(j.refreshExpiry)

	// 1. Access Token
	access, err := j.sign(AccountClaims{
		ProfileID:        profileID,
		Username:         account.Username,
		Type:             tokenTypeAccess,
		RegisteredClaims: j.registered(account.ID, now, accessExp),
	})
	if err != nil {
		return nil, err
	}

	// 2. Refresh Token : sert juste à identifier le compte pour renouveler
	refresh, err := j.sign(AccountClaims{
		Type:             tokenTypeRefresh,
		RegisteredClaims: j.registered(account.ID, now, refreshExp),
	})
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (j *JWTProvider) registered(subject string, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    j.issuer,
		Subject:   subject,
		ID:        uuid.NewString(),
	}
}

// Signature avec RS256 et clé privée
func (j *JWTProvider) sign(claims AccountClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(j.privateKey)
}

func (j *JWTProvider) ValidateAccess(token string) (*domain.Principal, error) {
	claims, err := j.parse(token, tokenTypeAccess)
	if err != nil {
		return nil, err
	}
	return &domain.Principal{
		AccountID: claims.Subject,
		ProfileID: claims.ProfileID,
		Username:  claims.Username,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (j *JWTProvider) ValidateRefresh(token string) (string, error) {
	claims, err := j.parse(token, tokenTypeRefresh)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (j *JWTProvider) parse(tokenString, wantType string) (*AccountClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccountClaims{}, func(token *jwt.Token) (any, error) {
		// Empêche les attaques où l'attaquant force l'algo à "None" ou "HS256"
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.publicKey, nil
	},
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return nil, err // Token expiré ou signature invalide
	}

	claims, ok := token.Claims.(*AccountClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	// Un refresh token ne doit jamais ouvrir une session.
	if claims.Type != wantType {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
