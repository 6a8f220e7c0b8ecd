package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
)

const resetTokenBytes = 32

// IdentityService implémente ports.IdentityService : comptes, sessions, mots de passe.
type IdentityService struct {
	store         ports.Store
	hasher        ports.PasswordHasher
	tokenProvider ports.TokenProvider
	revoker       ports.TokenRevoker
	mailer        ports.Mailer
	broker        ports.EventPublisher
	logger        *slog.Logger
}

func NewIdentityService(
	store ports.Store,
	hasher ports.PasswordHasher,
	tokens ports.TokenProvider,
	revoker ports.TokenRevoker,
	mailer ports.Mailer,
	broker ports.EventPublisher,
	logger *slog.Logger,
) *IdentityService {
	return &IdentityService{
		store:         store,
		hasher:        hasher,
		tokenProvider: tokens,
		revoker:       revoker,
		mailer:        mailer,
		broker:        broker,
		logger:        logger.With("component", "identity"),
	}
}

// --- AUTHENTIFICATION ---

func (s *IdentityService) Register(ctx context.Context, cmd ports.RegisterCmd) (*ports.AuthResponse, error) {
	// 1. Fail Fast : invariants avant le hachage (coûteux)
	if err := domain.ValidatePassword(cmd.Password); err != nil {
		return nil, err
	}
	if err := domain.ValidateFullName(cmd.FullName); err != nil {
		return nil, err
	}
	// Vérification "soft" : la contrainte UNIQUE reste la vraie garantie.
	if existing, err := s.store.GetAccountByEmail(ctx, domain.NormalizeEmail(cmd.Email)); err == nil && existing != nil {
		return nil, domain.ErrEmailAlreadyExists
	}

	hashed, err := s.hasher.Hash(cmd.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing failed: %w", err)
	}

	account, err := domain.NewAccount(cmd.Email, cmd.Username, hashed)
	if err != nil {
		return nil, err
	}
	profile, err := domain.NewProfile(account.ID, account.Username, cmd.FullName, cmd.BirthDate)
	if err != nil {
		return nil, err
	}

	// 2. Compte + profil : tout ou rien
	err = s.store.WithinTx(ctx, func(repo ports.Repository) error {
		if err := repo.CreateAccount(ctx, account); err != nil {
			return err
		}
		return repo.CreateProfile(ctx, profile)
	})
	if err != nil {
		return nil, err
	}

	tokens, err := s.tokenProvider.GenerateTokens(account, profile.ID)
	if err != nil {
		// Le compte existe : le client pourra simplement se connecter.
		return nil, fmt.Errorf("token generation failed: %w", err)
	}

	if err := s.broker.PublishUserRegistered(ctx, account.ID, profile.ID, account.Email); err != nil {
		s.logger.Warn("failed to publish registration", "account_id", account.ID, "error", err)
	}

	return &ports.AuthResponse{Account: account, Profile: profile, Tokens: tokens}, nil
}

func (s *IdentityService) Login(ctx context.Context, cmd ports.LoginCmd) (*ports.AuthResponse, error) {
	account, err := s.store.GetAccountByEmail(ctx, domain.NormalizeEmail(cmd.Email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// On ne dit pas si c'est l'email ou le mot de passe qui est faux.
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !account.IsActive {
		return nil, domain.ErrInvalidCredentials
	}
	if err := s.hasher.Compare(account.PasswordHash, cmd.Password); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	// Le mot de passe en clair n'est disponible qu'ici : on en profite pour remonter le coût du hash.
	if s.hasher.NeedsRehash(account.PasswordHash) {
		if hash, err := s.hasher.Hash(cmd.Password); err != nil {
			s.logger.Warn("password rehash failed", "account_id", account.ID, "error", err)
		} else {
			account.PasswordHash = hash
		}
	}

	account.RecordLogin(time.Now().UTC())
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Debug("login", "account_id", account.ID, "ip", cmd.IP, "device", cmd.Device)
	return s.issue(ctx, account)
}

func (s *IdentityService) RefreshToken(ctx context.Context, refreshToken string) (*ports.AuthResponse, error) {
	accountID, err := s.tokenProvider.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	account, err := s.store.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}
	if !account.IsActive {
		return nil, domain.ErrAccountInactive
	}
	return s.issue(ctx, account)
}

// Authenticate transforme un access token en Principal typé.
func (s *IdentityService) Authenticate(ctx context.Context, accessToken string) (*domain.Principal, error) {
	principal, err := s.tokenProvider.ValidateAccess(accessToken)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	revoked, err := s.revoker.IsRevoked(ctx, principal.TokenID)
	if err != nil {
		return nil, fmt.Errorf("%w: revocation check: %v", domain.ErrDependencyUnavailable, err)
	}
	if revoked {
		return nil, domain.ErrTokenRevoked
	}

	account, err := s.store.GetAccountByID(ctx, principal.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}
	if !account.IsActive {
		return nil, domain.ErrAccountInactive
	}
	return principal, nil
}

// Logout révoque l'access token jusqu'à son expiration naturelle.
func (s *IdentityService) Logout(ctx context.Context, principal domain.Principal) error {
	ttl := time.Until(principal.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.revoker.Revoke(ctx, principal.TokenID, ttl)
}

// --- MOTS DE PASSE ---

func (s *IdentityService) ChangePassword(ctx context.Context, accountID, oldPass, newPass string) error {
	if err := domain.ValidatePassword(newPass); err != nil {
		return err
	}
	account, err := s.store.GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}
	if err := s.hasher.Compare(account.PasswordHash, oldPass); err != nil {
		return fmt.Errorf("old password incorrect: %w", domain.ErrInvalidCredentials)
	}
	if oldPass == newPass {
		return domain.ErrSamePassword
	}

	newHash, err := s.hasher.Hash(newPass)
	if err != nil {
		return err
	}
	account.UpdatePassword(newHash)
	return s.store.UpdateAccount(ctx, account)
}

// ForgotPassword envoie un lien de réinitialisation. Le jeton n'est stocké que
// si l'e-mail part : l'envoi se fait dans la transaction.
func (s *IdentityService) ForgotPassword(ctx context.Context, email, resetBaseURL string) error {
	account, err := s.store.GetAccountByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Pas d'énumération des comptes.
			return nil
		}
		return err
	}
	if !account.IsActive {
		return nil
	}

	token, err := randomToken()
	if err != nil {
		return err
	}

	return s.store.WithinTx(ctx, func(repo ports.Repository) error {
		account.SetResetToken(hashToken(token), time.Now().UTC())
		if err := repo.UpdateAccount(ctx, account); err != nil {
			return err
		}
		link := strings.TrimRight(resetBaseURL, "/") + "/" + token
		if err := s.mailer.SendPasswordReset(ctx, account.Email, link); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrMailDelivery, err)
		}
		return nil
	})
}

func (s *IdentityService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := domain.ValidatePassword(newPassword); err != nil {
		return err
	}
	account, err := s.store.GetAccountByResetToken(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidResetToken
		}
		return err
	}
	if !account.ResetTokenValid(time.Now().UTC()) {
		return domain.ErrInvalidResetToken
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	account.UpdatePassword(newHash)
	return s.store.UpdateAccount(ctx, account)
}

// Deactivate est un soft delete : le compte disparaît des lectures mais reste en base.
func (s *IdentityService) Deactivate(ctx context.Context, accountID string) error {
	account, err := s.store.GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}
	account.Deactivate()
	return s.store.UpdateAccount(ctx, account)
}

// --- HELPERS ---

func (s *IdentityService) issue(ctx context.Context, account *domain.Account) (*ports.AuthResponse, error) {
	profile, err := s.store.GetProfileByAccount(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	tokens, err := s.tokenProvider.GenerateTokens(account, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("token generation failed: %w", err)
	}
	return &ports.AuthResponse{Account: account, Profile: profile, Tokens: tokens}, nil
}

func randomToken() (string, error) {
	b := make([]byte, resetTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
