package services

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
)

const searchPageSize = 10

type ProfileService struct {
	store    ports.Store
	uploader ports.MediaUploader
	logger   *slog.Logger
}

func NewProfileService(store ports.Store, uploader ports.MediaUploader, logger *slog.Logger) *ProfileService {
	return &ProfileService{
		store:    store,
		uploader: uploader,
		logger:   logger.With("component", "profile"),
	}
}

// GetProfile renvoie le profil et sa relation avec le lecteur.
// Un profil qui a bloqué le lecteur est introuvable pour lui.
func (s *ProfileService) GetProfile(ctx context.Context, viewerID, profileID string) (*domain.ProfileView, error) {
	profile, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	view := &domain.ProfileView{Profile: profile}
	if viewerID == "" || viewerID == profileID {
		return view, nil
	}

	status, err := s.store.GetRelationStatus(ctx, viewerID, profileID)
	if err != nil {
		return nil, err
	}
	if status.IsBlockedBy {
		return nil, domain.ErrProfileNotFound
	}
	view.Relation = *status
	return view, nil
}

// UpdateProfile ne touche jamais aux compteurs.
func (s *ProfileService) UpdateProfile(ctx context.Context, cmd ports.UpdateProfileCmd) (*domain.Profile, error) {
	profile, err := s.store.GetProfile(ctx, cmd.ProfileID)
	if err != nil {
		return nil, err
	}

	if cmd.FullName != nil {
		if err := domain.ValidateFullName(*cmd.FullName); err != nil {
			return nil, err
		}
		profile.FullName = strings.TrimSpace(*cmd.FullName)
	}
	if cmd.Bio != nil {
		bio := strings.TrimSpace(*cmd.Bio)
		if utf8.RuneCountInString(bio) > domain.ContentMaxLen {
			return nil, domain.ErrInvalidContent
		}
		profile.Bio = bio
	}

	picture, err := uploadOne(ctx, s.uploader, "profiles", cmd.Picture, s.logger)
	if err != nil {
		return nil, err
	}
	if picture != nil {
		profile.PictureURL = picture.URL
	}
	profile.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateProfile(ctx, profile); err != nil {
		if picture != nil {
			discardMedia(ctx, s.uploader, []domain.Media{*picture}, s.logger)
		}
		return nil, err
	}
	return profile, nil
}

// SearchProfiles pagine par 10 sur le nom complet et le pseudo.
func (s *ProfileService) SearchProfiles(ctx context.Context, query string, skip int) ([]*domain.Profile, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*domain.Profile{}, nil
	}
	if skip < 0 {
		skip = 0
	}
	return s.store.SearchProfiles(ctx, query, domain.Page{Limit: searchPageSize, Offset: skip})
}

// Subscribe enregistre l'endpoint push du profil pour un type (remplace l'ancien).
func (s *ProfileService) Subscribe(ctx context.Context, cmd ports.SubscribeCmd) (*domain.Subscription, error) {
	if _, err := s.store.GetProfile(ctx, cmd.ProfileID); err != nil {
		return nil, err
	}
	sub, err := domain.NewSubscription(cmd.ProfileID, cmd.Type, cmd.Endpoint, cmd.P256dh, cmd.Auth)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpsertSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}
