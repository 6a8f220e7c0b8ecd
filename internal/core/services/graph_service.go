package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
)

// GraphService orchestre follow / unfollow / block / unblock.
// Une arête et ses compteurs changent toujours dans la même transaction.
type GraphService struct {
	flow   workflow
	store  ports.Store
	broker ports.EventPublisher
	logger *slog.Logger
}

func NewGraphService(store ports.Store, notifier ports.Notifier, broker ports.EventPublisher, logger *slog.Logger) *GraphService {
	logger = logger.With("component", "graph")
	return &GraphService{
		flow:   workflow{store: store, notifier: notifier, logger: logger},
		store:  store,
		broker: broker,
		logger: logger,
	}
}

func (s *GraphService) Follow(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return domain.ErrSelfFollow
	}

	err := s.flow.execute(ctx, actorID, "", nil, func(repo ports.Repository, _ []domain.Media) ([]domain.Recipient, error) {
		// 1. Verrous de ligne : un Block concurrent sur la paire attend notre COMMIT
		if err := repo.LockProfiles(ctx, actorID, targetID); err != nil {
			return nil, err
		}

		// 2. Pré-conditions
		actor, err := repo.GetProfile(ctx, actorID)
		if err != nil {
			return nil, err
		}
		if _, err := repo.GetProfile(ctx, targetID); err != nil {
			return nil, err
		}

		status, err := repo.GetRelationStatus(ctx, actorID, targetID)
		if err != nil {
			return nil, err
		}
		if status.Blocked() {
			return nil, domain.ErrBlocked
		}
		if status.IsFollowing {
			return nil, domain.ErrAlreadyFollowing
		}

		// 3. Arête + compteurs
		if err := repo.CreateFollow(ctx, actorID, targetID); err != nil {
			// Course perdue contre une requête concurrente : même réponse que la pré-vérification.
			if errors.Is(err, domain.ErrConflict) {
				return nil, domain.ErrAlreadyFollowing
			}
			return nil, err
		}
		if err := repo.AdjustProfileCounters(ctx, actorID, domain.ProfileCounters{Following: 1}); err != nil {
			return nil, err
		}
		if err := repo.AdjustProfileCounters(ctx, targetID, domain.ProfileCounters{Followers: 1}); err != nil {
			return nil, err
		}

		return []domain.Recipient{{ProfileID: targetID, Notification: domain.FollowerNotification(actor)}}, nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, domain.RelationFollowed, actorID, targetID)
	return nil
}

func (s *GraphService) Unfollow(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return domain.ErrSelfFollow
	}

	err := s.store.WithinTx(ctx, func(repo ports.Repository) error {
		// Un profil désactivé reste verrouillable : on peut toujours se détacher de lui.
		if err := repo.LockProfiles(ctx, actorID, targetID); err != nil {
			return err
		}
		removed, err := repo.DeleteFollow(ctx, actorID, targetID)
		if err != nil {
			return err
		}
		if !removed {
			return domain.ErrNotFollowing
		}
		if err := repo.AdjustProfileCounters(ctx, actorID, domain.ProfileCounters{Following: -1}); err != nil {
			return err
		}
		return repo.AdjustProfileCounters(ctx, targetID, domain.ProfileCounters{Followers: -1})
	})
	if err != nil {
		return err
	}

	s.publish(ctx, domain.RelationUnfollowed, actorID, targetID)
	return nil
}

// Block pose l'arête de blocage et coupe les follows dans les deux sens.
func (s *GraphService) Block(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return domain.ErrSelfBlock
	}

	err := s.store.WithinTx(ctx, func(repo ports.Repository) error {
		if err := repo.LockProfiles(ctx, actorID, targetID); err != nil {
			return err
		}
		if _, err := repo.GetProfile(ctx, targetID); err != nil {
			return err
		}
		status, err := repo.GetRelationStatus(ctx, actorID, targetID)
		if err != nil {
			return err
		}
		if status.IsBlocking {
			return domain.ErrAlreadyBlocked
		}
		if err := repo.CreateBlock(ctx, actorID, targetID); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return domain.ErrAlreadyBlocked
			}
			return err
		}

		var actorDelta, targetDelta domain.ProfileCounters

		removed, err := repo.DeleteFollow(ctx, actorID, targetID)
		if err != nil {
			return err
		}
		if removed {
			actorDelta.Following--
			targetDelta.Followers--
		}

		removed, err = repo.DeleteFollow(ctx, targetID, actorID)
		if err != nil {
			return err
		}
		if removed {
			targetDelta.Following--
			actorDelta.Followers--
		}

		if actorDelta != (domain.ProfileCounters{}) {
			if err := repo.AdjustProfileCounters(ctx, actorID, actorDelta); err != nil {
				return err
			}
			if err := repo.AdjustProfileCounters(ctx, targetID, targetDelta); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, domain.RelationBlocked, actorID, targetID)
	return nil
}

// Unblock retire le blocage. Les follows coupés ne sont PAS restaurés.
func (s *GraphService) Unblock(ctx context.Context, actorID, targetID string) error {
	if actorID == targetID {
		return domain.ErrSelfBlock
	}

	err := s.store.WithinTx(ctx, func(repo ports.Repository) error {
		if err := repo.LockProfiles(ctx, actorID, targetID); err != nil {
			return err
		}
		removed, err := repo.DeleteBlock(ctx, actorID, targetID)
		if err != nil {
			return err
		}
		if !removed {
			return domain.ErrNotBlocked
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, domain.RelationUnblocked, actorID, targetID)
	return nil
}

func (s *GraphService) RelationStatus(ctx context.Context, actorID, targetID string) (*domain.RelationStatus, error) {
	if actorID == targetID {
		return &domain.RelationStatus{}, nil
	}
	if _, err := s.store.GetProfile(ctx, targetID); err != nil {
		return nil, err
	}
	return s.store.GetRelationStatus(ctx, actorID, targetID)
}

func (s *GraphService) ListFollowers(ctx context.Context, profileID string, page domain.Page) ([]*domain.Profile, error) {
	if _, err := s.store.GetProfile(ctx, profileID); err != nil {
		return nil, err
	}
	return s.store.ListFollowers(ctx, profileID, page.Normalize(20, 100))
}

func (s *GraphService) ListFollowing(ctx context.Context, profileID string, page domain.Page) ([]*domain.Profile, error) {
	if _, err := s.store.GetProfile(ctx, profileID); err != nil {
		return nil, err
	}
	return s.store.ListFollowing(ctx, profileID, page.Normalize(20, 100))
}

func (s *GraphService) StreamFollowers(ctx context.Context, profileID string, batchSize int, yield func([]string) error) error {
	return s.store.StreamFollowerIDs(ctx, profileID, batchSize, yield)
}

// publish est best-effort : la relation est déjà commitée.
func (s *GraphService) publish(ctx context.Context, kind domain.RelationKind, actorID, targetID string) {
	event := domain.RelationEvent{
		Kind:       kind,
		ActorID:    actorID,
		TargetID:   targetID,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.broker.PublishRelationChanged(ctx, event); err != nil {
		s.logger.Warn("failed to publish relation event", "kind", kind, "error", err)
	}
}
