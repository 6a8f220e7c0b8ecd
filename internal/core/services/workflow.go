package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
)

const maxParallelUploads = 4

// persistFunc écrit l'action dans la transaction et renvoie les destinataires à notifier.
type persistFunc func(repo ports.Repository, media []domain.Media) ([]domain.Recipient, error)

// workflow est le flux commun des actions sociales :
// 1. upload des médias (tout ou rien)
// 2. écriture atomique (lignes + compteurs)
// 3. notifications best-effort, uniquement après commit
type workflow struct {
	store    ports.Store
	uploader ports.MediaUploader
	notifier ports.Notifier
	logger   *slog.Logger
}

func (w *workflow) execute(ctx context.Context, actorID, folder string, uploads []ports.Upload, persist persistFunc) error {
	media, err := uploadAll(ctx, w.uploader, folder, uploads, w.logger)
	if err != nil {
		return err
	}

	var recipients []domain.Recipient
	err = w.store.WithinTx(ctx, func(repo ports.Repository) error {
		r, err := persist(repo, media)
		if err != nil {
			return err
		}
		recipients = r
		return nil
	})
	if err != nil {
		// Rien n'est persisté : les fichiers déjà envoyés au CDN sont orphelins.
		discardMedia(ctx, w.uploader, media, w.logger)
		return err
	}

	if len(recipients) > 0 {
		w.notifier.Notify(ctx, actorID, recipients...)
	}
	return nil
}

// uploadAll envoie les fichiers en parallèle. Au premier échec, les fichiers
// déjà hébergés sont supprimés et l'action est abandonnée.
func uploadAll(ctx context.Context, up ports.MediaUploader, folder string, files []ports.Upload, logger *slog.Logger) ([]domain.Media, error) {
	if len(files) == 0 {
		return nil, nil
	}

	results := make([]*domain.Media, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelUploads)

	for i, f := range files {
		g.Go(func() error {
			m, err := up.Upload(gctx, folder, f)
			if err != nil {
				return fmt.Errorf("upload %q: %w", f.Filename, err)
			}
			results[i] = m
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		uploaded := lo.Map(
			lo.Filter(results, func(m *domain.Media, _ int) bool { return m != nil }),
			func(m *domain.Media, _ int) domain.Media { return *m },
		)
		discardMedia(ctx, up, uploaded, logger)
		return nil, fmt.Errorf("%w: %v", domain.ErrMediaUpload, err)
	}

	return lo.Map(results, func(m *domain.Media, _ int) domain.Media { return *m }), nil
}

// discardMedia supprime des fichiers du CDN sans faire échouer l'appelant.
func discardMedia(ctx context.Context, up ports.MediaUploader, media []domain.Media, logger *slog.Logger) {
	ctx = context.WithoutCancel(ctx)
	for _, m := range media {
		if err := up.Delete(ctx, m); err != nil {
			logger.Warn("failed to delete orphan media", "media_id", m.ID, "error", err)
		}
	}
}

func uploadOne(ctx context.Context, up ports.MediaUploader, folder string, file *ports.Upload, logger *slog.Logger) (*domain.Media, error) {
	if file == nil {
		return nil, nil
	}
	media, err := uploadAll(ctx, up, folder, []ports.Upload{*file}, logger)
	if err != nil {
		return nil, err
	}
	return &media[0], nil
}

// resolveMentions ne garde que les profils existants, sans doublon.
func resolveMentions(ctx context.Context, repo ports.ProfileRepository, ids []string) ([]string, error) {
	ids = lo.Uniq(lo.Filter(
		lo.Map(ids, func(id string, _ int) string { return strings.TrimSpace(id) }),
		func(id string, _ int) bool { return id != "" },
	))
	if len(ids) == 0 {
		return nil, nil
	}
	profiles, err := repo.GetProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}
	known := lo.KeyBy(profiles, func(p *domain.Profile) string { return p.ID })
	return lo.Filter(ids, func(id string, _ int) bool {
		_, ok := known[id]
		return ok
	}), nil
}

// mediaOf aplatit un média optionnel.
func mediaOf(m *domain.Media) []domain.Media {
	if m == nil {
		return nil
	}
	return []domain.Media{*m}
}

// canSee applique les règles de visibilité d'un contenu pour un lecteur.
func canSee(ctx context.Context, repo ports.GraphRepository, viewerID, authorID string, privacy domain.Privacy) (bool, error) {
	if viewerID == authorID {
		return true, nil
	}
	status, err := repo.GetRelationStatus(ctx, viewerID, authorID)
	if err != nil {
		return false, err
	}
	if status.Blocked() {
		return false, nil
	}
	return domain.CanView(privacy, false, status.IsFollowing), nil
}
