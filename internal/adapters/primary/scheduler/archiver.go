package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jupiterclapton/agora/internal/core/ports"
	"github.com/jupiterclapton/agora/pkg/telemetry"
)

// DefaultSchedule : toutes les minutes.
const DefaultSchedule = "* * * * *"

const runTimeout = 30 * time.Second

// StoryArchiver masque périodiquement les stories expirées.
type StoryArchiver struct {
	stories ports.StoryService
	cron    *cron.Cron
	logger  *slog.Logger
	now     func() time.Time
}

func NewStoryArchiver(stories ports.StoryService, schedule string, logger *slog.Logger) (*StoryArchiver, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	a := &StoryArchiver{
		stories: stories,
		// SkipIfStillRunning : deux passes ne se chevauchent jamais.
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger.With("component", "scheduler.StoryArchiver"),
		now:    time.Now,
	}
	if _, err := a.cron.AddFunc(schedule, a.archive); err != nil {
		return nil, fmt.Errorf("invalid story archive schedule %q: %w", schedule, err)
	}
	return a, nil
}

// Run démarre le cron et attend l'annulation de ctx, puis la fin de la passe en cours.
func (a *StoryArchiver) Run(ctx context.Context) error {
	a.cron.Start()
	a.logger.Info("⏰ Story archiver started")

	<-ctx.Done()
	<-a.cron.Stop().Done()
	a.logger.Info("🛑 Story archiver stopped")
	return nil
}

func (a *StoryArchiver) archive() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	n, err := a.stories.ArchiveExpired(ctx, a.now().UTC())
	if err != nil {
		a.logger.Error("❌ Failed to archive expired stories", "error", err)
		return
	}
	if n > 0 {
		telemetry.StoriesArchived.Add(float64(n))
		a.logger.Info("📦 Stories archived", "count", n)
	}
}
