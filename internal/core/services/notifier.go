package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
	"github.com/jupiterclapton/agora/pkg/telemetry"
)

const DefaultPushTimeout = 5 * time.Second

// Dispatcher implémente ports.Notifier.
// Chaque destinataire est servi par sa propre goroutine : un push lent ou en échec
// ne retarde ni l'action de l'utilisateur, ni les autres destinataires.
type Dispatcher struct {
	subs    ports.SubscriptionRepository
	push    ports.PushSender
	timeout time.Duration
	logger  *slog.Logger

	wg sync.WaitGroup
}

func NewDispatcher(subs ports.SubscriptionRepository, push ports.PushSender, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultPushTimeout
	}
	return &Dispatcher{
		subs:    subs,
		push:    push,
		timeout: timeout,
		logger:  logger.With("component", "notifier"),
	}
}

// Notify est appelé APRÈS le commit. Doublons fusionnés (le premier gagne),
// l'acteur n'est jamais notifié de sa propre action.
func (d *Dispatcher) Notify(ctx context.Context, actorID string, recipients ...domain.Recipient) {
	targets := lo.UniqBy(recipients, func(r domain.Recipient) string { return r.ProfileID })
	targets = lo.Filter(targets, func(r domain.Recipient, _ int) bool {
		return r.ProfileID != "" && r.ProfileID != actorID
	})

	// La requête HTTP peut se terminer avant la livraison : on garde les valeurs
	// du contexte (trace) mais pas son annulation.
	base := context.WithoutCancel(ctx)

	for _, r := range targets {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.deliver(base, r)
		}()
	}
}

// Wait bloque jusqu'à la fin des livraisons en cours (arrêt du serveur, tests).
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, r domain.Recipient) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	kind := string(r.Notification.Type)
	log := d.logger.With("profile_id", r.ProfileID, "type", kind)

	defer func() {
		if p := recover(); p != nil {
			log.Error("panic during push delivery", "panic", p)
			telemetry.PushDeliveries.WithLabelValues(kind, telemetry.ResultError).Inc()
		}
	}()

	sub, err := d.subs.GetSubscription(ctx, r.ProfileID, r.Notification.Type)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			telemetry.PushDeliveries.WithLabelValues(kind, telemetry.ResultSkipped).Inc()
			return
		}
		log.Warn("subscription lookup failed", "error", err)
		telemetry.PushDeliveries.WithLabelValues(kind, telemetry.ResultError).Inc()
		return
	}

	err = d.push.Send(ctx, sub, r.Notification)
	switch {
	case err == nil:
		telemetry.PushDeliveries.WithLabelValues(kind, telemetry.ResultOK).Inc()
	case errors.Is(err, domain.ErrSubscriptionGone):
		// Endpoint mort (404/410) : on nettoie pour ne plus réessayer.
		if delErr := d.subs.DeleteSubscription(ctx, sub.ID); delErr != nil {
			log.Warn("failed to drop stale subscription", "error", delErr)
		}
		telemetry.PushDeliveries.WithLabelValues(kind, telemetry.ResultGone).Inc()
	default:
		log.Warn("push delivery failed", "error", err)
		telemetry.PushDeliveries.WithLabelValues(kind, telemetry.ResultError).Inc()
	}
}
