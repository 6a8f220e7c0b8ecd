package push

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
)

type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string // mailto: ou URL de contact exigée par VAPID
	TTL             int    // secondes de rétention côté service push
}

// WebPushSender chiffre et envoie les notifications via le protocole Web Push.
type WebPushSender struct {
	cfg    Config
	client webpush.HTTPClient
}

var _ ports.PushSender = (*WebPushSender)(nil)

func NewWebPushSender(cfg Config, client webpush.HTTPClient) *WebPushSender {
	if cfg.TTL == 0 {
		cfg.TTL = 60 * 60 * 24
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &WebPushSender{cfg: cfg, client: client}
}

// payload est le JSON lu par le service worker du client.
type payload struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

func (s *WebPushSender) Send(ctx context.Context, sub *domain.Subscription, n domain.Notification) error {
	body, err := json.Marshal(payload{Type: string(n.Type), Title: n.Title, Body: n.Body, URL: n.URL})
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.cfg.Subscriber,
		VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
		TTL:             s.cfg.TTL,
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDependencyUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		// L'abonnement n'existe plus côté navigateur.
		return domain.ErrSubscriptionGone
	case resp.StatusCode >= 300:
		return fmt.Errorf("%w: push service answered %d", domain.ErrDependencyUnavailable, resp.StatusCode)
	}
	return nil
}
