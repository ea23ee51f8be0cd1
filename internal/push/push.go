// Package push delivers events over web push to users who have no live
// notification socket. Best effort: a failed endpoint is logged and
// skipped, never retried here.
package push

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"varsity/internal/models"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// SubscriptionStore lists the registered web-push subscriptions for a
// user.
type SubscriptionStore interface {
	ListPushSubscriptions(userID int64) ([]models.PushSubscription, error)
}

type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

type Sender struct {
	cfg   Config
	store SubscriptionStore
	log   *slog.Logger
}

func NewSender(cfg Config, store SubscriptionStore, log *slog.Logger) *Sender {
	return &Sender{cfg: cfg, store: store, log: log}
}

// Push sends ev to every subscription registered for userID. Delivery
// to one dead endpoint does not abort delivery to the rest.
func (s *Sender) Push(userID int64, ev models.OutboundEvent) error {
	subs, err := s.store.ListPushSubscriptions(userID)
	if err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	for _, sub := range subs {
		resp, err := webpush.SendNotification(payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.Keys.P256dh,
				Auth:   sub.Keys.Auth,
			},
		}, &webpush.Options{
			Subscriber:      s.cfg.Subscriber,
			VAPIDPublicKey:  s.cfg.VAPIDPublicKey,
			VAPIDPrivateKey: s.cfg.VAPIDPrivateKey,
			TTL:             60,
		})
		if err != nil {
			s.log.Error("web push delivery failed", "user_id", userID, "error", err)
			continue
		}
		_ = resp.Body.Close()
	}

	return nil
}
