package ws

import (
	"log/slog"

	"varsity/internal/models"
	"varsity/internal/presence"
)

// IdentitySource enumerates the registered identity space.
type IdentitySource interface {
	ListUserIDs() ([]int64, error)
}

// Reconciler recomputes the online set and pushes the count to the
// "online" group. It runs on every presence connect and disconnect
// rather than on a timer. The full scan is O(registered users).
type Reconciler struct {
	registry *Registry
	presence *presence.Store
	ids      IdentitySource
	log      *slog.Logger
}

func NewReconciler(registry *Registry, pres *presence.Store, ids IdentitySource, log *slog.Logger) *Reconciler {
	return &Reconciler{
		registry: registry,
		presence: pres,
		ids:      ids,
		log:      log,
	}
}

func (rc *Reconciler) RecomputeAndBroadcast() {
	online, err := rc.OnlineCount()
	if err != nil {
		rc.log.Error("failed to enumerate identities", "error", err)
		return
	}

	rc.registry.Broadcast(onlineGroup, models.CountEvent(models.OutboundOnlineCount, online))
}

// OnlineCount recomputes the online set without broadcasting. Used by
// the HTTP fallback endpoint.
func (rc *Reconciler) OnlineCount() (int, error) {
	ids, err := rc.ids.ListUserIDs()
	if err != nil {
		return 0, err
	}

	online := 0
	for _, id := range ids {
		if rc.presence.IsOnline(id) {
			online++
		}
	}
	return online, nil
}
