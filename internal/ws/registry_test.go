package ws

import (
	"sync"
	"testing"

	"varsity/internal/models"
)

type fakeHandle struct {
	mu     sync.Mutex
	events []models.OutboundEvent
	dead   bool
}

func (h *fakeHandle) Send(ev models.OutboundEvent) {
	if h.dead {
		// A dead peer silently drops; it must never disturb the caller.
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
}

func (h *fakeHandle) received() []models.OutboundEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.OutboundEvent(nil), h.events...)
}

func TestRegistry_JoinIsIdempotent(t *testing.T) {
	r := NewRegistry()
	h := &fakeHandle{}

	r.Join("chat_5", h)
	r.Join("chat_5", h)

	if got := r.MemberCount("chat_5"); got != 1 {
		t.Errorf("expected 1 member after double join, got %d", got)
	}

	r.Broadcast("chat_5", models.OutboundEvent{Type: models.OutboundPong})
	if got := len(h.received()); got != 1 {
		t.Errorf("expected exactly 1 delivery, got %d", got)
	}
}

func TestRegistry_GroupIsolation(t *testing.T) {
	r := NewRegistry()
	a := &fakeHandle{}
	b := &fakeHandle{}

	r.Join("chat_5", a)
	r.Join("chat_6", b)

	r.Broadcast("chat_5", models.OutboundEvent{Type: models.OutboundPong})

	if got := len(a.received()); got != 1 {
		t.Errorf("member of chat_5 expected 1 event, got %d", got)
	}
	if got := len(b.received()); got != 0 {
		t.Errorf("member of chat_6 expected no events, got %d", got)
	}
}

func TestRegistry_LeaveDeletesEmptyGroup(t *testing.T) {
	r := NewRegistry()
	h := &fakeHandle{}

	r.Join("post_1", h)
	r.Leave("post_1", h)

	r.mu.RLock()
	_, exists := r.groups["post_1"]
	r.mu.RUnlock()
	if exists {
		t.Error("empty group was not deleted")
	}

	// Leaving a group the handle never joined must be a no-op.
	r.Leave("post_2", h)
	r.Leave("post_1", h)
}

func TestRegistry_LeaveAll(t *testing.T) {
	r := NewRegistry()
	h := &fakeHandle{}
	other := &fakeHandle{}

	r.Join("online", h)
	r.Join("chat_1", h)
	r.Join("notifications_1", h)
	r.Join("online", other)

	r.LeaveAll(h)

	for _, group := range []string{"online", "chat_1", "notifications_1"} {
		r.Broadcast(group, models.OutboundEvent{Type: models.OutboundPong})
	}
	if got := len(h.received()); got != 0 {
		t.Errorf("expected no deliveries after LeaveAll, got %d", got)
	}
	if got := len(other.received()); got != 1 {
		t.Errorf("other member expected 1 delivery, got %d", got)
	}

	// Second LeaveAll must be a no-op, not an error.
	r.LeaveAll(h)
}

func TestRegistry_BroadcastToMissingGroup(t *testing.T) {
	r := NewRegistry()
	r.Broadcast("chat_404", models.OutboundEvent{Type: models.OutboundPong})
}

func TestRegistry_PartialFailureIsolation(t *testing.T) {
	r := NewRegistry()
	live1 := &fakeHandle{}
	dead := &fakeHandle{dead: true}
	live2 := &fakeHandle{}

	r.Join("post_9", live1)
	r.Join("post_9", dead)
	r.Join("post_9", live2)

	r.Broadcast("post_9", models.OutboundEvent{Type: models.OutboundLikeAnimation})

	if got := len(live1.received()); got != 1 {
		t.Errorf("live member 1 expected 1 event, got %d", got)
	}
	if got := len(live2.received()); got != 1 {
		t.Errorf("live member 2 expected 1 event, got %d", got)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		h := &fakeHandle{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Join("online", h)
				r.Broadcast("online", models.OutboundEvent{Type: models.OutboundPong})
				r.Leave("online", h)
				r.LeaveAll(h)
			}
		}()
	}
	wg.Wait()

	if got := r.MemberCount("online"); got != 0 {
		t.Errorf("expected empty group after churn, got %d members", got)
	}
}
