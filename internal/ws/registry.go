package ws

import (
	"fmt"
	"sync"

	"varsity/internal/models"

	mapset "github.com/deckarep/golang-set/v2"
)

// Handle is one live connection as seen by the registry. The registry
// references handles, it never owns them; the owning session destroys
// the handle on disconnect and calls LeaveAll.
type Handle interface {
	// Send enqueues an event for delivery. Best effort and non-blocking:
	// a dead or slow peer drops the event instead of stalling the caller.
	Send(ev models.OutboundEvent)
}

// Registry maintains named broadcast groups mapping to sets of live
// connection handles. Groups are created lazily on first join and
// deleted when their member set becomes empty; nothing is persisted.
type Registry struct {
	mu     sync.RWMutex
	groups map[string]mapset.Set[Handle]
}

func NewRegistry() *Registry {
	return &Registry{
		groups: make(map[string]mapset.Set[Handle]),
	}
}

// Join adds h to the named group, creating the group if absent.
// Joining twice is a no-op.
func (r *Registry) Join(group string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.groups[group]
	if !ok {
		set = mapset.NewSet[Handle]()
		r.groups[group] = set
	}
	set.Add(h)
}

// Leave removes h from the named group. The group is deleted once its
// member set is empty. Leaving a group h never joined is a no-op.
func (r *Registry) Leave(group string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.groups[group]
	if !ok {
		return
	}
	set.Remove(h)
	if set.IsEmpty() {
		delete(r.groups, group)
	}
}

// LeaveAll removes h from every group it belongs to. Called on
// disconnect; safe to call repeatedly or for handles that never joined.
func (r *Registry) LeaveAll(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, set := range r.groups {
		set.Remove(h)
		if set.IsEmpty() {
			delete(r.groups, name)
		}
	}
}

// Broadcast delivers ev to every current member of the named group.
// Delivery is fire-and-forget per member: one dead peer never prevents
// the others from receiving the event. Order across members within one
// call is unspecified.
func (r *Registry) Broadcast(group string, ev models.OutboundEvent) {
	r.mu.RLock()
	set, ok := r.groups[group]
	r.mu.RUnlock()

	if !ok {
		return
	}

	for _, h := range set.ToSlice() {
		h.Send(ev)
	}
}

// MemberCount returns the current number of handles in the named group.
func (r *Registry) MemberCount(group string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.groups[group]
	if !ok {
		return 0
	}
	return set.Cardinality()
}

// Deterministic group names shared with the frontend.

const onlineGroup = "online"

func chatGroup(userID int64) string {
	return fmt.Sprintf("chat_%d", userID)
}

func notificationsGroup(userID int64) string {
	return fmt.Sprintf("notifications_%d", userID)
}

func postGroup(postID int64) string {
	return fmt.Sprintf("post_%d", postID)
}
