package ws

import (
	"log/slog"

	"varsity/internal/content"
	"varsity/internal/models"
	"varsity/internal/presence"
)

// Store is the persistent data collaborator (messages, notifications,
// identities). Every call is treated as a remote call that can fail or
// be slow; a failure degrades the event to "nothing happened" and is
// never surfaced to the client.
type Store interface {
	CreateMessage(senderID int64, sender string, recipientID int64, content string) (models.Message, error)
	MarkMessagesRead(recipientID int64, messageIDs []int64) error
	CreateNotification(n models.Notification) (models.Notification, error)
	CountUnreadNotifications(userID int64) (int, error)
	MarkNotificationsRead(userID int64) error
	ListUserIDs() ([]int64, error)
}

// PushSender delivers an event to a user's registered web-push
// subscriptions when they have no live notification socket.
type PushSender interface {
	Push(userID int64, ev models.OutboundEvent) error
}

// Router validates inbound events against the session's flavor,
// performs the associated store mutation and decides which groups
// receive the resulting broadcast.
type Router struct {
	registry   *Registry
	presence   *presence.Store
	store      Store
	reconciler *Reconciler
	push       PushSender // nil when web push is disabled
	log        *slog.Logger
}

func NewRouter(registry *Registry, pres *presence.Store, store Store, reconciler *Reconciler, push PushSender, log *slog.Logger) *Router {
	return &Router{
		registry:   registry,
		presence:   pres,
		store:      store,
		reconciler: reconciler,
		push:       push,
		log:        log,
	}
}

// Open registers a freshly authenticated session with its flavor's
// groups and performs the flavor's connect-time side effects.
func (r *Router) Open(s *Session) {
	switch s.flavor {
	case FlavorChat:
		r.registry.Join(chatGroup(s.UserID()), s)
	case FlavorNotifications:
		r.registry.Join(notificationsGroup(s.UserID()), s)
		// Snapshot goes out before any other event on this session.
		count, err := r.store.CountUnreadNotifications(s.UserID())
		if err != nil {
			r.log.Error("failed to count unread notifications", "user_id", s.UserID(), "error", err)
			count = 0
		}
		s.Send(models.CountEvent(models.OutboundUnreadCount, count))
	case FlavorPresence:
		r.registry.Join(onlineGroup, s)
		r.presence.Touch(s.UserID())
		r.reconciler.RecomputeAndBroadcast()
	case FlavorPost:
		r.registry.Join(postGroup(s.PostID()), s)
	}

	s.log.Info("session connected")
}

// Close releases everything a session may hold. Invoked exactly once
// per session; every step is idempotent anyway.
func (r *Router) Close(s *Session) {
	r.registry.LeaveAll(s)
	if s.flavor == FlavorPresence {
		r.presence.Remove(s.UserID())
		r.reconciler.RecomputeAndBroadcast()
	}

	s.log.Info("session disconnected")
}

// Route handles one inbound event. An event type not valid for the
// session's flavor is dropped with a local log entry and never reaches
// peers.
func (r *Router) Route(s *Session, ev models.InboundEvent) {
	switch ev.Type {
	case models.InboundPing:
		if !r.allow(s, ev, FlavorPresence) {
			return
		}
		r.presence.Touch(s.UserID())
		s.Send(models.OutboundEvent{Type: models.OutboundPong})

	case models.InboundMessage:
		if !r.allow(s, ev, FlavorChat) {
			return
		}
		r.handleMessage(s, ev)

	case models.InboundTyping:
		if !r.allow(s, ev, FlavorChat) {
			return
		}
		r.handleTyping(s, ev)

	case models.InboundRead:
		if !r.allow(s, ev, FlavorChat) {
			return
		}
		r.handleRead(s, ev)

	case models.InboundMarkRead:
		if !r.allow(s, ev, FlavorNotifications) {
			return
		}
		r.handleMarkRead(s)

	case models.InboundLike:
		if !r.allow(s, ev, FlavorPost) {
			return
		}
		r.registry.Broadcast(postGroup(s.PostID()), models.OutboundEvent{
			Type:     models.OutboundLikeAnimation,
			User:     ev.User,
			Reaction: ev.Reaction,
			PostID:   s.PostID(),
		})

	default:
		s.log.Error("unknown event type", "event_type", ev.Type)
	}
}

func (r *Router) allow(s *Session, ev models.InboundEvent, want Flavor) bool {
	if s.flavor == want {
		return true
	}
	s.log.Error("event not valid for session flavor", "event_type", ev.Type)
	return false
}

func (r *Router) handleMessage(s *Session, ev models.InboundEvent) {
	if ev.RecipientID == 0 || ev.Content == "" {
		return
	}

	msg, err := r.store.CreateMessage(s.UserID(), s.Username(), ev.RecipientID, content.Sanitize(ev.Content))
	if err != nil {
		// The sender gets no ack and no error event; the failure only
		// shows up as a missing confirmation.
		s.log.Error("failed to save message", "recipient_id", ev.RecipientID, "error", err)
		return
	}

	r.registry.Broadcast(chatGroup(ev.RecipientID), models.OutboundEvent{
		Type:    models.OutboundMessage,
		Message: &msg,
	})
	s.Send(models.OutboundEvent{
		Type:    models.OutboundSent,
		Message: &msg,
	})
}

func (r *Router) handleTyping(s *Session, ev models.InboundEvent) {
	if ev.RecipientID == 0 {
		return
	}

	isTyping := true
	if ev.IsTyping != nil {
		isTyping = *ev.IsTyping
	}

	// Fire-and-forget, no persistence and no ack.
	r.registry.Broadcast(chatGroup(ev.RecipientID), models.OutboundEvent{
		Type:     models.OutboundTyping,
		UserID:   s.UserID(),
		Username: s.Username(),
		IsTyping: &isTyping,
	})
}

func (r *Router) handleRead(s *Session, ev models.InboundEvent) {
	if ev.RecipientID == 0 || len(ev.MessageIDs) == 0 {
		return
	}

	// Only messages addressed to the caller can be marked read.
	if err := r.store.MarkMessagesRead(s.UserID(), ev.MessageIDs); err != nil {
		s.log.Error("failed to mark messages read", "error", err)
		return
	}

	r.registry.Broadcast(chatGroup(ev.RecipientID), models.OutboundEvent{
		Type:       models.OutboundRead,
		MessageIDs: ev.MessageIDs,
		ReadBy:     s.UserID(),
	})
}

func (r *Router) handleMarkRead(s *Session) {
	if err := r.store.MarkNotificationsRead(s.UserID()); err != nil {
		s.log.Error("failed to mark notifications read", "error", err)
		return
	}
	s.Send(models.CountEvent(models.OutboundUnreadCount, 0))
}

// NotifyUser persists a notification and delivers it to the recipient's
// live notification sessions together with a refreshed unread count.
// With no live session the notification goes out via web push instead.
func (r *Router) NotifyUser(n models.Notification) {
	saved, err := r.store.CreateNotification(n)
	if err != nil {
		r.log.Error("failed to save notification", "recipient_id", n.RecipientID, "error", err)
		return
	}

	ev := models.OutboundEvent{Type: models.OutboundNotification, Notification: &saved}

	group := notificationsGroup(saved.RecipientID)
	if r.registry.MemberCount(group) == 0 {
		if r.push != nil {
			if err := r.push.Push(saved.RecipientID, ev); err != nil {
				r.log.Error("web push failed", "recipient_id", saved.RecipientID, "error", err)
			}
		}
		return
	}

	r.registry.Broadcast(group, ev)

	count, err := r.store.CountUnreadNotifications(saved.RecipientID)
	if err != nil {
		r.log.Error("failed to count unread notifications", "recipient_id", saved.RecipientID, "error", err)
		return
	}
	r.registry.Broadcast(group, models.CountEvent(models.OutboundUnreadCount, count))
}

// AnnouncePost tells everyone currently online that a new post exists.
func (r *Router) AnnouncePost(postID int64) {
	r.registry.Broadcast(onlineGroup, models.OutboundEvent{
		Type:   models.OutboundNewPost,
		PostID: postID,
	})
}

// AnnounceReaction replays a persisted reaction as a like animation to
// everyone watching the post.
func (r *Router) AnnounceReaction(postID int64, user, reaction string) {
	r.registry.Broadcast(postGroup(postID), models.OutboundEvent{
		Type:     models.OutboundLikeAnimation,
		User:     user,
		Reaction: reaction,
		PostID:   postID,
	})
}
