package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"varsity/internal/models"

	"github.com/google/uuid"
)

// sendBuffer is the per-connection outbound queue depth. A peer that
// falls further behind starts losing events (best-effort delivery).
const sendBuffer = 64

// Flavor selects which groups a session registers with and which
// inbound events are valid for it.
type Flavor string

const (
	FlavorChat          Flavor = "chat"
	FlavorNotifications Flavor = "notifications"
	FlavorPresence      Flavor = "presence"
	FlavorPost          Flavor = "post"
)

// Session lifecycle: a session is constructed only after the transport
// handshake produced an authenticated identity (anonymous connects are
// rejected at the HTTP layer and never reach here). Handle moves it to
// active, and any transport error or context cancellation moves it to
// closed, which is terminal.
type sessionState int32

const (
	stateAuthenticated sessionState = iota
	stateActive
	stateClosed
)

type wsConn interface {
	Close() error
	WriteJSON(v any) error
	ReadMessage() (int, []byte, error)
}

type sessionRouter interface {
	Open(s *Session)
	Route(s *Session, ev models.InboundEvent)
	Close(s *Session)
}

// Session owns one live client connection: its identity, flavor and
// send/receive queues. Inbound events are processed one at a time in
// arrival order; nothing is interleaved within a session.
type Session struct {
	id     string
	ws     wsConn
	router sessionRouter
	user   models.User
	flavor Flavor
	postID int64
	log    *slog.Logger

	state      atomic.Int32
	fromClient chan models.InboundEvent
	outbound   chan models.OutboundEvent
	errorCh    chan error
}

func newSession(router sessionRouter, ws wsConn, user models.User, flavor Flavor, postID int64, log *slog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:         id,
		ws:         ws,
		router:     router,
		user:       user,
		flavor:     flavor,
		postID:     postID,
		log:        log.With("session_id", id, "user_id", user.ID, "flavor", string(flavor)),
		fromClient: make(chan models.InboundEvent),
		outbound:   make(chan models.OutboundEvent, sendBuffer),
		errorCh:    make(chan error, 2),
	}
}

func (s *Session) UserID() int64    { return s.user.ID }
func (s *Session) Username() string { return s.user.Username }
func (s *Session) PostID() int64    { return s.postID }

// Send enqueues an event for this connection. Non-blocking: if the
// session is closed or its queue is full the event is dropped, so one
// dead peer never stalls a broadcast.
func (s *Session) Send(ev models.OutboundEvent) {
	if sessionState(s.state.Load()) == stateClosed {
		return
	}
	select {
	case s.outbound <- ev:
	default:
		s.log.Warn("send queue full, dropping event", "event_type", ev.Type)
	}
}

// Handle registers the session with the router, then pumps events until
// the transport closes or ctx is cancelled. Cleanup is unconditional:
// group memberships and presence are released exactly once.
func (s *Session) Handle(ctx context.Context) error {
	s.router.Open(s)
	s.state.Store(int32(stateActive))

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		s.state.Store(int32(stateClosed))
		s.router.Close(s)
		close(s.fromClient)
		close(s.errorCh)
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		s.errorCh <- s.pumpMessages(ctx)
		cancel()
	})

	wg.Go(func() {
		s.errorCh <- s.mainLoop(ctx)
		cancel()
	})

	var err error
	select {
	case err = <-s.errorCh:
	case <-ctx.Done():
		// A pump cancels after reporting, so its error may already be
		// queued behind the ctx edge.
		select {
		case err = <-s.errorCh:
		default:
		}
	}
	s.ws.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// pumpMessages reads raw frames and parses them into inbound events.
// A malformed payload is logged and dropped; the session stays active.
func (s *Session) pumpMessages(ctx context.Context) error {
	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			return err
		}

		var ev models.InboundEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			s.log.Error("invalid event payload", "error", err)
			continue
		}

		select {
		case s.fromClient <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) mainLoop(ctx context.Context) error {
	for {
		select {
		case ev := <-s.fromClient:
			s.router.Route(s, ev)
		case ev := <-s.outbound:
			if err := s.ws.WriteJSON(ev); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}
