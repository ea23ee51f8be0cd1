package ws

import (
	"log/slog"
	"net/http"
	"strconv"

	"varsity/internal/models"

	"github.com/gorilla/websocket"
)

// Authenticator resolves a session token into an identity. The core
// never authenticates by itself; an error here is a hard rejection.
type Authenticator interface {
	GetUser(token string) (models.User, error)
}

// Server upgrades HTTP requests into websocket sessions, one handler
// per connection flavor.
type Server struct {
	auth     Authenticator
	router   *Router
	upgrader *websocket.Upgrader
	log      *slog.Logger
}

func NewServer(auth Authenticator, router *Router, log *slog.Logger) *Server {
	return &Server{
		auth:   auth,
		router: router,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // same-origin enforcement happens at the API layer
			},
		},
		log: log,
	}
}

func (s *Server) HandleChat(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, FlavorChat, 0)
}

func (s *Server) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, FlavorNotifications, 0)
}

func (s *Server) HandleOnline(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, FlavorPresence, 0)
}

// HandleLike serves the per-post animation socket. The post is selected
// by the route parameter, never by client payload.
func (s *Server) HandleLike(w http.ResponseWriter, r *http.Request) {
	postID, err := strconv.ParseInt(r.PathValue("post_id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid post id", http.StatusBadRequest)
		return
	}
	s.serve(w, r, FlavorPost, postID)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, flavor Flavor, postID int64) {
	user, err := s.auth.GetUser(getToken(r))
	if err != nil {
		// Anonymous or invalid identity: refuse the connection outright.
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}

	sess := newSession(s.router, conn, user, flavor, postID, s.log)
	if err := sess.Handle(r.Context()); err != nil {
		sess.log.Error("session ended with error", "error", err)
	}
}

// getToken finds the session token in the header, cookie or query
// string. Browsers cannot set headers on websocket dials, hence the
// query fallback.
func getToken(r *http.Request) string {
	if token := r.Header.Get("token"); token != "" {
		return token
	}
	if c, err := r.Cookie("token"); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("token")
}
