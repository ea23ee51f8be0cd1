package http

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"sync"

	"varsity/internal/api"
	"varsity/internal/auth"
	"varsity/internal/storage"
	"varsity/internal/ws"
)

type APIServer struct {
	server *http.Server
	wg     sync.WaitGroup
}

func NewAPIServer(authService *auth.AuthService, store *storage.BboltStorage, router *ws.Router, reconciler *ws.Reconciler, addr string, logger *slog.Logger) *APIServer {
	wsServer := ws.NewServer(authService, router, logger)
	apiHandlers := api.New(authService, store, router, reconciler)

	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("POST /api/login", api.RequireSameOrigin(apiHandlers.LoginHandler))
	mux.HandleFunc("POST /api/logoff", api.RequireSameOrigin(apiHandlers.LogoffHandler))
	mux.HandleFunc("GET /api/online", apiHandlers.RequireAuth(apiHandlers.OnlineUsersHandler))
	mux.HandleFunc("POST /api/posts", api.RequireSameOrigin(apiHandlers.RequireAuth(apiHandlers.CreatePostHandler)))
	mux.HandleFunc("POST /api/posts/{id}/reactions", api.RequireSameOrigin(apiHandlers.RequireAuth(apiHandlers.ReactHandler)))
	mux.HandleFunc("POST /api/push/subscribe", api.RequireSameOrigin(apiHandlers.RequireAuth(apiHandlers.SubscribePushHandler)))

	// WebSocket endpoints, one per connection flavor
	mux.HandleFunc("GET /ws/chat", wsServer.HandleChat)
	mux.HandleFunc("GET /ws/notifications", wsServer.HandleNotifications)
	mux.HandleFunc("GET /ws/online", wsServer.HandleOnline)
	mux.HandleFunc("GET /ws/like/{post_id}", wsServer.HandleLike)

	if addr == "" {
		addr = ":8080"
	}

	return &APIServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

func (s *APIServer) Start() error {
	log.Printf("Server started on %s", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
