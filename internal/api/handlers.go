package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"varsity/internal/auth"
	"varsity/internal/content"
	"varsity/internal/models"
	"varsity/internal/storage"
	"varsity/internal/ws"
)

type API struct {
	auth       *auth.AuthService
	store      *storage.BboltStorage
	router     *ws.Router
	reconciler *ws.Reconciler
}

func New(authService *auth.AuthService, store *storage.BboltStorage, router *ws.Router, reconciler *ws.Reconciler) *API {
	return &API{
		auth:       authService,
		store:      store,
		router:     router,
		reconciler: reconciler,
	}
}

// RequireSameOrigin rejects cross-origin form posts (CSRF guard for the
// cookie-authenticated endpoints).
func RequireSameOrigin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && !strings.Contains(origin, r.Host) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

func (a *API) getToken(r *http.Request) string {
	token := r.Header.Get("token")
	if token == "" {
		if c, err := r.Cookie("token"); err == nil {
			token = c.Value
		}
	}
	return token
}

func (a *API) currentUser(r *http.Request) (models.User, error) {
	return a.auth.GetUser(a.getToken(r))
}

// RequireAuth wraps a handler so anonymous requests get 401.
func (a *API) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := a.currentUser(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (a *API) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	loginResp := a.auth.Login(req)
	if !loginResp.Success {
		w.WriteHeader(http.StatusUnauthorized)
		if err := json.NewEncoder(w).Encode(loginResp); err != nil {
			log.Printf("failed to encode login response: %v", err)
		}
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    loginResp.Token,
		HttpOnly: true,
		Path:     "/",
		Expires:  time.Unix(loginResp.TokenExpiry, 0),
	})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(loginResp); err != nil {
		log.Printf("failed to encode login response: %v", err)
	}
}

func (a *API) LogoffHandler(w http.ResponseWriter, r *http.Request) {
	if token := a.getToken(r); token != "" {
		_ = a.auth.Logoff(token)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		HttpOnly: true,
		Path:     "/",
		MaxAge:   -1,
	})

	w.WriteHeader(http.StatusOK)
}

// OnlineUsersHandler is the polling fallback for clients whose online
// websocket failed.
func (a *API) OnlineUsersHandler(w http.ResponseWriter, r *http.Request) {
	count, err := a.reconciler.OnlineCount()
	if err != nil {
		log.Printf("failed to compute online count: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]int{"count": count}); err != nil {
		log.Printf("failed to encode online count: %v", err)
	}
}

func (a *API) CreatePostHandler(w http.ResponseWriter, r *http.Request) {
	user, err := a.currentUser(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "Title is required", http.StatusBadRequest)
		return
	}

	post, err := a.store.CreatePost(user.ID, content.Sanitize(req.Title), content.Sanitize(req.Content))
	if err != nil {
		log.Printf("failed to create post: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	a.router.AnnouncePost(post.ID)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(post); err != nil {
		log.Printf("failed to encode post: %v", err)
	}
}

// ReactHandler persists a reaction and replays it as a like animation
// to everyone watching the post. The post author gets a notification.
func (a *API) ReactHandler(w http.ResponseWriter, r *http.Request) {
	user, err := a.currentUser(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	postID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid post id", http.StatusBadRequest)
		return
	}

	var req struct {
		Reaction string `json:"reaction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Reaction == "" {
		http.Error(w, "Reaction is required", http.StatusBadRequest)
		return
	}

	post, err := a.store.GetPost(postID)
	if err != nil {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	reaction, err := a.store.CreateReaction(postID, user.ID, req.Reaction)
	if err != nil {
		log.Printf("failed to create reaction: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	a.router.AnnounceReaction(postID, user.Username, reaction.Type)

	if post.AuthorID != user.ID {
		a.router.NotifyUser(models.Notification{
			RecipientID: post.AuthorID,
			Actor:       user.Username,
			Verb:        "reacted to your post",
			PostID:      postID,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(reaction); err != nil {
		log.Printf("failed to encode reaction: %v", err)
	}
}

// SubscribePushHandler registers the caller's browser push subscription.
func (a *API) SubscribePushHandler(w http.ResponseWriter, r *http.Request) {
	user, err := a.currentUser(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var sub models.PushSubscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil || sub.Endpoint == "" {
		http.Error(w, "Invalid subscription", http.StatusBadRequest)
		return
	}
	sub.UserID = user.ID

	if err := a.store.SavePushSubscription(sub); err != nil {
		log.Printf("failed to save push subscription: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
}
