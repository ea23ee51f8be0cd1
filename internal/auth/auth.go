package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"varsity/internal/models"

	"github.com/c-pro/geche"
	"github.com/google/uuid"
)

const (
	DefaultTokenExpiry = 24 * time.Hour
	loginFailedMessage = "Login failed"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Token       string `json:"token,omitempty"`
	TokenExpiry int64  `json:"tokenExpiry,omitempty"`
	UserID      int64  `json:"userId,omitempty"`
}

// CredentialsStore resolves a username to the stored account and its
// password hash.
type CredentialsStore interface {
	GetUserByName(username string) (models.User, string, error)
}

type Config struct {
	Secret      string        `json:"secret"`
	secretBytes []byte        `json:"-"`
	TokenExpiry time.Duration `json:"tokenExpiry"`
}

func (c *Config) Validate() error {
	if c.Secret == "" {
		return errors.New("secret is required")
	}

	var err error
	c.secretBytes, err = base64.StdEncoding.DecodeString(c.Secret)
	if err != nil {
		return fmt.Errorf("auth secret is not a valid base64: %w", err)
	}

	if c.TokenExpiry == 0 {
		c.TokenExpiry = DefaultTokenExpiry
	}

	return nil
}

// AuthService issues session tokens against credentials held by the
// store. Live tokens sit in a TTL cache, so expiry needs no sweeper.
type AuthService struct {
	Config
	store      CredentialsStore
	liveTokens geche.Geche[string, models.User]
	now        func() time.Time
}

func NewAuthService(ctx context.Context, config Config, store CredentialsStore) (*AuthService, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &AuthService{
		Config:     config,
		store:      store,
		liveTokens: geche.NewMapTTLCache[string, models.User](ctx, config.TokenExpiry, time.Minute),
		now:        time.Now,
	}, nil
}

// HashPassword derives the stored password hash. Keyed with the server
// secret so a leaked database alone is not enough to verify guesses.
func (as *AuthService) HashPassword(username, password string) string {
	h := hmac.New(sha512.New, as.secretBytes)
	h.Write([]byte(username + password))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func (as *AuthService) Login(req LoginRequest) LoginResponse {
	user, storedHash, err := as.store.GetUserByName(req.Username)
	if err != nil {
		return LoginResponse{Success: false, Message: loginFailedMessage}
	}

	currentHash := as.HashPassword(req.Username, req.Password)
	if !hmac.Equal([]byte(storedHash), []byte(currentHash)) {
		return LoginResponse{Success: false, Message: loginFailedMessage}
	}

	token := uuid.NewString()
	as.liveTokens.Set(token, user)

	return LoginResponse{
		Success:     true,
		Token:       token,
		TokenExpiry: as.now().Add(as.TokenExpiry).Unix(),
		UserID:      user.ID,
	}
}

func (as *AuthService) Logoff(token string) error {
	return as.liveTokens.Del(token)
}

// GetUser resolves a live token to its identity. An unknown or expired
// token is an anonymous connection attempt.
func (as *AuthService) GetUser(token string) (models.User, error) {
	return as.liveTokens.Get(token)
}
