package commands

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"varsity/internal/auth"
	"varsity/internal/config"
	"varsity/internal/content"
	"varsity/internal/storage"
)

// AddUser creates an account with a random password and prints the
// credentials. Run with the server stopped; it opens the database
// directly.
func AddUser(username string, cfg *config.Config) error {
	if err := content.ValidateUsername(username); err != nil {
		return err
	}

	// The password hash is keyed with the server secret, so the same
	// secret must be set here as on the running server.
	if cfg.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required")
	}

	store, err := storage.NewBboltStorage(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	authService, err := auth.NewAuthService(context.Background(), auth.Config{
		Secret:      base64.StdEncoding.EncodeToString([]byte(cfg.AuthSecret)),
		TokenExpiry: cfg.TokenExpiry,
	}, store)
	if err != nil {
		return err
	}

	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return fmt.Errorf("failed to generate password: %w", err)
	}
	password := base64.RawURLEncoding.EncodeToString(b)

	user, err := store.CreateUser(username, authService.HashPassword(username, password))
	if err != nil {
		return err
	}

	fmt.Printf("\nUser Created Successfully!\n")
	fmt.Printf("User ID:   %d\n", user.ID)
	fmt.Printf("Username:  %s\n", user.Username)
	fmt.Printf("Password:  %s\n\n", password)
	fmt.Println("Please share these credentials with the user.")
	return nil
}
