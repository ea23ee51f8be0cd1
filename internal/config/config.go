package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	DBFile      string
	APIAddr     string
	AuthSecret  string
	TokenExpiry time.Duration

	// PresenceTTL is the sliding window after which a user with no
	// heartbeat is considered offline.
	PresenceTTL time.Duration

	// Web push credentials. Push delivery is disabled when empty.
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	PushSubscriber  string
}

func Load(cliMode bool) (*Config, error) {
	tokenExpiry, err := time.ParseDuration(getEnv("TOKEN_EXPIRY", "24h"))
	if err != nil {
		return nil, err
	}

	presenceTTL, err := time.ParseDuration(getEnv("PRESENCE_TTL", "300s"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DBFile:          getEnv("VARSITY_DB", "varsity.db"),
		APIAddr:         getEnv("API_ADDR", ":8080"),
		AuthSecret:      os.Getenv("AUTH_SECRET"),
		TokenExpiry:     tokenExpiry,
		PresenceTTL:     presenceTTL,
		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		PushSubscriber:  getEnv("PUSH_SUBSCRIBER", "mailto:admin@localhost"),
	}

	if err := cfg.Validate(cliMode); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate(cliMode bool) error {
	if c.AuthSecret == "" && !cliMode {
		return fmt.Errorf("AUTH_SECRET is required")
	}

	if c.TokenExpiry <= 0 {
		return fmt.Errorf("TOKEN_EXPIRY must be greater than 0")
	}

	if c.PresenceTTL <= 0 {
		return fmt.Errorf("PRESENCE_TTL must be greater than 0")
	}

	if (c.VAPIDPublicKey == "") != (c.VAPIDPrivateKey == "") {
		return fmt.Errorf("VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY must be set together")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
