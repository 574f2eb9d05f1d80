package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration parameters of the engine.
type Config struct {
	DatabaseURL      string
	RedisURL         string
	GatewayJWTSecret string
	ServerPort       int

	// How long a reported result waits for the opponent before the engine
	// confirms it automatically.
	ConfirmationWindow time.Duration

	R2 R2Config
}

// R2Config carries the Cloudflare R2 credentials for poster storage. Poster
// upload is disabled when AccountID is empty.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicBaseURL   string
}

func (c R2Config) Enabled() bool {
	return c.AccountID != ""
}

// Load reads the configuration from environment variables. A .env file is
// loaded first if present, useful for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL environment variable is not set")
	}

	jwtSecret := os.Getenv("GATEWAY_JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("GATEWAY_JWT_SECRET environment variable is not set")
	}

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	windowHours, err := intEnv("CONFIRMATION_WINDOW_HOURS", 24)
	if err != nil {
		return nil, err
	}
	if windowHours <= 0 {
		return nil, fmt.Errorf("CONFIRMATION_WINDOW_HOURS must be positive, got %d", windowHours)
	}

	cfg := &Config{
		DatabaseURL:        dbURL,
		RedisURL:           redisURL,
		GatewayJWTSecret:   jwtSecret,
		ServerPort:         port,
		ConfirmationWindow: time.Duration(windowHours) * time.Hour,
		R2: R2Config{
			AccountID:       os.Getenv("R2_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
			BucketName:      os.Getenv("R2_BUCKET_NAME"),
			PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
		},
	}

	return cfg, nil
}

func intEnv(name string, def int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	return n, nil
}
