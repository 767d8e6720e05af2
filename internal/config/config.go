// Package config loads runtime settings from the environment.
//
// Values come from real environment variables first; a .env file in the
// working directory, when present, only fills in variables that are unset.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every setting the server and the CLI read at startup.
type Config struct {
	Port int `envconfig:"PORT" default:"8080"`

	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	DatabaseURL string `envconfig:"DATABASE_URL" default:"data/agrilink.db"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	LogFile   string `envconfig:"LOG_FILE"`

	S3 S3Config

	UploadDir      string `envconfig:"UPLOAD_DIR" default:"data/uploads"`
	UploadMaxBytes int64  `envconfig:"UPLOAD_MAX_BYTES" default:"10485760"`

	OfferTTL            time.Duration `envconfig:"OFFER_TTL" default:"72h"`
	OfferExpirySchedule string        `envconfig:"OFFER_EXPIRY_SCHEDULE" default:"@every 5m"`

	AuthRatePerMinute int `envconfig:"AUTH_RATE_PER_MIN" default:"20"`
	// TrustProxy honours X-Forwarded-For and X-Real-IP. Enable it only
	// behind a proxy that overwrites those headers.
	TrustProxy bool `envconfig:"TRUST_PROXY" default:"false"`

	OTelEndpoint string `envconfig:"OTEL_ENDPOINT"`

	Google GoogleConfig
}

// S3Config configures the object store. An empty Bucket selects the local
// disk backend instead. Keys are read with the S3_ prefix, e.g. S3_BUCKET.
type S3Config struct {
	Bucket          string `envconfig:"BUCKET"`
	Region          string `envconfig:"REGION" default:"ap-southeast-1"`
	Endpoint        string `envconfig:"ENDPOINT"`
	PublicURL       string `envconfig:"PUBLIC_URL"`
	AccessKeyID     string `envconfig:"ACCESS_KEY_ID"`
	SecretAccessKey string `envconfig:"SECRET_ACCESS_KEY"`
	ForcePathStyle  bool   `envconfig:"FORCE_PATH_STYLE"`
}

// GoogleConfig is read with the GOOGLE_ prefix.
type GoogleConfig struct {
	ClientID     string `envconfig:"CLIENT_ID"`
	ClientSecret string `envconfig:"CLIENT_SECRET"`
	CallbackURL  string `envconfig:"CALLBACK_URL"`
}

// Enabled reports whether Google sign-in is configured.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// Load reads the optional .env file and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the environment without touching .env.
func FromEnv() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if c.Google.CallbackURL == "" {
		c.Google.CallbackURL = fmt.Sprintf("http://localhost:%d/auth/google/callback", c.Port)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks values envconfig cannot express as tags.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL is required")
	}
	if len(c.JWTSecret) < 16 {
		return errors.New("config: JWT_SECRET must be at least 16 characters")
	}
	if c.JWTTTL <= 0 {
		return errors.New("config: JWT_TTL must be positive")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if c.UploadMaxBytes <= 0 {
		return errors.New("config: UPLOAD_MAX_BYTES must be positive")
	}
	if c.OfferTTL <= 0 {
		return errors.New("config: OFFER_TTL must be positive")
	}
	if c.AuthRatePerMinute <= 0 {
		return errors.New("config: AUTH_RATE_PER_MIN must be positive")
	}
	return nil
}
