package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// chat front-end + notifications
	TelegramToken    string `envconfig:"TELEGRAM_BOT_TOKEN"`
	MailerSendAPIKey string `envconfig:"MAILERSEND_API_KEY"`
	MailFrom         string `envconfig:"MAIL_FROM"`
	MailTo           string `envconfig:"MAIL_TO"`
	DevNotify        bool   `envconfig:"DEV_NOTIFY"`

	// club site
	BookingURL      string `envconfig:"BOOKING_URL"`
	BookingUsername string `envconfig:"BOOKING_USERNAME"`
	BookingPassword string `envconfig:"BOOKING_PASSWORD"`
	BrowserHeadless bool   `envconfig:"BROWSER_HEADLESS" default:"true"`

	// scheduling
	ClubTimezone          string `envconfig:"CLUB_TIMEZONE" default:"Europe/Madrid"`
	RunAt                 string `envconfig:"RUN_AT" default:"07:00"`
	WindowHours           int    `envconfig:"WINDOW_HOURS" default:"24"`
	AttemptTimeoutSeconds int    `envconfig:"ATTEMPT_TIMEOUT_SECONDS" default:"180"`

	// operator web UI session keys, base64
	CookieHashKey  string `envconfig:"COOKIE_HASH_KEY" required:"true"`
	CookieBlockKey string `envconfig:"COOKIE_BLOCK_KEY" required:"true"`
}

func Load() (Config, error) {
	// .env is a dev convenience; absence is fine.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}

	if _, err := time.Parse("15:04", cfg.RunAt); err != nil {
		return Config{}, fmt.Errorf("RUN_AT must be HH:MM, got %q", cfg.RunAt)
	}
	// The daily trigger fires every 24h; a narrower window would let
	// requests slip between firings.
	if cfg.WindowHours < 24 {
		return Config{}, fmt.Errorf("WINDOW_HOURS must be at least 24, got %d", cfg.WindowHours)
	}
	if cfg.AttemptTimeoutSeconds < 1 {
		return Config{}, fmt.Errorf("ATTEMPT_TIMEOUT_SECONDS must be positive")
	}
	return cfg, nil
}

func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ClubTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid CLUB_TIMEZONE %q: %w", c.ClubTimezone, err)
	}
	return loc, nil
}

func (c Config) Window() time.Duration {
	return time.Duration(c.WindowHours) * time.Hour
}

func (c Config) AttemptTimeout() time.Duration {
	return time.Duration(c.AttemptTimeoutSeconds) * time.Second
}

func (c Config) CookieKeys() (hash, block []byte, err error) {
	hash, err = decodeB64(c.CookieHashKey)
	if err != nil {
		return nil, nil, fmt.Errorf("COOKIE_HASH_KEY: %w", err)
	}
	block, err = decodeB64(c.CookieBlockKey)
	if err != nil {
		return nil, nil, fmt.Errorf("COOKIE_BLOCK_KEY: %w", err)
	}
	return hash, block, nil
}

func decodeB64(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
