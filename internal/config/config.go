package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Port is the HTTP server port.
	Port int

	// BotToken is the Telegram bot token. Channel posting is skipped when it
	// is empty.
	BotToken string

	// ChannelID is the channel listings are posted to: a numeric chat ID or
	// an @username.
	ChannelID string

	// WebhookSecret, if set, must match the X-Telegram-Bot-Api-Secret-Token
	// header of incoming webhook requests.
	WebhookSecret string

	// TelegramAPIURL is the Bot API endpoint.
	TelegramAPIURL string

	// BackendURL is the listings backend API root. Relative photo paths are
	// resolved against its origin.
	BackendURL string

	// MiniAppURL is the Mini App that deep links open.
	MiniAppURL string

	// OutboundTimeout bounds every call to the Bot API and the backend.
	OutboundTimeout time.Duration

	// InitDataMaxAge is the maximum age of Mini App init data. Zero disables
	// the check.
	InitDataMaxAge time.Duration

	// PostLogPath is the SQLite database file for the post log. Empty
	// disables the post log.
	PostLogPath string

	// AMQPURL is the RabbitMQ connection URL. Empty disables the listing
	// event subscriber.
	AMQPURL string

	// AMQPExchange is the topic exchange listing events are published to.
	AMQPExchange string

	// AMQPQueue is the queue consumed by this service.
	AMQPQueue string
}

// TelegramConfigured reports whether channel posting is enabled.
func (c *Config) TelegramConfigured() bool {
	return c.BotToken != "" && c.ChannelID != ""
}

// Load reads configuration from environment variables with sensible
// defaults. Variables from .env.local and .env are loaded first if those
// files exist; variables already set in the environment win.
func Load() (*Config, error) {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	port := 3000
	if p := os.Getenv("PORT"); p != "" {
		var err error
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
	}

	outboundTimeout, err := durationEnv("OUTBOUND_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	if outboundTimeout <= 0 {
		return nil, fmt.Errorf("OUTBOUND_TIMEOUT must be positive")
	}

	initDataMaxAge, err := durationEnv("INIT_DATA_MAX_AGE", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:            port,
		BotToken:        os.Getenv("TELEGRAM_BOT_TOKEN"),
		ChannelID:       os.Getenv("TELEGRAM_CHANNEL_ID"),
		WebhookSecret:   os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
		TelegramAPIURL:  envOrDefault("TELEGRAM_API_URL", "https://api.telegram.org"),
		BackendURL:      envOrDefault("BACKEND_URL", "https://mela-homes-backend.onrender.com/api"),
		MiniAppURL:      envOrDefault("MINI_APP_URL", "https://mela-homes.vercel.app"),
		OutboundTimeout: outboundTimeout,
		InitDataMaxAge:  initDataMaxAge,
		PostLogPath:     os.Getenv("POST_LOG_PATH"),
		AMQPURL:         os.Getenv("AMQP_URL"),
		AMQPExchange:    envOrDefault("AMQP_EXCHANGE", "listings"),
		AMQPQueue:       envOrDefault("AMQP_QUEUE", "telegram-channel-posts"),
	}, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
