package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/blackmichael/listing-bot/internal/telegram"
)

const testMessage = "🧪 Test message from Mela Homes\n\nIf you see this, the integration is working!"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Missing env files are fine; flags and the environment still apply.
	for _, file := range []string{".env.local", ".env"} {
		_ = godotenv.Load(file)
	}

	var (
		token      string
		apiURL     string
		channelID  string
		webhookURL string
		secret     string
		noMessage  bool
	)

	flag.StringVar(&token, "token", envOrDefault("TELEGRAM_BOT_TOKEN", ""), "Telegram bot token")
	flag.StringVar(&apiURL, "api", envOrDefault("TELEGRAM_API_URL", telegram.DefaultAPIURL), "Bot API URL")
	flag.StringVar(&channelID, "channel", envOrDefault("TELEGRAM_CHANNEL_ID", ""), "Channel to post the test message to (e.g. @my_channel)")
	flag.StringVar(&webhookURL, "url", "", "Public webhook URL (e.g. https://bot.example.com/api/telegram/webhook)")
	flag.StringVar(&secret, "secret", envOrDefault("TELEGRAM_WEBHOOK_SECRET", ""), "Webhook secret token")
	flag.BoolVar(&noMessage, "no-message", false, "Only validate the token, do not post a test message")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: botctl [flags] check|set-webhook|delete-webhook\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if token == "" {
		return fmt.Errorf("--token is required (or set TELEGRAM_BOT_TOKEN)")
	}
	if flag.NArg() != 1 {
		flag.Usage()
		return errors.New("exactly one command is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	client := telegram.NewClient(apiURL, token, &http.Client{Timeout: 15 * time.Second})

	switch cmd := flag.Arg(0); cmd {
	case "check":
		return check(ctx, client, channelID, noMessage)
	case "set-webhook":
		if webhookURL == "" {
			return fmt.Errorf("--url is required for set-webhook")
		}
		fmt.Printf("Setting webhook to %s...\n", webhookURL)
		if err := client.SetWebhook(ctx, webhookURL, secret); err != nil {
			return err
		}
		fmt.Println("Webhook set")
		return nil
	case "delete-webhook":
		fmt.Println("Deleting webhook...")
		if err := client.DeleteWebhook(ctx); err != nil {
			return err
		}
		fmt.Println("Webhook deleted")
		return nil
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func check(ctx context.Context, client *telegram.Client, channelID string, noMessage bool) error {
	fmt.Println("Checking bot token...")
	me, err := client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("bot token is invalid: %w", err)
	}
	fmt.Printf("Bot token is valid: @%s (id %d)\n", me.UserName, me.ID)

	if noMessage {
		return nil
	}
	if channelID == "" {
		return fmt.Errorf("--channel is required to post a test message (or set TELEGRAM_CHANNEL_ID)")
	}

	fmt.Printf("Posting test message to %s...\n", channelID)
	id, err := client.SendText(ctx, channelID, testMessage, nil)
	if err != nil {
		var apiErr *telegram.APIError
		if errors.As(err, &apiErr) {
			fmt.Println("Check that the bot is an admin of the channel and that the channel ID is correct.")
		}
		return fmt.Errorf("post test message: %w", err)
	}
	fmt.Printf("Test message posted (message id %d)\n", id)
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
