package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blackmichael/listing-bot/internal/backend"
	"github.com/blackmichael/listing-bot/internal/config"
	"github.com/blackmichael/listing-bot/internal/domain"
	"github.com/blackmichael/listing-bot/internal/httpserver"
	"github.com/blackmichael/listing-bot/internal/listingevents"
	"github.com/blackmichael/listing-bot/internal/sqlite"
	"github.com/blackmichael/listing-bot/internal/telegram"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	httpClient := &http.Client{Timeout: cfg.OutboundTimeout}
	bot := telegram.NewClient(cfg.TelegramAPIURL, cfg.BotToken, httpClient)
	listings := backend.NewClient(cfg.BackendURL, httpClient)

	// The post log is optional
	var posts domain.PostLog
	if cfg.PostLogPath != "" {
		repo, err := sqlite.NewRepository(ctx, cfg.PostLogPath)
		if err != nil {
			return fmt.Errorf("create post log: %w", err)
		}
		defer repo.Close()
		posts = repo
		logger.Info("opened post log", "path", cfg.PostLogPath)
	}

	formatter, err := domain.NewFormatter(cfg.MiniAppURL, logger)
	if err != nil {
		return fmt.Errorf("create formatter: %w", err)
	}
	dispatcher := domain.NewDispatcher(domain.DispatcherConfig{
		BotToken:    cfg.BotToken,
		ChannelID:   cfg.ChannelID,
		CallTimeout: cfg.OutboundTimeout,
	}, bot, domain.NewPhotoNormalizer(cfg.BackendURL, logger), logger)
	channelService := domain.NewChannelService(formatter, dispatcher, posts, logger)
	callbacks := domain.NewCallbackHandler(bot, listings, cfg.OutboundTimeout, logger)

	if !cfg.TelegramConfigured() {
		logger.Warn("TELEGRAM_BOT_TOKEN or TELEGRAM_CHANNEL_ID not set, channel posts will be skipped")
	}

	// Start the listing event subscriber in the background
	if cfg.AMQPURL != "" {
		subscriber := listingevents.NewSubscriber(listingevents.Config{
			URL:      cfg.AMQPURL,
			Exchange: cfg.AMQPExchange,
			Queue:    cfg.AMQPQueue,
		}, channelService, logger)
		go func() {
			if err := subscriber.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("listing event subscriber exited with error", "error", err)
			}
		}()
	}

	// Start the HTTP server
	server := httpserver.NewServer(cfg, channelService, callbacks, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started",
		"port", cfg.Port,
		"telegram_configured", cfg.TelegramConfigured(),
		"post_log_enabled", posts != nil,
		"listing_events_enabled", cfg.AMQPURL != "",
	)

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
