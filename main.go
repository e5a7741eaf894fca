package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rasta-market-bot/config"
	"rasta-market-bot/internal/auth"
	"rasta-market-bot/internal/database"
	"rasta-market-bot/internal/handlers"
	"rasta-market-bot/internal/locales"
	"rasta-market-bot/internal/submission"

	appBot "rasta-market-bot/bot"

	sentry "github.com/getsentry/sentry-go"
	telego "github.com/mymmrac/telego"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Initialize localization bundle
	locales.Init(cfg.DefaultLanguage)

	// Initialize Sentry (if DSN is provided)
	err = sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.AppEnv,
		Release:          cfg.Version,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	defer sentry.Flush(2 * time.Second)

	// Connect to MongoDB
	client, db, err := database.ConnectDB(cfg)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal(err)
	}
	defer func() {
		if err = client.Disconnect(context.Background()); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
			sentry.CaptureException(err)
		} else {
			log.Println("Disconnected from MongoDB.")
		}
	}()

	// Create repository instances
	listingRepo := database.NewMongoListingRepository(db)
	mongoLogger := database.NewMongoLogger(db)

	// Creating context for application lifecycle
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create the raw telego bot instance
	var tgBot *telego.Bot
	if cfg.Debug {
		tgBot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultDebugLogger())
	} else {
		tgBot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultLogger(false, false))
	}
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to create telego bot: %v", err)
	}

	updatesChan, err := tgBot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to start long polling: %v", err)
	}

	// Moderators are the admins of the moderation chat
	adminChecker, err := auth.NewAdminChecker(tgBot, cfg.AdminChatID)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to create admin checker: %v", err)
	}

	// Create the submission workflow manager
	submissionManager := submission.NewManager(
		tgBot,
		submission.NewStore(),
		submission.NewSequence(submission.ListingSequenceStart),
		cfg.GroupID,
		cfg.AdminChatID,
		adminChecker,
		listingRepo,
	)

	// Create message handler with dependencies
	messageHandler := handlers.NewMessageHandler(
		cfg.GroupID,
		cfg.Version,
		mongoLogger,
		mongoLogger,
		submissionManager,
		adminChecker,
	)

	// Create the bot wrapper
	marketBot, err := appBot.New(appBot.BotDeps{
		Bot:           tgBot,
		UpdatesChan:   updatesChan,
		Debug:         cfg.Debug,
		Handler:       messageHandler,
		SubmissionMgr: submissionManager,
	})
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal(err)
	}

	// Start the bot wrapper's processing loop in a separate goroutine
	go marketBot.Start(ctx)

	// Wait for context cancellation (e.g., SIGINT, SIGTERM)
	<-ctx.Done()

	log.Println("Shutting down bot...")
	marketBot.Stop()

	log.Println("Bot shutdown complete.")
}
