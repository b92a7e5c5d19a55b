package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"relaybot/internal/alert"
	"relaybot/internal/bot"
	"relaybot/internal/config"
	"relaybot/internal/domain"
	"relaybot/internal/events"
	"relaybot/internal/platform/discord"
	"relaybot/internal/relay"
	"relaybot/internal/storage"
)

const gcInterval = 5 * time.Minute

func main() {
	// --- Configuration Loading ---
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// run returns only after its deferred closes, so the exit code can follow.
	if err := run(cfg); err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Config) error {

	// --- Logger Setup ---
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Warn("Invalid log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	log.WithFields(logrus.Fields{
		"guild_id":          cfg.GuildID,
		"source_channel_id": cfg.SourceChannelID,
		"destination_name":  cfg.DestinationChannelName,
		"badgerdb_path":     cfg.BadgerDBPath,
	}).Info("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize Components ---
	log.Info("Initializing components...")

	// Link index. A nil index makes the linker rely on history scans only.
	var index storage.LinkRepository
	if cfg.IndexEnabled() {
		repo, err := storage.NewBadgerRepository(cfg.BadgerDBPath, log)
		if err != nil {
			log.WithError(err).Error("Failed to initialize link index")
			return err
		}
		defer func() {
			log.Info("Closing link index...")
			if err := repo.Close(); err != nil {
				log.WithError(err).Error("Error closing link index")
			}
		}()
		go repo.RunGC(ctx, gcInterval)
		index = repo
	} else {
		log.Info("Link index disabled, resolving links from channel history")
	}

	// Discord
	client, err := discord.New(cfg.DiscordToken, log)
	if err != nil {
		log.WithError(err).Error("Failed to initialize Discord client")
		return err
	}

	destination, err := relay.ResolveDestination(ctx, client, bot.Target(cfg))
	if err != nil {
		log.WithError(err).Error("Failed to resolve destination channel")
		return err
	}
	log.WithField("channel_id", destination).Info("Destination channel resolved")
	pointer := relay.NewDestinationPointer(destination)

	// Audit events
	var publisher events.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = events.NewRabbitPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			log.WithError(err).Warn("AMQP unavailable, audit events go to the log")
			publisher = events.NewFallback(log)
		}
	} else {
		publisher = events.NewFallback(log)
	}
	defer publisher.Close()

	// Operator alerts
	var alerts alert.Notifier = alert.Nop{}
	if cfg.TelegramBotToken != "" {
		notifier, err := alert.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramAlertChatID, log)
		if err != nil {
			log.WithError(err).Warn("Telegram alerts disabled")
		} else {
			alerts = notifier
		}
	}

	// Relay
	materializer := relay.NewMaterializer(client, cfg.DownloadConcurrency, log)
	dispatcher := relay.NewDispatcher(relay.Options{
		SourceChannelID: domain.ID(cfg.SourceChannelID),
		ApprovalEmoji:   cfg.ApprovalEmoji,
	}, relay.Deps{
		Client:    client,
		Pointer:   pointer,
		Cloner:    relay.NewCloner(materializer, cfg.FileUploadLimit),
		Publisher: relay.NewPublisher(client, log),
		Linker:    relay.NewLinker(client, index, cfg.HistoryScanLimit, log),
		Events:    publisher,
		Alerts:    alerts,
	}, log)

	// Bot Handler
	botHandler := bot.NewHandler(cfg, client, dispatcher, pointer, log)

	// --- Application Startup ---
	log.Info("Starting relaybot...")

	done := make(chan error, 1)
	go func() { done <- botHandler.Start(ctx) }()

	log.Info("relaybot is running. Press Ctrl+C to exit.")

	// --- Wait for Shutdown Signal ---
	select {
	case <-ctx.Done():
		err = <-done
	case err = <-done:
	}
	stop()
	if err != nil {
		log.WithError(err).Error("Bot stopped with error")
		return err
	}

	// Deferred closes run now.
	log.Info("relaybot shut down gracefully.")
	return nil
}
