package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	sentry "github.com/getsentry/sentry-go"

	"telefeed-sync/internal/config"
	"telefeed-sync/internal/feed"
	"telefeed-sync/internal/imagehost"
	"telefeed-sync/internal/locales"
	"telefeed-sync/internal/notify"
	"telefeed-sync/internal/publisher"
	"telefeed-sync/internal/storage"
	"telefeed-sync/internal/telegram"
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
		Dsn:         cfg.SentryDSN,
		Environment: cfg.AppEnv,
		Release:     cfg.Version,
		Debug:       cfg.Debug,
	})
	if err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	defer sentry.Flush(2 * time.Second)

	// Creating context for the run lifecycle
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Select the storage backend
	var store feed.PostStore
	switch cfg.StorageBackend {
	case config.StorageBackendFile:
		store = storage.NewFilePostStore(cfg.PostsFile)
		log.Printf("Using flat-file post store at %s", cfg.PostsFile)
	default:
		client, db, err := storage.ConnectDB(cfg)
		if err != nil {
			sentry.CaptureException(err)
			log.Fatal(err)
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Printf("Error disconnecting from MongoDB: %v", err)
				sentry.CaptureException(err)
			}
		}()
		store = storage.NewMongoPostStore(db)
	}

	snapshotPublisher, err := publisher.NewS3SnapshotPublisher(cfg.S3Bucket, cfg.SnapshotKey, cfg.S3Region)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal(err)
	}

	syncer, err := feed.NewSyncer(feed.SyncerDeps{
		Store:      store,
		Images:     imagehost.NewClient(cfg.ImgBBAPIKey),
		Publisher:  snapshotPublisher,
		Notifier:   notify.NewPushNotifier(cfg.PushBaseURL, cfg.FrontendBaseURL, cfg.DefaultLanguage),
		PadWidth:   cfg.IDPadWidth,
		Location:   cfg.Location(),
		FetchMode:  cfg.FetchMode,
		FetchLimit: cfg.FetchLimit,
	})
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal(err)
	}

	tgClient, err := telegram.NewClient(cfg)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal(err)
	}

	// Run the whole reconciliation inside the MTProto session
	if err := tgClient.Run(ctx, syncer.Run); err != nil {
		sentry.CaptureException(err)
		sentry.Flush(2 * time.Second)
		log.Fatalf("Sync run failed: %v", err)
	}
	log.Println("Sync run complete.")
}
