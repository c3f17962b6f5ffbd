package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"parcelpoint.app/cloud/billing"
	"parcelpoint.app/cloud/cache"
	"parcelpoint.app/cloud/handlers"
	"parcelpoint.app/cloud/internal/config"
	"parcelpoint.app/cloud/internal/email"
	"parcelpoint.app/cloud/storage"
)

var version = "dev"

func main() {
	if versionBytes, err := os.ReadFile("VERSION"); err == nil {
		version = strings.TrimSpace(string(versionBytes))
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 1.0,
		})
		if err != nil {
			log.Fatalf("sentry.Init: %s", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	db, err := storage.NewSQLiteStorage(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	snapshots, err := cache.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer snapshots.Close()

	stripeClient := billing.NewStripeClient(cfg.StripeSecretKey)
	billingService := billing.NewService(stripeClient, snapshots, db, cfg.CheckoutSuccessURL)
	mailer := email.NewMailer(cfg)

	server := handlers.NewServer(db, billingService, mailer, cfg.StripeWebhookSecret, version)

	log.Printf("ParcelPoint Cloud API %s starting on port %s", version, cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, server.Router))
}
