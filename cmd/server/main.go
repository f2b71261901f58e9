package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/config"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/dispatch"
	httpapi "github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/http"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/ingest"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/logging"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/payments"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/places"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/rides"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/session"
	"github.com/7osation/ELSHEROUK-CAPTAIN-S/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		logging.NewLogger("error").Error("bad configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	st := store.New(store.Seed(time.Now()))
	svc := rides.NewService(st, logging.Component(logger, "rides"))

	if cfg.PGDSN != "" {
		if cfg.RunMigrations {
			if err := runMigrations(cfg.PGDSN); err != nil {
				logger.Error("migration failed", "error", err)
				os.Exit(1)
			}
			logger.Info("migrations applied")
		}
		journal, err := store.NewPostgresJournal(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres journal unavailable", "error", err)
			os.Exit(1)
		}
		defer journal.Close()
		svc.Journal = journal
	}

	if cfg.StripeAPIKey != "" {
		svc.Payments = payments.NewStripeClient(cfg.StripeAPIKey)
	}

	registry := dispatch.NewRegistry(logging.Component(logger, "dispatch"))
	notifier := dispatch.Fanout{registry}
	if cfg.OfferWebhookURL != "" {
		notifier = append(notifier, dispatch.NewWebhook(cfg.OfferWebhookURL, cfg.OfferWebhookKey, logging.Component(logger, "webhook")))
	}
	svc.Notifier = notifier

	var sessions session.Store
	if cfg.RedisAddr != "" {
		rs := session.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
		defer rs.Close()
		sessions = rs
	} else {
		sessions = session.NewMemory()
	}

	var provider places.Provider
	if cfg.GoogleAPIKey != "" {
		g, err := places.NewGoogle(cfg.GoogleAPIKey, cfg.PlaceCountry, cfg.PlaceLimit, logging.Component(logger, "places"))
		if err != nil {
			logger.Error("google maps client init failed", "error", err)
			os.Exit(1)
		}
		provider = g
	} else {
		provider = places.NewNominatim(cfg.NominatimURL, cfg.PlaceCountry, cfg.PlaceLimit, logging.Component(logger, "places"))
	}

	api := httpapi.NewServer(svc, provider, sessions, registry, logging.Component(logger, "http"))

	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		api.Kafka = kp
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go registry.WatchStore(ctx, st)

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}
}

func runMigrations(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_rides.sql"))
	if err != nil {
		return err
	}
	_, err = db.Exec(string(b))
	return err
}
