// Worker consumes connection-lifecycle events from NATS and drives the
// presence tracker, contact-manager availability, and disconnect-driven talk
// session stops. One malformed event logs and is skipped; the subscription
// never dies on bad input.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"pso-control-plane/backend/internal/broadcast"
	"pso-control-plane/backend/internal/config"
	cmrepo "pso-control-plane/backend/internal/contactmanager/repository"
	cmservice "pso-control-plane/backend/internal/contactmanager/service"
	"pso-control-plane/backend/internal/db"
	"pso-control-plane/backend/internal/events"
	"pso-control-plane/backend/internal/logging"
	presencerepo "pso-control-plane/backend/internal/presence/repository"
	presenceservice "pso-control-plane/backend/internal/presence/service"
	talkrepo "pso-control-plane/backend/internal/talksession/repository"
	talkservice "pso-control-plane/backend/internal/talksession/service"
	userrepo "pso-control-plane/backend/internal/user/repository"
)

const handleTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Init(cfg.LogLevel, cfg.LogConsole, os.Stderr)

	if cfg.DatabaseURL == "" {
		logging.Error().Msg("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.NATSURL == "" {
		logging.Error().Msg("NATS_URL is required")
		os.Exit(1)
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logging.Error().Err(err).Msg("open database")
		os.Exit(1)
	}
	defer database.Close()

	conn, err := nats.Connect(cfg.NATSURL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second))
	if err != nil {
		logging.Error().Err(err).Msg("connect nats")
		os.Exit(1)
	}
	defer conn.Drain()

	users := userrepo.NewPostgresRepository(database)
	tracker := presenceservice.NewTracker(
		presencerepo.NewPostgresRepository(database),
		broadcast.NewNATSBroadcaster(conn))
	availability := cmservice.NewAvailability(
		cmrepo.NewPostgresRepository(database),
		broadcast.NewNATSBroadcaster(conn))
	talkSessions := talkservice.NewService(
		talkrepo.NewPostgresRepository(database), users,
		broadcast.NewNATSBroadcaster(conn), nil, nil)

	dispatcher := events.NewDispatcher(tracker, availability, talkSessions, users)

	sub, err := conn.Subscribe(cfg.LifecycleSubject, func(msg *nats.Msg) {
		ev, err := events.ParseLifecycleEvent(msg.Data)
		if err != nil {
			logging.Warn().Str("subject", msg.Subject).Err(err).Msg("worker: dropping bad lifecycle event")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		dispatcher.Handle(ctx, ev)
	})
	if err != nil {
		logging.Error().Err(err).Msg("subscribe lifecycle")
		os.Exit(1)
	}
	defer sub.Unsubscribe()

	logging.Info().Str("subject", cfg.LifecycleSubject).Msg("worker: consuming lifecycle events")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logging.Info().Msg("worker: stopped")
}
