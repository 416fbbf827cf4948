// Server runs the HTTP API: command dispatch, talk sessions, recordings,
// presence, and contact-manager availability. All dependencies are
// constructed here and injected explicitly.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"pso-control-plane/backend/internal/audit"
	auditrepo "pso-control-plane/backend/internal/audit/repository"
	"pso-control-plane/backend/internal/blobsign"
	"pso-control-plane/backend/internal/broadcast"
	commandhandler "pso-control-plane/backend/internal/command/handler"
	commandrepo "pso-control-plane/backend/internal/command/repository"
	commandservice "pso-control-plane/backend/internal/command/service"
	"pso-control-plane/backend/internal/config"
	cmhandler "pso-control-plane/backend/internal/contactmanager/handler"
	cmrepo "pso-control-plane/backend/internal/contactmanager/repository"
	cmservice "pso-control-plane/backend/internal/contactmanager/service"
	"pso-control-plane/backend/internal/db"
	"pso-control-plane/backend/internal/egress"
	"pso-control-plane/backend/internal/logging"
	presencehandler "pso-control-plane/backend/internal/presence/handler"
	presencerepo "pso-control-plane/backend/internal/presence/repository"
	presenceservice "pso-control-plane/backend/internal/presence/service"
	recordinghandler "pso-control-plane/backend/internal/recording/handler"
	recordingrepo "pso-control-plane/backend/internal/recording/repository"
	recordingservice "pso-control-plane/backend/internal/recording/service"
	"pso-control-plane/backend/internal/security"
	"pso-control-plane/backend/internal/server"
	talkhandler "pso-control-plane/backend/internal/talksession/handler"
	talkrepo "pso-control-plane/backend/internal/talksession/repository"
	talkservice "pso-control-plane/backend/internal/talksession/service"
	"pso-control-plane/backend/internal/telemetry"
	"pso-control-plane/backend/internal/telemetry/producer"
	userrepo "pso-control-plane/backend/internal/user/repository"
)

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
	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logging.Error().Err(err).Msg("open database")
		os.Exit(1)
	}
	defer database.Close()

	users := userrepo.NewPostgresRepository(database)
	commands := commandrepo.NewPostgresRepository(database)
	sessions := talkrepo.NewPostgresRepository(database)
	recordings := recordingrepo.NewPostgresRepository(database)
	presence := presencerepo.NewPostgresRepository(database)
	profiles := cmrepo.NewPostgresRepository(database)
	auditor := audit.NewLogger(auditrepo.NewPostgresRepository(database), nil)

	var broadcaster broadcast.Broadcaster
	if cfg.NATSURL != "" {
		conn, err := nats.Connect(cfg.NATSURL,
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second))
		if err != nil {
			logging.Error().Err(err).Msg("connect nats")
			os.Exit(1)
		}
		defer conn.Drain()
		broadcaster = broadcast.NewNATSBroadcaster(conn)
	} else {
		logging.Warn().Msg("NATS_URL not set; group broadcast disabled")
	}

	var emitter telemetry.EventEmitter
	if brokers := cfg.TelemetryKafkaBrokersList(); len(brokers) > 0 {
		kp, err := producer.NewKafkaProducer(brokers, cfg.TelemetryKafkaTopic)
		if err != nil {
			logging.Error().Err(err).Msg("create kafka producer")
			os.Exit(1)
		}
		defer kp.Close()
		emitter = kp
	}

	var egressClient egress.Client
	if cfg.EgressBaseURL != "" {
		egressClient = egress.NewHTTPClient(cfg.EgressBaseURL, cfg.EgressAPIKey, cfg.EgressCallTimeout())
	} else {
		logging.Warn().Msg("EGRESS_BASE_URL not set; recording endpoints will fail on egress calls")
		egressClient = egress.NewHTTPClient("http://localhost:0", "", cfg.EgressCallTimeout())
	}

	var signer blobsign.Signer
	if cfg.BlobAccountName != "" {
		signer, err = blobsign.NewAzureSigner(cfg.BlobAccountName, cfg.BlobAccountKey, cfg.BlobContainer)
		if err != nil {
			logging.Error().Err(err).Msg("create blob signer")
			os.Exit(1)
		}
	} else {
		signer = &blobsign.PlainSigner{Base: "http://localhost:10000/" + cfg.BlobContainer}
	}

	var verifier *security.Verifier
	if cfg.JWTPublicKey != "" {
		verifier, err = security.NewVerifier(cfg.JWTPublicKey, cfg.JWTIssuer, cfg.JWTAudience)
		if err != nil {
			logging.Error().Err(err).Msg("create token verifier")
			os.Exit(1)
		}
	} else if cfg.Env == "production" {
		logging.Error().Msg("JWT_PUBLIC_KEY is required in production")
		os.Exit(1)
	} else {
		logging.Warn().Msg("JWT_PUBLIC_KEY not set; trusting X-Caller-ID (development only)")
	}

	dispatcher := commandservice.NewDispatcher(commands, users, broadcaster, auditor, emitter, cfg.StaleAfter())
	talkSessions := talkservice.NewService(sessions, users, broadcaster, auditor, emitter)
	orchestrator := recordingservice.NewOrchestrator(recordings, users, egressClient, signer, auditor, emitter, cfg.Lookback(), cfg.SASTTL())
	tracker := presenceservice.NewTracker(presence, broadcaster)
	availability := cmservice.NewAvailability(profiles, broadcaster)

	router := server.NewRouter(verifier, server.Handlers{
		Commands:        commandhandler.NewHandler(dispatcher, users),
		TalkSessions:    talkhandler.NewHandler(talkSessions, users),
		Recordings:      recordinghandler.NewHandler(orchestrator, users),
		Presence:        presencehandler.NewHandler(tracker, users),
		ContactManagers: cmhandler.NewHandler(availability, users),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("serve")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("shutdown")
	}
	if emitter != nil {
		// let in-flight async telemetry emits finish before the producer closes
		time.Sleep(telemetry.ShutdownDrainDuration)
	}
	logging.Info().Msg("http server stopped")
}
