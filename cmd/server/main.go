// Command server runs the identity verification HTTP service.
//
// Stores degrade gracefully: without DATABASE_URL everything runs in memory,
// without REDIS_URL the OTP session store is in-process, without
// KAFKA_BROKERS audit events stay in the local store only. That keeps local
// development a single `go run`.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"pehchan/internal/collaborators"
	"pehchan/internal/ekyc"
	"pehchan/internal/payment"
	"pehchan/internal/platform/config"
	"pehchan/internal/platform/httpserver"
	"pehchan/internal/platform/logger"
	platformredis "pehchan/internal/platform/redis"
	reportsvc "pehchan/internal/report"
	reportmemory "pehchan/internal/report/store/memory"
	reportpostgres "pehchan/internal/report/store/postgres"
	transport "pehchan/internal/transport/http"
	"pehchan/internal/verification/metrics"
	verifsvc "pehchan/internal/verification/service"
	verifstore "pehchan/internal/verification/store"
	verifmemory "pehchan/internal/verification/store/memory"
	verifpostgres "pehchan/internal/verification/store/postgres"
	"pehchan/pkg/platform/audit"
	auditkafka "pehchan/pkg/platform/audit/kafka"
	auditmemory "pehchan/pkg/platform/audit/store/memory"
	"pehchan/pkg/platform/middleware/auth"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	health := map[string]func() error{}

	// Persistence.
	var (
		verifications verifstore.Store
		reports       reportsvc.Store
	)
	if cfg.Postgres.URL != "" {
		db, err := sql.Open("pgx", cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		db.SetMaxOpenConns(25)
		db.SetConnMaxIdleTime(5 * time.Minute)

		vs := verifpostgres.NewPostgres(db)
		if err := vs.Migrate(ctx); err != nil {
			return err
		}
		rs := reportpostgres.NewPostgres(db)
		if err := rs.Migrate(ctx); err != nil {
			return err
		}
		verifications, reports = vs, rs
		health["postgres"] = func() error { return db.Ping() }
		log.Info("using postgres stores")
	} else {
		verifications = verifmemory.NewInMemory()
		reports = reportmemory.NewInMemory()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	// OTP session store.
	var sessions ekyc.SessionStore
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		sessions = ekyc.NewRedisStore(redisClient.Client)
		health["redis"] = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Health(pingCtx)
		}
		log.Info("using redis otp session store")
	} else {
		sessions = ekyc.NewInMemoryStore()
		log.Warn("REDIS_URL not set, using in-memory otp session store")
	}

	// Audit pipeline: local store always, kafka fan-out when configured.
	auditLocal := auditmemory.New()
	var auditStore audit.Store = auditLocal
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := auditkafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return err
		}
		defer kafkaSink.Close()
		auditStore = audit.NewTee(auditLocal, kafkaSink)
		log.Info("audit events publishing to kafka", "topic", cfg.Kafka.Topic)
	}
	auditPublisher := audit.NewPublisher(auditStore, audit.WithLogger(log))

	// Collaborators. Mocks stand in until real adapters are configured; they
	// are deterministic and safe for development.
	gateway := collaborators.MockGateway{Latency: 50 * time.Millisecond}
	authority := collaborators.MockAuthority{Latency: 100 * time.Millisecond}
	ocr := &collaborators.MockOCR{Latency: 150 * time.Millisecond}
	biometric := &collaborators.MockBiometric{Latency: 100 * time.Millisecond}
	storage := collaborators.MockStorage{}
	email := collaborators.LogEmail{Logger: log}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	verificationService := verifsvc.New(
		verifications,
		sessions,
		payment.NewSigner(cfg.Gateway.Secret),
		gateway,
		authority,
		ocr,
		biometric,
		cfg.OTP,
		verifsvc.WithLogger(log),
		verifsvc.WithAuditPublisher(auditPublisher),
		verifsvc.WithMetrics(metrics.New(registry)),
		verifsvc.WithEmail(email),
	)
	reportService := reportsvc.New(reports, verifications,
		reportsvc.WithLogger(log),
		reportsvc.WithAuditPublisher(auditPublisher),
	)

	router := transport.NewRouter(transport.RouterDeps{
		Verifications: verificationService,
		Reports:       reportService,
		Storage:       storage,
		TokenCheck:    auth.NewHMACValidator(cfg.Server.JWTSigningKey),
		Logger:        log,
		Registry:      registry,
		Health:        health,
	})

	srv := httpserver.New(cfg.Server.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
