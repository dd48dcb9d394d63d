// Command server wires the onboarding portal: configuration, stores,
// services, background workers and the HTTP surface. Business rules live
// in the internal service packages; main only connects them.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	analyticshandler "onboardingportal/internal/analytics/handler"
	"onboardingportal/internal/analytics/pruner"
	analyticsservice "onboardingportal/internal/analytics/service"
	analyticsstore "onboardingportal/internal/analytics/store"
	"onboardingportal/internal/audit"
	audithandler "onboardingportal/internal/audit/handler"
	"onboardingportal/internal/audit/relay"
	auditstore "onboardingportal/internal/audit/store/postgres"
	authhandler "onboardingportal/internal/auth/handler"
	authservice "onboardingportal/internal/auth/service"
	"onboardingportal/internal/auth/store/lockout"
	"onboardingportal/internal/auth/store/session"
	"onboardingportal/internal/auth/store/user"
	"onboardingportal/internal/auth/token"
	documentshandler "onboardingportal/internal/documents/handler"
	documentsservice "onboardingportal/internal/documents/service"
	documentsstore "onboardingportal/internal/documents/store"
	"onboardingportal/internal/fieldcrypt"
	gamificationhandler "onboardingportal/internal/gamification/handler"
	gamificationservice "onboardingportal/internal/gamification/service"
	gamificationstore "onboardingportal/internal/gamification/store"
	healthhandler "onboardingportal/internal/health/handler"
	healthservice "onboardingportal/internal/health/service"
	healthstore "onboardingportal/internal/health/store"
	mfahandler "onboardingportal/internal/mfa/handler"
	mfaservice "onboardingportal/internal/mfa/service"
	mfastore "onboardingportal/internal/mfa/store"
	"onboardingportal/internal/platform/config"
	"onboardingportal/internal/platform/httpserver"
	"onboardingportal/internal/platform/logger"
	"onboardingportal/internal/platform/metrics"
	"onboardingportal/internal/platform/postgres"
	platformredis "onboardingportal/internal/platform/redis"
	httptransport "onboardingportal/internal/transport/http"
)

const version = "1.0.0"

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	cache, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	defer cache.Close()

	ring, err := fieldcrypt.FromConfig(cfg.Crypto)
	if err != nil {
		log.Error("field encryption keys invalid", "error", err)
		os.Exit(1)
	}
	indexer := fieldcrypt.NewIndexer(cfg.Crypto.Pepper)
	m := metrics.New()

	// Stores.
	users := user.NewPostgres(db)
	sessions := session.NewRedis(cache.Client)
	lockouts := lockout.NewRedis(cache.Client, cfg.Lockout)
	enrollments := mfastore.NewPostgres(db)
	auditTrail := auditstore.New(db)
	analyticsEvents := analyticsstore.NewPostgres(db)
	questionnaires := healthstore.NewPostgres(db)
	documents := documentsstore.NewPostgres(db)
	awards := gamificationstore.NewPostgres(db)

	// Services.
	auditor := audit.NewPublisher(auditTrail, log, m)
	tracker := analyticsservice.New(analyticsEvents, indexer, m, log)
	gamification := gamificationservice.New(awards, tracker, log)
	tokens := token.NewService(cfg.Token, sessions)
	auth := authservice.New(users, sessions, lockouts, tokens, ring, indexer,
		auditor, gamification, log, m)
	mfaSvc := mfaservice.New(enrollments, users, tokens, auth, ring, auditor,
		gamification, log)
	health := healthservice.New(questionnaires, ring, auditor, tracker,
		gamification, log)
	docs := documentsservice.New(documents, auditor, tracker, gamification, log)

	router := httptransport.NewRouter(log, m,
		httptransport.DBPinger(db), cache,
		httptransport.Info{Name: "onboardingportal", Version: version},
		authhandler.New(auth, log, tokens),
		mfahandler.New(mfaSvc, log, tokens),
		healthhandler.New(health, log, tokens),
		documentshandler.New(docs, log, tokens),
		gamificationhandler.New(gamification, log, tokens),
		analyticshandler.New(tracker, log, tokens),
		audithandler.New(auditTrail, log, tokens),
	)

	srv := httpserver.New(cfg.Server.Addr, router.Build())

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return audit.NewWorker(auditTrail, auditor.Inbox(), log, m).Run(groupCtx)
	})

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := relay.Connect(ctx, cfg.Kafka)
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		group.Go(func() error {
			return relay.New(auditTrail, producer, cfg.Kafka.AuditTopic, log, m).Run(groupCtx)
		})
	} else {
		log.Warn("audit relay disabled, no kafka brokers configured")
	}

	retention := pruner.New(analyticsEvents, m, log,
		cfg.Retention.AnalyticsMaxAge, cfg.Retention.PruneBatchSize)
	scheduler := retention.Start(groupCtx, cfg.Retention.PruneInterval)
	defer scheduler.Stop()

	group.Go(func() error {
		log.Info("starting onboarding portal", "addr", cfg.Server.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
