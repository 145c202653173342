// Server runs the authgate gRPC API (AuthService, AuditService, grpc.health.v1).
// Without DATABASE_URL it keeps users, sessions, audit logs and the email queue in memory and
// delivers verification emails in-process through the log transport (development only).
package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"authgate/backend/internal/audit"
	auditrepo "authgate/backend/internal/audit/repository"
	"authgate/backend/internal/cache"
	"authgate/backend/internal/config"
	"authgate/backend/internal/db"
	"authgate/backend/internal/delivery"
	deliverydomain "authgate/backend/internal/delivery/domain"
	deliveryrepo "authgate/backend/internal/delivery/repository"
	healthhandler "authgate/backend/internal/health/handler"
	"authgate/backend/internal/identity/service"
	"authgate/backend/internal/logging"
	"authgate/backend/internal/mail"
	"authgate/backend/internal/policy/engine"
	"authgate/backend/internal/security"
	"authgate/backend/internal/server"
	"authgate/backend/internal/server/interceptors"
	sessionrepo "authgate/backend/internal/session/repository"
	"authgate/backend/internal/telemetry"
	telemetryotel "authgate/backend/internal/telemetry/otel"
	userrepo "authgate/backend/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName("authgate-server"),
		Insecure:    cfg.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Fatal("telemetry", zap.Error(err))
	}
	providers.SetGlobal()
	emitter := telemetryotel.NewEventEmitter(providers.LoggerProvider)

	pingers := map[string]healthhandler.Pinger{}
	var (
		users    service.UserRepo
		sessions service.SessionRepo
		audits   auditrepo.Repository
		queue    deliveryrepo.Queue
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		pingers["postgres"] = pool
		users = userrepo.NewPostgresRepository(pool)
		sessions = sessionrepo.NewPostgresRepository(pool)
		audits = auditrepo.NewPostgresRepository(pool)
		queue = deliveryrepo.NewPostgresQueue(pool)
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory storage")
		users = userrepo.NewMemoryRepository()
		sessions = sessionrepo.NewMemoryRepository()
		audits = auditrepo.NewMemoryRepository()
		memQueue := deliveryrepo.NewMemoryQueue()
		queue = memQueue
		go runInlineWorker(ctx, cfg, memQueue, emitter, logger)
	}

	var store cache.Store
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer client.Close()
		redisStore := cache.NewRedisStore(client)
		pingers["redis"] = redisStore
		store = redisStore
	} else {
		logger.Warn("REDIS_ADDR not set; using in-memory cache")
		store = cache.NewMemoryStore()
	}

	policy, err := engine.NewOPAEvaluator(ctx, engine.DefaultRPCPolicy)
	if err != nil {
		logger.Fatal("policy", zap.Error(err))
	}

	auditLogger := audit.NewLogger(audits, interceptors.ClientIP, logger)
	deps := server.Deps{
		Users:               users,
		AuditRepo:           audits,
		AuditLogger:         auditLogger,
		Policy:              policy,
		HealthPingers:       pingers,
		HealthPolicyChecker: policy,
		Telemetry:           emitter,
		Logger:              logger,
	}

	if cfg.AuthEnabled() {
		tokens, err := security.NewTokenCodec(security.CodecConfig{
			AccessSecret:            []byte(cfg.AuthJWTSecret),
			AccessTTL:               cfg.AccessTTL(),
			RefreshSecret:           []byte(cfg.AuthRefreshSecret),
			RefreshTTL:              cfg.RefreshTTL(),
			EmailVerificationSecret: []byte(cfg.AuthConfirmEmailSecret),
			EmailVerificationTTL:    cfg.ConfirmEmailTTL(),
		})
		if err != nil {
			logger.Fatal("token codec", zap.Error(err))
		}
		policyRetry := deliverydomain.RetryPolicy{MaxAttempts: cfg.EmailQueueMaxAttempts, BaseDelay: cfg.EmailQueueBackoffBase()}
		enqueuer := delivery.NewClient(queue, policyRetry, logger,
			delivery.NewLogObserver(logger), delivery.NewTelemetryObserver(emitter, logger))
		authSvc := service.NewAuthService(users, sessions, security.NewHasher(cfg.BcryptCost), tokens,
			store, enqueuer, auditLogger, logger)
		deps.Auth = authSvc
		deps.UserDeleter = authSvc
	} else {
		logger.Warn("auth secrets not set; AuthService RPCs return Unimplemented")
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}
	defer lis.Close()

	s := server.NewServer(deps)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := s.Serve(lis); err != nil {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down gRPC server")
	s.GracefulStop()

	time.Sleep(telemetry.ShutdownDrainDuration)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown", zap.Error(err))
	}
	logger.Info("gRPC server stopped")
}

// runInlineWorker drains the in-memory email queue when there is no shared database for cmd/worker.
func runInlineWorker(ctx context.Context, cfg *config.Config, queue deliveryrepo.Queue, emitter telemetry.EventEmitter, logger *zap.Logger) {
	w := delivery.NewWorker(queue, delivery.WorkerOptions{
		RateEvery:       cfg.EmailQueueRateInterval(),
		DrainDelay:      cfg.EmailQueueDrainDelayDuration(),
		StalledInterval: cfg.EmailQueueStalledIntervalDuration(),
		MaxStalled:      cfg.EmailQueueMaxStalled,
		KeepCompleted:   cfg.EmailQueueKeepCompleted,
		CompletedMaxAge: cfg.EmailQueueCompletedMaxAgeDuration(),
	}, logger, delivery.NewLogObserver(logger), delivery.NewTelemetryObserver(emitter, logger))
	mailer := mail.NewMailer(mail.NewLogTransport(logger), cfg.AppURL)
	w.Handle(deliverydomain.TaskEmailVerification, delivery.NewVerificationEmailHandler(mailer))
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("inline email worker stopped", zap.Error(err))
	}
}
