// Worker delivers queued verification emails from the Postgres email_jobs table.
// Set DATABASE_URL; MAIL_HOST selects SMTP delivery (otherwise emails are logged).
// KAFKA_BROKERS publishes job lifecycle events to EMAIL_EVENTS_KAFKA_TOPIC and METRICS_ADDR serves Prometheus /metrics.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"authgate/backend/internal/config"
	"authgate/backend/internal/db"
	"authgate/backend/internal/delivery"
	deliverydomain "authgate/backend/internal/delivery/domain"
	deliveryrepo "authgate/backend/internal/delivery/repository"
	"authgate/backend/internal/logging"
	"authgate/backend/internal/mail"
	"authgate/backend/internal/telemetry"
	telemetryotel "authgate/backend/internal/telemetry/otel"
	"authgate/backend/internal/telemetry/producer"
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
	logger = logger.Named("worker")

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName("authgate-worker"),
		Insecure:    cfg.OTLPInsecure,
	}, logger)
	if err != nil {
		logger.Fatal("telemetry", zap.Error(err))
	}
	providers.SetGlobal()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	var transport mail.Transport
	if cfg.MailHost != "" {
		transport = mail.NewSMTPTransport(cfg.MailHost, cfg.MailPort, cfg.MailUser, cfg.MailPassword, cfg.MailFrom)
	} else {
		logger.Warn("MAIL_HOST not set; verification emails are logged, not sent")
		transport = mail.NewLogTransport(logger)
	}
	mailer := mail.NewMailer(transport, cfg.AppURL)

	kafkaProducer := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.EmailEventsKafkaTopic)
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			logger.Warn("kafka producer close", zap.Error(err))
		}
	}()
	var kafkaEmitter telemetry.EventEmitter
	if kafkaProducer != nil {
		kafkaEmitter = kafkaProducer
		logger.Info("publishing email events to kafka", zap.String("topic", cfg.EmailEventsKafkaTopic))
	}
	emitter := telemetry.Fanout(telemetryotel.NewEventEmitter(providers.LoggerProvider), kafkaEmitter)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := delivery.NewMetrics(registry)
	if err != nil {
		logger.Fatal("metrics", zap.Error(err))
	}
	metricsSrv := serveMetrics(cfg.MetricsAddr, registry, logger)

	w := delivery.NewWorker(deliveryrepo.NewPostgresQueue(pool), delivery.WorkerOptions{
		RateEvery:       cfg.EmailQueueRateInterval(),
		DrainDelay:      cfg.EmailQueueDrainDelayDuration(),
		StalledInterval: cfg.EmailQueueStalledIntervalDuration(),
		MaxStalled:      cfg.EmailQueueMaxStalled,
		KeepCompleted:   cfg.EmailQueueKeepCompleted,
		CompletedMaxAge: cfg.EmailQueueCompletedMaxAgeDuration(),
	}, logger,
		delivery.NewLogObserver(logger),
		metrics,
		delivery.NewTelemetryObserver(emitter, logger),
	)
	w.Handle(deliverydomain.TaskEmailVerification, delivery.NewVerificationEmailHandler(mailer))

	if err := w.Run(ctx); err != nil {
		logger.Error("worker stopped", zap.Error(err))
	}
	logger.Info("worker: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetry.ShutdownDrainDuration)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown", zap.Error(err))
	}
}

// serveMetrics exposes registry on addr/metrics. Returns nil when addr is empty.
func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	return srv
}
