package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	consenthandler "dataguard/internal/consent/handler"
	"dataguard/internal/consent/intake"
	consentmetrics "dataguard/internal/consent/metrics"
	consentservice "dataguard/internal/consent/service"
	dsrhandler "dataguard/internal/dsr/handler"
	dsrmetrics "dataguard/internal/dsr/metrics"
	dsrmodels "dataguard/internal/dsr/models"
	dsrservice "dataguard/internal/dsr/service"
	"dataguard/internal/export"
	"dataguard/internal/notify"
	"dataguard/internal/platform/config"
	"dataguard/internal/platform/database"
	"dataguard/internal/platform/health"
	"dataguard/internal/platform/kafka"
	"dataguard/internal/platform/kafka/consumer"
	"dataguard/internal/platform/kafka/producer"
	"dataguard/internal/platform/logger"
	redisclient "dataguard/internal/platform/redis"
	"dataguard/internal/platform/scheduling"
	"dataguard/internal/purge"
	purgemetrics "dataguard/internal/purge/metrics"
	"dataguard/internal/reporting"
	"dataguard/internal/retention"
	retentionhandler "dataguard/internal/retention/handler"
	"dataguard/internal/retention/lease"
	retentionmetrics "dataguard/internal/retention/metrics"
	"dataguard/internal/retention/scheduler"
	"dataguard/internal/seeder"
	tenanthandler "dataguard/internal/tenant/handler"
	tenantmetrics "dataguard/internal/tenant/metrics"
	tenantservice "dataguard/internal/tenant/service"
	httptransport "dataguard/internal/transport/http"
	"dataguard/migrations"
	"dataguard/pkg/platform/audit"
	auditmetrics "dataguard/pkg/platform/audit/metrics"
	outboxmetrics "dataguard/pkg/platform/audit/outbox/metrics"
	outboxworker "dataguard/pkg/platform/audit/outbox/worker"
	"dataguard/pkg/platform/middleware/request"
	"dataguard/pkg/platform/privacy"
	"dataguard/pkg/platform/tracer"
)

const (
	taskTimeout       = time.Hour
	topicPartitions   = 3
	topicReplication  = 1
	poolStatsSchedule = "15s"
	outboxStatsEvery  = "30s"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel)
	for _, w := range cfg.Warnings() {
		log.Warn("configuration warning", "environment", cfg.Server.Environment, "warning", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	log.InfoContext(ctx, "initializing dataguard",
		"addr", cfg.Server.Addr,
		"environment", cfg.Server.Environment,
		"postgres", cfg.Database.URL != "",
		"redis", cfg.Redis.URL != "",
		"kafka", cfg.KafkaEnabled(),
	)

	// Infrastructure
	pool, err := database.New(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close() //nolint:errcheck // shutdown path

	st := memoryStores()
	if pool != nil {
		if cfg.Database.AutoMigrate {
			applied, err := database.Migrate(ctx, pool.DB(), migrations.FS)
			if err != nil {
				return err
			}
			log.InfoContext(ctx, "migrations applied", "files", applied)
		}
		st = postgresStores(pool.DB(), cfg.Database.TxTimeout)
	} else {
		log.WarnContext(ctx, "DATABASE_URL not set; using in-memory stores")
	}

	rdb, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	var locker lease.Locker = lease.NewMemoryLocker()
	if rdb != nil {
		defer rdb.Close() //nolint:errcheck // shutdown path
		locker = lease.NewRedisLocker(rdb.Client)
	}

	var prod *producer.Producer
	if cfg.KafkaEnabled() {
		prod, err = producer.New(producer.Config{
			Brokers:         cfg.Kafka.Brokers,
			Acks:            "all",
			Retries:         5,
			DeliveryTimeout: cfg.Kafka.DeliveryTimeout,
		}, log)
		if err != nil {
			return err
		}
		defer prod.Close() //nolint:errcheck // shutdown path
		if err := kafka.EnsureTopics(ctx, prod.Client(), topicPartitions, topicReplication,
			cfg.Kafka.AuditTopic, cfg.Kafka.NotificationTopic, cfg.Kafka.ConsentTopic); err != nil {
			log.WarnContext(ctx, "topic bootstrap failed", "error", err)
		}
	}

	// Domain
	tr := tracer.NewOTel("dataguard")
	masker := privacy.NewMasker(cfg.Compliance.Audit.MaskedFields, cfg.Compliance.Audit.CapturePII)
	trail := audit.NewTrail(st.audit, masker, audit.WithLogger(log), audit.WithMetrics(auditmetrics.New()))

	resolver, err := retention.NewResolver(cfg.Compliance.RetentionDays)
	if err != nil {
		return err
	}
	tenants := tenantservice.New(st.tenants, trail, st.runner, log, tenantservice.WithMetrics(tenantmetrics.New()))

	consentMetrics := consentmetrics.New()
	consents := consentservice.New(st.consents, trail, st.runner, log,
		consentservice.WithMetrics(consentMetrics),
		consentservice.WithValidity(cfg.Compliance.Consent.Validity),
	)

	registry, err := purge.NewRegistry(st.providers...)
	if err != nil {
		return err
	}
	executor := purge.NewExecutor(registry, trail, st.runner, log,
		purge.WithMetrics(purgemetrics.New()),
		purge.WithTracer(tr),
	)

	bundles, err := exportStore(cfg.Server.ExportDir)
	if err != nil {
		return err
	}
	requests := dsrservice.New(st.requests, trail, st.runner, executor, export.NewBuilder(registry, bundles, log), log,
		dsrservice.WithPolicy(dsrPolicy(cfg.Compliance.DSR)),
		dsrservice.WithMetrics(dsrmetrics.New()),
		dsrservice.WithTracer(tr),
	)

	sink := notify.Multi{notify.NewLogSink(log)}
	if prod != nil {
		sink = append(sink, notify.NewKafkaSink(prod, cfg.Kafka.NotificationTopic, notify.BreakerConfig{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			Interval:    time.Minute,
		}, log))
	}

	ret := cfg.Compliance.Retention
	purges := scheduler.New(tenants, resolver, executor, st.runs, locker, trail, st.runner, sink, log,
		scheduler.Config{
			MaxPurgeAttempts:   ret.MaxPurgeAttempts,
			NotifyOnFailure:    ret.NotifyOnFailure,
			Concurrency:        ret.PurgeConcurrency,
			RatePerSecond:      ret.PurgeRate,
			LeaseTTL:           ret.LeaseTTL,
			StaleProcessingTTL: cfg.Compliance.DSR.StaleProcessingTTL,
		},
		scheduler.WithRecoverer(requests),
		scheduler.WithMetrics(retentionmetrics.New()),
		scheduler.WithTracer(tr),
	)

	if cfg.Server.SeedDemo && st.demo != nil {
		if _, err := seeder.New(tenants, consents, st.demo, log).SeedAll(ctx); err != nil {
			return err
		}
	}

	// Background work
	tasks := scheduling.NewRunner(log, taskTimeout)
	if err := purges.Register(tasks, ret.CleanupSchedule); err != nil {
		return err
	}
	if rdb != nil {
		if err := tasks.Add("redis-pool-stats", poolStatsSchedule, func(context.Context) error {
			rdb.RecordPoolStats()
			return nil
		}); err != nil {
			return err
		}
	}

	var relay *outboxworker.Worker
	var intakeConsumer *consumer.Consumer
	if prod != nil {
		if st.outbox != nil {
			relay = outboxworker.New(st.outbox, prod,
				outboxworker.WithTopic(cfg.Kafka.AuditTopic),
				outboxworker.WithPollInterval(cfg.Kafka.OutboxPollInterval),
				outboxworker.WithRunner(st.runner),
				outboxworker.WithMetrics(outboxmetrics.New()),
				outboxworker.WithLogger(log),
			)
			if err := tasks.Add("outbox-metrics", outboxStatsEvery, relay.UpdateMetrics); err != nil {
				return err
			}
			relay.Start()
		}

		intakeConsumer, err = consumer.New(consumer.Config{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.ConsumerGroup,
			Topics:  []string{cfg.Kafka.ConsentTopic},
		}, intake.New(consents, log, consentMetrics), log)
		if err != nil {
			return err
		}
		intakeConsumer.Start(ctx)
	}
	tasks.Start(ctx)

	// HTTP
	probes := health.New(cfg.Server.Environment)
	if pool != nil {
		probes.RegisterCheck("postgres", pool.Health)
	}
	if rdb != nil {
		probes.RegisterCheck("redis", rdb.Health)
	}
	if prod != nil {
		probes.RegisterCheck("kafka", prod.Health)
	}

	router := httptransport.NewRouter(httptransport.Config{
		AdminToken: cfg.Server.AdminToken,
		Health:     probes,
		Metrics:    request.NewMetrics(),
		Tenants:    tenanthandler.New(tenants, log),
		Scoped: []httptransport.Registrar{
			consenthandler.New(consents, log),
			dsrhandler.New(requests, log),
			retentionhandler.New(purges, log),
			reporting.NewHandler(reporting.NewService(requests, trail, purges), log),
		},
	}, log)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.InfoContext(ctx, "starting http server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down server gracefully")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	errs = append(errs, srv.Shutdown(shutdownCtx))
	tasks.Stop()
	if intakeConsumer != nil {
		errs = append(errs, intakeConsumer.Stop(shutdownCtx))
	}
	if relay != nil {
		errs = append(errs, relay.Stop(shutdownCtx))
	}
	return errors.Join(errs...)
}

func exportStore(dir string) (export.Store, error) {
	if dir == "" {
		return export.NewMemoryStore(), nil
	}
	return export.NewFileStore(dir)
}

func dsrPolicy(cfg config.DSR) dsrservice.Policy {
	kinds := make([]dsrmodels.Kind, 0, len(cfg.AutoApprovalKinds))
	for _, k := range cfg.AutoApprovalKinds {
		kinds = append(kinds, dsrmodels.Kind(k))
	}
	return dsrservice.Policy{
		MaxPendingRequests:  cfg.MaxPendingRequests,
		AutoApprovalEnabled: cfg.AutoApprovalEnabled,
		AutoApprovalKinds:   kinds,
		MaxProcessingDays:   cfg.MaxProcessingDays,
	}
}
