// The worker runs the automation pipeline: it leases queued responses,
// scores them, builds risk analyses and action plans, delivers
// notifications and sweeps the escalation ladder. It consumes
// assessment.completed events from the bus and exposes only a metrics
// endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appautomation "github.com/nexohr/psicorisco/internal/application/automation"
	"github.com/nexohr/psicorisco/internal/config"
	"github.com/nexohr/psicorisco/internal/domain/actionplan"
	"github.com/nexohr/psicorisco/internal/domain/notification"
	"github.com/nexohr/psicorisco/internal/domain/risk"
	"github.com/nexohr/psicorisco/internal/domain/scoring"
	"github.com/nexohr/psicorisco/internal/infrastructure/database/postgres"
	"github.com/nexohr/psicorisco/internal/infrastructure/database/postgres/repositories"
	"github.com/nexohr/psicorisco/internal/infrastructure/database/redis"
	"github.com/nexohr/psicorisco/internal/infrastructure/delivery"
	"github.com/nexohr/psicorisco/internal/infrastructure/messaging/kafka"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/logging"
	"github.com/nexohr/psicorisco/internal/infrastructure/monitoring/prometheus"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Log.ToLogging())
	if err != nil {
		return err
	}
	logger = logger.Named("worker")
	logger.Info("starting automation worker",
		logging.Int("concurrency", cfg.Worker.Concurrency),
		logging.Duration("poll_interval", cfg.Worker.PollInterval),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage.
	conn, err := postgres.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer conn.Close()
	pool := conn.Pool()

	redisClient, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	assessments := repositories.NewAssessmentRepository(pool, logger)
	analyses := repositories.NewRiskRepository(pool, logger)
	plans := repositories.NewActionPlanRepository(pool, logger)
	notifications := repositories.NewNotificationRepository(pool, logger)
	queue := repositories.NewQueueRepository(pool, logger)
	configs := repositories.NewConfigRepository(pool, logger)
	logs := repositories.NewLogRepository(pool, logger)

	// Question catalog with hot reload.
	catalog, err := scoring.LoadCatalog(cfg.Catalog.Path, logger)
	if err != nil {
		return err
	}
	defer catalog.Close()
	if cfg.Catalog.Watch {
		if err := catalog.Watch(); err != nil {
			logger.Warn("catalog watch unavailable, edits need a restart", logging.Err(err))
		}
	}

	// Monitoring and events.
	metrics := prometheus.NewMetrics(cfg.Metrics.Namespace)
	var events appautomation.EventPublisher = appautomation.NopPublisher{}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, logger)
		defer producer.Close()
		events = producer
	}

	// Notification delivery.
	sender := buildSender(cfg, logger)

	// Pipeline.
	orchestrator := appautomation.NewOrchestrator(appautomation.OrchestratorDeps{
		Assessments:   assessments,
		Configs:       configs,
		Queue:         queue,
		Logs:          logs,
		Engine:        scoring.NewEngine(catalog),
		Builder:       risk.NewBuilder(risk.NopEnricher{}, logger),
		Analyses:      analyses,
		Planner:       actionplan.NewGenerator(plans, logger),
		Notifications: notifications,
		Sender:        sender,
		Events:        events,
		Metrics:       metrics,
		Logger:        logger,
	})

	failureNotifier := appautomation.NewFailureNotifier(configs, notifications, sender, nil, logger)
	processor := appautomation.NewProcessor(appautomation.ProcessorConfig{
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
		MaxRetries:   cfg.Worker.MaxRetries,
		RetryBackoff: cfg.Worker.RetryBackoff,
		JobTimeout:   cfg.Worker.JobTimeout,
		LeaseTTL:     cfg.Worker.LeaseTTL,
	}, queue, orchestrator, events, failureNotifier, nil, metrics, logger)

	if err := processor.Start(ctx); err != nil {
		return err
	}

	// Stats cache invalidation when the catalog changes.
	statsCache := redis.NewCache(redisClient, logger)
	stats := appautomation.NewStatsService(logs, queue, statsCache, redisClient.DefaultTTL(), nil, logger)
	catalog.OnReload(func() {
		stats.Invalidate(context.Background())
		logger.Info("question catalog reloaded, stats cache invalidated")
	})

	// Escalation sweep, kept single-instance with a Redis lock.
	escalation := appautomation.NewEscalationWorker(
		notifications, analyses, assessments, configs, sender,
		cfg.Worker.EscalationCheckInterval, metrics, nil, logger,
	)
	leaderDone := runEscalationLeader(ctx, redisClient, escalation, cfg.Worker.EscalationCheckInterval, logger)

	// Intake from the HR platform.
	var consumer *kafka.IntakeConsumer
	if cfg.Kafka.Enabled {
		intakeGuard := redis.NewIntakeGuard(redisClient, logger)
		trigger := appautomation.NewTrigger(assessments, queue, configs, intakeGuard, cfg.Worker.MaxRetries, nil, logger)
		consumer = kafka.NewIntakeConsumer(cfg.Kafka, assessments, trigger, logger)
		consumer.Start(ctx)
	}

	// Metrics endpoint.
	metricsSrv := &http.Server{Addr: cfg.Metrics.Addr(), Handler: metricsHandler(cfg, metrics)}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", logging.Err(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if consumer != nil {
		consumer.Stop()
	}
	if err := processor.Stop(shutdownCtx); err != nil {
		logger.Warn("processor did not drain cleanly", logging.Err(err))
	}
	<-leaderDone
	_ = metricsSrv.Shutdown(shutdownCtx)

	logger.Info("worker stopped")
	return nil
}

// buildSender assembles the channel router: bus for email and in-app,
// Slack for leadership escalations when configured.
func buildSender(cfg *config.Config, logger logging.Logger) notification.Sender {
	router := delivery.NewRouter(logger)
	if cfg.Kafka.Enabled {
		bus := delivery.NewBusSender(cfg.Kafka, logger)
		router.Register(notification.ChannelEmail, bus)
		router.Register(notification.ChannelInApp, bus)
	} else {
		router.Register(notification.ChannelEmail, notification.NopSender{})
		router.Register(notification.ChannelInApp, notification.NopSender{})
	}
	if cfg.Slack.Enabled {
		router.Register(notification.ChannelSlack, delivery.NewSlackSender(cfg.Slack, logger))
	} else {
		router.Register(notification.ChannelSlack, notification.NopSender{})
	}
	return router
}

// runEscalationLeader keeps the escalation sweep running on exactly one
// worker instance. The lock TTL is twice the sweep interval and gets
// extended on every tick; losing it stops the local sweep.
func runEscalationLeader(ctx context.Context, client *redis.Client, worker *appautomation.EscalationWorker, interval time.Duration, logger logging.Logger) <-chan struct{} {
	done := make(chan struct{})
	lock := redis.NewMutex(client, "escalation-sweep", 2*interval, logger)

	go func() {
		defer close(done)
		leading := false
		defer func() {
			if leading {
				worker.Stop()
				_ = lock.Unlock(context.Background())
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if !leading {
				ok, err := lock.TryLock(ctx)
				if err != nil {
					logger.Warn("leader election unavailable", logging.Err(err))
				} else if ok {
					leading = true
					worker.Start(ctx)
					logger.Info("escalation sweep leadership acquired")
				}
			} else {
				ok, err := lock.Extend(ctx)
				if err != nil || !ok {
					logger.Warn("escalation sweep leadership lost", logging.Err(err))
					worker.Stop()
					leading = false
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return done
}

func metricsHandler(cfg *config.Config, metrics *prometheus.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, metrics.Handler())
	return mux
}
