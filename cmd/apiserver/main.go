// The apiserver exposes the REST API for triggering automation, reading
// analyses and plans, tuning per-company configuration and operating the
// processing queue. It embeds a processor instance so the queue control
// endpoints act on a live worker pool.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

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
	httpiface "github.com/nexohr/psicorisco/internal/interfaces/http"
	"github.com/nexohr/psicorisco/internal/interfaces/http/handlers"
)

const defaultConfigPath = "configs/config.yaml"

var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
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
	logger = logger.Named("apiserver")
	logger.Info("starting API server",
		logging.String("addr", cfg.Server.Addr()),
		logging.String("version", version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := postgres.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer conn.Close()
	pool := conn.Pool()

	migrator, err := postgres.NewMigrator(cfg.Database, logger)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil {
		migrator.Close()
		return err
	}
	migrator.Close()

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

	metrics := prometheus.NewMetrics(cfg.Metrics.Namespace)
	var events appautomation.EventPublisher = appautomation.NopPublisher{}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, logger)
		defer producer.Close()
		events = producer
	}

	sender := buildSender(cfg, logger)

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

	intakeGuard := redis.NewIntakeGuard(redisClient, logger)
	trigger := appautomation.NewTrigger(assessments, queue, configs, intakeGuard, cfg.Worker.MaxRetries, nil, logger)

	statsCache := redis.NewCache(redisClient, logger)
	stats := appautomation.NewStatsService(logs, queue, statsCache, redisClient.DefaultTTL(), nil, logger)
	catalog.OnReload(func() {
		stats.Invalidate(context.Background())
	})

	router := httpiface.NewRouter(httpiface.RouterConfig{
		Automation: handlers.NewAutomationHandler(trigger, queue, logs, processor, logger),
		Stats:      handlers.NewStatsHandler(stats, configs, logger),
		Analysis:   handlers.NewAnalysisHandler(analyses, plans, notifications, logger),
		Health: handlers.NewHealthHandler(map[string]handlers.Pinger{
			"postgres": conn,
			"redis":    redisClient,
		}, version, logger),
		MetricsHandler: metrics.Handler(),
		Mode:           cfg.Server.Mode,
		Logger:         logger,
	})

	server := httpiface.NewServer(cfg.Server, router, logger)
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Start() }()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown incomplete", logging.Err(err))
	}
	if err := processor.Stop(shutdownCtx); err != nil {
		logger.Warn("processor did not drain cleanly", logging.Err(err))
	}
	logger.Info("apiserver stopped")
	return nil
}

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
