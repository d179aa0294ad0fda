package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"signalflow/admission"
	"signalflow/config"
	"signalflow/dispatch"
	"signalflow/enrich"
	"signalflow/gate"
	"signalflow/logger"
	"signalflow/processor"
	"signalflow/queue"
	"signalflow/reader/heat"
	"signalflow/reader/httpapi"
	"signalflow/reader/stream"
	"signalflow/render"
	"signalflow/store"
	"signalflow/tier"
	"signalflow/writer"
)

type component struct {
	name  string
	start func(context.Context) error
	stop  func()
}

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Signalflow.Name,
		"version": cfg.Signalflow.Version,
	}).Info("starting signalflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.Enabled {
		logger.InitCloudWatch(cfg.Metrics.Region, cfg.Metrics.Namespace, cfg.Signalflow.Name)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		interval := cfg.Metrics.ReportInterval
		if interval <= 0 {
			interval = 30 * time.Second
		}
		logger.StartReport(ctx, log, interval)
	}

	// Shared state: dedup store, candidate queue, escalation ledger.
	var kv store.KV
	if cfg.Store.Redis.Enabled {
		redisStore, err := store.NewRedisStore(cfg.Store.Redis)
		if err != nil {
			log.WithError(err).Error("failed to connect to redis")
			os.Exit(1)
		}
		defer redisStore.Close()
		kv = store.NewFallbackKV(redisStore)
	} else {
		log.WithComponent("main").Info("redis disabled, using in-memory dedup store")
		kv = store.NewMemoryStore()
	}

	q := queue.New()
	logger.RegisterGauge("queue_depth", func() int64 { return int64(q.Len()) })

	escalation := tier.NewEscalation(cfg.Tiers)
	evaluator := tier.NewEvaluator(cfg.Tiers)
	sendGate := gate.New(cfg.Gate)
	filter := admission.NewFilter(cfg.Admission, kv, q, escalation)
	fetcher := enrich.NewFetcher(cfg.Enrich)

	transport, err := dispatch.NewTelegramTransport(cfg.Telegram)
	if err != nil {
		log.WithError(err).Error("failed to initialize telegram transport")
		os.Exit(1)
	}

	auditWriter, err := writer.NewAuditWriter(cfg.Audit, cfg.Signalflow.Version)
	if err != nil {
		log.WithError(err).Error("failed to initialize audit writer")
		os.Exit(1)
	}

	dispatcher := dispatch.NewDispatcher(
		cfg.Dispatch,
		transport,
		dispatch.NewResolver(cfg.Dispatch, dispatch.NewHTTPTargetSource(cfg.Dispatch.TargetsAPI)),
		render.NewRenderer(cfg.Dispatch),
		kv,
		auditWriter,
	)

	proc := processor.NewProcessor(cfg, q, fetcher, evaluator, escalation, sendGate, dispatcher)
	apiServer := httpapi.NewServer(cfg, filter, q)

	var streamConsumer *stream.Consumer
	if cfg.Ingest.Kafka.Enabled {
		streamConsumer, err = stream.NewConsumer(cfg.Ingest.Kafka)
		if err != nil {
			log.WithError(err).Error("failed to initialize stream consumer")
			os.Exit(1)
		}
	}

	var heatScheduler *heat.Scheduler
	if cfg.Ingest.Heat.Enabled {
		heatScheduler, err = heat.NewScheduler(cfg.Ingest.Heat, fetcher, proc, evaluator)
		if err != nil {
			log.WithError(err).Error("failed to initialize heat scheduler")
			os.Exit(1)
		}
	}

	components := []component{
		{"audit_writer", auditWriter.Start, auditWriter.Stop},
		{"processor", proc.Start, proc.Stop},
		{"http_api", apiServer.Start, apiServer.Stop},
	}
	if streamConsumer != nil {
		components = append(components, component{"stream_consumer", streamConsumer.Start, streamConsumer.Stop})
	}
	if heatScheduler != nil {
		components = append(components, component{"heat_scheduler", heatScheduler.Start, heatScheduler.Stop})
	}

	for _, c := range components {
		if err := c.start(ctx); err != nil {
			log.WithError(err).WithFields(logger.Fields{"component": c.name}).Error("component failed to start")
			os.Exit(1)
		}
	}

	// Hourly reset of the in-process admission cache. The shared store
	// keys keep their own TTLs.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("0 * * * *", filter.ResetInflight); err != nil {
		log.WithError(err).Error("failed to schedule admission cache reset")
		os.Exit(1)
	}
	scheduler.Start()

	go heartbeat(ctx, log, q)

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()
	scheduler.Stop()

	for i := len(components) - 1; i >= 0; i-- {
		log.WithFields(logger.Fields{"component": components[i].name}).Info("stopping component")
		components[i].stop()
	}

	log.Info("signalflow stopped")
}

// heartbeat logs a liveness line with the key runtime numbers.
func heartbeat(ctx context.Context, log *logger.Log, q *queue.Queue) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.WithComponent("heartbeat").WithFields(logger.Fields{
				"queue_depth": q.Len(),
				"processed":   q.Processed(),
			}).Info("service alive")
		}
	}
}
