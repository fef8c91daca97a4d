package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cpeq/infolettre-automatique/internal/adapters/ai"
	"github.com/cpeq/infolettre-automatique/internal/adapters/clickhouse"
	"github.com/cpeq/infolettre-automatique/internal/adapters/config"
	"github.com/cpeq/infolettre-automatique/internal/adapters/database"
	"github.com/cpeq/infolettre-automatique/internal/adapters/embeddings"
	redisAdapter "github.com/cpeq/infolettre-automatique/internal/adapters/redis"
	"github.com/cpeq/infolettre-automatique/internal/adapters/telegram"
	weaviateAdapter "github.com/cpeq/infolettre-automatique/internal/adapters/weaviate"
	"github.com/cpeq/infolettre-automatique/internal/adapters/webscraper"
	"github.com/cpeq/infolettre-automatique/internal/classifier"
	"github.com/cpeq/infolettre-automatique/internal/producer"
	"github.com/cpeq/infolettre-automatique/internal/server"
	"github.com/cpeq/infolettre-automatique/internal/service"
	"github.com/cpeq/infolettre-automatique/internal/storage"
	"github.com/cpeq/infolettre-automatique/internal/summary"
	"github.com/cpeq/infolettre-automatique/internal/vectorstore"
	"github.com/cpeq/infolettre-automatique/pkg/logger"
	"github.com/cpeq/infolettre-automatique/pkg/metrics"
	"github.com/cpeq/infolettre-automatique/pkg/models"
	"github.com/cpeq/infolettre-automatique/pkg/templates"
	"github.com/cpeq/infolettre-automatique/pkg/worker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("newsletter service starting")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.RunMigrations(db.Conn(), cfg.Database.MigrationsPath); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Embedding and completion models, with the Postgres embedding store.
	openAI := ai.NewClient(&cfg.OpenAI, embeddings.NewRepository(db.DB()))

	// Reference corpus.
	weaviateClient := weaviateAdapter.NewClient(&cfg.Weaviate, cfg.Vectorstore.CollectionName)
	if err := weaviateClient.Ready(ctx); err != nil {
		return err
	}
	store := vectorstore.New(weaviateClient, openAI, &cfg.Vectorstore)

	// Classification strategy, fitted from the corpus when it trains.
	strategy, err := classifier.NewStrategy(&cfg.Classifier, store)
	if err != nil {
		return err
	}
	if fittable, ok := strategy.(classifier.Fittable); ok {
		samples, err := store.TrainingSet(ctx, models.VectorTitleContent)
		if err != nil {
			return fmt.Errorf("failed to load training corpus: %w", err)
		}
		if err := fittable.Fit(samples); err != nil {
			return fmt.Errorf("failed to fit strategy %q: %w", strategy.Name(), err)
		}
		logger.Info("classification strategy fitted",
			zap.String("strategy", strategy.Name()),
			zap.Int("samples", len(samples)),
		)
	}

	// Optional metrics sink.
	var metricsBuffer metrics.Buffer
	if cfg.ClickHouse.Host != "" {
		writer, err := clickhouse.NewWriter(&cfg.ClickHouse)
		if err != nil {
			return err
		}
		defer writer.Close()

		metricsBuffer = metrics.NewBufferedMetrics(metrics.BufferConfig{Writer: writer})
		defer metricsBuffer.Close(context.Background())
	}

	// Optional distributed run lock.
	var runLock redisAdapter.RunLock
	if cfg.Redis.Host != "" {
		lock, err := redisAdapter.NewRunLock(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		runLock = lock
	}

	// Optional delivery channel.
	var notifier service.Notifier
	if cfg.Telegram.BotToken != "" {
		tg, err := telegram.NewNotifier(&cfg.Telegram)
		if err != nil {
			logger.Error("failed to create telegram notifier", zap.Error(err))
		} else {
			notifier = tg
		}
	}

	fileStore, err := storage.NewFileStore(cfg.Pipeline.OutputDir)
	if err != nil {
		return err
	}

	var promptTemplates *templates.Manager
	if cfg.Pipeline.TemplatesDir != "" {
		promptTemplates, err = templates.NewManagerFromDir(cfg.Pipeline.TemplatesDir)
	} else {
		promptTemplates, err = templates.NewManager()
	}
	if err != nil {
		return err
	}

	newsProducer := producer.New(
		classifier.NewRubricClassifier(strategy),
		summary.NewGenerator(openAI, promptTemplates),
		store,
		metricsBuffer,
	)
	relevancy := classifier.NewRelevancyClassifier(strategy, cfg.Classifier.RelevancyThreshold)

	svc, err := service.New(
		webscraper.NewClient(&cfg.Webscraper),
		relevancy,
		newsProducer,
		storage.NewNewsRepository(db.DB()),
		storage.NewNewsletterRepository(db.DB()),
		fileStore,
		&cfg.Pipeline,
		service.Options{
			Notifier: notifier,
			RunLock:  runLock,
			Metrics:  metricsBuffer,
		},
	)
	if err != nil {
		return err
	}

	// Weekly scheduler.
	workers := worker.NewGroup(ctx)
	if cfg.Pipeline.ScheduleEnabled {
		scheduler := service.NewScheduler(svc, cfg.Pipeline.ScheduleWeekday, cfg.Pipeline.ScheduleHour)
		workers.Add(scheduler, cfg.Pipeline.ScheduleInterval)
	}
	workers.Start()
	defer workers.Stop(30 * time.Second)

	srv := server.NewServer(cfg.Server.Port, svc, db, cfg.Pipeline.RunTimeout)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("http server error", zap.Error(err))
			cancel()
		}
	}()
	srv.SetReady(true)

	logger.Info("newsletter service ready",
		zap.String("port", cfg.Server.Port),
		zap.String("strategy", strategy.Name()),
	)

	<-ctx.Done()
	logger.Info("shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	return srv.Stop(shutdownCtx)
}
