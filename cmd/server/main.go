package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"basegraph.app/scribe/common/id"
	"basegraph.app/scribe/common/llm"
	"basegraph.app/scribe/common/logger"
	"basegraph.app/scribe/common/otel"
	"basegraph.app/scribe/core/config"
	"basegraph.app/scribe/core/db"
	"basegraph.app/scribe/internal/brain"
	"basegraph.app/scribe/internal/http/middleware"
	httprouter "basegraph.app/scribe/internal/http/router"
	"basegraph.app/scribe/internal/model"
	"basegraph.app/scribe/internal/queue"
	"basegraph.app/scribe/internal/room"
	"basegraph.app/scribe/internal/segmenter"
	"basegraph.app/scribe/internal/service"
	"basegraph.app/scribe/internal/store"
	"basegraph.app/scribe/internal/worker"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "scribe starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(cfg.NodeID); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	var persistence service.Persistence
	if cfg.DB.Enabled() {
		database, err := db.New(ctx, cfg.DB)
		if err != nil {
			slog.ErrorContext(ctx, "failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer database.Close()
		slog.InfoContext(ctx, "database connected")

		persistence = service.Persistence{
			Stores:   store.NewStores(database.Pool()),
			TxRunner: service.NewTxRunner(database),
		}
	} else {
		slog.InfoContext(ctx, "database disabled, rooms are memory-only")
	}

	var redisClient *redis.Client
	var events queue.EventPublisher
	if cfg.Redis.Enabled() {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(redisOpts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
			os.Exit(1)
		}
		slog.InfoContext(ctx, "redis connected", "ingest_stream", cfg.Redis.IngestStream)

		events = queue.NewRedisEventPublisher(redisClient, cfg.Redis.EventStreamPrefix, cfg.Redis.EventStreamMaxLen, slog.Default())
	} else {
		slog.InfoContext(ctx, "redis disabled, ingest stream and room events are off")
	}

	registry := room.NewRegistry(segmentationDefaults(cfg.Segmentation), segmenter.New())
	services := service.NewServices(registry, persistence, events, slog.Default())

	restored, err := services.Rooms().Restore(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to restore rooms", "error", err)
		os.Exit(1)
	}
	if restored > 0 {
		slog.InfoContext(ctx, "rooms restored", "count", restored)
	}

	bg, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	var stops []func()
	if redisClient != nil {
		stop, err := startIngest(bg, cfg.Redis, redisClient, services.Rooms())
		if err != nil {
			slog.ErrorContext(ctx, "failed to start ingest worker", "error", err)
			os.Exit(1)
		}
		stops = append(stops, stop)
	}

	if cfg.SummaryLLM.Enabled() && cfg.Summary.Enabled() {
		stop, err := startSummaries(bg, cfg, services.Rooms())
		if err != nil {
			slog.ErrorContext(ctx, "failed to start summary scheduler", "error", err)
			os.Exit(1)
		}
		stops = append(stops, stop)
	} else {
		slog.InfoContext(ctx, "summary scheduler disabled")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services, redisClient)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// No WriteTimeout: the SSE event stream holds responses open.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	for _, stop := range stops {
		stop()
	}
	stopBackground()

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

// startIngest runs the utterance stream worker and its reclaimer.
func startIngest(ctx context.Context, cfg config.RedisConfig, client *redis.Client, rooms service.RoomService) (func(), error) {
	consumer, err := queue.NewRedisConsumer(ctx, client, queue.ConsumerConfig{
		Stream:       cfg.IngestStream,
		Group:        cfg.IngestGroup,
		Consumer:     cfg.IngestConsumer,
		DLQStream:    cfg.IngestDLQStream,
		BatchSize:    50,
		Block:        5 * time.Second,
		MaxAttempts:  cfg.MaxAttempts,
		RequeueDelay: 500 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("creating consumer: %w", err)
	}

	w := worker.New(consumer, rooms, worker.Config{MaxAttempts: cfg.MaxAttempts})
	reclaimer := worker.NewRedisReclaimer(client, worker.RedisReclaimerConfig{
		Stream:    cfg.IngestStream,
		Group:     cfg.IngestGroup,
		Consumer:  cfg.IngestConsumer,
		MinIdle:   cfg.ReclaimMinIdle,
		Interval:  cfg.ReclaimInterval,
		BatchSize: 50,
	}, consumer, w.Handle)

	go func() {
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "ingest worker exited", "error", err)
		}
	}()
	go reclaimer.Run(ctx)

	return func() {
		reclaimer.Stop()
		w.Stop()
	}, nil
}

func startSummaries(ctx context.Context, cfg config.Config, rooms service.RoomService) (func(), error) {
	client, err := llm.New(llm.Config{
		Provider:        cfg.SummaryLLM.Provider,
		APIKey:          cfg.SummaryLLM.APIKey,
		BaseURL:         cfg.SummaryLLM.BaseURL,
		Model:           cfg.SummaryLLM.Model,
		MaxTokens:       cfg.SummaryLLM.MaxTokens,
		ReasoningEffort: llm.ReasoningEffort(cfg.SummaryLLM.ReasoningEffort),
	})
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}

	scheduler := worker.NewSummaryScheduler(rooms, brain.NewSummarizer(client, slog.Default()), worker.SummaryConfig{
		Interval: cfg.Summary.Interval,
		Window:   cfg.Summary.Window,
	})
	go scheduler.Run(ctx)

	slog.InfoContext(ctx, "summary llm configured", "model", client.Model())
	return scheduler.Stop, nil
}

func segmentationDefaults(c config.SegmentationConfig) model.Thresholds {
	return model.Thresholds{
		PauseBoundaryMs:      c.PauseBoundaryMs,
		MergeGapMs:           c.MergeGapMs,
		MaxChars:             c.MaxChars,
		MaxWords:             c.MaxWords,
		MaxDurationMs:        c.MaxDurationMs,
		TopicShiftConfidence: c.TopicShiftConfidence,
	}
}

func setupRouter(cfg config.Config, services *service.Services, redisClient *redis.Client) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.TraceHeader(cfg.Redis.TraceHeaderName))

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		Redis:             redisClient,
		EventStreamPrefix: cfg.Redis.EventStreamPrefix,
	})

	return router
}

const banner = `
███████╗ ██████╗██████╗ ██╗██████╗ ███████╗
██╔════╝██╔════╝██╔══██╗██║██╔══██╗██╔════╝
███████╗██║     ██████╔╝██║██████╔╝█████╗  
╚════██║██║     ██╔══██╗██║██╔══██╗██╔══╝  
███████║╚██████╗██║  ██║██║██████╔╝███████╗
╚══════╝ ╚═════╝╚═╝  ╚═╝╚═╝╚═════╝ ╚══════╝
`
