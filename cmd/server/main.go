package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/damir5/kosarica-sub000/config"
	"github.com/damir5/kosarica-sub000/internal/database"
	"github.com/damir5/kosarica-sub000/internal/handlers"
	"github.com/damir5/kosarica-sub000/internal/middleware"
	"github.com/damir5/kosarica-sub000/internal/queue"
	"github.com/damir5/kosarica-sub000/internal/sweepers"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)

	logger.Info().Msg("Starting price service")

	dbURL := config.GetDatabaseURL()
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL not set")
	}

	ctx := context.Background()
	if err := database.Connect(
		ctx,
		dbURL,
		cfg.Database.MaxConnections,
		cfg.Database.MinConnections,
		cfg.Database.MaxConnLifetime,
		cfg.Database.MaxConnIdleTime,
	); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	logger.Info().Msg("Database connected")

	// Ingestion is driven by queue workers; the server only enqueues. If the
	// broker is down the ingest/rerun endpoints answer 503 until it returns.
	q, err := queue.NewFromURL(config.GetRedisURL())
	if err != nil {
		logger.Warn().Err(err).Msg("Queue broker not configured, ingestion endpoints disabled")
	} else {
		defer q.Close()
		if err := q.Ping(ctx); err != nil {
			logger.Warn().Err(err).Msg("Queue broker unreachable at startup")
		}
		handlers.SetQueue(q)
	}

	runSweeper := sweepers.NewStaleRunSweeper(database.Pool(), logger, 5*time.Minute, 6*time.Hour)
	go runSweeper.Start(ctx)

	if cfg.Logging.Level == "info" || cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	setupMiddleware(router, logger)

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	internal := router.Group("/internal")
	internal.Use(middleware.InternalAuthMiddleware())
	internal.Use(middleware.ServiceRateLimitMiddleware(50, 100))
	{
		internal.GET("/health", handlers.HealthCheck)
		internal.GET("/chains", handlers.ListChains)

		admin := internal.Group("/admin")
		{
			admin.POST("/ingest/:chain", handlers.IngestChain)
		}

		ingestion := internal.Group("/ingestion")
		{
			ingestion.GET("/runs", handlers.ListRuns)
			ingestion.GET("/runs/:runId", handlers.GetRun)
			ingestion.GET("/runs/:runId/files", handlers.ListFiles)
			ingestion.GET("/runs/:runId/errors", handlers.ListErrors)
			ingestion.GET("/stats", handlers.GetStats)
			ingestion.GET("/error-summary", handlers.GetErrorSummary)
			ingestion.POST("/runs/:runId/rerun", handlers.RerunRun)
			ingestion.DELETE("/runs/:runId", handlers.DeleteRun)
		}

		prices := internal.Group("/prices")
		{
			prices.GET("/:chainSlug/:storeId", handlers.GetStorePrices)
		}

		items := internal.Group("/items")
		{
			items.GET("/search", handlers.SearchItems)
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")
	runSweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "price-service").Logger()
	return &logger
}

func setupMiddleware(router *gin.Engine, logger *zerolog.Logger) {
	router.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("ip", c.ClientIP()).
			Msg("HTTP request")
	})
}
