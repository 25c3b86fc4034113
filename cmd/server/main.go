package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prepstation/capture-service/internal/audio"
	"github.com/prepstation/capture-service/internal/cache"
	"github.com/prepstation/capture-service/internal/config"
	"github.com/prepstation/capture-service/internal/export"
	"github.com/prepstation/capture-service/internal/handlers"
	"github.com/prepstation/capture-service/internal/media"
	"github.com/prepstation/capture-service/internal/playback"
	"github.com/prepstation/capture-service/internal/renderers"
	"github.com/prepstation/capture-service/internal/services"
	"github.com/prepstation/capture-service/internal/store"
	"github.com/prepstation/capture-service/internal/utils"
	"github.com/prepstation/capture-service/internal/validator"
	"github.com/prepstation/capture-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	var logger utils.Logger
	if cfg.Environment == "production" {
		logger = utils.NewDefaultLogger()
	} else {
		logger = utils.NewDevelopmentLogger()
	}
	slogger := utils.ToSlogLogger(logger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	publisher, err := cfg.Events.CreateEventPublisher(slogger)
	if err != nil {
		logger.Error("failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	cacheService := cache.NewRedisCache(redisClient, slogger)
	resolver := media.NewStoreResolver(db, cacheService, slogger)
	responseStore := store.NewResponseStore(db)

	deps := renderers.Deps{
		Persister:   responseStore,
		Resolver:    resolver,
		NewSource:   audio.NewPulseSource(cfg.AudioAppName),
		Sink:        playback.NewPulseSink(cfg.AudioAppName),
		Fetch:       fetchAsset,
		Logger:      slogger,
		QuietPeriod: time.Duration(cfg.AutosaveQuietMS) * time.Millisecond,
		Diagnostics: cfg.Diagnostics,
	}

	captureService := services.NewCaptureService(
		responseStore, deps, publisher, validator.New(), slogger)
	defer captureService.Close()

	exporter := export.NewExporter(responseStore, slogger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(logger))
	router.Use(utils.ContextLogger(logger))

	handlers.NewHandlerManager(captureService, exporter, logger).SetupRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("capture service listening", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
}

// fetchAsset retrieves remote media bytes for the playback controller.
func fetchAsset(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("unexpected status fetching asset: " + resp.Status)
	}
	return io.ReadAll(resp.Body)
}
