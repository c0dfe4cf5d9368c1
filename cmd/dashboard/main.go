package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/odyssey-erp/traffic-dashboard/internal/app"
	"github.com/odyssey-erp/traffic-dashboard/internal/observability"
	"github.com/odyssey-erp/traffic-dashboard/internal/platform/cache"
	"github.com/odyssey-erp/traffic-dashboard/internal/shared"
	"github.com/odyssey-erp/traffic-dashboard/internal/traffic"
	"github.com/odyssey-erp/traffic-dashboard/internal/traffic/export"
	traffichttp "github.com/odyssey-erp/traffic-dashboard/internal/traffic/http"
	"github.com/odyssey-erp/traffic-dashboard/internal/traffic/svg"
	"github.com/odyssey-erp/traffic-dashboard/internal/view"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	initial, err := loadInitialDataset(logger, cfg.DataPath, time.Now())
	if err != nil {
		logger.Error("load startup dataset", slog.String("path", cfg.DataPath), slog.Any("error", err))
		os.Exit(1)
	}

	sessionManager := shared.NewSessionManager(redisClient, "traffic_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	store := traffic.NewStore(redisClient, cfg.DatasetTTL)
	service := traffic.NewService(store, initial)
	pdfExporter := &export.PDFExporter{Endpoint: cfg.GotenbergURL, Client: &http.Client{Timeout: 20 * time.Second}}

	trafficHandler := traffichttp.NewHandler(
		logger,
		service,
		templates,
		traffichttp.Renderers{
			Line:      svg.Renderer{},
			Pie:       svg.Renderer{},
			Histogram: svg.Renderer{},
		},
		pdfExporter,
		csrfManager,
		metrics,
		cfg.UploadMaxBytes,
	)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		TrafficHandler: trafficHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// loadInitialDataset reads the optional startup CSV. A missing or unreadable
// file starts the dashboard empty; a file that does not parse is an error.
func loadInitialDataset(logger *slog.Logger, path string, now time.Time) (*traffic.Dataset, error) {
	if path == "" {
		return nil, nil
	}
	ds, err := traffic.LoadFile(path, now)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		logger.Warn("startup dataset unavailable, starting empty", slog.String("path", path), slog.Any("error", err))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	logger.Info("startup dataset loaded", slog.String("path", path), slog.Int("rows", len(ds.Records)))
	return &ds, nil
}
