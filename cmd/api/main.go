package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"briefboard/internal/api"
	"briefboard/internal/app"
	"briefboard/internal/catalog"
	"briefboard/internal/config"
	"briefboard/internal/dashboard"
	"briefboard/internal/session"

	"github.com/joho/godotenv"
	tclient "go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger := app.NewLogger(cfg.Dev)
	defer logger.Sync()

	verifier, err := session.NewVerifier(cfg.AuthSecret)
	if err != nil {
		logger.Fatal("auth", zap.Error(err))
	}
	cat, err := catalog.Load(cfg.ModelsFile)
	if err != nil {
		logger.Fatal("model catalog", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	persist, err := app.OpenPersistence(ctx, cfg)
	cancel()
	if err != nil {
		logger.Fatal("postgres", zap.Error(err))
	}
	defer persist.Close()

	var tc tclient.Client
	if cfg.TemporalEnabled {
		tc, err = tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
		if err != nil {
			logger.Fatal("temporal", zap.Error(err))
		}
		defer tc.Close()
	}

	svc := app.NewService(cfg)
	pipeline := app.NewPipeline(cfg, svc, persist.Recorder(), logger)
	manager := dashboard.NewManager(svc, pipeline, logger, persist.RepositoryOptions()...)
	h := api.NewServer(cfg, api.Deps{
		Dashboards: manager,
		Verifier:   verifier,
		Catalog:    cat,
		Temporal:   tc,
		Logger:     logger,
	})

	srv := &http.Server{Addr: cfg.APIAddr, Handler: h.Routes()}
	go func() {
		logger.Info("briefboard api listening",
			zap.String("addr", cfg.APIAddr),
			zap.String("service_url", cfg.ServiceURL),
			zap.Bool("fake_service", cfg.FakeService),
			zap.Bool("temporal", tc != nil),
			zap.Bool("postgres", persist.DB != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}
