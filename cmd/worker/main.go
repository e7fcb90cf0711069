package main

import (
	"context"
	"time"

	"briefboard/internal/activities"
	"briefboard/internal/app"
	"briefboard/internal/config"
	"briefboard/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	logger := app.NewLogger(cfg.Dev)
	defer logger.Sync()

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		logger.Fatal("temporal", zap.Error(err))
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	persist, err := app.OpenPersistence(ctx, cfg)
	cancel()
	if err != nil {
		logger.Fatal("postgres", zap.Error(err))
	}
	defer persist.Close()

	svc := app.NewService(cfg)
	pipeline := app.NewPipeline(cfg, svc, persist.Recorder(), logger)
	a := activities.New(cfg.DataInRoot, svc, pipeline, persist.MirrorOrNil(), persist.Recorder(), logger)

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, a)

	logger.Info("briefboard worker listening",
		zap.String("temporal", cfg.TemporalAddress),
		zap.String("queue", cfg.TemporalTaskQueue),
		zap.Bool("postgres", persist.DB != nil),
	)
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("worker", zap.Error(err))
	}
}
