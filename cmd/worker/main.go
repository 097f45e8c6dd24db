package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/optimus-oj/judger/internal/broker"
	"github.com/optimus-oj/judger/internal/config"
	"github.com/optimus-oj/judger/internal/languages"
	"github.com/optimus-oj/judger/internal/sandbox"
	"github.com/optimus-oj/judger/internal/worker"
)

func main() {
	config.LoadDotEnv()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		logger.Fatal("failed to load worker config", zap.Error(err))
	}
	if err := worker.ValidateConfig(cfg); err != nil {
		logger.Fatal("worker configuration invalid", zap.Error(err))
	}

	br, err := broker.New(cfg.RedisURL, cfg.ResultTTL, logger)
	if err != nil {
		logger.Fatal("failed to connect to broker", zap.Error(err))
	}
	defer br.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	err = br.Ping(pingCtx)
	cancelPing()
	if err != nil {
		logger.Fatal("broker unreachable", zap.Error(err))
	}

	driver, err := sandbox.NewDriver(logger)
	if err != nil {
		logger.Fatal("failed to connect to docker daemon", zap.Error(err))
	}
	defer driver.Close()

	registry := languages.NewRegistry()

	w := worker.New(cfg, br, driver, registry, logger)

	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		logger.Info("shutting down worker")
		cancel()
	}()

	if err := w.Start(ctx); err != nil {
		logger.Fatal("worker crashed", zap.Error(err))
	}
}
