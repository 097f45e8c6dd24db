package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/optimus-oj/judger/internal/broker"
	"github.com/optimus-oj/judger/internal/config"
	"github.com/optimus-oj/judger/internal/gateway"
)

func main() {
	config.LoadDotEnv()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadGatewayConfig()
	if err != nil {
		logger.Fatal("failed to load gateway config", zap.Error(err))
	}

	br, err := broker.New(cfg.RedisURL, 0, logger)
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

	router := gateway.NewRouter(br, cfg.DefaultTimeoutMs, cfg.MaxTimeoutMs, logger)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		logger.Info("gateway listening", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("gateway crashed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down gateway")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
