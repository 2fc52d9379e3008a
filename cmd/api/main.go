package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/idmint/idmint/internal/chain"
	"github.com/idmint/idmint/internal/config"
	"github.com/idmint/idmint/internal/infra"
	"github.com/idmint/idmint/internal/logging"
	"github.com/idmint/idmint/internal/mint"
	"github.com/idmint/idmint/internal/notification"
	"github.com/idmint/idmint/internal/routes"
	"github.com/idmint/idmint/internal/server"
)

const connectTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.AppName, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if cache != nil {
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	reader, eth, err := chain.DialEthReader(ctx, cfg.Chain.RPCURL, cfg.Chain.CallTimeout)
	if err != nil {
		logger.Error("connect chain rpc", "error", err)
		os.Exit(1)
	}
	defer eth.Close()

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		logger.Error("build notifier", "error", err)
		os.Exit(1)
	}

	minter, err := mint.NewCommandMinter(cfg.Mint.Command, cfg.Mint.WorkDir, cfg.Chain.Network, cfg.Mint.Timeout, logger)
	if err != nil {
		logger.Error("build minter", "error", err)
		os.Exit(1)
	}

	if len(cfg.NetworkContracts()) == 0 {
		logger.Warn("no contract addresses configured for network", "network", cfg.Chain.Network)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv, err := server.New(routes.Deps{
		Cfg:      cfg,
		DB:       db,
		Cache:    cache,
		Logger:   logger,
		Registry: registry,
		Notifier: notifier,
		Minter:   minter,
		Chain:    reader,
	})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()
	logger.Info("server listening", "addr", cfg.Address(), "network", cfg.Chain.Network, "otp_store", cfg.OTP.Store)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}

func newNotifier(cfg config.Config, logger *slog.Logger) (notification.Notifier, error) {
	if cfg.Notifier == "log" {
		logger.Warn("NOTIFIER=log: OTP codes are written to the log, not sent")
		return notification.NewLoggerNotifier(logger), nil
	}
	return notification.NewTwilioNotifier(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber, logger)
}
