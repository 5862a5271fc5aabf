// Package main runs the NFT exchange: the moderated registry, the royalty
// registry, the trade configuration and the escrow market, bootstrapped from
// config/exchange.yaml, with a read-only ops API on the configured address.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/R3E-Network/nft_exchange/internal/app"
	"github.com/R3E-Network/nft_exchange/internal/app/events"
	"github.com/R3E-Network/nft_exchange/internal/app/httpapi"
	"github.com/R3E-Network/nft_exchange/internal/app/storage/postgres"
	"github.com/R3E-Network/nft_exchange/internal/app/storage/redis"
	"github.com/R3E-Network/nft_exchange/internal/config"
	"github.com/R3E-Network/nft_exchange/pkg/logger"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to exchange config file")
	addr := flag.String("addr", "", "Ops API listen address (overrides config)")
	flag.Parse()

	cfg, err := config.LoadFromPath(*configPath)
	if err != nil && *configPath == config.DefaultPath {
		cfg, err = config.Load()
	}
	if err != nil {
		logger.NewDefault("exchanged").WithError(err).Fatal("load config")
	}
	if *addr != "" {
		cfg.Ops.ListenAddr = *addr
	}

	log := logger.New(cfg.Logging).Named("exchanged")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := buildStores(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("build stores")
	}

	application, err := app.New(cfg, stores, log.Named("app"))
	if err != nil {
		log.WithError(err).Fatal("create application")
	}
	if err := application.Start(ctx); err != nil {
		log.WithError(err).Fatal("start application")
	}
	log.WithField("services", application.Services()).Info("exchange started")

	server := &http.Server{
		Addr:         cfg.Ops.ListenAddr,
		Handler:      httpapi.NewHandler(application, log.Named("httpapi")),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Ops.ListenAddr).Info("ops api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("ops api")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("ops api shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application stop")
	}
	log.Info("exchange stopped")
}

// buildStores picks the event journal and extra sinks from the journal
// config. Without a DSN events stay in memory.
func buildStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (app.Stores, error) {
	var stores app.Stores
	if dsn := cfg.Journal.PostgresDSN; dsn != "" {
		journal, err := postgres.Open(ctx, dsn, log.Named("postgres-journal"))
		if err != nil {
			return stores, err
		}
		stores.Events = journal
	}
	if addr := cfg.Journal.RedisAddr; addr != "" {
		publisher := redis.Dial(addr, cfg.Journal.RedisChannel, cfg.Journal.RedisHistory, log.Named("redis-publisher"))
		stores.Sinks = append(stores.Sinks, events.Recorder(publisher))
	}
	return stores, nil
}
