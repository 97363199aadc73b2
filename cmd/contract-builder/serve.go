package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nurpe/pestops-contracts/internal/auth"
	"github.com/nurpe/pestops-contracts/internal/builder"
	"github.com/nurpe/pestops-contracts/internal/cache"
	"github.com/nurpe/pestops-contracts/internal/config"
	"github.com/nurpe/pestops-contracts/internal/db"
	"github.com/nurpe/pestops-contracts/internal/events"
	"github.com/nurpe/pestops-contracts/internal/excel"
	"github.com/nurpe/pestops-contracts/internal/filters"
	"github.com/nurpe/pestops-contracts/internal/gateway"
	httphandler "github.com/nurpe/pestops-contracts/internal/http"
	"github.com/nurpe/pestops-contracts/internal/http/middleware"
	"github.com/nurpe/pestops-contracts/internal/logger"
	"github.com/nurpe/pestops-contracts/internal/pdf"
	"github.com/nurpe/pestops-contracts/internal/repository"
	"github.com/nurpe/pestops-contracts/internal/service"
)

const (
	sessionSweepInterval = time.Minute
	shutdownTimeout      = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the contract builder HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(cfg.Environment)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	var gw gateway.Gateway = gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Token, cfg.Gateway.Timeout, log)
	var filterStore filters.Store = filters.NewMemoryStore()
	if cfg.Redis.URL != "" {
		client, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		defer client.Close()
		gw = gateway.NewCachedGateway(gw, cache.NewRedisDropdownCache(client, cfg.Redis.DropdownTTL), log)
		filterStore = filters.NewRedisStore(client, 0)
	} else {
		log.Warn().Msg("REDIS_URL not set, dropdowns are not cached and filters live in memory")
	}

	publisher, err := newPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	sessions := builder.NewManager(gw, builder.Options{
		LookupTimeout: cfg.Builder.LookupTimeout,
		FenceLookups:  cfg.Builder.FenceLookups,
	}, cfg.Builder.SessionTTL, log)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sessions.Run(ctx, sessionSweepInterval)
	}()

	builderService := service.NewBuilderService(service.Dependencies{
		Sessions: sessions,
		Gateway:  gw,
		Audit:    repository.NewSubmissionRepository(database),
		Events:   publisher,
		Excel:    excel.NewGenerator(),
		PDF:      pdf.NewGenerator(),
		Filters:  filterStore,
		Log:      log,
	})

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(builderService, log, cfg.HTTP.AllowedOrigins)
	router := httphandler.NewRouter(handler, middleware.Auth(tokenParser), cfg.Environment, cfg.HTTP.AllowedOrigins)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("starting contract builder")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		stop()
		<-sweepDone
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	<-sweepDone
	return nil
}

func newPublisher(cfg *config.Config, log zerolog.Logger) (events.Publisher, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info().Msg("KAFKA_BROKERS not set, contract events are not published")
		return events.NoopPublisher{}, nil
	}
	publisher, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.ContractsTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to init kafka publisher: %w", err)
	}
	return publisher, nil
}
