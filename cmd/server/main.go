package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/pflag"

	"github.com/nihilux-org/roon-web-stack-sub001/internal/api"
	"github.com/nihilux-org/roon-web-stack-sub001/internal/command"
	"github.com/nihilux-org/roon-web-stack-sub001/internal/core"
	"github.com/nihilux-org/roon-web-stack-sub001/internal/platform/config"
	"github.com/nihilux-org/roon-web-stack-sub001/internal/platform/logger"
	"github.com/nihilux-org/roon-web-stack-sub001/internal/platform/metrics"
	"github.com/nihilux-org/roon-web-stack-sub001/internal/roon/sim"
)

const (
	version         = "0.1.0"
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var envFile, port, logLevel string
	flags := pflag.NewFlagSet("roon-web", pflag.ContinueOnError)
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	flags.StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	_ = config.Load(envFile)
	cfg := config.FromEnv()
	if port != "" {
		cfg.Port = port
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	met := metrics.New()

	up := sim.NewDemo(cfg.SimZones, max(cfg.QueueMaxItems, 10), sim.WithLogger(log))
	disp := command.NewDispatcher(up, up, log, met, cfg.CommandTimeout)
	queues := core.NewPollingQueueFactory(up, cfg.QueueMaxItems, cfg.QueuePollInterval, log)
	c := core.New(up, queues, disp, log, met, core.Options{
		SubscriberBuffer: cfg.SubscriberBuffer,
		PingInterval:     cfg.PingInterval,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start core: %w", err)
	}
	go up.Run(ctx, cfg.SimTick)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveSessions(c.SessionCount()) }).ServeHTTP(w, r)
	})
	api.NewHandler(c, log, version).Routes(r)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"zones", cfg.SimZones,
		"queue_max_items", cfg.QueueMaxItems,
		"log_level", cfg.LogLevel,
	)

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, draining connections")
	case err := <-errCh:
		_ = c.Stop()
		return fmt.Errorf("server: %w", err)
	}

	// closes every feed so streaming handlers return before Shutdown waits on them
	if err := c.Stop(); err != nil {
		log.Error("core stop error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
