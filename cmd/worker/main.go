package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwalitptl/capd-api/internal/config"
	"github.com/jwalitptl/capd-api/internal/repository/sqldb"
	"github.com/jwalitptl/capd-api/internal/worker"
	"github.com/jwalitptl/capd-api/pkg/logger"
	"github.com/jwalitptl/capd-api/pkg/metrics"
)

func main() {
	configDir := flag.String("config-dir", "", "directory containing config.yaml")
	addr := flag.String("addr", ":8081", "health and metrics listen address")
	flag.Parse()

	if err := run(*configDir, *addr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configDir, addr string) error {
	var (
		cfg *config.Config
		err error
	)
	if configDir == "" {
		cfg, err = config.Load()
	} else {
		cfg, err = config.Load(configDir)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.Driver == "memory" {
		return errors.New("the outbox worker needs a sql database; the api relays the memory outbox itself")
	}

	log := logger.NewLogger(&logger.Config{
		Level:   logger.ParseLevel(cfg.Log.Level),
		Pretty:  cfg.Log.Pretty,
		Service: "capd-worker",
	})
	log.SetGlobal()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sqldb.NewDB(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	store := sqldb.NewStore(db)

	broker, err := worker.NewBroker(ctx, cfg.Broker, log)
	if err != nil {
		return fmt.Errorf("failed to create %s broker: %w", cfg.Broker.Type, err)
	}
	defer broker.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg, cfg.Metrics.Namespace)

	relay, err := worker.NewRelay(store, broker, cfg.Outbox, log, m)
	if err != nil {
		return err
	}

	srv := &http.Server{Addr: addr, Handler: healthMux(store, reg)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "Health server failed")
			stop()
		}
	}()

	log.Info("Outbox worker started", "broker", cfg.Broker.Type, "addr", addr)
	relay.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "Health server shutdown failed")
	}
	log.Info("Outbox worker stopped")
	return nil
}

func healthMux(store *sqldb.Store, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}
