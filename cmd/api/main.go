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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/capd-api/internal/config"
	"github.com/jwalitptl/capd-api/internal/handler/health"
	iotHandler "github.com/jwalitptl/capd-api/internal/handler/iot"
	patientHandler "github.com/jwalitptl/capd-api/internal/handler/patient"
	prescriptionHandler "github.com/jwalitptl/capd-api/internal/handler/prescription"
	treatmentHandler "github.com/jwalitptl/capd-api/internal/handler/treatment"
	"github.com/jwalitptl/capd-api/internal/middleware"
	"github.com/jwalitptl/capd-api/internal/repository"
	"github.com/jwalitptl/capd-api/internal/repository/memory"
	"github.com/jwalitptl/capd-api/internal/repository/sqldb"
	"github.com/jwalitptl/capd-api/internal/router"
	"github.com/jwalitptl/capd-api/internal/service/analysis"
	"github.com/jwalitptl/capd-api/internal/service/iot"
	"github.com/jwalitptl/capd-api/internal/service/patient"
	"github.com/jwalitptl/capd-api/internal/service/prescription"
	"github.com/jwalitptl/capd-api/internal/service/treatment"
	"github.com/jwalitptl/capd-api/internal/worker"
	"github.com/jwalitptl/capd-api/pkg/auth"
	"github.com/jwalitptl/capd-api/pkg/logger"
	"github.com/jwalitptl/capd-api/pkg/metrics"
	"github.com/jwalitptl/capd-api/pkg/storage"
	"github.com/jwalitptl/capd-api/pkg/storage/s3"
)

func main() {
	var configDir string

	rootCmd := &cobra.Command{
		Use:          "capd-api",
		Short:        "CAPD treatment tracking API",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "directory containing config.yaml")

	rootCmd.AddCommand(serveCmd(&configDir))
	rootCmd.AddCommand(migrateCmd(&configDir))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(dir string) (*config.Config, error) {
	if dir == "" {
		return config.Load()
	}
	return config.Load(dir)
}

func newLogger(cfg *config.Config) *logger.Logger {
	log := logger.NewLogger(&logger.Config{
		Level:   logger.ParseLevel(cfg.Log.Level),
		Pretty:  cfg.Log.Pretty,
		Service: "capd-api",
	})
	log.SetGlobal()
	return log
}

func serveCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configDir)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

func migrateCmd(configDir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closeDB, err := openMigrator(cmd.Context(), *configDir)
			if err != nil {
				return err
			}
			defer closeDB()

			applied, err := migrator.Up(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("applied %d migration(s)\n", applied)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closeDB, err := openMigrator(cmd.Context(), *configDir)
			if err != nil {
				return err
			}
			defer closeDB()

			statuses, err := migrator.Status(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied " + s.AppliedAt.Format(time.RFC3339)
				}
				fmt.Printf("%04d  %-40s %s\n", s.Version, s.Name, state)
			}
			return nil
		},
	})

	return cmd
}

func openMigrator(ctx context.Context, configDir string) (*sqldb.Migrator, func(), error) {
	cfg, err := loadConfig(configDir)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.Driver == "memory" {
		return nil, nil, errors.New("migrations need a sql database driver")
	}
	db, err := sqldb.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return sqldb.NewMigrator(db), func() { db.Close() }, nil
}

type storeCloser func()

// openStore returns the configured store. The memory driver is for local runs
// only and starts empty.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (repository.Store, storeCloser, error) {
	if cfg.Driver == "memory" {
		return memory.NewStore(), func() {}, nil
	}
	db, err := sqldb.NewDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return sqldb.NewStore(db), func() { db.Close() }, nil
}

func runServer(cfg *config.Config) error {
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg, cfg.Metrics.Namespace)

	var images storage.ObjectStore
	if cfg.Storage.Enabled {
		s3Store, err := s3.NewStore(ctx, s3.Config{
			Bucket:       cfg.Storage.Bucket,
			Region:       cfg.Storage.Region,
			Endpoint:     cfg.Storage.Endpoint,
			UsePathStyle: cfg.Storage.UsePathStyle,
		})
		if err != nil {
			return fmt.Errorf("failed to create image store: %w", err)
		}
		images = s3Store
	}

	// The worker binary cannot see an in-memory outbox, so relay it here.
	if cfg.Database.Driver == "memory" {
		broker, err := worker.NewBroker(ctx, cfg.Broker, log)
		if err != nil {
			return fmt.Errorf("failed to create broker: %w", err)
		}
		defer broker.Close()

		relay, err := worker.NewRelay(store, broker, cfg.Outbox, log, m)
		if err != nil {
			return err
		}
		go relay.Run(ctx)
	}

	devices := memory.NewDeviceState(cfg.IoT.ReadingTTL)

	treatmentSvc := treatment.NewService(store, images, cfg.Storage.KeyPrefix, log, m)
	analysisSvc := analysis.NewService(store, time.Now)
	iotSvc := iot.NewService(store, devices, cfg.IoT.DrainTriggerML, log, m)
	patientSvc := patient.NewService(store.Patients(), log)
	prescriptionSvc := prescription.NewService(store)

	var authMW *middleware.AuthMiddleware
	if cfg.Auth.Enabled {
		authMW = middleware.NewAuthMiddleware(auth.NewTokenValidator(cfg.Auth.Secret, cfg.Auth.Issuer))
	}

	var limit rate.Limit
	if cfg.RateLimit.Enabled {
		limit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
	}

	r, err := router.NewRouter(router.Handlers{
		Treatment:    treatmentHandler.NewHandler(treatmentSvc, analysisSvc),
		Patient:      patientHandler.NewHandler(patientSvc),
		Prescription: prescriptionHandler.NewHandler(prescriptionSvc),
		IoT:          iotHandler.NewHandler(iotSvc),
		Health:       health.NewHandler(store),
	}, authMW, m, router.RouterConfig{
		Mode:           cfg.Server.Mode,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		CORSOrigins:    cfg.CORS.AllowedOrigins,
		CORSMaxAge:     cfg.CORS.MaxAge,
		RateLimit:      limit,
		RateBurst:      cfg.RateLimit.Burst,
		Gatherer:       reg,
	})
	if err != nil {
		return err
	}
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", "port", cfg.Server.Port, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exited")
	return nil
}
