// FilePath: internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/redis/go-redis/v9"
	"github.com/ralphtiongco19/mushroom-hub/api"
	"github.com/ralphtiongco19/mushroom-hub/internal/config"
	"github.com/ralphtiongco19/mushroom-hub/internal/database"
	"github.com/ralphtiongco19/mushroom-hub/internal/farmservice"
	"github.com/ralphtiongco19/mushroom-hub/internal/monitoring"
	"github.com/ralphtiongco19/mushroom-hub/internal/realtime"
	"github.com/ralphtiongco19/mushroom-hub/internal/reconcile"
	"github.com/ralphtiongco19/mushroom-hub/internal/repository/postgres"
	"github.com/ralphtiongco19/mushroom-hub/internal/retention"
	nuts "github.com/vaudience/go-nuts"
)

// Server represents our HTTP server
type Server struct {
	config     *config.Config
	srv        *http.Server
	farm       *farmservice.FarmService
	reconciler *reconcile.Reconciler
	monitoring *monitoring.Service
	retention  *retention.Service
	cancel     context.CancelFunc
}

// New creates a new server instance
func New(cfg *config.Config) *Server {
	return &Server{config: cfg}
}

// Start wires the service together and begins listening for requests
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.monitoring = monitoring.NewService()

	if err := s.initializeFarmService(ctx); err != nil {
		cancel()
		return err
	}

	router := api.NewRouter(s.farm, s.config, s.monitoring)
	handler := gorillahandlers.RecoveryHandler()(
		gorillahandlers.CORS(
			gorillahandlers.AllowedOrigins([]string{"*"}),
			gorillahandlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
			gorillahandlers.AllowedMethods([]string{
				http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete,
			}),
		)(router))

	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      handler,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	s.retention = retention.New(s.farm, s.config.Farm.ReadingRetention, s.config.Farm.PruneInterval)
	s.retention.OnPrune(func(count int64) {
		s.monitoring.RecordEvent("readings_pruned", map[string]string{
			"count": fmt.Sprintf("%d", count),
		})
	})
	go s.retention.Run(ctx)

	// Start server
	go func() {
		nuts.L.Infof("[Server] Starting server on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			nuts.L.Errorf("[Server] Error starting server: %v", err)
			os.Exit(1)
		}
	}()

	return s.waitForShutdown()
}

// waitForShutdown waits for interrupt signal and gracefully shuts down the server
func (s *Server) waitForShutdown() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	nuts.L.Infof("[Server] Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	s.reconciler.Stop()
	s.cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	nuts.L.Infof("[Server] Server shut down successfully")
	return nil
}

// initializeFarmService builds the repositories, realtime channel,
// reconciler and business service
func (s *Server) initializeFarmService(ctx context.Context) error {
	appDB, err := database.NewPostgresDB(s.config.Database.AppDB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := appDB.Ping(pingCtx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	commands, err := postgres.NewCommandRepository(appDB)
	if err != nil {
		return err
	}
	readings, err := postgres.NewReadingRepository(appDB)
	if err != nil {
		return err
	}
	settings, err := postgres.NewSettingsRepository(appDB)
	if err != nil {
		return err
	}
	devices, err := postgres.NewDeviceStatusRepository(appDB)
	if err != nil {
		return err
	}

	cache := s.initRedis(ctx)

	// The connect hooks fire before the reconciler exists, so they go
	// through this pointer.
	var reconciler *reconcile.Reconciler
	channel, err := realtime.Connect(ctx, s.config.Realtime,
		func() {
			if reconciler != nil {
				reconciler.OnConnect(context.Background())
			}
		},
		func(err error) {
			if reconciler != nil {
				reconciler.OnConnectionLost(err)
			}
		},
	)
	if err != nil {
		return fmt.Errorf("failed to connect realtime channel: %w", err)
	}

	reconciler = reconcile.New(
		reconcile.Config{
			DeviceID:       s.config.Farm.DeviceID,
			CommandTimeout: s.config.Farm.CommandTimeout,
		},
		commands, readings, devices, channel, cache, s.monitoring,
	)
	if err := reconciler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start reconciler: %w", err)
	}
	s.reconciler = reconciler

	relay := farmservice.NewCommandRelay(channel)
	s.farm = farmservice.New(commands, readings, settings, devices, relay, reconciler, s.monitoring)
	return s.farm.Validate()
}

func (s *Server) initRedis(ctx context.Context) *redis.Client {
	if s.config.Redis.Host == "" {
		nuts.L.Infof("[Server] Redis not configured, running without reading cache")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", s.config.Redis.Host, s.config.Redis.Port),
		Password: s.config.Redis.Password,
		DB:       s.config.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		nuts.L.Warnf("[Server] Redis unavailable, running without reading cache: %v", err)
		return nil
	}
	return client
}
