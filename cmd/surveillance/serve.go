package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/mr1hm/go-health-surveillance/internal/api"
	"github.com/mr1hm/go-health-surveillance/internal/broadcast"
	"github.com/mr1hm/go-health-surveillance/internal/ingestion"
	"github.com/mr1hm/go-health-surveillance/internal/logging"
	"github.com/mr1hm/go-health-surveillance/internal/metrics"
	"github.com/mr1hm/go-health-surveillance/internal/syncer"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion API, sync worker and retention purge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("server starting", "host", cfg.Server.Host, "port", cfg.Server.Port, "transport", cfg.Sync.Transport)

	v, err := newValidator(cfg)
	if err != nil {
		return err
	}
	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}
	tr, trCloser := newTransport(cfg)
	defer trCloser.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broadcaster := broadcast.NewBroadcaster()
	collector := metrics.NewCollector()
	conn := syncer.NewConnectivity(true)

	mgr := ingestion.NewManager(cfg, db, tr, v).
		WithBroadcaster(broadcaster).
		WithMetrics(collector).
		WithConnectivity(conn)
	mgr.Start(ctx)

	s := syncer.NewSyncer(cfg, db, tr).
		WithBroadcaster(broadcaster).
		WithMetrics(collector).
		WithConnectivity(conn)
	syncDone := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(syncDone)
	}()

	purger := syncer.NewPurger(db, cfg.RetentionWindow(), cfg.Retention.Schedule).WithMetrics(collector)
	if err := purger.Start(ctx); err != nil {
		return err
	}

	engine.WithBroadcaster(broadcaster).WithMetrics(collector)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}))
	router.Use(api.RateLimitMiddleware(cfg.Server.RateLimitRPS))

	api.NewHandler(db, mgr, s, engine).
		WithConnectivity(conn).
		WithBroadcaster(broadcaster).
		WithMetrics(collector).
		RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	broadcaster.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	mgr.Stop()
	cancel()
	<-syncDone
	purger.Stop()

	slog.Info("shutdown complete")
	return nil
}
