package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hadijannat/titan-aas/broadcast"
	"github.com/hadijannat/titan-aas/cache"
	"github.com/hadijannat/titan-aas/config"
	"github.com/hadijannat/titan-aas/eventlog"
	"github.com/hadijannat/titan-aas/logging"
	"github.com/hadijannat/titan-aas/router"
	"github.com/hadijannat/titan-aas/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP surface (fast/slow path reads, writes via the Event Log)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(logging.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: cfg.ServiceName,
		Version: cfg.ServiceVersion,
	}).WithField("component", "serve")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(ctx, cfg.StoreURL)
	if err != nil {
		return err
	}
	defer st.Close()

	descriptors, err := store.NewDescriptorStore(cfg.StoreURL)
	if err != nil {
		return err
	}

	c, err := cache.New(ctx, cfg.CacheURL)
	if err != nil {
		logger.WithError(err).Warn("cache unavailable at startup, continuing in fail-open mode")
		c = nil
	}

	events, err := eventlog.New(ctx, cfg.EventLogURL, eventlog.Config{
		Partitions:                  cfg.EventLogPartitions,
		InlinePayloadThresholdBytes: cfg.InlinePayloadThresholdBytes,
	})
	if err != nil {
		return err
	}
	defer events.Close()

	hub := broadcast.NewHub(logger)

	srv := router.New(router.Config{
		Port:            cfg.Server.Port,
		Debug:           cfg.Server.Debug,
		BodyLimit:       cfg.Server.BodyLimit,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		RateLimit:       cfg.Server.RateLimit,
		MaxPageLimit:    cfg.MaxPageLimit,
		ServiceName:     cfg.ServiceName,
		ServiceVersion:  cfg.ServiceVersion,
	}, st, descriptors, c, events, hub, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Server.Port).Info("starting HTTP server")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("server exited unexpectedly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
