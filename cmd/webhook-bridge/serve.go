package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jiaming2012/webhook-bridge/src/bridge"
	"github.com/jiaming2012/webhook-bridge/src/config"
	"github.com/jiaming2012/webhook-bridge/src/eventproducers/webhookapi"
	"github.com/jiaming2012/webhook-bridge/src/telemetry"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		return serve(cmd.Context(), cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.OtelEnabled {
		otelShutdown, otelErr := telemetry.SetupOTelSDK(ctx)
		if otelErr != nil {
			return fmt.Errorf("serve: failed to setup otel sdk: %w", otelErr)
		}

		// Handle shutdown properly so nothing leaks.
		defer func() {
			err = errors.Join(err, otelShutdown(context.Background()))
		}()
	}

	b, err := bridge.New(cfg, bridge.Options{})
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	if len(b.Terminals()) == 0 {
		log.Warn("serve: no terminal is enabled; set NT_ENABLED or MT5_ENABLED")
	}

	if err := b.Connect(ctx); err != nil {
		log.Warnf("serve: starting with disconnected terminal(s): %v", err)
	}

	keys, err := config.LoadWebhookKeys(cfg.WebhookKeysFile, config.LinkedEvents(cfg.EffectiveLinks()))
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	handler := webhookapi.NewHandler(keys, b.Linker(), b.QueryServices())

	router := mux.NewRouter()
	handler.SetupHandler(router)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	srv := &http.Server{
		Handler: otelhttp.NewHandler(router, "webhook-bridge"),
		Addr:    fmt.Sprintf(":%d", cfg.WebhookPort),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		log.Infof("listening on :%d for %v", cfg.WebhookPort, handler.EventNames())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("failed to start server: %v", err)
			cancel()
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
	case <-ctx.Done():
	}

	log.Info("serve: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("serve: http shutdown: %v", err)
	}

	if err := b.Close(shutdownCtx); err != nil {
		log.Errorf("serve: %v", err)
	}

	log.Info("serve: gracefully stopped")
	return nil
}
