package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lexiqai/voice-client/internal/config"
	"github.com/lexiqai/voice-client/internal/observability"
	"github.com/lexiqai/voice-client/internal/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("realtime_url", cfg.RealtimeURL).
		Str("model", cfg.Model).
		Str("voice", cfg.Voice).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Voice client starting")

	// Metrics and health endpoints
	if cfg.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/health", observability.HealthCheckHandler())
		mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
			"config": func(ctx context.Context) (bool, error) {
				if cfg.APIKey == "" {
					return false, fmt.Errorf("missing API key")
				}
				return true, nil
			},
		}))

		server := &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.MetricsPort),
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		go func() {
			logger.Info().Str("port", cfg.MetricsPort).Msg("Prometheus metrics enabled at /metrics")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(ctx)
		}()
	}

	// Create the voice session; production collaborators (realtime
	// transport, playback device, microphone) are wired inside Run.
	sess := session.New(cfg, session.Options{Logger: &logger})

	// Surface status transitions for the user
	go func() {
		for status := range sess.Status() {
			logger.Info().Str("state", string(status)).Msg("Session state")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- sess.Run(ctx)
	}()

	// Wait for interrupt signal or session end
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info().Msg("Shutting down...")
		sess.Close()
		<-runErr
	case err := <-runErr:
		if err != nil {
			logger.Error().Err(err).Msg("Session ended with error")
			os.Exit(1)
		}
	}

	logger.Info().Msg("Voice client exited")
}
