package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meetscribe/transcription-gateway/internal/admission"
	"github.com/meetscribe/transcription-gateway/internal/broadcast"
	"github.com/meetscribe/transcription-gateway/internal/config"
	"github.com/meetscribe/transcription-gateway/internal/observability"
	"github.com/meetscribe/transcription-gateway/internal/recognition"
	"github.com/meetscribe/transcription-gateway/internal/server"
	"github.com/meetscribe/transcription-gateway/internal/session"
	"github.com/meetscribe/transcription-gateway/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("recognition_url", cfg.RecognitionURL).
		Str("language", cfg.Language).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Transcription Gateway starting")

	store, err := storage.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open meeting store")
	}
	defer func() { _ = store.Close() }()

	registry := session.NewRegistry()
	gate := session.NewGate(registry, cfg.FrameHeaderLen, time.Duration(cfg.SubmitTimeoutMs)*time.Millisecond)
	hub := broadcast.NewHub()
	admissionGate := admission.NewGate(store)
	dialer := recognition.NewClient(cfg)

	srv := server.New(cfg, store, hub, registry, gate, admissionGate, dialer)

	mux := http.NewServeMux()
	mux.HandleFunc("/streams/meeting", srv.HandleWS())
	mux.HandleFunc("/meetings", srv.MeetingsHandler())
	mux.HandleFunc("/meeting", srv.MeetingHandler())
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/streams/meeting", cfg.Port)).
			Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
