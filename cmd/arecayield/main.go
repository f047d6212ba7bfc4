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

	"arecayield/internal/cfg"
	"arecayield/internal/metrics"
	"arecayield/internal/ml"
	"arecayield/internal/sink"
	"arecayield/internal/storage"
	"arecayield/internal/web"

	"github.com/rs/zerolog/log"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if err := cfg.SetupLogging(c.LogLevel, c.LogFormat); err != nil {
		log.Fatal().Err(err).Msg("logging setup failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go waitForSignal(cancel)

	if err := run(ctx, c, metrics.New()); err != nil {
		log.Fatal().Err(err).Str("path", c.ModelPath).Str("backend", c.ModelBackend).Msg("server failed")
	}
}

// run serves until ctx is canceled or the listener fails. Everything it
// opens is closed before it returns, including on startup errors.
func run(ctx context.Context, c cfg.Settings, m *metrics.Metrics) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mw := metrics.NewWrapper(m)

	// The model must load before anything is served.
	gateway, err := ml.Open(ctx, c.ModelConfig(), mw)
	if err != nil {
		return fmt.Errorf("model load failed: %w", err)
	}
	defer gateway.Close()

	info := gateway.Info()
	log.Info().
		Str("backend", info.Backend).
		Str("version", info.Version).
		Int("features", info.Features).
		Strs("members", info.Members).
		Msg("model loaded")

	opts := web.Options{
		Metrics:        mw,
		RequestTimeout: c.ModelConfig().RequestTimeout,
	}

	if store := initializeStorage(c); store != nil {
		defer store.Close()
		opts.History = store
	}
	if influx := initializeSink(c, mw); influx != nil {
		defer influx.Close()
		opts.Sink = influx
	}

	feed := web.NewFeed(mw)
	defer feed.Close()
	opts.Feed = feed

	srv, err := web.NewServer(gateway, opts)
	if err != nil {
		return fmt.Errorf("web server setup failed: %w", err)
	}

	server := &http.Server{
		Addr:              c.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: c.ReadTimeout,
		ReadTimeout:       c.ReadTimeout,
		WriteTimeout:      c.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("serving yield predictions")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
	}
	return nil
}

// initializeStorage opens the history store if DATA_PATH is configured.
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without history")
		return nil
	}
	log.Info().Str("path", store.Path()).Msg("prediction history enabled")
	return store
}

// initializeSink connects the InfluxDB export if it is configured.
func initializeSink(c cfg.Settings, mw *metrics.MetricsWrapper) *sink.Influx {
	if !c.Influx.Enabled() {
		return nil
	}
	influx, err := sink.New(sink.Config{
		URL:     c.Influx.URL,
		Token:   c.Influx.Token,
		Org:     c.Influx.Org,
		Bucket:  c.Influx.Bucket,
		Timeout: c.WriteTimeout,
	}, mw)
	if err != nil {
		log.Warn().Err(err).Msg("influx sink initialization failed, continuing without export")
		return nil
	}
	return influx
}

func waitForSignal(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("shutdown signal received")
	cancel()
}
