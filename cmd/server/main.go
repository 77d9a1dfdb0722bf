package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "castforge/internal/adapters/http"
	"castforge/internal/app"
	"castforge/internal/config"
	"castforge/internal/encoder"
	"castforge/internal/hub"
	"castforge/internal/ids"
	"castforge/internal/metrics"
	"castforge/internal/provider"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	registry := app.NewRegistry(ids.UUID{})
	runner := encoder.NewFFmpegRunner(encoder.WithBinary(cfg.FFmpegBinary))
	supervisor := encoder.NewSupervisor(runner, ids.NewULID())
	eventHub := hub.New()
	m := metrics.New()

	var prov provider.Provider = provider.Nop{}
	if cfg.ProviderURL != "" {
		prov = provider.NewHTTP(cfg.ProviderURL)
	}

	svc := app.NewService(registry, supervisor, eventHub, prov, m)

	r := router.SetupRouter(ctx, cfg, svc, eventHub, m)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("castforge server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
