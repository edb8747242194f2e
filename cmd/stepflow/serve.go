package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ruslano69/tdtp-stepflow/cmd/stepflow/commands"
	"github.com/ruslano69/tdtp-stepflow/pkg/api"
	"github.com/ruslano69/tdtp-stepflow/pkg/ingest"
	"github.com/ruslano69/tdtp-stepflow/pkg/pipeline"
)

// serve starts the HTTP API. When the config file exists its tables and
// steps seed the session; otherwise the session starts empty.
func serve(ctx context.Context, addr string, flags *Flags) error {
	session := api.NewSession(nil, nil, nil)

	if _, err := os.Stat(*flags.Config); err == nil {
		cfg, err := loadConfig(flags)
		if err != nil {
			return err
		}
		store, _, err := commands.LoadTables(ctx, cfg, log.Logger)
		if err != nil {
			return err
		}
		p, err := cfg.Definition().Build(pipeline.WithLogger(log.Logger))
		if err != nil {
			return err
		}
		loader := ingest.NewLoader(cfg.LoaderOptions()).WithLogger(log.Logger)
		session = api.NewSession(store, p, loader)
		log.Info().Str("config", *flags.Config).Int("tables", store.Len()).Int("steps", p.Len()).Msg("session seeded")
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(session),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("stepflow API started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
	}
	log.Info().Msg("stopped")
	return nil
}
