package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"seguimiento/access"
	"seguimiento/activity"
	"seguimiento/catalog"
	"seguimiento/config"
	"seguimiento/database"
	"seguimiento/handlers"
	"seguimiento/logger"
	"seguimiento/metrics"
	"seguimiento/middleware"
	"seguimiento/store"
	"seguimiento/transitions"

	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", false)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.Open(cfg.Database, log)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	if err := database.Migrate(db); err != nil {
		return err
	}
	if err := database.Seed(ctx, db, cfg.Seed, log); err != nil {
		return err
	}

	st := store.New(db)
	m := metrics.New()

	router := handlers.NewRouter(handlers.Deps{
		Config:   cfg,
		Store:    st,
		Auth:     middleware.NewAuthenticator(cfg.JWT.Secret, cfg.JWT.Expiration, access.NewResolver(st)),
		Recorder: transitions.NewRecorder(st, log),
		Feed:     activity.NewAggregator(st),
		Catalog:  catalog.NewService(st, cfg.Estados.MaxActivos, log),
		Metrics:  m,
		Log:      log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
