// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/poster-scheduler/internal/clock"
	"github.com/unclebandit/poster-scheduler/internal/config"
	"github.com/unclebandit/poster-scheduler/internal/controller"
	"github.com/unclebandit/poster-scheduler/internal/db"
	"github.com/unclebandit/poster-scheduler/internal/handler"
	"github.com/unclebandit/poster-scheduler/internal/logging"
	"github.com/unclebandit/poster-scheduler/internal/repository"
	"github.com/unclebandit/poster-scheduler/internal/service"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	log := logging.New(cfg.Log).With().Str("process", "server").Logger()

	clk, err := clock.New(cfg.App.Timezone)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid timezone")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()

	scheduleRepo := &repository.ScheduleRepository{DB: conn}
	scheduleService := service.NewScheduleService(scheduleRepo, clk, log)

	scheduleController := &controller.ScheduleController{
		ScheduleService: scheduleService,
		Log:             log,
	}
	healthHandler := &handler.HealthHandler{Store: scheduleRepo}

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler.NewRouter(scheduleController, healthHandler, log),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Str("tz", clk.Location().String()).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}
