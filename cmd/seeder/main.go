//cmd/seeder/main.go
package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"github.com/unclebandit/poster-scheduler/internal/config"
	"github.com/unclebandit/poster-scheduler/internal/db"
	"github.com/unclebandit/poster-scheduler/internal/logging"
	"github.com/unclebandit/poster-scheduler/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	log := logging.New(cfg.Log).With().Str("process", "seeder").Logger()

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()

	seedFiles := []string{
		"seed/schema.sql",
		"seed/customers.sql",
		"seed/posters.sql",
	}

	for _, file := range seedFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("failed to read seed file")
		}

		if _, err := conn.ExecContext(ctx, string(content)); err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("failed to execute seed file")
		}
		log.Info().Str("file", file).Msg("seeded")
	}

	customers := &repository.CustomerRepository{DB: conn}
	missing, err := customers.ListWithoutContact(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to check seeded customers")
	}
	for _, c := range missing {
		log.Warn().Str("customer_id", c.ID).Str("company", c.CompanyName).Msg("customer has no WhatsApp number, its schedules will fail")
	}

	log.Info().Msg("database seeding completed successfully")
}
