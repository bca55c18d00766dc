package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"aura/internal/app"
	"aura/internal/config"
	"aura/internal/logging"
	"aura/pkg/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config failed")
	}
	logging.Init(cfg.Logging)
	gin.SetMode(gin.ReleaseMode)

	db := database.MustOpen(cfg.Database)
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("db migrate failed")
	}

	a, err := app.New(cfg, db)
	if err != nil {
		log.Fatal().Err(err).Msg("build app failed")
	}
	if cfg.Server.Seed {
		if err := a.Seed(ctx); err != nil {
			log.Fatal().Err(err).Msg("seed failed")
		}
	}

	log.Info().Str("driver", db.Dialect).Str("addr", cfg.Server.Addr).Str("grpc", cfg.GRPC.Addr).Msg("starting aura")
	if err := a.Run(ctx); err != nil {
		log.Error().Err(err).Msg("aura stopped with error")
		os.Exit(1)
	}
}
