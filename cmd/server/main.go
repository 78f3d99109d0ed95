package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"stat-watcher/internal/auth"
	"stat-watcher/internal/config"
	"stat-watcher/internal/hub"
	"stat-watcher/internal/logger"
	"stat-watcher/internal/server"
	"stat-watcher/internal/statscache"
	"stat-watcher/internal/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	st := store.NewWithOptions(store.Options{StateFile: cfg.StateFile, Logger: log})
	cache := statscache.New(log)
	wsHub := hub.New()

	tokenCfg := auth.TokenConfig{
		Secret: cfg.MasterSecret,
		Expiry: cfg.TokenExpiry,
		Issuer: "stat-watcher",
	}

	router := server.NewRouter(server.Deps{
		Store:        st,
		Cache:        cache,
		Hub:          wsHub,
		TokenConfig:  tokenCfg,
		MasterSecret: cfg.MasterSecret,
		Logger:       log,
	})

	log.Info().Int("port", cfg.Port).Msg("listening")
	if err := server.Run(cfg, router); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
