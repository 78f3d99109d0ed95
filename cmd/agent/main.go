package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"stat-watcher/internal/agent"
	"stat-watcher/internal/config"
	"stat-watcher/internal/logger"
)

func main() {
	cfg, err := config.LoadAgentConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info().Str("url", cfg.URL).Dur("interval", cfg.Interval).Msg("agent starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := agent.NewCollector(log)
	client := agent.NewClient(cfg.URL, cfg.Token, log)

	if err := client.Run(ctx, collector, cfg.Interval); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("agent stopped")
	}
}
