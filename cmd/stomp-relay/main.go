package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/omochice/counsel-chat/internal/config"
	"github.com/omochice/counsel-chat/internal/log"
	"github.com/omochice/counsel-chat/internal/relay"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "Directory containing config.yaml")
	address := flag.String("address", "", "Address to listen on (overrides relay.address)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger := log.L()
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Log.ServiceName == "" {
		cfg.Log.ServiceName = "stomp-relay"
	}
	log.Init(cfg.Log)
	logger := log.L()

	if *address != "" {
		cfg.Relay.Address = *address
	}
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, relay.New(relay.WithLogger(logger)), cfg.Relay.Address, logger); err != nil {
		logger.Fatal().Err(err).Msg("relay error")
	}
	logger.Info().Msg("relay stopped")
}

// run serves on address until ctx ends, then shuts the relay down.
func run(ctx context.Context, srv *relay.Server, address string, logger zerolog.Logger) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info().Str("address", address).Msg("starting relay")
		errChan <- srv.Start(address)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return err
	}
	return <-errChan
}
