// Command bhashad runs the contribution daemon: the HTTP API, the capture
// device monitor, and the upload pipeline.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"bhasha/internal/catalog"
	"bhasha/internal/config"
	"bhasha/internal/daemon"
	"bhasha/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := catalog.Open(cfg)
	if err != nil {
		log.Fatalf("open catalog: %v", err)
	}
	defer store.Close()

	d, err := daemon.New(cfg, store, logger)
	if err != nil {
		log.Fatalf("create daemon: %v", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		log.Fatalf("start daemon: %v", err)
	}
	logger.Info("bhashad listening", logging.String("address", d.APIAddress()))

	<-ctx.Done()
	logger.Info("bhashad shutting down")
	d.Stop()
}
