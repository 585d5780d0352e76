package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/phillip-england/estatecrm/internal/consoleapp"
	"github.com/phillip-england/estatecrm/internal/envutil"
	"github.com/phillip-england/estatecrm/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := envutil.LoadDotEnv(".env"); err != nil {
		log.Fatal(err)
	}
	logger, closeLog, err := logging.New(logging.ConfigFromEnv())
	if err != nil {
		log.Fatal(err)
	}
	defer closeLog()

	if err := consoleapp.Run(ctx, consoleapp.DefaultConfigFromEnv(), logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("console stopped", "error", err)
	}
}
