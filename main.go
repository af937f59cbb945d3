package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Lucidreline/leveling/internal/app"
	"github.com/Lucidreline/leveling/internal/config"
)

func main() {
	cfg, err := config.Load("leveling_config.yml")
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("load config: %v", err)
		}
		cfg = config.Default()
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	a, err := app.New(app.Options{Config: cfg, Logger: logger})
	if err != nil {
		logger.Fatal("build app", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		logger.Fatal("run", zap.Error(err))
	}
}
