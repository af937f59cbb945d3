package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Lucidreline/leveling/internal/app"
	"github.com/Lucidreline/leveling/internal/config"
	"github.com/Lucidreline/leveling/internal/ops"
)

func main() {
	configPath := flag.String("config", "leveling_config.yml", "path to config file")
	dataDir := flag.String("data-dir", "", "override data directory")
	addr := flag.String("addr", "", "override listen address")
	once := flag.Bool("once", false, "run a single sweep tick and exit")
	restoreArchive := flag.String("restore", "", "restore a snapshot archive into the data dir before starting")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("load config: %v", err)
		}
		cfg = config.Default()
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	zapCfg := zap.NewProductionConfig()
	if *debug {
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := zapCfg.Build()
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if *restoreArchive != "" {
		if err := ops.Restore(*restoreArchive, cfg.DataDir); err != nil {
			logger.Fatal("restore snapshot", zap.Error(err))
		}
		logger.Info("snapshot restored",
			zap.String("archive", *restoreArchive),
			zap.String("data_dir", cfg.DataDir))
	}

	a, err := app.New(app.Options{Config: cfg, Logger: logger})
	if err != nil {
		logger.Fatal("build app", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		stats := a.Sweeper.Tick(ctx)
		logger.Info("single tick done",
			zap.Int("owners", stats.Owners),
			zap.Int("advanced", stats.Advanced),
			zap.Int("failed", stats.Failed))
		return
	}

	if err := a.Run(ctx); err != nil {
		logger.Fatal("run", zap.Error(err))
	}
}
