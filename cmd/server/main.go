package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/infrastructure/logger"
	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/infrastructure/storage"
	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/infrastructure/terminal"
	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/usecase"
	"github.com/5nail000/MT5-Trading-Dashboard-2/internal/web"
)

type Config struct {
	Terminal struct {
		Endpoint        string `yaml:"endpoint"`
		FetchTimeoutSec int    `yaml:"fetch_timeout_sec"`
		Workers         int    `yaml:"workers"`
	} `yaml:"terminal"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
	Sync struct {
		DrawdownEnabled bool `yaml:"drawdown_enabled"`
	} `yaml:"sync"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func main() {
	configPath := "config/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var log *zap.Logger
	if cfg.Logging.File != "" {
		log, err = logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = "dashboard.db"
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.Fatal("Failed to init sqlite", zap.Error(err))
	}
	defer store.Close()

	bridge := terminal.NewBridge(cfg.Terminal.Endpoint)
	defer bridge.Close()

	workers := cfg.Terminal.Workers
	if workers == 0 {
		workers = 2
	}
	pool := usecase.NewTerminalPool(workers)
	defer pool.Close()

	fetchTimeout := time.Duration(cfg.Terminal.FetchTimeoutSec) * time.Second
	if fetchTimeout == 0 {
		fetchTimeout = 30 * time.Second
	}

	syncService := usecase.NewSyncService(bridge, store, store, store, store, pool, fetchTimeout, log)
	if cfg.Sync.DrawdownEnabled {
		syncService.EnableDrawdown(bridge)
	}
	statsService := usecase.NewStatsService(store, store, store)

	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	server := web.NewServer(port, syncService, statsService, store, store, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.Shutdown(ctx)
}
