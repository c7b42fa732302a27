package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"injurywatch/db"
	ihttp "injurywatch/http"
	"injurywatch/logger"
	"injurywatch/ml"
	"injurywatch/monitoring"
)

func main() {
	// 1. Load config
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	config, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(config.Log); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// 2. Initialize database
	if err := db.InitDB(config.Database.Path); err != nil {
		logger.S().Fatalw("failed to initialize database", "error", err)
	}
	defer db.Close()
	logger.S().Infow("database initialized", "path", config.Database.Path)

	// 3. Wire the pipeline collaborators
	predictor := ml.NewClient(config.Model.Endpoint, config.modelTimeout(), config.Model.CacheSize)

	hub := monitoring.NewHub()
	go hub.Run()
	defer hub.Stop()

	presenter := monitoring.NewPresenter(hub)
	gate := &monitoring.Gate{}
	handlers := ihttp.NewHandlers(predictor, presenter, gate, hub)

	// 4. Watch config for model endpoint and log level changes
	watcher, err := watchConfig(configPath, func(updated *Config) {
		predictor.SetEndpoint(updated.Model.Endpoint)
		if err := logger.SetLevel(updated.Log.Level); err != nil {
			logger.S().Warnw("ignoring invalid log level from config", "level", updated.Log.Level, "error", err)
		}
	})
	if err != nil {
		logger.S().Warnw("config watcher disabled", "error", err)
	} else {
		defer watcher.Close()
	}

	// 5. Start HTTP server
	serverConfig := ihttp.DefaultServerConfig()
	serverConfig.Port = config.Http.Port
	server := ihttp.NewServer(serverConfig, handlers)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.S().Fatalw("HTTP server failed", "error", err)
		}
	}()

	// 6. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.S().Info("shutting down")

	if err := server.Stop(); err != nil {
		logger.S().Warnw("server forced to shutdown", "error", err)
	}
}
