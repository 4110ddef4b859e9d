package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"voicerelay/config"
	"voicerelay/core"
	"voicerelay/server"
)

func main() {
	var settingsPath string
	flag.StringVar(&settingsPath, "settings", "settings.json", "path to the settings file")
	flag.Parse()

	logger := core.GetLogger()

	if err := godotenv.Load(".env.local"); err != nil {
		logger.With(map[string]interface{}{"error": err}).Warn("No .env.local file found or failed to load")
	}

	cfg := config.DefaultConfig()
	if _, err := os.Stat(settingsPath); err == nil {
		loaded, err := config.FromFile(settingsPath)
		if err != nil {
			logger.Fatal("Failed to load settings: " + err.Error())
		}
		cfg = loaded
	} else {
		logger.Infof("No settings file at %s, using defaults", settingsPath)
	}
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration: " + err.Error())
	}

	manager := server.NewManager(cfg, logger)
	if err := manager.Start(); err != nil {
		logger.Fatal("Failed to start server: " + err.Error())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := manager.Stop(ctx); err != nil {
		logger.Errorf("Shutdown error: %v", err)
	}
}
