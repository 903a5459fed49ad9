package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/localnerve/crmsync/internal/config"
	"github.com/localnerve/crmsync/internal/database"
	"github.com/localnerve/crmsync/internal/logging"
	"github.com/localnerve/crmsync/internal/server"
)

// @title crmsync API
// @version 1.0.0
// @description Cloud document store for the offline-first CRM client
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/localnerve/crmsync
// @contact.email info@localnerve.com

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	var envFilename string
	flag.StringVar(&envFilename, "f", "", "path to the .env file")
	flag.Parse()

	if envFilename != "" {
		if err := config.LoadEnvFile(envFilename); err != nil {
			log.Fatalf("Failed to load environment variables: %v", err)
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.Init("crmsync-server", logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	logger := logging.Component("server")

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	// Notification hub
	hub := server.NewHub(cfg, db)
	if err := hub.Start(); err != nil {
		logger.Fatalf("Failed to start notification hub: %v", err)
	}
	logger.Infof("Notification hub listening on %s", hub.Addr())

	app := server.NewApp(cfg, db, hub, server.Options{AccessLog: true})

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		logger.Info("Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	// Start server
	port := cfg.Port
	logger.Infof("Starting server on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}

	if err := hub.Stop(); err != nil {
		logger.WithError(err).Warn("Notification hub did not stop cleanly")
	}
	logger.Info("Server stopped")
}
