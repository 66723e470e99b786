package main

import (
	"casaflow/server/config"
	"casaflow/server/internal/api"
	"casaflow/server/internal/client"
	"casaflow/server/internal/store"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	// Make sure the autosave database directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.Drafts.DBPath), 0755); err != nil {
		logger.WithError(err).Fatal("Failed to create draft database directory")
	}

	logger.Infof("Using draft autosave database at: %s", cfg.Drafts.DBPath)
	drafts, err := store.Open(cfg.Drafts.DBPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open draft store")
	}
	defer drafts.Close()

	marketplace := client.NewClient(
		cfg.Marketplace.BaseURL,
		time.Duration(cfg.Marketplace.TimeoutSeconds)*time.Second,
		logger,
	)

	handler := api.NewHandler(marketplace, drafts, cfg, logger)

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
	}))

	api.SetupRoutes(router, handler)

	logger.Infof("Starting server on port %s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}
