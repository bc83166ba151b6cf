package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"csv-import-export/common"
	"csv-import-export/datasets"
	"csv-import-export/exports"
	"csv-import-export/imports"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Migrate creates the dataset and job tables.
func Migrate(db *gorm.DB) error {
	if err := datasets.AutoMigrate(db); err != nil {
		return err
	}
	return common.AutoMigrateJobs(db)
}

// NewRouter wires every route. Dataset, import and export routes sit behind
// bearer auth when cfg enables it.
func NewRouter(cfg *common.Config) *gin.Engine {
	r := gin.New()
	r.RedirectTrailingSlash = false
	r.Use(gin.Recovery(), common.MetricsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("")
	if cfg.Auth.Enabled() {
		r.POST("/auth/token", common.TokenHandler(cfg.Auth))
		api.Use(common.AuthMiddleware([]byte(cfg.Auth.JWTSecret)))
	}

	datasets.RegisterRoutes(api.Group("/datasets"))
	imports.RegisterRoutes(api.Group("/imports"))
	exports.RegisterRoutes(api.Group("/exports"))
	api.Static(exports.DownloadPrefix, cfg.Storage.ExportsDir)

	return r
}

func run() error {
	cfg, err := common.LoadConfig()
	if err != nil {
		return err
	}
	common.SetupLogging(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	if err := cfg.Apply(); err != nil {
		return err
	}

	db, err := common.Init(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := NewRouter(cfg)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	slog.Info("server starting", "addr", addr, "auth", cfg.Auth.Enabled())
	return r.Run(addr)
}

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
