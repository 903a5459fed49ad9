package services

import (
	"fmt"
	"time"

	"github.com/localnerve/crmsync/internal/config"
	"github.com/localnerve/crmsync/internal/logging"
	"github.com/localnerve/crmsync/internal/utils"
	"gorm.io/gorm"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       string            `json:"status"`
	Database     string            `json:"database"`
	Notify       string            `json:"notify"`
	Details      map[string]string `json:"details,omitempty"`
	ErrorMessage string            `json:"error,omitempty"`
}

// HealthCheck performs a comprehensive health check of the service
func HealthCheck(cfg *config.Config, db *gorm.DB) HealthCheckResult {
	log := logging.Component("health")
	result := HealthCheckResult{
		Status:  "healthy",
		Details: make(map[string]string),
	}

	// Check database connectivity
	sqlDB, err := db.DB()
	if err != nil {
		result.Status = "unhealthy"
		result.Database = "error"
		result.Details["database_error"] = err.Error()
		result.ErrorMessage = fmt.Sprintf("Database connection error: %v", err)
		log.WithError(err).Warn("Health check failed - database connection")
	} else {
		if err := sqlDB.Ping(); err != nil {
			result.Status = "unhealthy"
			result.Database = "unreachable"
			result.Details["database_ping_error"] = err.Error()
			result.ErrorMessage = fmt.Sprintf("Database ping failed: %v", err)
			log.WithError(err).Warn("Health check failed - database ping")
		} else {
			result.Database = "ok"
			result.Details["database_type"] = cfg.DBType
			result.Details["database_name"] = cfg.DBDatabase
		}
	}

	// Check the notification listener
	notifyURL := "http://localhost:" + cfg.NotifyPort
	if err := utils.PingService(notifyURL, 1500*time.Millisecond); err != nil {
		result.Status = "unhealthy"
		result.Notify = "unreachable"
		result.Details["notify_error"] = err.Error()
		if result.ErrorMessage == "" {
			result.ErrorMessage = fmt.Sprintf("Notify hub ping failed: %v", err)
		} else {
			result.ErrorMessage += fmt.Sprintf("; Notify hub ping failed: %v", err)
		}
		log.WithError(err).Warn("Health check failed - notify ping")
	} else {
		result.Notify = "ok"
		result.Details["notify_url"] = notifyURL
	}

	if result.Status == "healthy" {
		log.Debug("Health check passed - all systems operational")
	}

	return result
}
