// Package server assembles the cloud document server: the fiber API and the
// notification hub that shares its storage.
package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/localnerve/crmsync/internal/config"
	"github.com/localnerve/crmsync/internal/handlers"
	"github.com/localnerve/crmsync/internal/middleware"
	"github.com/localnerve/crmsync/internal/notify"
	"github.com/localnerve/crmsync/internal/services"
	"github.com/localnerve/crmsync/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	_ "github.com/localnerve/crmsync/docs/api" // Swagger docs
)

// Options toggle the ambient parts of the app
type Options struct {
	// AccessLog enables the fiber request logger
	AccessLog bool
	// Registry receives the HTTP metrics; nil uses a private registry
	Registry *prometheus.Registry
}

// NewApp builds the fiber app with every route mounted
func NewApp(cfg *config.Config, db *gorm.DB, hub handlers.Publisher, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: true,
		BodyLimit:             32 << 20,
	})

	// Global middleware
	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New())
	}
	app.Use(compress.New())

	// Prometheus metrics
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	prom := fiberprometheus.NewWithRegistry(registry, "crmsync", "http", "", nil)
	prom.RegisterAt(app, "/metrics")
	app.Use(prom.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API routes under /api
	api := app.Group("/api")

	// Version middleware
	api.Use(middleware.VersionMiddleware())
	api.Use(middleware.AuthUser(cfg.AuthSecret))

	docHandler := &handlers.DocumentHandler{DB: db, Notify: hub}
	roleHandler := &handlers.RoleHandler{DB: db}

	// Document routes
	api.Get("/docs/:owner", docHandler.GetDocument)
	api.Put("/docs/:owner", docHandler.PutDocument)
	api.Post("/docs/:owner/pending", docHandler.AppendPending)

	// Role and roster routes
	api.Get("/roles/:uid", roleHandler.GetRole)
	api.Put("/roles/:uid", roleHandler.PutRole)
	api.Get("/team/:owner", roleHandler.GetTeam)
	api.Put("/team/:owner/:member", roleHandler.PutTeamMember)
	api.Delete("/team/:owner/:member", roleHandler.DeleteTeamMember)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":    fiber.StatusNotFound,
			"message":   "[404] Resource Not Found",
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
		})
	})

	return app
}

// NewHub builds the notification hub. Subscribers authenticate with the same
// bearer tokens as the API and may only follow documents they can read.
func NewHub(cfg *config.Config, db *gorm.DB) *notify.Hub {
	return notify.NewHub(notify.Config{
		Addr: ":" + cfg.NotifyPort,
		Authorize: func(ctx context.Context, token, owner string) error {
			claims, err := services.ParseToken(cfg.AuthSecret, token)
			if err != nil {
				return fmt.Errorf("%w: %v", notify.ErrForbidden, err)
			}
			ok, err := services.CanRead(db.WithContext(ctx), claims.Subject, owner)
			if err != nil {
				return err
			}
			if !ok {
				return notify.ErrForbidden
			}
			return nil
		},
	})
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := "unknown"

	// Check if it's a Fiber error
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	var ce *types.CustomError
	if errors.As(err, &ce) {
		code = ce.Code
		message = ce.Message
		errorType = ce.Type
	}

	// Check for version errors
	versionError := false
	if code == fiber.StatusConflict || strings.HasPrefix(message, "E_VERSION") {
		versionError = true
		errorType = "version"
		code = fiber.StatusConflict
	}

	return c.Status(code).JSON(fiber.Map{
		"status":       code,
		"message":      message,
		"ok":           false,
		"versionError": versionError,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"url":          c.OriginalURL(),
		"type":         errorType,
	})
}
