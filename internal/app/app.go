// Package app boots the storefront server: configuration, logging, database,
// cache and HTTP wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dora-gg/cardshop/internal/cache"
	"github.com/dora-gg/cardshop/internal/config"
	"github.com/dora-gg/cardshop/internal/db"
	"github.com/dora-gg/cardshop/internal/http/api"
	"github.com/dora-gg/cardshop/internal/logging"
	"github.com/dora-gg/cardshop/internal/models"
	"github.com/dora-gg/cardshop/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// shutdownTimeout bounds how long in-flight requests may run after a stop
// signal.
const shutdownTimeout = 10 * time.Second

// Migrate opens the database and applies schema migrations, then exits.
func Migrate(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	logging.Setup(cfg.Log)

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// Run boots the server and blocks until ctx is cancelled or the listener
// fails.
func Run(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	logging.Setup(cfg.Log)

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errAdmin := EnsureAdmin(ctx, conn, cfg.Admin); errAdmin != nil {
		return errAdmin
	}

	configCache := cache.New(cfg.Redis)

	if !cfg.Server.Dev {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())
	api.RegisterRoutes(engine, conn, cfg.JWT, configCache)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.Server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		if errors.Is(errServe, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", errServe)
	}
}

// EnsureAdmin guarantees the configured bootstrap account exists with admin
// rights. An existing account under the same email is promoted; its password
// is left untouched.
func EnsureAdmin(ctx context.Context, conn *gorm.DB, cfg config.AdminConfig) error {
	if cfg.Email == "" || cfg.Password == "" {
		return nil
	}

	var user models.User
	errFind := conn.WithContext(ctx).Where("email = ?", cfg.Email).First(&user).Error
	switch {
	case errFind == nil:
		if user.IsAdmin() {
			return nil
		}
		if errUpdate := conn.WithContext(ctx).
			Model(&user).
			Update("role", models.RoleAdmin).Error; errUpdate != nil {
			return fmt.Errorf("promote admin: %w", errUpdate)
		}
		log.Infof("promoted %s to admin", cfg.Email)
		return nil
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		hash, errHash := security.HashPassword(cfg.Password)
		if errHash != nil {
			return fmt.Errorf("hash admin password: %w", errHash)
		}
		user = models.User{Email: cfg.Email, Password: hash, Role: models.RoleAdmin}
		if errCreate := conn.WithContext(ctx).Create(&user).Error; errCreate != nil {
			return fmt.Errorf("create admin: %w", errCreate)
		}
		log.Infof("created bootstrap admin %s", cfg.Email)
		return nil
	default:
		return errFind
	}
}

// requestLogger logs each request with method, path, status and latency.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}
