// Package api registers the storefront REST surface under /api.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/dora-gg/cardshop/internal/cache"
	"github.com/dora-gg/cardshop/internal/config"
	"github.com/dora-gg/cardshop/internal/http/api/handlers"
	"github.com/dora-gg/cardshop/internal/models"
	"github.com/dora-gg/cardshop/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterRoutes wires every API endpoint onto the engine.
func RegisterRoutes(r *gin.Engine, conn *gorm.DB, jwtCfg config.JWTConfig, configCache *cache.Cache) {
	if r == nil || conn == nil {
		return
	}

	apiGroup := r.Group("/api")

	apiGroup.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC().Format(time.RFC3339)})
	})

	authed := authMiddleware(conn, jwtCfg)
	admin := requireAdmin()

	authHandler := handlers.NewAuthHandler(conn, jwtCfg)
	apiGroup.POST("/auth/register", authHandler.Register)
	apiGroup.POST("/auth/login", authHandler.Login)
	apiGroup.GET("/auth/me", authed, authHandler.Me)

	cardHandler := handlers.NewCardHandler(conn)
	apiGroup.GET("/cards", authed, admin, cardHandler.List)
	apiGroup.POST("/cards/upload", authed, admin, cardHandler.Upload)
	apiGroup.POST("/cards/generate", authed, admin, cardHandler.Generate)
	apiGroup.DELETE("/cards/:id", authed, admin, cardHandler.Delete)
	apiGroup.POST("/cards/verify", authed, cardHandler.Verify)
	apiGroup.POST("/cards/redeem", authed, cardHandler.Redeem)

	orderHandler := handlers.NewOrderHandler(conn)
	apiGroup.GET("/orders", authed, orderHandler.List)
	apiGroup.POST("/orders", authed, orderHandler.Create)
	apiGroup.GET("/orders/:id", authed, orderHandler.Get)
	apiGroup.POST("/orders/:id/pay", authed, orderHandler.Pay)
	apiGroup.PUT("/orders/:id", authed, admin, orderHandler.SetStatus)

	productHandler := handlers.NewProductHandler(conn)

	// The :id lookups also accept slugs; gin's router cannot hold a static
	// segment next to a path parameter, so the handlers dispatch on the value.
	gameHandler := handlers.NewGameHandler(conn)
	apiGroup.GET("/games", gameHandler.List)
	apiGroup.GET("/games/:id", gameHandler.Get)
	apiGroup.GET("/games/:id/products", productHandler.ListByGame)
	apiGroup.POST("/games", authed, admin, gameHandler.Create)
	apiGroup.PUT("/games/:id", authed, admin, gameHandler.Update)
	apiGroup.DELETE("/games/:id", authed, admin, gameHandler.Delete)

	apiGroup.GET("/products", productHandler.List)
	apiGroup.GET("/products/:id", productHandler.Get)
	apiGroup.POST("/products", authed, admin, productHandler.Create)
	apiGroup.PUT("/products/:id", authed, admin, productHandler.Update)
	apiGroup.DELETE("/products/:id", authed, admin, productHandler.Delete)

	configHandler := handlers.NewConfigHandler(conn, configCache)
	apiGroup.GET("/config", configHandler.GetAll)
	apiGroup.GET("/config/:key", configHandler.GetKey)
	apiGroup.PUT("/config", authed, admin, configHandler.SetBatch)
	apiGroup.PUT("/config/:key", authed, admin, configHandler.SetKey)
	apiGroup.DELETE("/config/:key", authed, admin, configHandler.DeleteKey)

	adminHandler := handlers.NewAdminHandler(conn)
	apiGroup.GET("/admin/stats", authed, admin, adminHandler.Stats)
	apiGroup.GET("/admin/users", authed, admin, adminHandler.Users)
	apiGroup.PUT("/admin/users/:id/role", authed, admin, adminHandler.UpdateUserRole)
	apiGroup.GET("/admin/configs", authed, admin, configHandler.AdminList)
	apiGroup.GET("/admin/check-init", adminHandler.CheckInit)
	apiGroup.POST("/admin/init", adminHandler.Init)
}

// authMiddleware validates bearer JWTs and loads the user into context.
func authMiddleware(conn *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := conn.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}

		c.Set(handlers.ContextUserKey, &user)
		c.Next()
	}
}

// requireAdmin rejects requests from non-admin users. It must run after
// authMiddleware.
func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := handlers.CurrentUser(c)
		if user == nil || !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin privileges required"})
			return
		}
		c.Next()
	}
}
