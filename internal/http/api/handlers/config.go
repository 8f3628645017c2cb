package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dora-gg/cardshop/internal/cache"
	"github.com/dora-gg/cardshop/internal/models"
	"github.com/dora-gg/cardshop/internal/settings"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ConfigHandler handles site configuration endpoints.
type ConfigHandler struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewConfigHandler constructs a ConfigHandler. The cache may be nil.
func NewConfigHandler(db *gorm.DB, configCache *cache.Cache) *ConfigHandler {
	return &ConfigHandler{db: db, cache: configCache}
}

// GetAll returns the merged configuration map for the storefront, optionally
// scoped to a game.
func (h *ConfigHandler) GetAll(c *gin.Context) {
	gameID, okGame := parseGameIDQuery(c)
	if !okGame {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid gameId"})
		return
	}

	cacheKey := cache.ConfigKey(gameID)
	if cached, hit := h.cache.GetConfig(c.Request.Context(), cacheKey); hit {
		c.JSON(http.StatusOK, gin.H{"config": cached})
		return
	}

	merged, errResolve := settings.ResolveAll(c.Request.Context(), h.db, gameID)
	if errResolve != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve config failed"})
		return
	}

	h.cache.SetConfig(c.Request.Context(), cacheKey, merged)
	c.JSON(http.StatusOK, gin.H{"config": merged})
}

// GetKey returns one configuration value through the layered lookup.
func (h *ConfigHandler) GetKey(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
		return
	}
	gameID, okGame := parseGameIDQuery(c)
	if !okGame {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid gameId"})
		return
	}

	value, errResolve := settings.ResolveKey(c.Request.Context(), h.db, key, gameID)
	if errResolve != nil {
		if errors.Is(errResolve, settings.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "config key not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve config failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

// setBatchRequest defines the request body for bulk configuration writes.
type setBatchRequest struct {
	Configs map[string]any `json:"configs"`
	GameID  *uint64        `json:"gameId"`
}

// SetBatch upserts a map of configuration entries in one transaction.
func (h *ConfigHandler) SetBatch(c *gin.Context) {
	var body setBatchRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(body.Configs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "configs is required"})
		return
	}
	if body.GameID != nil && !gameExists(c, h.db, *body.GameID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "game not found"})
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		for key, value := range body.Configs {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			if _, errUpsert := settings.Upsert(c.Request.Context(), tx, key, value, body.GameID); errUpsert != nil {
				return errUpsert
			}
		}
		return nil
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save config failed"})
		return
	}

	h.cache.InvalidateConfig(c.Request.Context(), body.GameID)
	log.Infof("updated %d config entries", len(body.Configs))
	c.JSON(http.StatusOK, gin.H{"message": "config updated"})
}

// setKeyRequest defines the request body for a single configuration write.
type setKeyRequest struct {
	Value  any     `json:"value"`
	GameID *uint64 `json:"gameId"`
}

// SetKey upserts one configuration entry.
func (h *ConfigHandler) SetKey(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
		return
	}

	var body setKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Value == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value is required"})
		return
	}
	if body.GameID != nil && !gameExists(c, h.db, *body.GameID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "game not found"})
		return
	}

	row, errUpsert := settings.Upsert(c.Request.Context(), h.db, key, body.Value, body.GameID)
	if errUpsert != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save config failed"})
		return
	}

	h.cache.InvalidateConfig(c.Request.Context(), body.GameID)
	c.JSON(http.StatusOK, gin.H{"config": formatConfig(row)})
}

// DeleteKey removes one configuration entry, falling back to lower layers on
// subsequent reads.
func (h *ConfigHandler) DeleteKey(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid key"})
		return
	}
	gameID, okGame := parseGameIDQuery(c)
	if !okGame {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid gameId"})
		return
	}

	scope := h.db.WithContext(c.Request.Context()).Where("key = ?", key)
	if gameID != nil {
		scope = scope.Where("game_id = ?", *gameID)
	} else {
		scope = scope.Where("game_id IS NULL")
	}

	result := scope.Delete(&models.SiteConfig{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete config failed"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "config key not found"})
		return
	}

	h.cache.InvalidateConfig(c.Request.Context(), gameID)
	c.JSON(http.StatusOK, gin.H{"message": "config deleted"})
}

// AdminList returns the raw stored rows without layering, for the back office.
func (h *ConfigHandler) AdminList(c *gin.Context) {
	gameID, okGame := parseGameIDQuery(c)
	if !okGame {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid gameId"})
		return
	}

	query := h.db.WithContext(c.Request.Context()).Model(&models.SiteConfig{})
	if gameID != nil {
		query = query.Where("game_id = ?", *gameID)
	}

	var rows []models.SiteConfig
	if errFind := query.Order("key ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list config failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatConfig(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"configs": out})
}

// formatConfig maps a stored config row into a response payload.
func formatConfig(row *models.SiteConfig) gin.H {
	return gin.H{
		"id":        row.ID,
		"gameId":    row.GameID,
		"key":       row.Key,
		"value":     settings.DecodeValue(row.Value),
		"updatedAt": row.UpdatedAt,
	}
}
