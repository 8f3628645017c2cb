package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dora-gg/cardshop/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GameHandler handles game catalog endpoints.
type GameHandler struct {
	db *gorm.DB
}

// NewGameHandler constructs a GameHandler.
func NewGameHandler(db *gorm.DB) *GameHandler {
	return &GameHandler{db: db}
}

// List returns games ordered for display, optionally only active ones.
func (h *GameHandler) List(c *gin.Context) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.Game{})
	if c.Query("active") == "true" {
		query = query.Where("is_active = ?", true)
	}

	var games []models.Game
	if errFind := query.
		Order("sort_order ASC, created_at DESC").
		Find(&games).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list games failed"})
		return
	}

	out := make([]gin.H, 0, len(games))
	for i := range games {
		var productCount int64
		if errCount := h.db.WithContext(c.Request.Context()).
			Model(&models.Product{}).
			Where("game_id = ?", games[i].ID).
			Count(&productCount).Error; errCount != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "count products failed"})
			return
		}
		item := formatGame(&games[i])
		item["productCount"] = productCount
		out = append(out, item)
	}
	c.JSON(http.StatusOK, gin.H{"games": out})
}

// Get returns one game. Numeric values address by ID and serve the back
// office detail (all products plus counts); anything else is treated as a
// slug and serves the storefront view with active products only.
func (h *GameHandler) Get(c *gin.Context) {
	raw := strings.TrimSpace(c.Param("id"))
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if id, errParse := strconv.ParseUint(raw, 10, 64); errParse == nil && id != 0 {
		h.getByID(c, id)
		return
	}
	h.getBySlug(c, raw)
}

// getBySlug returns a game with its active products and configs.
func (h *GameHandler) getBySlug(c *gin.Context, slug string) {
	var game models.Game
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("Products", "is_active = ?", true, func(tx *gorm.DB) *gorm.DB {
			return tx.Order("sort_order ASC, price ASC")
		}).
		Preload("Configs").
		Where("slug = ?", slug).
		First(&game).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"game": formatGameDetail(&game)})
}

// getByID returns a game with all of its products and counts.
func (h *GameHandler) getByID(c *gin.Context, id uint64) {
	var game models.Game
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("Products", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("sort_order ASC, price ASC")
		}).
		Preload("Configs").
		First(&game, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var cardCount int64
	if errCount := h.db.WithContext(c.Request.Context()).
		Model(&models.Card{}).
		Where("game_id = ?", game.ID).
		Count(&cardCount).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count cards failed"})
		return
	}

	item := formatGameDetail(&game)
	item["cardCount"] = cardCount
	c.JSON(http.StatusOK, gin.H{"game": item})
}

// gameRequest captures create and update payloads.
type gameRequest struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
	CoverImage  *string `json:"coverImage"`
	ThemeColor  *string `json:"themeColor"`
	IsActive    *bool   `json:"isActive"`
	SortOrder   *int    `json:"sortOrder"`
}

// Create adds a new game, rejecting slug collisions.
func (h *GameHandler) Create(c *gin.Context) {
	var body gameRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := ""
	if body.Name != nil {
		name = strings.TrimSpace(*body.Name)
	}
	slug := ""
	if body.Slug != nil {
		slug = strings.TrimSpace(*body.Slug)
	}
	if name == "" || slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and slug are required"})
		return
	}

	if taken, errCheck := h.slugTaken(c, slug, 0); errCheck != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	} else if taken {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slug already in use"})
		return
	}

	game := models.Game{
		Name:       name,
		Slug:       slug,
		ThemeColor: "#ff4655",
		IsActive:   true,
	}
	if body.Description != nil {
		game.Description = *body.Description
	}
	if body.Icon != nil {
		game.Icon = *body.Icon
	}
	if body.CoverImage != nil {
		game.CoverImage = *body.CoverImage
	}
	if body.ThemeColor != nil && strings.TrimSpace(*body.ThemeColor) != "" {
		game.ThemeColor = strings.TrimSpace(*body.ThemeColor)
	}
	if body.IsActive != nil {
		game.IsActive = *body.IsActive
	}
	if body.SortOrder != nil {
		game.SortOrder = *body.SortOrder
	}

	if errCreate := h.db.WithContext(c.Request.Context()).Create(&game).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create game failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"game": formatGame(&game)})
}

// Update applies partial changes to a game, revalidating slug uniqueness.
func (h *GameHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var game models.Game
	if errFind := h.db.WithContext(c.Request.Context()).First(&game, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var body gameRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{}
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
			return
		}
		updates["name"] = name
	}
	if body.Slug != nil {
		slug := strings.TrimSpace(*body.Slug)
		if slug == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "slug cannot be empty"})
			return
		}
		if slug != game.Slug {
			if taken, errCheck := h.slugTaken(c, slug, game.ID); errCheck != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
				return
			} else if taken {
				c.JSON(http.StatusBadRequest, gin.H{"error": "slug already in use"})
				return
			}
		}
		updates["slug"] = slug
	}
	if body.Description != nil {
		updates["description"] = *body.Description
	}
	if body.Icon != nil {
		updates["icon"] = *body.Icon
	}
	if body.CoverImage != nil {
		updates["cover_image"] = *body.CoverImage
	}
	if body.ThemeColor != nil {
		updates["theme_color"] = *body.ThemeColor
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}
	if body.SortOrder != nil {
		updates["sort_order"] = *body.SortOrder
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&game).Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update game failed"})
		return
	}

	var updated models.Game
	if errFind := h.db.WithContext(c.Request.Context()).First(&updated, id).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"game": formatGame(&updated)})
}

// Delete removes a game along with its products, cards and configs.
func (h *GameHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var game models.Game
	if errFind := h.db.WithContext(c.Request.Context()).First(&game, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errDel := tx.Where("game_id = ?", id).Delete(&models.Product{}).Error; errDel != nil {
			return errDel
		}
		if errDel := tx.Where("game_id = ?", id).Delete(&models.Card{}).Error; errDel != nil {
			return errDel
		}
		if errDel := tx.Where("game_id = ?", id).Delete(&models.SiteConfig{}).Error; errDel != nil {
			return errDel
		}
		return tx.Delete(&models.Game{}, id).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete game failed"})
		return
	}

	log.Infof("deleted game %d (%s)", id, game.Slug)
	c.JSON(http.StatusOK, gin.H{"message": "game deleted"})
}

// slugTaken reports whether another game already uses the slug.
func (h *GameHandler) slugTaken(c *gin.Context, slug string, excludeID uint64) (bool, error) {
	query := h.db.WithContext(c.Request.Context()).Model(&models.Game{}).Where("slug = ?", slug)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if errCount := query.Count(&count).Error; errCount != nil {
		return false, errCount
	}
	return count > 0, nil
}

// formatGame maps a game into its public response payload.
func formatGame(game *models.Game) gin.H {
	return gin.H{
		"id":          game.ID,
		"name":        game.Name,
		"slug":        game.Slug,
		"description": game.Description,
		"icon":        game.Icon,
		"coverImage":  game.CoverImage,
		"themeColor":  game.ThemeColor,
		"isActive":    game.IsActive,
		"sortOrder":   game.SortOrder,
		"createdAt":   game.CreatedAt,
	}
}

// formatGameDetail maps a game with preloaded products and configs.
func formatGameDetail(game *models.Game) gin.H {
	item := formatGame(game)

	products := make([]gin.H, 0, len(game.Products))
	for i := range game.Products {
		products = append(products, formatProduct(&game.Products[i]))
	}
	item["products"] = products

	configs := make([]gin.H, 0, len(game.Configs))
	for i := range game.Configs {
		configs = append(configs, gin.H{
			"key":   game.Configs[i].Key,
			"value": game.Configs[i].Value,
		})
	}
	item["configs"] = configs
	return item
}
