package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dora-gg/cardshop/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProductHandler handles product catalog endpoints.
type ProductHandler struct {
	db *gorm.DB
}

// NewProductHandler constructs a ProductHandler.
func NewProductHandler(db *gorm.DB) *ProductHandler {
	return &ProductHandler{db: db}
}

// List returns products, optionally filtered by game and active flag.
func (h *ProductHandler) List(c *gin.Context) {
	gameID, okGame := parseGameIDQuery(c)
	if !okGame {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid gameId"})
		return
	}

	query := h.db.WithContext(c.Request.Context()).Model(&models.Product{})
	if gameID != nil {
		query = query.Where("game_id = ?", *gameID)
	}
	if c.Query("active") == "true" {
		query = query.Where("is_active = ?", true)
	}

	var products []models.Product
	if errFind := query.
		Preload("Game").
		Order("sort_order ASC, price ASC").
		Find(&products).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list products failed"})
		return
	}

	out := make([]gin.H, 0, len(products))
	for i := range products {
		out = append(out, formatProduct(&products[i]))
	}
	c.JSON(http.StatusOK, gin.H{"products": out})
}

// ListByGame returns the active products of a game addressed by ID or slug.
func (h *ProductHandler) ListByGame(c *gin.Context) {
	raw := strings.TrimSpace(c.Param("id"))
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	query := h.db.WithContext(c.Request.Context())
	if id, errParse := strconv.ParseUint(raw, 10, 64); errParse == nil && id != 0 {
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("slug = ?", raw)
	}

	var game models.Game
	if errFind := query.First(&game).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var products []models.Product
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("game_id = ? AND is_active = ?", game.ID, true).
		Order("sort_order ASC, price ASC").
		Find(&products).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list products failed"})
		return
	}

	out := make([]gin.H, 0, len(products))
	for i := range products {
		out = append(out, formatProduct(&products[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"game":     formatGame(&game),
		"products": out,
	})
}

// Get returns a single product by ID.
func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var product models.Product
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("Game").
		First(&product, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"product": formatProduct(&product)})
}

// productRequest captures create and update payloads. Features arrive as a
// plain string list and are stored as JSON.
type productRequest struct {
	GameID      *uint64   `json:"gameId"`
	Name        *string   `json:"name"`
	PlanType    *string   `json:"planType"`
	Price       *float64  `json:"price"`
	Currency    *string   `json:"currency"`
	Duration    *int      `json:"duration"`
	Description *string   `json:"description"`
	Features    *[]string `json:"features"`
	Badge       *string   `json:"badge"`
	IsPopular   *bool     `json:"isPopular"`
	IsPremium   *bool     `json:"isPremium"`
	IsActive    *bool     `json:"isActive"`
	SortOrder   *int      `json:"sortOrder"`
}

// Create adds a product under an existing game.
func (h *ProductHandler) Create(c *gin.Context) {
	var body productRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.GameID == nil || *body.GameID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "gameId is required"})
		return
	}
	name := ""
	if body.Name != nil {
		name = strings.TrimSpace(*body.Name)
	}
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if body.PlanType == nil || !models.ValidPlanType(*body.PlanType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan type"})
		return
	}
	if body.Price == nil || *body.Price < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price is required"})
		return
	}

	if !gameExists(c, h.db, *body.GameID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "game not found"})
		return
	}

	product := models.Product{
		GameID:   *body.GameID,
		Name:     name,
		PlanType: *body.PlanType,
		Price:    *body.Price,
		Currency: "NT$",
		Duration: durationForPlan(*body.PlanType),
		Features: datatypes.JSON([]byte("[]")),
		IsActive: true,
	}
	if body.Currency != nil && strings.TrimSpace(*body.Currency) != "" {
		product.Currency = strings.TrimSpace(*body.Currency)
	}
	if body.Duration != nil {
		product.Duration = *body.Duration
	}
	if body.Description != nil {
		product.Description = *body.Description
	}
	if body.Features != nil {
		raw, errMarshal := json.Marshal(*body.Features)
		if errMarshal != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid features"})
			return
		}
		product.Features = datatypes.JSON(raw)
	}
	if body.Badge != nil {
		product.Badge = *body.Badge
	}
	if body.IsPopular != nil {
		product.IsPopular = *body.IsPopular
	}
	if body.IsPremium != nil {
		product.IsPremium = *body.IsPremium
	}
	if body.IsActive != nil {
		product.IsActive = *body.IsActive
	}
	if body.SortOrder != nil {
		product.SortOrder = *body.SortOrder
	}

	if errCreate := h.db.WithContext(c.Request.Context()).Create(&product).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create product failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"product": formatProduct(&product)})
}

// Update applies partial changes to a product.
func (h *ProductHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var product models.Product
	if errFind := h.db.WithContext(c.Request.Context()).First(&product, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var body productRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updates := map[string]any{}
	if body.GameID != nil && *body.GameID != product.GameID {
		if !gameExists(c, h.db, *body.GameID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "game not found"})
			return
		}
		updates["game_id"] = *body.GameID
	}
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
			return
		}
		updates["name"] = name
	}
	if body.PlanType != nil {
		if !models.ValidPlanType(*body.PlanType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan type"})
			return
		}
		updates["plan_type"] = *body.PlanType
	}
	if body.Price != nil {
		if *body.Price < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price cannot be negative"})
			return
		}
		updates["price"] = *body.Price
	}
	if body.Currency != nil {
		updates["currency"] = strings.TrimSpace(*body.Currency)
	}
	if body.Duration != nil {
		updates["duration"] = *body.Duration
	}
	if body.Description != nil {
		updates["description"] = *body.Description
	}
	if body.Features != nil {
		raw, errMarshal := json.Marshal(*body.Features)
		if errMarshal != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid features"})
			return
		}
		updates["features"] = datatypes.JSON(raw)
	}
	if body.Badge != nil {
		updates["badge"] = *body.Badge
	}
	if body.IsPopular != nil {
		updates["is_popular"] = *body.IsPopular
	}
	if body.IsPremium != nil {
		updates["is_premium"] = *body.IsPremium
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

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&product).Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update product failed"})
		return
	}

	var updated models.Product
	if errFind := h.db.WithContext(c.Request.Context()).First(&updated, id).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": formatProduct(&updated)})
}

// Delete removes a product. Existing orders keep their snapshot of plan and
// amount, so no reference check is needed.
func (h *ProductHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var product models.Product
	if errFind := h.db.WithContext(c.Request.Context()).First(&product, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	if errDel := h.db.WithContext(c.Request.Context()).Delete(&models.Product{}, id).Error; errDel != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete product failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "product deleted"})
}

// durationForPlan returns the default access duration in hours for a plan.
func durationForPlan(planType string) int {
	switch planType {
	case models.PlanDay:
		return 24
	case models.PlanWeek:
		return 7 * 24
	case models.PlanMonth:
		return 30 * 24
	default:
		return -1
	}
}

// formatProduct maps a product into its public response payload.
func formatProduct(product *models.Product) gin.H {
	features := []string{}
	if len(product.Features) > 0 {
		// Stored value is always a JSON string array; fall back to empty on
		// malformed rows rather than failing the whole response.
		_ = json.Unmarshal(product.Features, &features)
	}
	item := gin.H{
		"id":          product.ID,
		"gameId":      product.GameID,
		"name":        product.Name,
		"planType":    product.PlanType,
		"price":       product.Price,
		"currency":    product.Currency,
		"duration":    product.Duration,
		"description": product.Description,
		"features":    features,
		"badge":       product.Badge,
		"isPopular":   product.IsPopular,
		"isPremium":   product.IsPremium,
		"isActive":    product.IsActive,
		"sortOrder":   product.SortOrder,
		"createdAt":   product.CreatedAt,
	}
	if product.Game != nil {
		item["game"] = gin.H{
			"id":   product.Game.ID,
			"name": product.Game.Name,
			"slug": product.Game.Slug,
		}
	}
	return item
}
