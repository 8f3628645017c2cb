package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dora-gg/cardshop/internal/db"
	"github.com/dora-gg/cardshop/internal/models"
	"github.com/dora-gg/cardshop/internal/security"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AdminHandler handles back-office endpoints.
type AdminHandler struct {
	db *gorm.DB
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(db *gorm.DB) *AdminHandler {
	return &AdminHandler{db: db}
}

// Stats aggregates the dashboard numbers: user and order totals, paid revenue,
// card inventory broken down by plan and status, and the latest orders.
func (h *AdminHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	var userCount int64
	if errCount := h.db.WithContext(ctx).Model(&models.User{}).Count(&userCount).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count users failed"})
		return
	}

	var orderCount int64
	if errCount := h.db.WithContext(ctx).Model(&models.Order{}).Count(&orderCount).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count orders failed"})
		return
	}

	var cardCount int64
	if errCount := h.db.WithContext(ctx).Model(&models.Card{}).Count(&cardCount).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count cards failed"})
		return
	}

	var unusedCount int64
	if errCount := h.db.WithContext(ctx).
		Model(&models.Card{}).
		Where("status = ?", models.CardUnused).
		Count(&unusedCount).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count cards failed"})
		return
	}

	var revenue float64
	if errSum := h.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ?", models.OrderPaid).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&revenue).Error; errSum != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sum revenue failed"})
		return
	}

	type planStatusCount struct {
		PlanType string
		Status   string
		Count    int64
	}
	var cardRows []planStatusCount
	if errGroup := h.db.WithContext(ctx).
		Model(&models.Card{}).
		Select("plan_type, status, COUNT(*) AS count").
		Group("plan_type, status").
		Scan(&cardRows).Error; errGroup != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count cards failed"})
		return
	}
	cards := gin.H{}
	for _, plan := range []string{models.PlanDay, models.PlanWeek, models.PlanMonth, models.PlanLifetime} {
		cards[plan] = gin.H{
			models.CardUnused:  int64(0),
			models.CardUsed:    int64(0),
			models.CardExpired: int64(0),
		}
	}
	for _, row := range cardRows {
		bucket, ok := cards[row.PlanType].(gin.H)
		if !ok {
			continue
		}
		bucket[row.Status] = row.Count
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var orderRows []statusCount
	if errGroup := h.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&orderRows).Error; errGroup != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count orders failed"})
		return
	}
	ordersByStatus := gin.H{
		models.OrderPending:   int64(0),
		models.OrderPaid:      int64(0),
		models.OrderCancelled: int64(0),
		models.OrderRefunded:  int64(0),
	}
	for _, row := range orderRows {
		ordersByStatus[row.Status] = row.Count
	}

	var recent []models.Order
	if errFind := h.db.WithContext(ctx).
		Preload("User").
		Order("created_at DESC").
		Limit(5).
		Find(&recent).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list recent orders failed"})
		return
	}
	recentOut := make([]gin.H, 0, len(recent))
	for i := range recent {
		recentOut = append(recentOut, formatOrder(&recent[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"stats": gin.H{
			"totalUsers":     userCount,
			"totalOrders":    orderCount,
			"totalCards":     cardCount,
			"unusedCards":    unusedCount,
			"totalRevenue":   revenue,
			"cardsByPlan":    cards,
			"ordersByStatus": ordersByStatus,
			"recentOrders":   recentOut,
		},
	})
}

// Users lists accounts with pagination, an optional case-insensitive email
// search and per-user order counts.
func (h *AdminHandler) Users(c *gin.Context) {
	page := parsePagination(c)

	query := h.db.WithContext(c.Request.Context()).Model(&models.User{})
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		pattern := db.NormalizeLikePattern(h.db, "%"+search+"%")
		query = query.Where(db.CaseInsensitiveLikeExpr(h.db, "email"), pattern)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count users failed"})
		return
	}

	var users []models.User
	if errFind := query.
		Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&users).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list users failed"})
		return
	}

	out := make([]gin.H, 0, len(users))
	for i := range users {
		var orderCount int64
		if errCount := h.db.WithContext(c.Request.Context()).
			Model(&models.Order{}).
			Where("user_id = ?", users[i].ID).
			Count(&orderCount).Error; errCount != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "count orders failed"})
			return
		}
		item := formatUser(&users[i])
		item["orderCount"] = orderCount
		out = append(out, item)
	}

	c.JSON(http.StatusOK, gin.H{
		"users":      out,
		"pagination": page.Response(total),
	})
}

// updateRoleRequest defines the request body for role changes.
type updateRoleRequest struct {
	Role string `json:"role"`
}

// UpdateUserRole promotes or demotes an account. Admins cannot change their
// own role, which keeps at least one admin reachable.
func (h *AdminHandler) UpdateUserRole(c *gin.Context) {
	actor := CurrentUser(c)
	if actor == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var body updateRoleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Role != models.RoleUser && body.Role != models.RoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}
	if id == actor.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot change your own role"})
		return
	}

	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&user).
		Update("role", body.Role).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update role failed"})
		return
	}

	user.Role = body.Role
	log.Infof("user %d role set to %s by admin %d", user.ID, body.Role, actor.ID)
	c.JSON(http.StatusOK, gin.H{"user": formatUser(&user)})
}

// CheckInit reports whether an admin account exists yet.
func (h *AdminHandler) CheckInit(c *gin.Context) {
	var count int64
	if errCount := h.db.WithContext(c.Request.Context()).
		Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Count(&count).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"initialized": count > 0})
}

// initRequest defines the request body for first-admin creation.
type initRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Init creates the first admin account. It refuses to run once any admin
// exists, so the endpoint is only useful on a fresh install.
func (h *AdminHandler) Init(c *gin.Context) {
	var body initRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	email := strings.TrimSpace(body.Email)
	if email == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	if len(body.Password) < minPasswordLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 6 characters"})
		return
	}

	var adminCount int64
	if errCount := h.db.WithContext(c.Request.Context()).
		Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Count(&adminCount).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if adminCount > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "already initialized"})
		return
	}

	hash, errHash := security.HashPassword(body.Password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash password failed"})
		return
	}

	// An existing account with this email is promoted instead of duplicated.
	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error
	switch {
	case errFind == nil:
		if errUpdate := h.db.WithContext(c.Request.Context()).
			Model(&user).
			Updates(map[string]any{"role": models.RoleAdmin, "password": hash}).Error; errUpdate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update user failed"})
			return
		}
		user.Role = models.RoleAdmin
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		user = models.User{Email: email, Password: hash, Role: models.RoleAdmin}
		if errCreate := h.db.WithContext(c.Request.Context()).Create(&user).Error; errCreate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
			return
		}
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	log.Infof("initialized admin account %d", user.ID)
	c.JSON(http.StatusCreated, gin.H{"user": formatUser(&user)})
}
