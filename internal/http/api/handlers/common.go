package handlers

import (
	"strconv"
	"strings"

	"github.com/dora-gg/cardshop/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ContextUserKey is the gin context key holding the authenticated user.
const ContextUserKey = "user"

// CurrentUser extracts the authenticated user from gin context.
func CurrentUser(c *gin.Context) *models.User {
	val, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	user, ok := val.(*models.User)
	if !ok {
		return nil
	}
	return user
}

// pagination holds parsed list paging parameters.
type pagination struct {
	Page  int
	Limit int
}

// Offset returns the row offset for the current page.
func (p pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Response builds the pagination payload for a list response.
func (p pagination) Response(total int64) gin.H {
	totalPages := total / int64(p.Limit)
	if total%int64(p.Limit) != 0 {
		totalPages++
	}
	return gin.H{
		"page":       p.Page,
		"limit":      p.Limit,
		"total":      total,
		"totalPages": totalPages,
	}
}

// parsePagination reads page and limit query parameters with sane bounds.
func parsePagination(c *gin.Context) pagination {
	page, errPage := strconv.Atoi(strings.TrimSpace(c.DefaultQuery("page", "1")))
	if errPage != nil || page < 1 {
		page = 1
	}
	limit, errLimit := strconv.Atoi(strings.TrimSpace(c.DefaultQuery("limit", "20")))
	if errLimit != nil || limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return pagination{Page: page, Limit: limit}
}

// parseIDParam parses a numeric :id path parameter.
func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if errParse != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// parseGameIDQuery reads an optional gameId query parameter.
func parseGameIDQuery(c *gin.Context) (*uint64, bool) {
	raw := strings.TrimSpace(c.Query("gameId"))
	if raw == "" {
		return nil, true
	}
	id, errParse := strconv.ParseUint(raw, 10, 64)
	if errParse != nil || id == 0 {
		return nil, false
	}
	return &id, true
}

// gameExists reports whether a game with the given ID is stored.
func gameExists(c *gin.Context, conn *gorm.DB, gameID uint64) bool {
	var count int64
	if errCount := conn.WithContext(c.Request.Context()).
		Model(&models.Game{}).
		Where("id = ?", gameID).
		Count(&count).Error; errCount != nil {
		return false
	}
	return count > 0
}

// formatUser maps a user into its public response payload.
func formatUser(user *models.User) gin.H {
	return gin.H{
		"id":        user.ID,
		"email":     user.Email,
		"role":      user.Role,
		"createdAt": user.CreatedAt,
	}
}
