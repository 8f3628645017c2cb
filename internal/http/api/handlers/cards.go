package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dora-gg/cardshop/internal/cardkey"
	"github.com/dora-gg/cardshop/internal/models"
	"github.com/dora-gg/cardshop/internal/util"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errDuplicateCards marks an upload batch containing keys that are already
// stored.
var errDuplicateCards = errors.New("duplicate card keys")

// CardHandler handles license card inventory endpoints.
type CardHandler struct {
	db *gorm.DB
}

// NewCardHandler constructs a CardHandler.
func NewCardHandler(db *gorm.DB) *CardHandler {
	return &CardHandler{db: db}
}

// List returns cards filtered by status and plan type, paginated.
func (h *CardHandler) List(c *gin.Context) {
	page := parsePagination(c)

	query := h.db.WithContext(c.Request.Context()).Model(&models.Card{})
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	if planType := strings.TrimSpace(c.Query("planType")); planType != "" {
		query = query.Where("plan_type = ?", planType)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count cards failed"})
		return
	}

	var cards []models.Card
	if errFind := query.
		Preload("Order").
		Preload("Order.User").
		Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&cards).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list cards failed"})
		return
	}

	out := make([]gin.H, 0, len(cards))
	for i := range cards {
		out = append(out, formatCard(&cards[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"cards":      out,
		"pagination": page.Response(total),
	})
}

// uploadCardsRequest captures the payload for bulk card upload.
type uploadCardsRequest struct {
	PlanType string   `json:"planType"`
	CardKeys []string `json:"cardKeys"`
	GameID   *uint64  `json:"gameId"`
}

// Upload persists a batch of externally produced keys as unused cards. The
// batch is rejected as a whole when any key is already stored.
func (h *CardHandler) Upload(c *gin.Context) {
	var body uploadCardsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if !models.ValidPlanType(body.PlanType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan type"})
		return
	}
	if len(body.CardKeys) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "card keys are required"})
		return
	}
	if len(body.CardKeys) > cardkey.MaxBatch {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at most 500 cards per upload"})
		return
	}

	// Trim, drop empties, dedupe.
	seen := make(map[string]struct{}, len(body.CardKeys))
	keys := make([]string, 0, len(body.CardKeys))
	for _, raw := range body.CardKeys {
		key := strings.TrimSpace(raw)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no valid card keys"})
		return
	}

	if body.GameID != nil && !gameExists(c, h.db, *body.GameID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "game not found"})
		return
	}

	cards := make([]models.Card, 0, len(keys))
	for _, key := range keys {
		cards = append(cards, models.Card{
			CardKey:  key,
			PlanType: body.PlanType,
			GameID:   body.GameID,
			Status:   models.CardUnused,
		})
	}

	// Check and insert inside one transaction so a concurrent upload of the
	// same keys either shows up in the check or trips the unique index, never
	// a half-inserted batch.
	duplicates := []string{}
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var existing []models.Card
		if errFind := tx.Select("card_key").Where("card_key IN ?", keys).Find(&existing).Error; errFind != nil {
			return errFind
		}
		if len(existing) > 0 {
			for _, card := range existing {
				duplicates = append(duplicates, card.CardKey)
			}
			return errDuplicateCards
		}
		return tx.Create(&cards).Error
	})
	if errTx != nil {
		switch {
		case errors.Is(errTx, errDuplicateCards):
		case isUniqueViolation(errTx):
			// A concurrent writer claimed keys after the check; report
			// whichever ones are stored now.
			var existing []models.Card
			if errFind := h.db.WithContext(c.Request.Context()).
				Select("card_key").
				Where("card_key IN ?", keys).
				Find(&existing).Error; errFind == nil {
				for _, card := range existing {
					duplicates = append(duplicates, card.CardKey)
				}
			}
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create cards failed"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "some card keys already exist",
			"duplicates": duplicates,
		})
		return
	}

	log.Infof("uploaded %d %s cards", len(cards), body.PlanType)
	out := make([]gin.H, 0, len(cards))
	for i := range cards {
		out = append(out, formatCard(&cards[i]))
	}
	c.JSON(http.StatusCreated, gin.H{
		"count": len(cards),
		"cards": out,
	})
}

// generateCardsRequest captures the payload for server-side key generation.
type generateCardsRequest struct {
	PlanType string  `json:"planType"`
	Count    int     `json:"count"`
	GameID   *uint64 `json:"gameId"`
}

// Generate creates new unique keys server-side and stores them as unused
// cards. Keys colliding with stored ones are regenerated before insert.
func (h *CardHandler) Generate(c *gin.Context) {
	var body generateCardsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if !models.ValidPlanType(body.PlanType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan type"})
		return
	}
	if body.Count <= 0 || body.Count > cardkey.MaxBatch {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count must be between 1 and 500"})
		return
	}
	if body.GameID != nil && !gameExists(c, h.db, *body.GameID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "game not found"})
		return
	}

	keys, errGen := h.generateFreshKeys(c, body.Count)
	if errGen != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate keys failed"})
		return
	}
	if keys == nil {
		return
	}

	cards := make([]models.Card, 0, len(keys))
	for _, key := range keys {
		cards = append(cards, models.Card{
			CardKey:  key,
			PlanType: body.PlanType,
			GameID:   body.GameID,
			Status:   models.CardUnused,
		})
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&cards).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create cards failed"})
		return
	}

	log.Infof("generated %d %s cards", len(cards), body.PlanType)
	out := make([]gin.H, 0, len(cards))
	for i := range cards {
		out = append(out, formatCard(&cards[i]))
	}
	c.JSON(http.StatusCreated, gin.H{
		"count": len(cards),
		"cards": out,
	})
}

// generateFreshKeys draws random keys until count of them are absent from
// storage. A nil slice with no error means a response was already written.
func (h *CardHandler) generateFreshKeys(c *gin.Context, count int) ([]string, error) {
	taken := map[string]struct{}{}
	fresh := make([]string, 0, count)

	// Each round replaces only the keys that collided with stored ones, so
	// this converges in one round in practice.
	for len(fresh) < count {
		batch, errGen := cardkey.GenerateUniqueKeys(count-len(fresh), taken)
		if errGen != nil {
			return nil, errGen
		}
		for _, key := range batch {
			taken[key] = struct{}{}
		}

		var existing []models.Card
		if errFind := h.db.WithContext(c.Request.Context()).
			Select("card_key").
			Where("card_key IN ?", batch).
			Find(&existing).Error; errFind != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query cards failed"})
			return nil, nil
		}
		stored := make(map[string]struct{}, len(existing))
		for _, card := range existing {
			stored[card.CardKey] = struct{}{}
		}
		for _, key := range batch {
			if _, dup := stored[key]; !dup {
				fresh = append(fresh, key)
			}
		}
	}
	return fresh, nil
}

// Delete removes a card that has never been consumed.
func (h *CardHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var card models.Card
	if errFind := h.db.WithContext(c.Request.Context()).First(&card, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if card.Status != models.CardUnused {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only unused cards can be deleted"})
		return
	}

	if errDelete := h.db.WithContext(c.Request.Context()).Delete(&models.Card{}, id).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "card deleted"})
}

// cardKeyRequest defines the request body for verify and redeem.
type cardKeyRequest struct {
	CardKey string `json:"cardKey"`
}

// Verify reports whether a key exists and is still redeemable.
func (h *CardHandler) Verify(c *gin.Context) {
	var body cardKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	key := strings.TrimSpace(body.CardKey)
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "card key is required"})
		return
	}

	var card models.Card
	if errFind := h.db.WithContext(c.Request.Context()).Where("card_key = ?", key).First(&card).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	switch card.Status {
	case models.CardUsed:
		c.JSON(http.StatusBadRequest, gin.H{"error": "card already used"})
	case models.CardExpired:
		c.JSON(http.StatusBadRequest, gin.H{"error": "card expired"})
	default:
		c.JSON(http.StatusOK, gin.H{
			"valid":    true,
			"planType": card.PlanType,
		})
	}
}

// Redeem trades an unused card for a completed zero-amount order. Order
// creation and card consumption commit together or not at all.
func (h *CardHandler) Redeem(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body cardKeyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	key := strings.TrimSpace(body.CardKey)
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "card key is required"})
		return
	}

	var result gin.H
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var card models.Card
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("card_key = ?", key).
			First(&card).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
				return errFind
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query card failed"})
			return errFind
		}

		if card.Status != models.CardUnused {
			c.JSON(http.StatusBadRequest, gin.H{"error": "card cannot be used"})
			return errors.New("card not redeemable")
		}

		method := models.PaymentCardRedeem
		order := models.Order{
			UserID:        user.ID,
			PlanType:      card.PlanType,
			Amount:        0,
			Status:        models.OrderPaid,
			PaymentMethod: &method,
		}
		if errCreate := tx.Create(&order).Error; errCreate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create order failed"})
			return errCreate
		}

		now := time.Now().UTC()
		res := tx.Model(&models.Card{}).
			Where("id = ? AND status = ?", card.ID, models.CardUnused).
			Updates(map[string]any{
				"status":   models.CardUsed,
				"order_id": order.ID,
				"used_at":  now,
			})
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "redeem failed"})
			return res.Error
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "card cannot be used"})
			return errors.New("card consumed concurrently")
		}

		card.Status = models.CardUsed
		card.OrderID = &order.ID
		card.UsedAt = &now
		result = gin.H{
			"order":    formatOrder(&order),
			"card":     formatCard(&card),
			"planType": card.PlanType,
		}
		return nil
	})
	if errTx != nil {
		// Error paths inside the transaction have already written a response;
		// a failure to begin or commit has not.
		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "redeem failed"})
		}
		return
	}

	log.Infof("user %d redeemed card %s", user.ID, util.MaskCardKey(key))
	c.JSON(http.StatusOK, result)
}

// isUniqueViolation reports whether the error stems from a unique index.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// formatCard maps a card into a response payload.
func formatCard(card *models.Card) gin.H {
	item := gin.H{
		"id":        card.ID,
		"cardKey":   card.CardKey,
		"planType":  card.PlanType,
		"gameId":    card.GameID,
		"status":    card.Status,
		"orderId":   card.OrderID,
		"usedAt":    card.UsedAt,
		"createdAt": card.CreatedAt,
	}
	if card.Order != nil && card.Order.User != nil {
		item["order"] = gin.H{
			"id":        card.Order.ID,
			"status":    card.Order.Status,
			"userEmail": card.Order.User.Email,
		}
	}
	return item
}
