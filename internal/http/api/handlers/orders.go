package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dora-gg/cardshop/internal/allocation"
	"github.com/dora-gg/cardshop/internal/models"
	"github.com/dora-gg/cardshop/internal/settings"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrCodeNoCard is the machine-readable code for an exhausted card pool,
// letting clients show a "contact support" message instead of a generic
// failure.
const ErrCodeNoCard = "NO_CARD_AVAILABLE"

// errOrderConflict marks an order whose status changed between the initial
// read and the settlement transaction.
var errOrderConflict = errors.New("order state changed")

// OrderHandler handles order endpoints.
type OrderHandler struct {
	db *gorm.DB
}

// NewOrderHandler constructs an OrderHandler.
func NewOrderHandler(db *gorm.DB) *OrderHandler {
	return &OrderHandler{db: db}
}

// List returns orders, all of them for admins and own ones for users.
func (h *OrderHandler) List(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	page := parsePagination(c)

	query := h.db.WithContext(c.Request.Context()).Model(&models.Order{})
	if !user.IsAdmin() {
		query = query.Where("user_id = ?", user.ID)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count orders failed"})
		return
	}

	var orders []models.Order
	if errFind := query.
		Preload("User").
		Preload("Cards").
		Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&orders).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list orders failed"})
		return
	}

	out := make([]gin.H, 0, len(orders))
	for i := range orders {
		out = append(out, formatOrder(&orders[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"orders":     out,
		"pagination": page.Response(total),
	})
}

// createOrderRequest defines the request body for order creation.
type createOrderRequest struct {
	PlanType      string `json:"planType"`
	PaymentMethod string `json:"paymentMethod"`
}

// Create places a pending order priced from the configured plan table.
func (h *OrderHandler) Create(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body createOrderRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if !models.ValidPlanType(body.PlanType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan type"})
		return
	}

	amount, errPrice := settings.PlanPrice(c.Request.Context(), h.db, body.PlanType)
	if errPrice != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve price failed"})
		return
	}
	if amount == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plan is not available for purchase"})
		return
	}

	order := models.Order{
		UserID:   user.ID,
		PlanType: body.PlanType,
		Amount:   amount,
		Status:   models.OrderPending,
	}
	if method := strings.TrimSpace(body.PaymentMethod); method != "" {
		order.PaymentMethod = &method
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&order).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create order failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order": formatOrder(&order),
		"payment": gin.H{
			"amount":   amount,
			"currency": "TWD",
			"orderId":  order.ID,
		},
	})
}

// Get returns one order; users may only read their own.
func (h *OrderHandler) Get(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var order models.Order
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("User").
		Preload("Cards").
		First(&order, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if !user.IsAdmin() && order.UserID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your order"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": formatOrder(&order)})
}

// Pay settles a pending order through the simulated payment flow, binding one
// unused card of the order's plan inside a single transaction. Paying an
// already-paid order returns the existing binding without error.
func (h *OrderHandler) Pay(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var order models.Order
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("Cards").
		First(&order, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if order.UserID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your order"})
		return
	}

	if order.Status == models.OrderPaid {
		h.respondAlreadySettled(c, order.ID)
		return
	}
	if order.Status != models.OrderPending {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order cannot be paid in its current state"})
		return
	}

	var paidCard *models.Card
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		// Claim the order first. The status guard on the UPDATE means only
		// one concurrent payment can move it out of pending, so at most one
		// card is ever bound to it.
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, models.OrderPending).
			Updates(map[string]any{
				"status":         models.OrderPaid,
				"payment_method": models.PaymentMock,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errOrderConflict
		}

		card, errAlloc := allocation.Allocate(tx, order.PlanType, order.ID)
		if errAlloc != nil {
			return errAlloc
		}
		paidCard = card
		return nil
	})
	if errTx != nil {
		switch {
		case errors.Is(errTx, errOrderConflict):
			h.respondAlreadySettled(c, order.ID)
		case errors.Is(errTx, allocation.ErrNoCardAvailable):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "no card available, please contact support",
				"errorCode": ErrCodeNoCard,
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "payment failed"})
		}
		return
	}

	order.Status = models.OrderPaid
	method := models.PaymentMock
	order.PaymentMethod = &method

	log.Infof("order %d paid by user %d", order.ID, user.ID)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"order":   formatOrder(&order),
		"card": gin.H{
			"cardKey":  paidCard.CardKey,
			"planType": paidCard.PlanType,
		},
	})
}

// respondAlreadySettled reports the outcome of a payment attempt that found
// the order no longer pending, either up front or after losing the race to a
// concurrent settlement. A paid order returns its existing binding.
func (h *OrderHandler) respondAlreadySettled(c *gin.Context, id uint64) {
	var order models.Order
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("Cards").
		First(&order, id).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if order.Status != models.OrderPaid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order cannot be paid in its current state"})
		return
	}

	var boundCard gin.H
	if len(order.Cards) > 0 {
		boundCard = formatCard(&order.Cards[0])
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"alreadyPaid": true,
		"order":       formatOrder(&order),
		"card":        boundCard,
	})
}

// setStatusRequest defines the request body for admin status updates.
type setStatusRequest struct {
	Status string `json:"status"`
}

// SetStatus lets an admin move an order to any known status. Transitions into
// paid allocate a card when one is available, but unlike Pay they tolerate an
// empty pool so inventory can be backfilled later.
func (h *OrderHandler) SetStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var body setStatusRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if !models.ValidOrderStatus(body.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order status"})
		return
	}

	var order models.Order
	if errFind := h.db.WithContext(c.Request.Context()).First(&order, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var assignedCard *models.Card
	errTx := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		// Guard on the status read above so two concurrent settlements cannot
		// both take the transition into paid and allocate twice.
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, order.Status).
			Update("status", body.Status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errOrderConflict
		}
		if body.Status == models.OrderPaid && order.Status != models.OrderPaid {
			card, errAlloc := allocation.Allocate(tx, order.PlanType, order.ID)
			switch {
			case errAlloc == nil:
				assignedCard = card
			case errors.Is(errAlloc, allocation.ErrNoCardAvailable):
				// Manual override: leave the order without a card.
			default:
				return errAlloc
			}
		}
		return nil
	})
	if errTx != nil {
		if errors.Is(errTx, errOrderConflict) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "order changed concurrently, retry"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update order failed"})
		return
	}

	var updated models.Order
	if errFind := h.db.WithContext(c.Request.Context()).
		Preload("User").
		Preload("Cards").
		First(&updated, id).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	var cardPayload gin.H
	if assignedCard != nil {
		cardPayload = formatCard(assignedCard)
	}
	c.JSON(http.StatusOK, gin.H{
		"order":        formatOrder(&updated),
		"assignedCard": cardPayload,
	})
}

// formatOrder maps an order into a response payload.
func formatOrder(order *models.Order) gin.H {
	item := gin.H{
		"id":            order.ID,
		"userId":        order.UserID,
		"planType":      order.PlanType,
		"amount":        order.Amount,
		"status":        order.Status,
		"paymentMethod": order.PaymentMethod,
		"createdAt":     order.CreatedAt,
	}
	if order.User != nil {
		item["user"] = gin.H{
			"id":    order.User.ID,
			"email": order.User.Email,
		}
	}
	if len(order.Cards) > 0 {
		cards := make([]gin.H, 0, len(order.Cards))
		for i := range order.Cards {
			cards = append(cards, gin.H{
				"cardKey": order.Cards[i].CardKey,
				"status":  order.Cards[i].Status,
			})
		}
		item["cards"] = cards
	}
	return item
}
