// Package allocation binds unused license cards to orders. The bind must run
// inside a database transaction so that two concurrent payments can never
// consume the same card.
package allocation

import (
	"errors"
	"time"

	"github.com/dora-gg/cardshop/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoCardAvailable indicates the unused pool for a plan is exhausted. This
// is an expected condition, not a fault: callers surface it as a retryable
// "contact support" response.
var ErrNoCardAvailable = errors.New("allocation: no card available")

// FindAvailable returns one unused card matching the plan (and game when
// scoped), or ErrNoCardAvailable when the pool is empty. Selection order is
// arbitrary; the implementation picks the oldest row for determinism.
func FindAvailable(conn *gorm.DB, planType string, gameID *uint64) (*models.Card, error) {
	query := conn.Where("plan_type = ? AND status = ?", planType, models.CardUnused)
	if gameID != nil {
		query = query.Where("game_id = ?", *gameID)
	}

	var card models.Card
	if errFind := query.Order("id ASC").First(&card).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNoCardAvailable
		}
		return nil, errFind
	}
	return &card, nil
}

// Allocate locks one unused card for the order's plan and marks it used, bound
// and timestamped. It must be called with tx inside an open transaction; the
// row lock plus the status re-check in the UPDATE guard against a concurrent
// transaction consuming the same card between lookup and write.
func Allocate(tx *gorm.DB, planType string, orderID uint64) (*models.Card, error) {
	var card models.Card
	errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("plan_type = ? AND status = ?", planType, models.CardUnused).
		Order("id ASC").
		First(&card).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNoCardAvailable
		}
		return nil, errFind
	}

	now := time.Now().UTC()
	res := tx.Model(&models.Card{}).
		Where("id = ? AND status = ?", card.ID, models.CardUnused).
		Updates(map[string]any{
			"status":   models.CardUsed,
			"order_id": orderID,
			"used_at":  now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost the race despite the lock; treat as pool exhaustion and let the
		// transaction roll back.
		return nil, ErrNoCardAvailable
	}

	card.Status = models.CardUsed
	card.OrderID = &orderID
	card.UsedAt = &now
	return &card, nil
}
