package models

import "time"

// Card lifecycle statuses.
const (
	// CardUnused marks a card that is still available for allocation.
	CardUnused = "unused"
	// CardUsed marks a card bound to an order; used cards are immutable.
	CardUsed = "used"
	// CardExpired marks a card retired without ever being redeemed.
	CardExpired = "expired"
)

// Card represents a single-use redemption key for a subscription plan.
//
// A card is "used" exactly when OrderID and UsedAt are both set. Status only
// moves forward: unused to used, or unused to expired.
type Card struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	CardKey  string `gorm:"type:text;not null;uniqueIndex"` // Unique redemption key.
	PlanType string `gorm:"type:text;not null;index"`       // Subscription tier this card grants.

	GameID *uint64 `gorm:"index"`             // Optional owning game ID.
	Game   *Game   `gorm:"foreignKey:GameID"` // Optional owning game record.

	Status string `gorm:"type:text;not null;default:unused;index"` // Lifecycle status, see Card* constants.

	OrderID *uint64    `gorm:"index"`              // Bound order ID once used.
	Order   *Order     `gorm:"foreignKey:OrderID"` // Bound order record.
	UsedAt  *time.Time // Consumption time once used.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
