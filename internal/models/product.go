package models

import (
	"time"

	"gorm.io/datatypes"
)

// Plan types shared by products, cards and orders.
const (
	// PlanDay is a one-day subscription.
	PlanDay = "day"
	// PlanWeek is a seven-day subscription.
	PlanWeek = "week"
	// PlanMonth is a thirty-day subscription.
	PlanMonth = "month"
	// PlanLifetime never expires.
	PlanLifetime = "lifetime"
)

// ValidPlanType reports whether the given plan type is one of the known tiers.
func ValidPlanType(planType string) bool {
	switch planType {
	case PlanDay, PlanWeek, PlanMonth, PlanLifetime:
		return true
	default:
		return false
	}
}

// Product represents a purchasable subscription tier for a game.
type Product struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	GameID uint64 `gorm:"not null;index"`     // Owning game ID.
	Game   *Game  `gorm:"foreignKey:GameID"`  // Owning game record.
	Name   string `gorm:"type:text;not null"` // Display name.

	PlanType string  `gorm:"type:text;not null"`             // Subscription tier, see Plan* constants.
	Price    float64 `gorm:"type:decimal(10,2);not null"`    // Unit price.
	Currency string  `gorm:"type:text;not null;default:NT$"` // Price currency label.
	Duration int     `gorm:"not null"`                       // Access duration in hours, -1 for unlimited.

	Description string         `gorm:"type:text"`                        // Optional marketing copy.
	Features    datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Ordered feature strings in JSON.
	Badge       string         `gorm:"type:text"`                        // Optional badge label.

	IsPopular bool `gorm:"not null;default:false"` // Highlighted as popular.
	IsPremium bool `gorm:"not null;default:false"` // Highlighted as premium.
	IsActive  bool `gorm:"not null;default:true"`  // Whether the product is purchasable.
	SortOrder int  `gorm:"not null;default:0"`     // Display ordering, ascending.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
