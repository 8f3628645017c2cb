package models

import "time"

// Order statuses.
const (
	// OrderPending awaits payment.
	OrderPending = "pending"
	// OrderPaid has completed payment and owns exactly one card, except for
	// free card-redeem orders which are created directly in this state.
	OrderPaid = "paid"
	// OrderCancelled was abandoned before payment.
	OrderCancelled = "cancelled"
	// OrderRefunded was paid and later refunded.
	OrderRefunded = "refunded"
)

// Payment methods recorded on orders.
const (
	// PaymentCardRedeem marks a zero-amount order created by key redemption.
	PaymentCardRedeem = "card_redeem"
	// PaymentMock marks an order settled through the simulated payment flow.
	PaymentMock = "mock_payment"
)

// ValidOrderStatus reports whether the given status is a known order state.
func ValidOrderStatus(status string) bool {
	switch status {
	case OrderPending, OrderPaid, OrderCancelled, OrderRefunded:
		return true
	default:
		return false
	}
}

// Order represents a purchase of one subscription plan by one user.
type Order struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"`    // Purchasing user ID.
	User   *User  `gorm:"foreignKey:UserID"` // Purchasing user record.

	PlanType string  `gorm:"type:text;not null"`          // Purchased subscription tier.
	Amount   float64 `gorm:"type:decimal(10,2);not null"` // Charged amount, zero for redemptions.

	Status        string  `gorm:"type:text;not null;default:pending;index"` // Order state, see Order* constants.
	PaymentMethod *string `gorm:"type:text"`                                // How the order was (or will be) settled.

	Cards []Card `gorm:"foreignKey:OrderID"` // Cards bound to this order; at most one.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
