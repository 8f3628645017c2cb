package models

import "time"

// User roles.
const (
	// RoleUser is the default role for registered accounts.
	RoleUser = "user"
	// RoleAdmin grants access to the back office endpoints.
	RoleAdmin = "admin"
)

// User represents a registered storefront account.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Email    string `gorm:"type:text;not null;uniqueIndex"` // Unique login email.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	Role string `gorm:"type:text;not null;default:user"` // Either "user" or "admin".

	Orders []Order `gorm:"foreignKey:UserID"` // Orders placed by this user.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
