package models

import "time"

// Game represents a supported game title in the catalog.
type Game struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name string `gorm:"type:text;not null"`             // Display name.
	Slug string `gorm:"type:text;not null;uniqueIndex"` // URL-safe unique identifier.

	Description string `gorm:"type:text"`                          // Optional description.
	Icon        string `gorm:"type:text"`                          // Optional icon URL.
	CoverImage  string `gorm:"type:text"`                          // Optional cover image URL.
	ThemeColor  string `gorm:"type:text;not null;default:#ff4655"` // Accent color for the storefront.

	IsActive  bool `gorm:"not null;default:true"` // Whether the game is visible.
	SortOrder int  `gorm:"not null;default:0"`    // Display ordering, ascending.

	Products []Product    `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"` // Products offered for this game.
	Cards    []Card       `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"` // Cards scoped to this game.
	Configs  []SiteConfig `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE"` // Game-scoped site configuration.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
