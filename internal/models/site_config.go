package models

import "time"

// SiteConfig stores one storefront configuration entry.
//
// Values are stored as opaque strings; JSON-encoded values are decoded when
// the configuration is served. A nil GameID means the entry is global, while
// game-scoped entries override global ones with the same key.
type SiteConfig struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	GameID *uint64 `gorm:"uniqueIndex:idx_site_configs_game_key"` // Scoping game ID, nil for global.
	Game   *Game   `gorm:"foreignKey:GameID"`                     // Scoping game record.

	Key   string `gorm:"type:text;not null;uniqueIndex:idx_site_configs_game_key"` // Configuration key.
	Value string `gorm:"type:text;not null"`                                       // Serialized value, often JSON.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
