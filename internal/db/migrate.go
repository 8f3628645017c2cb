package db

import (
	"fmt"

	"github.com/dora-gg/cardshop/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the schema for all storefront models.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.User{},
		&models.Game{},
		&models.Product{},
		&models.Card{},
		&models.Order{},
		&models.SiteConfig{},
	)
}
