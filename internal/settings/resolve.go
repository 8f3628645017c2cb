// Package settings resolves storefront configuration with a layered fallback:
// game-scoped database entries override global entries, which override the
// compiled-in defaults.
package settings

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dora-gg/cardshop/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound indicates a key absent from every layer.
var ErrNotFound = errors.New("settings: key not found")

// DecodeValue interprets a stored configuration value. JSON-encoded values are
// decoded; anything else is returned as the raw string.
func DecodeValue(raw string) any {
	var decoded any
	if errDecode := json.Unmarshal([]byte(raw), &decoded); errDecode == nil {
		return decoded
	}
	return raw
}

// EncodeValue serializes a configuration value for storage. Strings are stored
// verbatim for backward compatibility with the existing rows.
func EncodeValue(value any) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	data, errEncode := json.Marshal(value)
	if errEncode != nil {
		return "", errEncode
	}
	return string(data), nil
}

// ResolveAll returns the merged configuration map for the storefront: defaults
// overlaid with global rows, overlaid with rows scoped to gameID when set.
func ResolveAll(ctx context.Context, conn *gorm.DB, gameID *uint64) (map[string]any, error) {
	merged := Defaults()

	var global []models.SiteConfig
	if errFind := conn.WithContext(ctx).Where("game_id IS NULL").Find(&global).Error; errFind != nil {
		return nil, errFind
	}
	for _, row := range global {
		merged[row.Key] = DecodeValue(row.Value)
	}

	if gameID != nil {
		var scoped []models.SiteConfig
		if errFind := conn.WithContext(ctx).Where("game_id = ?", *gameID).Find(&scoped).Error; errFind != nil {
			return nil, errFind
		}
		for _, row := range scoped {
			merged[row.Key] = DecodeValue(row.Value)
		}
	}
	return merged, nil
}

// ResolveKey returns the value for one key, walking game-scoped, then global,
// then default layers. It returns ErrNotFound when no layer has the key.
func ResolveKey(ctx context.Context, conn *gorm.DB, key string, gameID *uint64) (any, error) {
	if gameID != nil {
		var row models.SiteConfig
		errFind := conn.WithContext(ctx).Where("game_id = ? AND key = ?", *gameID, key).First(&row).Error
		if errFind == nil {
			return DecodeValue(row.Value), nil
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, errFind
		}
	}

	var row models.SiteConfig
	errFind := conn.WithContext(ctx).Where("game_id IS NULL AND key = ?", key).First(&row).Error
	if errFind == nil {
		return DecodeValue(row.Value), nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, errFind
	}

	if value, ok := Defaults()[key]; ok {
		return value, nil
	}
	return nil, ErrNotFound
}

// PlanPrice returns the configured price for a plan type. The price table may
// be overridden by a global "pricing" configuration entry; unknown plans and
// unconfigured entries price at zero, the "not offered" sentinel.
func PlanPrice(ctx context.Context, conn *gorm.DB, planType string) (float64, error) {
	resolved, errResolve := ResolveKey(ctx, conn, KeyPricing, nil)
	if errResolve != nil && !errors.Is(errResolve, ErrNotFound) {
		return 0, errResolve
	}

	switch table := resolved.(type) {
	case map[string]float64:
		return table[planType], nil
	case map[string]any:
		if raw, ok := table[planType]; ok {
			if price, ok := raw.(float64); ok {
				return price, nil
			}
		}
		return 0, nil
	default:
		return DefaultPricing()[planType], nil
	}
}

// Upsert writes one configuration entry, replacing any existing row with the
// same (gameID, key) pair.
func Upsert(ctx context.Context, conn *gorm.DB, key string, value any, gameID *uint64) (*models.SiteConfig, error) {
	encoded, errEncode := EncodeValue(value)
	if errEncode != nil {
		return nil, errEncode
	}

	scope := conn.WithContext(ctx).Where("key = ?", key)
	if gameID != nil {
		scope = scope.Where("game_id = ?", *gameID)
	} else {
		scope = scope.Where("game_id IS NULL")
	}

	var row models.SiteConfig
	errFind := scope.First(&row).Error
	switch {
	case errFind == nil:
		if errUpdate := conn.WithContext(ctx).Model(&row).Update("value", encoded).Error; errUpdate != nil {
			return nil, errUpdate
		}
		row.Value = encoded
		return &row, nil
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		row = models.SiteConfig{GameID: gameID, Key: key, Value: encoded}
		if errCreate := conn.WithContext(ctx).Create(&row).Error; errCreate != nil {
			return nil, errCreate
		}
		return &row, nil
	default:
		return nil, errFind
	}
}
