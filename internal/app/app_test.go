package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dora-gg/cardshop/internal/config"
	"github.com/dora-gg/cardshop/internal/db"
	"github.com/dora-gg/cardshop/internal/models"
	"github.com/dora-gg/cardshop/internal/security"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openAppTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:app_%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func TestEnsureAdminCreatesAccount(t *testing.T) {
	conn := openAppTestDB(t)
	cfg := config.AdminConfig{Email: "root@example.com", Password: "rootpass"}

	if errEnsure := EnsureAdmin(context.Background(), conn, cfg); errEnsure != nil {
		t.Fatalf("ensure admin: %v", errEnsure)
	}

	var user models.User
	if errFind := conn.Where("email = ?", "root@example.com").First(&user).Error; errFind != nil {
		t.Fatalf("load admin: %v", errFind)
	}
	if user.Role != models.RoleAdmin {
		t.Fatalf("role = %s, want admin", user.Role)
	}
	if !security.CheckPassword(user.Password, "rootpass") {
		t.Fatalf("stored password does not verify")
	}
}

func TestEnsureAdminPromotesExistingUser(t *testing.T) {
	conn := openAppTestDB(t)
	hash, errHash := security.HashPassword("original")
	if errHash != nil {
		t.Fatalf("hash: %v", errHash)
	}
	existing := models.User{Email: "mix@example.com", Password: hash, Role: models.RoleUser}
	if errCreate := conn.Create(&existing).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}

	cfg := config.AdminConfig{Email: "mix@example.com", Password: "different"}
	if errEnsure := EnsureAdmin(context.Background(), conn, cfg); errEnsure != nil {
		t.Fatalf("ensure admin: %v", errEnsure)
	}

	var user models.User
	if errFind := conn.First(&user, existing.ID).Error; errFind != nil {
		t.Fatalf("load user: %v", errFind)
	}
	if user.Role != models.RoleAdmin {
		t.Fatalf("role = %s, want admin", user.Role)
	}
	// Promotion must not reset the user's chosen password.
	if !security.CheckPassword(user.Password, "original") {
		t.Fatalf("password was overwritten during promotion")
	}
}

func TestEnsureAdminIdempotent(t *testing.T) {
	conn := openAppTestDB(t)
	cfg := config.AdminConfig{Email: "root@example.com", Password: "rootpass"}

	for i := 0; i < 2; i++ {
		if errEnsure := EnsureAdmin(context.Background(), conn, cfg); errEnsure != nil {
			t.Fatalf("ensure admin round %d: %v", i, errEnsure)
		}
	}

	var count int64
	if errCount := conn.Model(&models.User{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count users: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("users = %d, want 1", count)
	}
}
