package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/dora-gg/cardshop/internal/config"
	"github.com/dora-gg/cardshop/internal/db"
	"github.com/dora-gg/cardshop/internal/models"
	"github.com/dora-gg/cardshop/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var testJWTCfg = config.JWTConfig{Secret: "api-test-secret", ExpiryHours: 1}

func init() {
	gin.SetMode(gin.TestMode)
}

func openAPITestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:api_%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func newTestServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	conn := openAPITestDB(t)
	engine := gin.New()
	RegisterRoutes(engine, conn, testJWTCfg, nil)
	return engine, conn
}

func createTestUser(t *testing.T, conn *gorm.DB, email, role string) (*models.User, string) {
	t.Helper()
	hash, errHash := security.HashPassword("password123")
	if errHash != nil {
		t.Fatalf("hash password: %v", errHash)
	}
	user := models.User{Email: email, Password: hash, Role: role}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	token, errToken := security.GenerateToken(testJWTCfg.Secret, user.ID, testJWTCfg.Expiry())
	if errToken != nil {
		t.Fatalf("generate token: %v", errToken)
	}
	return &user, token
}

func performJSON(t *testing.T, engine *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, errEncode := json.Marshal(body)
		if errEncode != nil {
			t.Fatalf("encode body: %v", errEncode)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func itoa(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var decoded map[string]any
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &decoded); errDecode != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), errDecode)
	}
	return decoded
}

func TestHealthEndpoint(t *testing.T) {
	engine, _ := newTestServer(t)

	rec := performJSON(t, engine, http.MethodGet, "/api/health", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "ok" {
		t.Fatalf("expected ok status, got %v", body["status"])
	}
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	engine, _ := newTestServer(t)

	rec := performJSON(t, engine, http.MethodGet, "/api/auth/me", "", nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddlewareRejectsBadToken(t *testing.T) {
	engine, _ := newTestServer(t)

	rec := performJSON(t, engine, http.MethodGet, "/api/auth/me", "not-a-jwt", nil)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestAdminRoutesRejectRegularUser(t *testing.T) {
	engine, conn := newTestServer(t)
	_, token := createTestUser(t, conn, "user@example.com", models.RoleUser)

	rec := performJSON(t, engine, http.MethodGet, "/api/admin/stats", token, nil)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
