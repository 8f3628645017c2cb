package api

import (
	"net/http"
	"testing"

	"github.com/dora-gg/cardshop/internal/models"
	"github.com/dora-gg/cardshop/internal/security"
)

func TestRegisterCreatesUserWithToken(t *testing.T) {
	engine, conn := newTestServer(t)

	rec := performJSON(t, engine, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":    "new@example.com",
		"password": "secret123",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("expected a token in response")
	}
	claims, errParse := security.ParseToken(testJWTCfg.Secret, token)
	if errParse != nil {
		t.Fatalf("parse issued token: %v", errParse)
	}

	var user models.User
	if errFind := conn.Where("email = ?", "new@example.com").First(&user).Error; errFind != nil {
		t.Fatalf("load created user: %v", errFind)
	}
	if user.Role != models.RoleUser {
		t.Fatalf("expected role user, got %s", user.Role)
	}
	if claims.UserID != user.ID {
		t.Fatalf("token user_id = %d, want %d", claims.UserID, user.ID)
	}
	if user.Password == "secret123" {
		t.Fatalf("password stored in plaintext")
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	engine, _ := newTestServer(t)

	rec := performJSON(t, engine, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":    "short@example.com",
		"password": "abc",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	engine, conn := newTestServer(t)
	createTestUser(t, conn, "taken@example.com", models.RoleUser)

	rec := performJSON(t, engine, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":    "taken@example.com",
		"password": "secret123",
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestLoginDoesNotLeakAccountExistence(t *testing.T) {
	engine, conn := newTestServer(t)
	createTestUser(t, conn, "known@example.com", models.RoleUser)

	wrongPassword := performJSON(t, engine, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "known@example.com",
		"password": "wrong-password",
	})
	unknownAccount := performJSON(t, engine, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "nobody@example.com",
		"password": "wrong-password",
	})

	if wrongPassword.Code != http.StatusUnauthorized || unknownAccount.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for both, got %d and %d", wrongPassword.Code, unknownAccount.Code)
	}
	if wrongPassword.Body.String() != unknownAccount.Body.String() {
		t.Fatalf("responses differ: %s vs %s", wrongPassword.Body.String(), unknownAccount.Body.String())
	}
}

func TestLoginReturnsToken(t *testing.T) {
	engine, conn := newTestServer(t)
	createTestUser(t, conn, "login@example.com", models.RoleUser)

	rec := performJSON(t, engine, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "login@example.com",
		"password": "password123",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if token, _ := body["token"].(string); token == "" {
		t.Fatalf("expected a token in response")
	}
}

func TestMeIncludesOrderCount(t *testing.T) {
	engine, conn := newTestServer(t)
	user, token := createTestUser(t, conn, "me@example.com", models.RoleUser)
	for i := 0; i < 2; i++ {
		order := models.Order{UserID: user.ID, PlanType: models.PlanDay, Amount: 120, Status: models.OrderPending}
		if errCreate := conn.Create(&order).Error; errCreate != nil {
			t.Fatalf("create order: %v", errCreate)
		}
	}

	rec := performJSON(t, engine, http.MethodGet, "/api/auth/me", token, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	payload, _ := body["user"].(map[string]any)
	if payload == nil {
		t.Fatalf("missing user payload: %s", rec.Body.String())
	}
	if count, _ := payload["orderCount"].(float64); count != 2 {
		t.Fatalf("orderCount = %v, want 2", payload["orderCount"])
	}
}
