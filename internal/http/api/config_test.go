package api

import (
	"net/http"
	"testing"

	"github.com/dora-gg/cardshop/internal/models"
)

func TestConfigMergedWithDefaults(t *testing.T) {
	engine, _ := newTestServer(t)

	rec := performJSON(t, engine, http.MethodGet, "/api/config", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	cfg, _ := body["config"].(map[string]any)
	if cfg == nil {
		t.Fatalf("missing config payload: %s", rec.Body.String())
	}
	if cfg["siteName"] != "DORA" {
		t.Fatalf("siteName = %v, want built-in default", cfg["siteName"])
	}
}

func TestConfigLayeringGameOverridesGlobal(t *testing.T) {
	engine, conn := newTestServer(t)
	_, adminToken := createTestUser(t, conn, "admin@example.com", models.RoleAdmin)
	game := seedGame(t, conn, "Valorant", "valorant")

	global := performJSON(t, engine, http.MethodPut, "/api/config/heroTitle", adminToken, map[string]any{
		"value": "global hero",
	})
	if global.Code != http.StatusOK {
		t.Fatalf("set global: expected 200, got %d: %s", global.Code, global.Body.String())
	}
	scoped := performJSON(t, engine, http.MethodPut, "/api/config/heroTitle", adminToken, map[string]any{
		"value":  "valorant hero",
		"gameId": game.ID,
	})
	if scoped.Code != http.StatusOK {
		t.Fatalf("set scoped: expected 200, got %d: %s", scoped.Code, scoped.Body.String())
	}

	globalRead := performJSON(t, engine, http.MethodGet, "/api/config/heroTitle", "", nil)
	if body := decodeBody(t, globalRead); body["value"] != "global hero" {
		t.Fatalf("global value = %v, want global hero", body["value"])
	}

	scopedRead := performJSON(t, engine, http.MethodGet, "/api/config/heroTitle?gameId="+itoa(game.ID), "", nil)
	if body := decodeBody(t, scopedRead); body["value"] != "valorant hero" {
		t.Fatalf("scoped value = %v, want valorant hero", body["value"])
	}

	merged := performJSON(t, engine, http.MethodGet, "/api/config?gameId="+itoa(game.ID), "", nil)
	mergedBody := decodeBody(t, merged)
	cfg, _ := mergedBody["config"].(map[string]any)
	if cfg["heroTitle"] != "valorant hero" {
		t.Fatalf("merged heroTitle = %v, want scoped override", cfg["heroTitle"])
	}
}

func TestConfigKeyNotFound(t *testing.T) {
	engine, _ := newTestServer(t)

	rec := performJSON(t, engine, http.MethodGet, "/api/config/noSuchKey", "", nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestConfigBatchWrite(t *testing.T) {
	engine, conn := newTestServer(t)
	_, adminToken := createTestUser(t, conn, "admin@example.com", models.RoleAdmin)

	rec := performJSON(t, engine, http.MethodPut, "/api/config", adminToken, map[string]any{
		"configs": map[string]any{
			"siteName":    "DORA2",
			"siteTagline": "new tagline",
		},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var count int64
	if errCount := conn.Model(&models.SiteConfig{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count configs: %v", errCount)
	}
	if count != 2 {
		t.Fatalf("stored %d rows, want 2", count)
	}
}

func TestDeleteConfigKeyFallsBackToDefault(t *testing.T) {
	engine, conn := newTestServer(t)
	_, adminToken := createTestUser(t, conn, "admin@example.com", models.RoleAdmin)

	set := performJSON(t, engine, http.MethodPut, "/api/config/siteName", adminToken, map[string]any{
		"value": "Overridden",
	})
	if set.Code != http.StatusOK {
		t.Fatalf("set: expected 200, got %d", set.Code)
	}

	del := performJSON(t, engine, http.MethodDelete, "/api/config/siteName", adminToken, nil)
	if del.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", del.Code)
	}

	read := performJSON(t, engine, http.MethodGet, "/api/config/siteName", "", nil)
	if body := decodeBody(t, read); body["value"] != "DORA" {
		t.Fatalf("value = %v, want default after delete", body["value"])
	}

	var count int64
	if errCount := conn.Model(&models.SiteConfig{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count configs: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("row not deleted")
	}
}

func TestDeleteConfigKeyMissingRow(t *testing.T) {
	engine, conn := newTestServer(t)
	_, adminToken := createTestUser(t, conn, "admin@example.com", models.RoleAdmin)

	rec := performJSON(t, engine, http.MethodDelete, "/api/config/siteName", adminToken, nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for default-only key, got %d", rec.Code)
	}
}

func TestAdminConfigListShowsRawRows(t *testing.T) {
	engine, conn := newTestServer(t)
	_, adminToken := createTestUser(t, conn, "admin@example.com", models.RoleAdmin)
	_, userToken := createTestUser(t, conn, "user@example.com", models.RoleUser)

	set := performJSON(t, engine, http.MethodPut, "/api/config/discordUrl", adminToken, map[string]any{
		"value": "https://discord.gg/abc",
	})
	if set.Code != http.StatusOK {
		t.Fatalf("set: expected 200, got %d", set.Code)
	}

	denied := performJSON(t, engine, http.MethodGet, "/api/admin/configs", userToken, nil)
	if denied.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", denied.Code)
	}

	rec := performJSON(t, engine, http.MethodGet, "/api/admin/configs", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	configs, _ := body["configs"].([]any)
	if len(configs) != 1 {
		t.Fatalf("configs = %d, want only the stored row", len(configs))
	}
}
