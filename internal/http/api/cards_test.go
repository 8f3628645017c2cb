package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/dora-gg/cardshop/internal/http/api/handlers"
	"github.com/dora-gg/cardshop/internal/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func seedCard(t *testing.T, conn *gorm.DB, key, planType, status string) *models.Card {
	t.Helper()
	card := models.Card{CardKey: key, PlanType: planType, Status: status}
	if errCreate := conn.Create(&card).Error; errCreate != nil {
		t.Fatalf("create card: %v", errCreate)
	}
	return &card
}

func TestUploadCardsDeduplicatesBatch(t *testing.T) {
	engine, conn := newTestServer(t)
	_, adminToken := createTestUser(t, conn, "admin@example.com", models.RoleAdmin)

	rec := performJSON(t, engine, http.MethodPost, "/api/cards/upload", adminToken, map[string]any{
		"planType": models.PlanMonth,
		"cardKeys": []string{"KEY-AAA", "KEY-BBB", "KEY-AAA", "  KEY-BBB  ", ""},
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if count, _ := body["count"].(float64); count != 2 {
		t.Fatalf("count = %v, want 2", body["count"])
	}
}

func TestUploadCardsRejectsWholeBatchOnStoredDuplicate(t *testing.T) {
	engine, conn := newTestServer(t)
	_, adminToken := createTestUser(t, conn, "admin@example.com", models.RoleAdmin)
	seedCard(t, conn, "KEY-DUP", models.PlanMonth, models.CardUnused)

	rec := performJSON(t, engine, http.MethodPost, "/api/cards/upload", adminToken, map[string]any{
		"planType": models.PlanMonth,
		"cardKeys": []string{"KEY-DUP", "KEY-FRESH"},
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	duplicates, _ := body["duplicates"].([]any)
	if len(duplicates) != 1 || duplicates[0] != "KEY-DUP" {
		t.Fatalf("duplicates = %v, want [KEY-DUP]", body["duplicates"])
	}

	// Nothing from the batch may have been stored.
	var count int64
	if errCount := conn.Model(&models.Card{}).Where("card_key = ?", "KEY-FRESH").Count(&count).Error; errCount != nil {
		t.Fatalf("count cards: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("KEY-FRESH was stored despite batch rejection")
	}
}

func TestUploadConcurrentSameKeyStoresOnce(t *testing.T) {
	engine, conn := newTestServer(t)
	_, adminToken := createTestUser(t, conn, "admin@example.com", models.RoleAdmin)

	// Two simultaneous uploads of the same fresh key: one batch lands, the
	// other is rejected as a duplicate instead of failing on the unique index.
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("KEY-UPLOAD-RACE-%d", i)

		var wg sync.WaitGroup
		codes := make([]int, 2)
		for j := range codes {
			wg.Add(1)
			go func(slot int) {
				defer wg.Done()
				rec := performJSON(t, engine, http.MethodPost, "/api/cards/upload", adminToken, map[string]any{
					"planType": models.PlanDay,
					"cardKeys": []string{key},
				})
				codes[slot] = rec.Code
			}(j)
		}
		wg.Wait()

		sort.Ints(codes)
		if codes[0] != http.StatusCreated || codes[1] != http.StatusBadRequest {
			t.Fatalf("iteration %d: codes = %v, want [201 400]", i, codes)
		}

		var count int64
		if errCount := conn.Model(&models.Card{}).Where("card_key = ?", key).Count(&count).Error; errCount != nil {
			t.Fatalf("count cards: %v", errCount)
		}
		if count != 1 {
			t.Fatalf("iteration %d: key stored %d times, want 1", i, count)
		}
	}
}

func TestUploadCardsRejectsOversizedBatch(t *testing.T) {
	engine, conn := newTestServer(t)
	_, adminToken := createTestUser(t, conn, "admin@example.com", models.RoleAdmin)

	keys := make([]string, 501)
	for i := range keys {
		keys[i] = "KEY-" + string(rune('A'+i%26)) + string(rune('A'+(i/26)%26)) + string(rune('A'+(i/676)%26))
	}
	rec := performJSON(t, engine, http.MethodPost, "/api/cards/upload", adminToken, map[string]any{
		"planType": models.PlanDay,
		"cardKeys": keys,
	})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGenerateCardsProducesWellFormedKeys(t *testing.T) {
	engine, conn := newTestServer(t)
	_, adminToken := createTestUser(t, conn, "admin@example.com", models.RoleAdmin)

	rec := performJSON(t, engine, http.MethodPost, "/api/cards/generate", adminToken, map[string]any{
		"planType": models.PlanLifetime,
		"count":    5,
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var cards []models.Card
	if errFind := conn.Find(&cards).Error; errFind != nil {
		t.Fatalf("load cards: %v", errFind)
	}
	if len(cards) != 5 {
		t.Fatalf("stored %d cards, want 5", len(cards))
	}
	format := regexp.MustCompile(`^DORA(-[A-Z0-9]{4}){4}$`)
	for _, card := range cards {
		if !format.MatchString(card.CardKey) {
			t.Fatalf("malformed key %q", card.CardKey)
		}
		if card.Status != models.CardUnused {
			t.Fatalf("generated card status = %s, want unused", card.Status)
		}
	}
}

func TestDeleteCardOnlyWhenUnused(t *testing.T) {
	engine, conn := newTestServer(t)
	_, adminToken := createTestUser(t, conn, "admin@example.com", models.RoleAdmin)
	unused := seedCard(t, conn, "KEY-UNUSED", models.PlanDay, models.CardUnused)
	used := seedCard(t, conn, "KEY-USED", models.PlanDay, models.CardUsed)

	recUsed := performJSON(t, engine, http.MethodDelete, "/api/cards/"+itoa(used.ID), adminToken, nil)
	if recUsed.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for used card, got %d", recUsed.Code)
	}

	recUnused := performJSON(t, engine, http.MethodDelete, "/api/cards/"+itoa(unused.ID), adminToken, nil)
	if recUnused.Code != http.StatusOK {
		t.Fatalf("expected 200 for unused card, got %d", recUnused.Code)
	}

	var count int64
	if errCount := conn.Model(&models.Card{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count cards: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("expected only the used card to remain, have %d rows", count)
	}
}

func TestVerifyCardStates(t *testing.T) {
	engine, conn := newTestServer(t)
	_, token := createTestUser(t, conn, "user@example.com", models.RoleUser)
	seedCard(t, conn, "KEY-OK", models.PlanMonth, models.CardUnused)
	seedCard(t, conn, "KEY-GONE", models.PlanMonth, models.CardUsed)
	seedCard(t, conn, "KEY-OLD", models.PlanMonth, models.CardExpired)

	ok := performJSON(t, engine, http.MethodPost, "/api/cards/verify", token, map[string]any{"cardKey": "KEY-OK"})
	if ok.Code != http.StatusOK {
		t.Fatalf("unused: expected 200, got %d", ok.Code)
	}
	body := decodeBody(t, ok)
	if body["valid"] != true || body["planType"] != models.PlanMonth {
		t.Fatalf("unexpected verify payload: %s", ok.Body.String())
	}

	used := performJSON(t, engine, http.MethodPost, "/api/cards/verify", token, map[string]any{"cardKey": "KEY-GONE"})
	if used.Code != http.StatusBadRequest {
		t.Fatalf("used: expected 400, got %d", used.Code)
	}
	expired := performJSON(t, engine, http.MethodPost, "/api/cards/verify", token, map[string]any{"cardKey": "KEY-OLD"})
	if expired.Code != http.StatusBadRequest {
		t.Fatalf("expired: expected 400, got %d", expired.Code)
	}
	missing := performJSON(t, engine, http.MethodPost, "/api/cards/verify", token, map[string]any{"cardKey": "KEY-NONE"})
	if missing.Code != http.StatusNotFound {
		t.Fatalf("missing: expected 404, got %d", missing.Code)
	}
}

func TestRedeemCardCreatesPaidOrderOnce(t *testing.T) {
	engine, conn := newTestServer(t)
	user, token := createTestUser(t, conn, "redeemer@example.com", models.RoleUser)
	seedCard(t, conn, "KEY-REDEEM", models.PlanLifetime, models.CardUnused)

	first := performJSON(t, engine, http.MethodPost, "/api/cards/redeem", token, map[string]any{"cardKey": "KEY-REDEEM"})
	if first.Code != http.StatusOK {
		t.Fatalf("first redeem: expected 200, got %d: %s", first.Code, first.Body.String())
	}

	var order models.Order
	if errFind := conn.Where("user_id = ?", user.ID).First(&order).Error; errFind != nil {
		t.Fatalf("load redeem order: %v", errFind)
	}
	if order.Status != models.OrderPaid || order.Amount != 0 {
		t.Fatalf("order status=%s amount=%v, want paid/0", order.Status, order.Amount)
	}
	if order.PaymentMethod == nil || *order.PaymentMethod != models.PaymentCardRedeem {
		t.Fatalf("payment method = %v, want card_redeem", order.PaymentMethod)
	}

	var card models.Card
	if errFind := conn.Where("card_key = ?", "KEY-REDEEM").First(&card).Error; errFind != nil {
		t.Fatalf("load card: %v", errFind)
	}
	if card.Status != models.CardUsed || card.OrderID == nil || *card.OrderID != order.ID || card.UsedAt == nil {
		t.Fatalf("card not consumed correctly: status=%s order_id=%v used_at=%v", card.Status, card.OrderID, card.UsedAt)
	}

	second := performJSON(t, engine, http.MethodPost, "/api/cards/redeem", token, map[string]any{"cardKey": "KEY-REDEEM"})
	if second.Code != http.StatusBadRequest {
		t.Fatalf("second redeem: expected 400, got %d", second.Code)
	}

	// The failed retry must not have produced another order.
	var orderCount int64
	if errCount := conn.Model(&models.Order{}).Count(&orderCount).Error; errCount != nil {
		t.Fatalf("count orders: %v", errCount)
	}
	if orderCount != 1 {
		t.Fatalf("order count = %d, want 1", orderCount)
	}
}

func TestListCardsFiltersByStatus(t *testing.T) {
	engine, conn := newTestServer(t)
	_, adminToken := createTestUser(t, conn, "admin@example.com", models.RoleAdmin)
	seedCard(t, conn, "KEY-1", models.PlanDay, models.CardUnused)
	seedCard(t, conn, "KEY-2", models.PlanDay, models.CardUsed)

	rec := performJSON(t, engine, http.MethodGet, "/api/cards?status=unused", adminToken, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	cards, _ := body["cards"].([]any)
	if len(cards) != 1 {
		t.Fatalf("filtered cards = %d, want 1", len(cards))
	}
}

func TestRedeemReportsTransactionFailure(t *testing.T) {
	conn := openAPITestDB(t)
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		t.Fatalf("unwrap db: %v", errDB)
	}
	if errClose := sqlDB.Close(); errClose != nil {
		t.Fatalf("close db: %v", errClose)
	}

	// With the pool closed the transaction cannot even begin; the handler
	// must still answer with an error instead of an empty 200.
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/cards/redeem", strings.NewReader(`{"cardKey":"DORA-AAAA-AAAA-AAAA-AAAA"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(handlers.ContextUserKey, &models.User{ID: 1, Email: "buyer@example.com", Role: models.RoleUser})

	handlers.NewCardHandler(conn).Redeem(c)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", rec.Code, rec.Body.String())
	}
}
