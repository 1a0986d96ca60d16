package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"loyalcrm/config"
	"loyalcrm/internal/auth"
	"loyalcrm/internal/database"
	"loyalcrm/internal/domain"
	"loyalcrm/internal/router"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testAPI struct {
	engine *gin.Engine
	cfg    *config.Config
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))

	cfg := config.Load()
	return &testAPI{engine: router.Setup(cfg, db), cfg: cfg}
}

func (a *testAPI) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *testAPI) token(t *testing.T, accountID uint, role string) string {
	t.Helper()
	tok, err := auth.GenerateAccessToken(&a.cfg.JWT, accountID, role)
	require.NoError(t, err)
	return tok
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func TestAuthIsRequired(t *testing.T) {
	api := newTestAPI(t)
	w := api.request(t, http.MethodGet, "/api/loyalty/1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetProfileEnrollsOnFirstRequest(t *testing.T) {
	api := newTestAPI(t)
	tok := api.token(t, 1, domain.RoleCustomer)

	w := api.request(t, http.MethodGet, "/api/loyalty/1", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(0), body["balance"])
	assert.Equal(t, "Bronze", body["tier"])
	assert.Len(t, body["referral_code"], 8)
}

func TestSimulatePurchaseAndRedeemFlow(t *testing.T) {
	api := newTestAPI(t)
	tok := api.token(t, 1, domain.RoleCustomer)

	// Default accrual rate is 1 point per currency unit.
	w := api.request(t, http.MethodPost, "/api/simulate-purchase", tok, gin.H{"customer_id": 1, "amount": 500})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(500), body["points_earned"])
	assert.Equal(t, "Silver", body["tier"])

	w = api.request(t, http.MethodPost, "/api/loyalty/1/redeem", tok, gin.H{"points_to_redeem": 300})
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, float64(200), body["new_points_balance"])
	assert.InDelta(t, 3.00, body["discount_value"].(float64), 1e-9)

	// Overdraft is rejected without touching the ledger.
	w = api.request(t, http.MethodPost, "/api/loyalty/1/redeem", tok, gin.H{"points_to_redeem": 1000})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.request(t, http.MethodGet, "/api/loyalty/1/transactions", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, float64(2), body["total"])
}

func TestRedeemValidatesBody(t *testing.T) {
	api := newTestAPI(t)
	tok := api.token(t, 1, domain.RoleCustomer)

	w := api.request(t, http.MethodPost, "/api/loyalty/1/redeem", tok, gin.H{"points_to_redeem": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Never-enrolled account.
	w = api.request(t, http.MethodPost, "/api/loyalty/9/redeem", api.token(t, 9, domain.RoleCustomer), gin.H{"points_to_redeem": 10})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCustomerCannotActOnOtherAccount(t *testing.T) {
	api := newTestAPI(t)
	tok := api.token(t, 1, domain.RoleCustomer)

	w := api.request(t, http.MethodGet, "/api/loyalty/2", tok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.request(t, http.MethodPost, "/api/loyalty/2/redeem", tok, gin.H{"points_to_redeem": 10})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.request(t, http.MethodPost, "/api/simulate-purchase", tok, gin.H{"customer_id": 2, "amount": 100})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Admin tokens may act on any account.
	adminTok := api.token(t, 99, domain.RoleAdmin)
	w = api.request(t, http.MethodGet, "/api/loyalty/2", adminTok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUseReferralFlow(t *testing.T) {
	api := newTestAPI(t)
	referrerTok := api.token(t, 1, domain.RoleCustomer)
	refereeTok := api.token(t, 2, domain.RoleCustomer)

	w := api.request(t, http.MethodGet, "/api/loyalty/1", referrerTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	code := decode(t, w)["referral_code"].(string)

	w = api.request(t, http.MethodPost, "/api/loyalty/2/use-referral", refereeTok, gin.H{"referral_code": code})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(50), body["bonus_awarded"])

	// Double use conflicts.
	w = api.request(t, http.MethodPost, "/api/loyalty/2/use-referral", refereeTok, gin.H{"referral_code": code})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Self-referral is a bad request.
	w = api.request(t, http.MethodPost, "/api/loyalty/1/use-referral", referrerTok, gin.H{"referral_code": code})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown codes are 404.
	w = api.request(t, http.MethodPost, "/api/loyalty/2/use-referral", refereeTok, gin.H{"referral_code": "NOSUCH00"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdjustRequiresAdmin(t *testing.T) {
	api := newTestAPI(t)
	customerTok := api.token(t, 1, domain.RoleCustomer)
	adminTok := api.token(t, 99, domain.RoleAdmin)

	// Enroll account 1 first.
	w := api.request(t, http.MethodGet, "/api/loyalty/1", customerTok, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.request(t, http.MethodPost, "/api/loyalty/1/adjust", customerTok, gin.H{"delta": 25})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.request(t, http.MethodPost, "/api/loyalty/1/adjust", adminTok, gin.H{"delta": 25, "reference": "goodwill"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(25), decode(t, w)["new_balance"])
}

func TestInvalidAccountIDInPath(t *testing.T) {
	api := newTestAPI(t)
	tok := api.token(t, 1, domain.RoleCustomer)

	for _, path := range []string{"/api/loyalty/abc", "/api/loyalty/0"} {
		w := api.request(t, http.MethodGet, path, tok, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, fmt.Sprintf("path %s", path))
	}
}
