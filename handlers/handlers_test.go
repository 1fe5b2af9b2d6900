package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"paper-trader/handlers"
	"paper-trader/middleware"
	"paper-trader/models"
	"paper-trader/portfolio"
	"paper-trader/pricing"
)

var testSecret = []byte("test-secret")

type stubQuoter struct {
	prices map[string]string
}

func (q stubQuoter) Lookup(_ context.Context, symbol string) (pricing.Quote, error) {
	symbol = strings.ToUpper(symbol)
	raw, ok := q.prices[symbol]
	if !ok {
		return pricing.Quote{}, pricing.ErrUnknownSymbol
	}
	return pricing.Quote{Symbol: symbol, Price: decimal.RequireFromString(raw)}, nil
}

func newTestRouter(t *testing.T, quotes pricing.Quoter) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Transaction{}))

	svc := portfolio.NewService(db, quotes)
	h := handlers.New(db, nil, svc, quotes, testSecret)

	router := gin.New()
	router.POST("/register", h.Register)
	router.POST("/login", h.Login)

	auth := router.Group("/")
	auth.Use(middleware.JWTAuth(testSecret))
	{
		auth.GET("/portfolio", h.GetPortfolio)
		auth.POST("/buy", h.Buy)
		auth.POST("/sell", h.Sell)
		auth.GET("/history", h.History)
		auth.GET("/quote/:symbol", h.Quote)
	}
	return router, db
}

func do(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
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
	router.ServeHTTP(w, req)
	return w
}

func registerAndLogin(t *testing.T, router *gin.Engine, username string) string {
	t.Helper()

	w := do(t, router, http.MethodPost, "/register", "", gin.H{
		"username":         username,
		"password":         "hunter2!",
		"confirm_password": "hunter2!",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func TestRegisterRejectsPasswordMismatch(t *testing.T) {
	router, _ := newTestRouter(t, stubQuoter{})

	w := do(t, router, http.MethodPost, "/register", "", gin.H{
		"username":         "alice",
		"password":         "one",
		"confirm_password": "two",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	router, _ := newTestRouter(t, stubQuoter{})
	registerAndLogin(t, router, "alice")

	// A different password makes no difference.
	w := do(t, router, http.MethodPost, "/register", "", gin.H{
		"username":         "alice",
		"password":         "other",
		"confirm_password": "other",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegisterGrantsInitialCash(t *testing.T) {
	router, db := newTestRouter(t, stubQuoter{})
	registerAndLogin(t, router, "alice")

	var user models.User
	require.NoError(t, db.Where("username = ?", "alice").First(&user).Error)
	assert.True(t, user.Cash.Equal(portfolio.InitialCash))
	assert.NotEqual(t, "hunter2!", user.PasswordHash)
}

func TestLogin(t *testing.T) {
	router, _ := newTestRouter(t, stubQuoter{})
	registerAndLogin(t, router, "alice")

	w := do(t, router, http.MethodPost, "/login", "", gin.H{
		"username": "alice",
		"password": "hunter2!",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodPost, "/login", "", gin.H{
		"username": "alice",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodPost, "/login", "", gin.H{
		"username": "nobody",
		"password": "hunter2!",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter(t, stubQuoter{})

	w := do(t, router, http.MethodGet, "/portfolio", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodGet, "/portfolio", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBuySellPortfolioFlow(t *testing.T) {
	quotes := stubQuoter{prices: map[string]string{"AAA": "50.00"}}
	router, _ := newTestRouter(t, quotes)
	token := registerAndLogin(t, router, "alice")

	w := do(t, router, http.MethodPost, "/buy", token, gin.H{"symbol": "AAA", "quantity": 10})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	quotes.prices["AAA"] = "60.00"
	w = do(t, router, http.MethodPost, "/sell", token, gin.H{
		"lines": []gin.H{{"symbol": "AAA", "quantity": 4}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, router, http.MethodGet, "/portfolio", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var summary portfolio.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	require.Len(t, summary.Holdings, 1)
	assert.Equal(t, "AAA", summary.Holdings[0].Symbol)
	assert.Equal(t, int64(6), summary.Holdings[0].Quantity)
	assert.True(t, summary.Cash.Equal(decimal.RequireFromString("9740.00")), "cash = %s", summary.Cash)
	assert.True(t, summary.GrandTotal.Equal(decimal.RequireFromString("360.00")))

	// Overselling leaves cash and the ledger untouched.
	w = do(t, router, http.MethodPost, "/sell", token, gin.H{
		"lines": []gin.H{{"symbol": "AAA", "quantity": 7}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, "/history", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var history []models.Transaction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.True(t, history[0].Sold)
	assert.False(t, history[1].Sold)
}

func TestBuyRejections(t *testing.T) {
	router, _ := newTestRouter(t, stubQuoter{prices: map[string]string{"AAA": "50.00"}})
	token := registerAndLogin(t, router, "alice")

	w := do(t, router, http.MethodPost, "/buy", token, gin.H{"symbol": "NOPE", "quantity": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodPost, "/buy", token, gin.H{"symbol": "AAA", "quantity": -2})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPost, "/buy", token, gin.H{"symbol": "AAA", "quantity": 1000})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestQuoteEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, stubQuoter{prices: map[string]string{"AAA": "50.00"}})
	token := registerAndLogin(t, router, "alice")

	w := do(t, router, http.MethodGet, "/quote/AAA", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var quote pricing.Quote
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quote))
	assert.Equal(t, "AAA", quote.Symbol)
	assert.True(t, quote.Price.Equal(decimal.RequireFromString("50.00")))

	w = do(t, router, http.MethodGet, "/quote/NOPE", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
