package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"paper-trader/portfolio"
	"paper-trader/pricing"
)

// Handler carries the dependencies the HTTP layer needs. Routes are
// registered in main.
type Handler struct {
	db        *gorm.DB
	rdb       *redis.Client
	portfolio *portfolio.Service
	quotes    pricing.Quoter
	jwtSecret []byte
}

// New builds the handler set. rdb may be nil; refresh tokens are then
// skipped, which the tests rely on.
func New(db *gorm.DB, rdb *redis.Client, svc *portfolio.Service, quotes pricing.Quoter, jwtSecret []byte) *Handler {
	return &Handler{
		db:        db,
		rdb:       rdb,
		portfolio: svc,
		quotes:    quotes,
		jwtSecret: jwtSecret,
	}
}

// fail maps core errors onto HTTP statuses and renders the rejection.
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, portfolio.ErrInvalidQuantity),
		errors.Is(err, ErrPasswordMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, portfolio.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, pricing.ErrUnknownSymbol):
		status = http.StatusNotFound
	case errors.Is(err, pricing.ErrGatewayUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, ErrUsernameTaken):
		status = http.StatusConflict
	case errors.Is(err, ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, portfolio.ErrUserNotFound):
		status = http.StatusUnauthorized
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
