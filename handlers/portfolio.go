package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"paper-trader/models"
	"paper-trader/portfolio"
)

// BuyInput is the buy order form.
type BuyInput struct {
	Symbol   string `json:"symbol" binding:"required"`
	Quantity int64  `json:"quantity" binding:"required"`
}

// SellInput is a batch of sell lines submitted as one request.
type SellInput struct {
	Lines []portfolio.SellLine `json:"lines" binding:"required,min=1,dive"`
}

func (h *Handler) currentUser(c *gin.Context) (*models.User, bool) {
	userID := c.MustGet("user_id").(uint)
	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		fail(c, portfolio.ErrUserNotFound)
		return nil, false
	}
	return &user, true
}

// GetPortfolio renders the valued holdings, their grand total, and the
// user's cash balance.
func (h *Handler) GetPortfolio(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	summary, err := h.portfolio.Valuation(c.Request.Context(), user)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Buy executes a buy order for the authenticated user.
func (h *Handler) Buy(c *gin.Context) {
	var input BuyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uint)
	entry, err := h.portfolio.Buy(c.Request.Context(), userID, input.Symbol, input.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// Sell executes a batch of sell lines for the authenticated user. The
// batch is atomic: any invalid line rejects the whole request.
func (h *Handler) Sell(c *gin.Context) {
	var input SellInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.MustGet("user_id").(uint)
	entries, err := h.portfolio.Sell(c.Request.Context(), userID, input.Lines)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, entries)
}

// History lists every ledger entry of the authenticated user, newest
// first.
func (h *Handler) History(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	entries, err := h.portfolio.History(user.Username)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Quote looks up the current price of a symbol without trading it.
func (h *Handler) Quote(c *gin.Context) {
	quote, err := h.quotes.Lookup(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}
