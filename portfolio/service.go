package portfolio

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"paper-trader/models"
	"paper-trader/pricing"
)

var (
	// ErrInvalidQuantity is returned for a non-positive quantity, or a
	// sell that exceeds the currently held quantity.
	ErrInvalidQuantity = errors.New("invalid number of shares")
	// ErrInsufficientFunds is returned when a buy costs more than the
	// user's cash balance.
	ErrInsufficientFunds = errors.New("not enough cash")
	// ErrUserNotFound is returned when the user id does not resolve.
	ErrUserNotFound = errors.New("user not found")
)

// InitialCash is the balance granted to every user at registration.
var InitialCash = decimal.NewFromInt(10000)

// Holding is the derived net position for one symbol: shares bought minus
// shares sold. Holdings are recomputed from the ledger on every read and
// have no stored identity.
type Holding struct {
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
}

// Line is a holding valued at the current market price.
type Line struct {
	Holding
	Price decimal.Decimal `json:"price"`
	Value decimal.Decimal `json:"value"`
}

// Summary is the full portfolio view: valued holdings, their grand total,
// and the user's cash balance.
type Summary struct {
	Holdings   []Line          `json:"holdings"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	Cash       decimal.Decimal `json:"cash"`
}

// SellLine is one (symbol, quantity) pair of a sell batch.
type SellLine struct {
	Symbol   string `json:"symbol" binding:"required"`
	Quantity int64  `json:"quantity" binding:"required"`
}

// Service executes buy/sell operations against the ledger and derives
// portfolio views from it. The quoter is injected so tests can run against
// a deterministic price source.
type Service struct {
	db     *gorm.DB
	quotes pricing.Quoter
}

// NewService builds a portfolio service on top of db and quotes.
func NewService(db *gorm.DB, quotes pricing.Quoter) *Service {
	return &Service{db: db, quotes: quotes}
}

// Holdings computes the net quantity per symbol for username from the
// ledger, dropping symbols that net to zero or less. The result is ordered
// by symbol so repeated calls on unchanged data agree.
func (s *Service) Holdings(username string) ([]Holding, error) {
	return holdings(s.db, username)
}

func holdings(db *gorm.DB, username string) ([]Holding, error) {
	var rows []Holding
	err := db.Model(&models.Transaction{}).
		Select("symbol, COALESCE(SUM(CASE WHEN sold THEN -quantity ELSE quantity END), 0) AS quantity").
		Where("username = ?", username).
		Group("symbol").
		Order("symbol").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	active := rows[:0]
	for _, h := range rows {
		if h.Quantity > 0 {
			active = append(active, h)
		}
	}
	return active, nil
}

// Valuation prices every holding of user at the current market and sums
// the line values into a grand total. Any failed lookup fails the whole
// call; a partially priced portfolio would present a wrong total.
func (s *Service) Valuation(ctx context.Context, user *models.User) (*Summary, error) {
	held, err := s.Holdings(user.Username)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Holdings:   make([]Line, 0, len(held)),
		GrandTotal: decimal.Zero,
		Cash:       user.Cash,
	}
	for _, h := range held {
		quote, err := s.quotes.Lookup(ctx, h.Symbol)
		if err != nil {
			return nil, err
		}
		value := quote.Price.Mul(decimal.NewFromInt(h.Quantity))
		summary.Holdings = append(summary.Holdings, Line{Holding: h, Price: quote.Price, Value: value})
		summary.GrandTotal = summary.GrandTotal.Add(value)
	}
	return summary, nil
}

// Buy purchases quantity shares of symbol at the current market price.
// The cash debit and the ledger append happen in one database transaction;
// on any failure neither survives. Zero-quantity orders are rejected.
func (s *Service) Buy(ctx context.Context, userID uint, symbol string, quantity int64) (*models.Transaction, error) {
	l := logrus.WithFields(logrus.Fields{
		"method":         "Buy",
		"param_userId":   userID,
		"param_symbol":   symbol,
		"param_quantity": quantity,
	})

	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, pricing.ErrUnknownSymbol
	}

	quote, err := s.quotes.Lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}
	cost := quote.Price.Mul(decimal.NewFromInt(quantity))

	var entry *models.Transaction
	err = s.db.Transaction(func(tx *gorm.DB) error {
		user, err := getUser(tx, userID)
		if err != nil {
			return err
		}
		if user.Cash.LessThan(cost) {
			return ErrInsufficientFunds
		}

		// Guarded debit: the WHERE clause re-checks the balance inside the
		// transaction so a concurrent buy cannot drive cash negative.
		res := tx.Model(&models.User{}).
			Where("id = ? AND cash >= ?", user.ID, cost).
			Update("cash", gorm.Expr("cash - ?", cost))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientFunds
		}

		entry = &models.Transaction{
			Username: user.Username,
			Symbol:   quote.Symbol,
			Price:    quote.Price,
			Quantity: quantity,
		}
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, err
	}

	l.Infof("bought %d %s at %s", quantity, quote.Symbol, quote.Price)
	return entry, nil
}

// Sell executes a batch of sell lines as one atomic operation: either
// every line commits or none does. Held quantities are validated against a
// single snapshot taken at batch start, with requested quantities
// accumulated per symbol so duplicate lines cannot jointly oversell.
func (s *Service) Sell(ctx context.Context, userID uint, lines []SellLine) ([]models.Transaction, error) {
	l := logrus.WithFields(logrus.Fields{
		"method":       "Sell",
		"param_userId": userID,
		"param_lines":  len(lines),
	})

	if len(lines) == 0 {
		return nil, ErrInvalidQuantity
	}
	for i := range lines {
		if lines[i].Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		lines[i].Symbol = strings.ToUpper(strings.TrimSpace(lines[i].Symbol))
		if lines[i].Symbol == "" {
			return nil, pricing.ErrUnknownSymbol
		}
	}

	// Resolve prices before opening the transaction; an unknown symbol or
	// unreachable gateway fails the batch without touching the database.
	quotes := make(map[string]pricing.Quote, len(lines))
	for _, line := range lines {
		if _, ok := quotes[line.Symbol]; ok {
			continue
		}
		quote, err := s.quotes.Lookup(ctx, line.Symbol)
		if err != nil {
			return nil, err
		}
		quotes[line.Symbol] = quote
	}

	var entries []models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		user, err := getUser(tx, userID)
		if err != nil {
			return err
		}

		held, err := holdings(tx, user.Username)
		if err != nil {
			return err
		}
		limits := make(map[string]int64, len(held))
		for _, h := range held {
			limits[h.Symbol] = h.Quantity
		}

		requested := make(map[string]int64, len(lines))
		proceeds := decimal.Zero
		entries = make([]models.Transaction, 0, len(lines))
		for _, line := range lines {
			requested[line.Symbol] += line.Quantity
			if requested[line.Symbol] > limits[line.Symbol] {
				return ErrInvalidQuantity
			}

			quote := quotes[line.Symbol]
			entries = append(entries, models.Transaction{
				Username: user.Username,
				Symbol:   quote.Symbol,
				Price:    quote.Price,
				Quantity: line.Quantity,
				Sold:     true,
			})
			proceeds = proceeds.Add(quote.Price.Mul(decimal.NewFromInt(line.Quantity)))
		}

		if err := tx.Create(&entries).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).
			Where("id = ?", user.ID).
			Update("cash", gorm.Expr("cash + ?", proceeds)).Error
	})
	if err != nil {
		return nil, err
	}

	l.Infof("sold %d lines", len(entries))
	return entries, nil
}

// History returns every ledger entry for username, newest first.
func (s *Service) History(username string) ([]models.Transaction, error) {
	var entries []models.Transaction
	err := s.db.
		Where("username = ?", username).
		Order("created_at DESC, id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func getUser(tx *gorm.DB, userID uint) (*models.User, error) {
	var user models.User
	if err := tx.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
