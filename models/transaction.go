package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one ledger entry: a buy of Quantity shares of Symbol at
// Price, or a sell when the Sold flag is set. Entries are append-only —
// corrections are made by inserting new entries, never by updating or
// deleting existing ones — so the ledger doubles as an audit trail and is
// the source of truth for holdings.
type Transaction struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Username  string          `gorm:"index;not null" json:"username"`
	Symbol    string          `gorm:"not null" json:"symbol"`
	Price     decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"price"`
	Quantity  int64           `gorm:"not null" json:"quantity"`
	Sold      bool            `gorm:"not null" json:"sold"`
	CreatedAt time.Time       `json:"created_at"`
}
