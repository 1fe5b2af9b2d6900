package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a registered account. Only Cash is mutated after creation;
// users are never deleted.
type User struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Username     string          `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string          `gorm:"not null" json:"-"`
	Cash         decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"cash"`
	CreatedAt    time.Time       `json:"created_at"`
}
