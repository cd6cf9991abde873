// internal/models/wallet.go
package models

import (
	"github.com/google/uuid"
)

// Wallet is the balance ledger for one seller. Invariant:
// Balance == TotalEarned - TotalWithdrawn; PendingAmount is tracked
// separately and not yet reflected in Balance. All mutations are applied as
// atomic SQL increments, never read-modify-write at the application layer.
type Wallet struct {
	BaseModel
	UserID uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex"`

	Balance        Cents `json:"balance" gorm:"not null;default:0"`
	TotalEarned    Cents `json:"total_earned" gorm:"not null;default:0"`
	TotalWithdrawn Cents `json:"total_withdrawn" gorm:"not null;default:0"`
	PendingAmount  Cents `json:"pending_amount" gorm:"not null;default:0"`

	// Relationships
	Owner User `json:"owner,omitempty" gorm:"foreignKey:UserID"`
}
