// internal/models/purchase.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Purchase is an immutable record of one buyer acquiring one unit. For a
// given (buyer, unit) pair at most one row may ever reach completed status;
// a partial unique index created in the migrations enforces this.
type Purchase struct {
	BaseModel
	BuyerID        uuid.UUID `json:"buyer_id" gorm:"type:uuid;not null;index"`
	ResourceUnitID uuid.UUID `json:"resource_unit_id" gorm:"type:uuid;not null;index"`
	ResourceID     uuid.UUID `json:"resource_id" gorm:"type:uuid;not null;index"` // denormalized for query efficiency

	AmountPaid         Cents `json:"amount_paid" gorm:"not null"`
	PlatformCommission Cents `json:"platform_commission" gorm:"not null"`
	SellerEarnings     Cents `json:"seller_earnings" gorm:"not null"`

	PaymentStatus PaymentStatus `json:"payment_status" gorm:"type:varchar(20);default:'pending';index"`
	PaymentMethod string        `json:"payment_method" gorm:"size:50"`
	TransactionID string        `json:"transaction_id" gorm:"size:255;uniqueIndex"`

	CompletedAt  *time.Time `json:"completed_at"`
	RefundedAt   *time.Time `json:"refunded_at"`
	RefundReason string     `json:"refund_reason,omitempty" gorm:"type:text"`

	// Relationships
	Buyer    User         `json:"buyer,omitempty" gorm:"foreignKey:BuyerID"`
	Unit     ResourceUnit `json:"unit,omitempty" gorm:"foreignKey:ResourceUnitID"`
	Resource Resource     `json:"resource,omitempty" gorm:"foreignKey:ResourceID"`
}
