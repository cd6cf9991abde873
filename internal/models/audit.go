// internal/models/audit.go
package models

import (
	"github.com/google/uuid"
)

// AuditLog records every mutating marketplace request, written best-effort
// by the audit middleware.
type AuditLog struct {
	BaseModel
	UserID     *uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	Action     string     `json:"action" gorm:"size:100;not null;index"`
	EntityType string     `json:"entity_type" gorm:"size:50;not null;index"`
	EntityID   *uuid.UUID `json:"entity_id" gorm:"type:uuid;index"`
	Request    JSONB      `json:"request" gorm:"type:jsonb"`
	IPAddress  string     `json:"ip_address" gorm:"size:45"`
	UserAgent  string     `json:"user_agent" gorm:"type:text"`

	// Relationships
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
