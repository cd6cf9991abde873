// internal/models/review.go
package models

import (
	"github.com/google/uuid"
)

// Review is one buyer's rating and comment for a Resource, at most one per
// (reviewer, resource) pair.
type Review struct {
	BaseModel
	UserID     uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index:idx_reviews_user_resource,unique,priority:1"`
	ResourceID uuid.UUID `json:"resource_id" gorm:"type:uuid;not null;index:idx_reviews_user_resource,unique,priority:2"`

	Rating  int    `json:"rating" gorm:"not null"` // 1-5 stars
	Comment string `json:"comment" gorm:"type:text"`

	IsApproved   bool  `json:"is_approved" gorm:"default:true"`
	HelpfulCount int64 `json:"helpful_count" gorm:"default:0"`

	// Relationships
	Reviewer User     `json:"reviewer,omitempty" gorm:"foreignKey:UserID"`
	Resource Resource `json:"resource,omitempty" gorm:"foreignKey:ResourceID"`
}
