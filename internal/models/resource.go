// internal/models/resource.go
package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Resource is a published collection of study material. The derived fields
// (TotalUnits, TotalDownloads, AverageRating, TotalReviews) are recomputed in
// the same transaction as the detail write that changes them.
type Resource struct {
	BaseModel
	UserID       uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index"`
	Title        string         `json:"title" gorm:"size:200;not null"`
	Description  string         `json:"description" gorm:"type:text"`
	Subject      string         `json:"subject" gorm:"size:100;not null;index"`
	Category     string         `json:"category" gorm:"size:100;index"`
	Tags         pq.StringArray `json:"tags" gorm:"type:text[]"`
	ThumbnailURL string         `json:"thumbnail_url" gorm:"size:512"`

	TotalUnits     int     `json:"total_units" gorm:"default:0"`
	TotalDownloads int64   `json:"total_downloads" gorm:"default:0"`
	AverageRating  float64 `json:"average_rating" gorm:"type:decimal(3,2);default:0"`
	TotalReviews   int64   `json:"total_reviews" gorm:"default:0"`

	IsApproved bool `json:"is_approved" gorm:"default:true"`
	IsActive   bool `json:"is_active" gorm:"default:true"`

	// Relationships
	Owner   User           `json:"owner,omitempty" gorm:"foreignKey:UserID"`
	Units   []ResourceUnit `json:"units,omitempty" gorm:"foreignKey:ResourceID"`
	Reviews []Review       `json:"reviews,omitempty" gorm:"foreignKey:ResourceID"`
}

// ResourceUnit is one purchasable sub-item of a Resource. Unit number 1 is
// always free and priced at zero.
type ResourceUnit struct {
	BaseModel
	ResourceID uuid.UUID `json:"resource_id" gorm:"type:uuid;not null;index:idx_units_resource_number,unique,priority:1"`
	UnitNumber int       `json:"unit_number" gorm:"not null;index:idx_units_resource_number,unique,priority:2"`

	Title       string `json:"title" gorm:"size:200;not null"`
	Description string `json:"description" gorm:"type:text"`

	FileKey  string `json:"file_key" gorm:"size:512;not null"`
	FileName string `json:"file_name" gorm:"size:255;not null"`
	FileSize int64  `json:"file_size"`
	FileType string `json:"file_type" gorm:"size:20"`

	Price  Cents `json:"price" gorm:"not null;default:0"`
	IsFree bool  `json:"is_free" gorm:"default:false"`

	PreviewAvailable bool  `json:"preview_available" gorm:"default:false"`
	DownloadCount    int64 `json:"download_count" gorm:"default:0"`

	// Relationships
	Resource Resource `json:"resource,omitempty" gorm:"foreignKey:ResourceID"`
}
