// internal/services/review_service.go
package services

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/smartstudy/marketplace-backend/internal/apperrors"
	"github.com/smartstudy/marketplace-backend/internal/models"
	"github.com/smartstudy/marketplace-backend/internal/utils"
)

// ReviewService records reviews and keeps the resource's aggregate rating
// consistent with them. Aggregates are always recomputed from the full
// review set rather than adjusted incrementally, which keeps repeated
// updates free of floating-point drift.
type ReviewService struct {
	db *gorm.DB
}

type AddReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,rating"`
	Comment string `json:"comment,omitempty"`
}

type UpdateReviewRequest struct {
	Rating  int     `json:"rating,omitempty" validate:"omitempty,rating"`
	Comment *string `json:"comment,omitempty"`
}

func NewReviewService(db *gorm.DB) *ReviewService {
	return &ReviewService{db: db}
}

func (s *ReviewService) AddReview(userID, resourceID uuid.UUID, req *AddReviewRequest) (*models.Review, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "invalid review", err)
	}

	var review *models.Review
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var resource models.Resource
		err := tx.Where("id = ? AND is_active = ?", resourceID, true).First(&resource).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("resource not found")
			}
			return apperrors.Persistence("failed to load resource", err)
		}

		review = &models.Review{
			UserID:     userID,
			ResourceID: resourceID,
			Rating:     req.Rating,
			Comment:    req.Comment,
			IsApproved: true,
		}

		if err := tx.Create(review).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.Conflict("you already reviewed this resource")
			}
			return apperrors.Persistence("failed to create review", err)
		}

		return s.recomputeRating(tx, resourceID)
	})
	if err != nil {
		return nil, err
	}

	return review, nil
}

func (s *ReviewService) UpdateReview(reviewID, userID uuid.UUID, req *UpdateReviewRequest) (*models.Review, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "invalid review", err)
	}

	var review models.Review
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&review, "id = ?", reviewID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("review not found")
			}
			return apperrors.Persistence("failed to load review", err)
		}

		if review.UserID != userID {
			return apperrors.Authorization("not the author of this review")
		}

		updates := make(map[string]interface{})
		if req.Rating != 0 {
			updates["rating"] = req.Rating
		}
		if req.Comment != nil {
			updates["comment"] = *req.Comment
		}

		if len(updates) == 0 {
			return nil
		}

		if err := tx.Model(&review).Updates(updates).Error; err != nil {
			return apperrors.Persistence("failed to update review", err)
		}

		return s.recomputeRating(tx, review.ResourceID)
	})
	if err != nil {
		return nil, err
	}

	return &review, nil
}

func (s *ReviewService) ListResourceReviews(resourceID uuid.UUID) ([]models.Review, error) {
	var reviews []models.Review
	err := s.db.Where("resource_id = ? AND is_approved = ?", resourceID, true).
		Order("created_at DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, apperrors.Persistence("failed to fetch reviews", err)
	}

	return reviews, nil
}

func (s *ReviewService) MarkHelpful(reviewID uuid.UUID) error {
	result := s.db.Model(&models.Review{}).
		Where("id = ?", reviewID).
		UpdateColumn("helpful_count", gorm.Expr("helpful_count + 1"))
	if result.Error != nil {
		return apperrors.Persistence("failed to record helpful vote", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("review not found")
	}

	return nil
}

// recomputeRating refreshes the resource's derived rating fields from the
// full set of approved reviews, inside the same transaction as the detail
// write that changed them.
func (s *ReviewService) recomputeRating(tx *gorm.DB, resourceID uuid.UUID) error {
	var agg struct {
		Average float64
		Count   int64
	}

	err := tx.Model(&models.Review{}).
		Where("resource_id = ? AND is_approved = ?", resourceID, true).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Scan(&agg).Error
	if err != nil {
		return apperrors.Persistence("failed to aggregate reviews", err)
	}

	err = tx.Model(&models.Resource{}).
		Where("id = ?", resourceID).
		UpdateColumns(map[string]interface{}{
			"average_rating": agg.Average,
			"total_reviews":  agg.Count,
		}).Error
	if err != nil {
		return apperrors.Persistence("failed to update resource rating", err)
	}

	return nil
}
