// internal/handlers/review.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/smartstudy/marketplace-backend/internal/services"
	"github.com/smartstudy/marketplace-backend/internal/utils"
)

type ReviewHandler struct {
	reviewService *services.ReviewService
}

type AddReviewBody struct {
	ResourceID uuid.UUID `json:"resource_id" binding:"required"`
	Rating     int       `json:"rating" binding:"required"`
	Comment    string    `json:"comment,omitempty"`
}

func NewReviewHandler(reviewService *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

// POST /marketplace/reviews
func (h *ReviewHandler) AddReview(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var body AddReviewBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	review, err := h.reviewService.AddReview(userID, body.ResourceID, &services.AddReviewRequest{
		Rating:  body.Rating,
		Comment: body.Comment,
	})
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, review)
}

// PUT /marketplace/reviews/:id
func (h *ReviewHandler) UpdateReview(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	reviewID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	review, err := h.reviewService.UpdateReview(reviewID, userID, &req)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, review)
}

// GET /marketplace/resources/:id/reviews
func (h *ReviewHandler) GetResourceReviews(c *gin.Context) {
	resourceID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	reviews, err := h.reviewService.ListResourceReviews(resourceID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, reviews)
}

// POST /marketplace/reviews/:id/helpful
func (h *ReviewHandler) MarkHelpful(c *gin.Context) {
	reviewID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.reviewService.MarkHelpful(reviewID); err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "Vote recorded"})
}
