// internal/handlers/purchase.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/smartstudy/marketplace-backend/internal/services"
	"github.com/smartstudy/marketplace-backend/internal/utils"
)

type PurchaseHandler struct {
	purchaseService *services.PurchaseService
}

type PurchaseUnitRequest struct {
	ResourceUnitID uuid.UUID `json:"resource_unit_id" binding:"required"`
	PaymentMethod  string    `json:"payment_method" binding:"required"`
}

type RefundRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func NewPurchaseHandler(purchaseService *services.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{purchaseService: purchaseService}
}

// POST /marketplace/purchases
func (h *PurchaseHandler) PurchaseUnit(c *gin.Context) {
	buyerID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req PurchaseUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	purchase, err := h.purchaseService.Purchase(c.Request.Context(), buyerID, req.ResourceUnitID, req.PaymentMethod)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, purchase)
}

// GET /marketplace/purchases/my-purchases
func (h *PurchaseHandler) GetMyPurchases(c *gin.Context) {
	buyerID, ok := currentUserID(c)
	if !ok {
		return
	}

	purchases, err := h.purchaseService.GetUserPurchases(buyerID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, purchases)
}

// POST /marketplace/purchases/:id/refund (admin only)
func (h *PurchaseHandler) RefundPurchase(c *gin.Context) {
	purchaseID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	purchase, err := h.purchaseService.Refund(purchaseID, req.Reason)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, purchase)
}
