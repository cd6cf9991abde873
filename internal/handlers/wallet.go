// internal/handlers/wallet.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/smartstudy/marketplace-backend/internal/models"
	"github.com/smartstudy/marketplace-backend/internal/services"
	"github.com/smartstudy/marketplace-backend/internal/utils"
)

type WalletHandler struct {
	walletService *services.WalletService
}

type WithdrawRequest struct {
	Amount models.Cents `json:"amount" binding:"required"`
}

func NewWalletHandler(walletService *services.WalletService) *WalletHandler {
	return &WalletHandler{walletService: walletService}
}

// GET /marketplace/wallet
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	wallet, err := h.walletService.GetOrCreateWallet(userID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, wallet)
}

// POST /marketplace/wallet/withdraw
func (h *WalletHandler) Withdraw(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	wallet, err := h.walletService.Withdraw(userID, req.Amount)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, wallet)
}
