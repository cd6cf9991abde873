// internal/services/wallet_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/smartstudy/marketplace-backend/internal/apperrors"
	"github.com/smartstudy/marketplace-backend/internal/config"
	"github.com/smartstudy/marketplace-backend/internal/models"
)

type WalletService struct {
	db     *gorm.DB
	config *config.Config
}

func NewWalletService(db *gorm.DB, config *config.Config) *WalletService {
	return &WalletService{
		db:     db,
		config: config,
	}
}

// GetOrCreateWallet lazily creates a zero-balance wallet on first access.
// Under concurrent first access the unique index on user_id makes the
// upsert a no-op for the loser, which then reads back the winner's row.
func (s *WalletService) GetOrCreateWallet(userID uuid.UUID) (*models.Wallet, error) {
	wallet := &models.Wallet{UserID: userID}

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(wallet).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, apperrors.Persistence("failed to create wallet", err)
	}

	var existing models.Wallet
	if err := s.db.Where("user_id = ?", userID).First(&existing).Error; err != nil {
		return nil, apperrors.Persistence("failed to load wallet", err)
	}

	return &existing, nil
}

// CreditSeller applies one sale's earnings inside the caller's transaction.
// The increment happens in SQL so concurrent sales of the same seller's
// units never lose an update.
func (s *WalletService) CreditSeller(tx *gorm.DB, sellerID uuid.UUID, earnings models.Cents) error {
	wallet := &models.Wallet{
		UserID:      sellerID,
		Balance:     earnings,
		TotalEarned: earnings,
	}

	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"balance":      gorm.Expr("wallets.balance + ?", earnings),
			"total_earned": gorm.Expr("wallets.total_earned + ?", earnings),
		}),
	}).Create(wallet).Error
	if err != nil {
		return apperrors.Persistence("failed to credit seller wallet", err)
	}

	return nil
}

// DebitSellerEarnings reverses one sale's credit on refund.
func (s *WalletService) DebitSellerEarnings(tx *gorm.DB, sellerID uuid.UUID, earnings models.Cents) error {
	result := tx.Model(&models.Wallet{}).
		Where("user_id = ?", sellerID).
		Updates(map[string]interface{}{
			"balance":      gorm.Expr("balance - ?", earnings),
			"total_earned": gorm.Expr("total_earned - ?", earnings),
		})
	if result.Error != nil {
		return apperrors.Persistence("failed to debit seller wallet", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("seller wallet not found")
	}

	return nil
}

// Withdraw debits the caller's balance. The balance check and the debit are
// a single conditional update, so concurrent withdrawals cannot overdraw.
func (s *WalletService) Withdraw(userID uuid.UUID, amount models.Cents) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, apperrors.Validation("withdrawal amount must be positive")
	}

	minimum := models.Cents(s.config.Payment.MinimumWithdrawal * 100)
	if amount < minimum {
		return nil, apperrors.Validation(fmt.Sprintf("minimum withdrawal amount is $%s", minimum))
	}

	result := s.db.Model(&models.Wallet{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Updates(map[string]interface{}{
			"balance":         gorm.Expr("balance - ?", amount),
			"total_withdrawn": gorm.Expr("total_withdrawn + ?", amount),
		})
	if result.Error != nil {
		return nil, apperrors.Persistence("failed to apply withdrawal", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, apperrors.Validation("insufficient balance for withdrawal")
	}

	var wallet models.Wallet
	if err := s.db.Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, apperrors.Persistence("failed to load wallet", err)
	}

	return &wallet, nil
}
