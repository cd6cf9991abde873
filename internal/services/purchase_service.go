// internal/services/purchase_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/smartstudy/marketplace-backend/internal/apperrors"
	"github.com/smartstudy/marketplace-backend/internal/config"
	"github.com/smartstudy/marketplace-backend/internal/models"
	"github.com/smartstudy/marketplace-backend/internal/utils"
)

const commitAttempts = 3

// PurchaseService executes the buy flow: validate, charge, split the
// commission, credit the seller wallet and record the transaction.
type PurchaseService struct {
	db            *gorm.DB
	config        *config.Config
	gateway       PaymentGateway
	wallets       *WalletService
	notifications *NotificationService
}

func NewPurchaseService(db *gorm.DB, config *config.Config, gateway PaymentGateway, wallets *WalletService, notifications *NotificationService) *PurchaseService {
	return &PurchaseService{
		db:            db,
		config:        config,
		gateway:       gateway,
		wallets:       wallets,
		notifications: notifications,
	}
}

// splitCommission divides an amount between the platform and the seller.
// The commission is rounded half-up to whole cents and the earnings are the
// remainder, so commission + earnings == amount always holds exactly.
func splitCommission(amount models.Cents, rate float64) (commission, earnings models.Cents) {
	commission = models.Cents(math.Floor(float64(amount)*rate + 0.5))
	earnings = amount - commission
	return commission, earnings
}

// Purchase buys one unit for one buyer.
//
// The duplicate check runs before the charge so an already-owned unit never
// reaches the payment capability. The losing side of a concurrent race for
// the same (buyer, unit) pair is caught by the partial unique index on
// completed purchases and surfaces as a conflict.
func (s *PurchaseService) Purchase(ctx context.Context, buyerID, unitID uuid.UUID, paymentMethod string) (*models.Purchase, error) {
	var unit models.ResourceUnit
	err := s.db.WithContext(ctx).Preload("Resource").First(&unit, "id = ?", unitID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("unit not found")
		}
		return nil, apperrors.Persistence("failed to load unit", err)
	}

	var existing int64
	err = s.db.WithContext(ctx).Model(&models.Purchase{}).
		Where("buyer_id = ? AND resource_unit_id = ? AND payment_status = ?",
			buyerID, unitID, models.PaymentStatusCompleted).
		Count(&existing).Error
	if err != nil {
		return nil, apperrors.Persistence("failed to check prior purchases", err)
	}
	if existing > 0 {
		return nil, apperrors.Conflict("already purchased")
	}

	amount := unit.Price
	commission, earnings := splitCommission(amount, s.config.Payment.CommissionRate)

	transactionID, err := s.charge(ctx, buyerID, amount, paymentMethod)
	if err != nil {
		return nil, err
	}

	purchase := &models.Purchase{
		BuyerID:            buyerID,
		ResourceUnitID:     unit.ID,
		ResourceID:         unit.ResourceID,
		AmountPaid:         amount,
		PlatformCommission: commission,
		SellerEarnings:     earnings,
		PaymentStatus:      models.PaymentStatusCompleted,
		PaymentMethod:      paymentMethod,
		TransactionID:      transactionID,
	}

	if err := s.commitPurchase(ctx, purchase, &unit); err != nil {
		return nil, err
	}

	if s.notifications != nil {
		go s.notifications.SendSaleNotifications(purchase)
	}

	return purchase, nil
}

// charge invokes the external payment capability with a fresh idempotency
// key. Zero-amount purchases (the free tier bought explicitly) skip the
// gateway entirely.
func (s *PurchaseService) charge(ctx context.Context, buyerID uuid.UUID, amount models.Cents, method string) (string, error) {
	if amount == 0 {
		key, err := utils.GenerateRandomString(24)
		if err != nil {
			return "", apperrors.Wrap(apperrors.KindPayment, "failed to generate transaction reference", err)
		}
		return "free_" + key, nil
	}

	key, err := utils.GenerateIdempotencyKey()
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindPayment, "failed to generate idempotency key", err)
	}

	result, err := s.gateway.Charge(ctx, ChargeRequest{
		BuyerID:        buyerID,
		Amount:         amount,
		Method:         method,
		IdempotencyKey: key,
	})
	if err != nil {
		return "", err
	}

	return result.TransactionID, nil
}

// commitPurchase applies the three post-payment effects as one atomic unit:
// the completed Purchase row, the seller wallet credit and the download
// counters. The charge cannot be undone automatically, so a transient
// storage failure here retries the write only, never the charge.
func (s *PurchaseService) commitPurchase(ctx context.Context, purchase *models.Purchase, unit *models.ResourceUnit) error {
	now := time.Now()
	purchase.CompletedAt = &now

	var lastErr error
	for attempt := 1; attempt <= commitAttempts; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(purchase).Error; err != nil {
				return err
			}

			if err := s.wallets.CreditSeller(tx, unit.Resource.UserID, purchase.SellerEarnings); err != nil {
				return err
			}

			if err := tx.Model(&models.ResourceUnit{}).
				Where("id = ?", unit.ID).
				UpdateColumn("download_count", gorm.Expr("download_count + 1")).Error; err != nil {
				return err
			}

			if err := tx.Model(&models.Resource{}).
				Where("id = ?", unit.ResourceID).
				UpdateColumn("total_downloads", gorm.Expr("total_downloads + 1")).Error; err != nil {
				return err
			}

			return nil
		})
		if err == nil {
			return nil
		}

		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent purchase for the same pair won the race after
			// our pre-check. The charge already went through, which needs
			// an operator's eye.
			logrus.WithFields(logrus.Fields{
				"buyer_id":       purchase.BuyerID,
				"unit_id":        purchase.ResourceUnitID,
				"transaction_id": purchase.TransactionID,
			}).Error("Charge succeeded for a duplicate purchase; manual refund required")
			return apperrors.Conflict("already purchased")
		}

		lastErr = err
		logrus.WithError(err).WithFields(logrus.Fields{
			"attempt":        attempt,
			"transaction_id": purchase.TransactionID,
		}).Warn("Failed to record completed purchase, retrying")
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}

	return apperrors.Persistence(
		fmt.Sprintf("failed to record purchase %s after charge", purchase.TransactionID), lastErr)
}

func (s *PurchaseService) GetPurchase(id uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := s.db.First(&purchase, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("purchase not found")
		}
		return nil, apperrors.Persistence("failed to load purchase", err)
	}

	return &purchase, nil
}

func (s *PurchaseService) GetUserPurchases(buyerID uuid.UUID) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := s.db.Where("buyer_id = ? AND payment_status = ?", buyerID, models.PaymentStatusCompleted).
		Order("created_at DESC").
		Find(&purchases).Error
	if err != nil {
		return nil, apperrors.Persistence("failed to fetch purchases", err)
	}

	return purchases, nil
}

// Refund transitions a completed purchase to refunded and reverses the
// seller's wallet credit in the same transaction. The money movement at the
// payment processor is handled out of band.
func (s *PurchaseService) Refund(purchaseID uuid.UUID, reason string) (*models.Purchase, error) {
	var purchase models.Purchase

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&purchase, "id = ?", purchaseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("purchase not found")
			}
			return apperrors.Persistence("failed to load purchase", err)
		}

		if purchase.PaymentStatus != models.PaymentStatusCompleted {
			return apperrors.Conflict("only completed purchases can be refunded")
		}

		var resource models.Resource
		if err := tx.First(&resource, "id = ?", purchase.ResourceID).Error; err != nil {
			return apperrors.Persistence("failed to load resource", err)
		}

		now := time.Now()
		result := tx.Model(&models.Purchase{}).
			Where("id = ? AND payment_status = ?", purchaseID, models.PaymentStatusCompleted).
			Updates(map[string]interface{}{
				"payment_status": models.PaymentStatusRefunded,
				"refunded_at":    now,
				"refund_reason":  reason,
			})
		if result.Error != nil {
			return apperrors.Persistence("failed to update purchase", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.Conflict("purchase already refunded")
		}

		if err := s.wallets.DebitSellerEarnings(tx, resource.UserID, purchase.SellerEarnings); err != nil {
			return err
		}

		purchase.PaymentStatus = models.PaymentStatusRefunded
		purchase.RefundedAt = &now
		purchase.RefundReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &purchase, nil
}
