// internal/services/purchase_service_test.go
package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/smartstudy/marketplace-backend/internal/apperrors"
	"github.com/smartstudy/marketplace-backend/internal/models"
)

func TestSplitCommission(t *testing.T) {
	cases := []struct {
		name       string
		amount     models.Cents
		rate       float64
		commission models.Cents
		earnings   models.Cents
	}{
		{"ten dollars", 1000, 0.15, 150, 850},
		{"odd cents round half up", 999, 0.15, 150, 849},
		{"single cent", 1, 0.15, 0, 1},
		{"free", 0, 0.15, 0, 0},
		{"no clean split", 333, 0.15, 50, 283},
		{"large sale", 1999999, 0.15, 300000, 1699999},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			commission, earnings := splitCommission(tc.amount, tc.rate)
			assert.Equal(t, tc.commission, commission)
			assert.Equal(t, tc.earnings, earnings)
			assert.Equal(t, tc.amount, commission+earnings)
		})
	}
}

type PurchaseServiceSuite struct {
	suite.Suite
	db        *gorm.DB
	gateway   *stubGateway
	wallets   *WalletService
	purchases *PurchaseService

	seller   *models.User
	buyer    *models.User
	resource *models.Resource
	paidUnit *models.ResourceUnit
	freeUnit *models.ResourceUnit
}

func (s *PurchaseServiceSuite) SetupTest() {
	cfg := newTestConfig()
	s.db = newTestDB(s.T())
	s.gateway = &stubGateway{}
	s.wallets = NewWalletService(s.db, cfg)
	s.purchases = NewPurchaseService(s.db, cfg, s.gateway, s.wallets, nil)

	s.seller = createTestUser(s.T(), s.db, "seller")
	s.buyer = createTestUser(s.T(), s.db, "buyer")
	s.resource = createTestResource(s.T(), s.db, s.seller.ID)
	s.freeUnit = createTestUnit(s.T(), s.db, s.resource.ID, 1, 0)
	s.paidUnit = createTestUnit(s.T(), s.db, s.resource.ID, 2, 1000)
}

func (s *PurchaseServiceSuite) TestPurchaseSplitsCommissionExactly() {
	purchase, err := s.purchases.Purchase(context.Background(), s.buyer.ID, s.paidUnit.ID, "pm_card")
	s.Require().NoError(err)

	s.Equal(models.Cents(1000), purchase.AmountPaid)
	s.Equal(models.Cents(150), purchase.PlatformCommission)
	s.Equal(models.Cents(850), purchase.SellerEarnings)
	s.Equal(purchase.AmountPaid, purchase.PlatformCommission+purchase.SellerEarnings)
	s.Equal(models.PaymentStatusCompleted, purchase.PaymentStatus)
	s.NotNil(purchase.CompletedAt)
	s.Equal(1, s.gateway.callCount())

	wallet, err := s.wallets.GetOrCreateWallet(s.seller.ID)
	s.Require().NoError(err)
	s.Equal(models.Cents(850), wallet.Balance)
	s.Equal(models.Cents(850), wallet.TotalEarned)
	s.Equal(models.Cents(0), wallet.TotalWithdrawn)
}

func (s *PurchaseServiceSuite) TestPurchaseBumpsDownloadCounters() {
	_, err := s.purchases.Purchase(context.Background(), s.buyer.ID, s.paidUnit.ID, "pm_card")
	s.Require().NoError(err)

	var unit models.ResourceUnit
	s.Require().NoError(s.db.First(&unit, "id = ?", s.paidUnit.ID).Error)
	s.Equal(int64(1), unit.DownloadCount)

	var resource models.Resource
	s.Require().NoError(s.db.First(&resource, "id = ?", s.resource.ID).Error)
	s.Equal(int64(1), resource.TotalDownloads)
}

func (s *PurchaseServiceSuite) TestDuplicatePurchaseNeverReachesGateway() {
	_, err := s.purchases.Purchase(context.Background(), s.buyer.ID, s.paidUnit.ID, "pm_card")
	s.Require().NoError(err)
	s.Equal(1, s.gateway.callCount())

	_, err = s.purchases.Purchase(context.Background(), s.buyer.ID, s.paidUnit.ID, "pm_card")
	s.Require().Error(err)
	s.Equal(apperrors.KindConflict, apperrors.KindOf(err))
	s.Equal(1, s.gateway.callCount())

	// The seller was credited once, not twice.
	wallet, err := s.wallets.GetOrCreateWallet(s.seller.ID)
	s.Require().NoError(err)
	s.Equal(models.Cents(850), wallet.Balance)
}

func (s *PurchaseServiceSuite) TestConcurrentPurchasesSingleWinner() {
	const attempts = 8

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.purchases.Purchase(context.Background(), s.buyer.ID, s.paidUnit.ID, "pm_card")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		s.Equal(apperrors.KindConflict, apperrors.KindOf(err))
	}
	s.Equal(1, succeeded)

	var completed int64
	s.Require().NoError(s.db.Model(&models.Purchase{}).
		Where("buyer_id = ? AND resource_unit_id = ? AND payment_status = ?",
			s.buyer.ID, s.paidUnit.ID, models.PaymentStatusCompleted).
		Count(&completed).Error)
	s.Equal(int64(1), completed)

	// Exactly one sale's worth of earnings, no matter how many attempts raced.
	wallet, err := s.wallets.GetOrCreateWallet(s.seller.ID)
	s.Require().NoError(err)
	s.Equal(models.Cents(850), wallet.Balance)
}

func (s *PurchaseServiceSuite) TestFreeUnitPurchaseSkipsGateway() {
	purchase, err := s.purchases.Purchase(context.Background(), s.buyer.ID, s.freeUnit.ID, "pm_card")
	s.Require().NoError(err)

	s.Equal(models.Cents(0), purchase.AmountPaid)
	s.Equal(models.Cents(0), purchase.SellerEarnings)
	s.True(strings.HasPrefix(purchase.TransactionID, "free_"))
	s.Equal(0, s.gateway.callCount())
}

func (s *PurchaseServiceSuite) TestDeclinedChargeLeavesNoRecord() {
	s.gateway.decline = true

	_, err := s.purchases.Purchase(context.Background(), s.buyer.ID, s.paidUnit.ID, "pm_card")
	s.Require().Error(err)
	s.Equal(apperrors.KindPayment, apperrors.KindOf(err))

	var count int64
	s.Require().NoError(s.db.Model(&models.Purchase{}).Count(&count).Error)
	s.Equal(int64(0), count)

	var wallets int64
	s.Require().NoError(s.db.Model(&models.Wallet{}).Count(&wallets).Error)
	s.Equal(int64(0), wallets)
}

func (s *PurchaseServiceSuite) TestPurchaseUnknownUnit() {
	_, err := s.purchases.Purchase(context.Background(), s.buyer.ID, s.seller.ID, "pm_card")
	s.Require().Error(err)
	s.Equal(apperrors.KindNotFound, apperrors.KindOf(err))
	s.Equal(0, s.gateway.callCount())
}

func (s *PurchaseServiceSuite) TestGetUserPurchasesListsOnlyCompleted() {
	purchase, err := s.purchases.Purchase(context.Background(), s.buyer.ID, s.paidUnit.ID, "pm_card")
	s.Require().NoError(err)

	failed := &models.Purchase{
		BuyerID:        s.buyer.ID,
		ResourceUnitID: s.freeUnit.ID,
		ResourceID:     s.resource.ID,
		PaymentStatus:  models.PaymentStatusFailed,
		TransactionID:  "txn_failed",
	}
	s.Require().NoError(s.db.Create(failed).Error)

	list, err := s.purchases.GetUserPurchases(s.buyer.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(purchase.ID, list[0].ID)
}

func (s *PurchaseServiceSuite) TestRefundReversesSellerEarnings() {
	purchase, err := s.purchases.Purchase(context.Background(), s.buyer.ID, s.paidUnit.ID, "pm_card")
	s.Require().NoError(err)

	refunded, err := s.purchases.Refund(purchase.ID, "duplicate charge")
	s.Require().NoError(err)
	s.Equal(models.PaymentStatusRefunded, refunded.PaymentStatus)
	s.NotNil(refunded.RefundedAt)
	s.Equal("duplicate charge", refunded.RefundReason)

	wallet, err := s.wallets.GetOrCreateWallet(s.seller.ID)
	s.Require().NoError(err)
	s.Equal(models.Cents(0), wallet.Balance)
	s.Equal(models.Cents(0), wallet.TotalEarned)

	// The pair is purchasable again once the refund releases it.
	_, err = s.purchases.Purchase(context.Background(), s.buyer.ID, s.paidUnit.ID, "pm_card")
	s.NoError(err)
}

func (s *PurchaseServiceSuite) TestRefundTwiceConflicts() {
	purchase, err := s.purchases.Purchase(context.Background(), s.buyer.ID, s.paidUnit.ID, "pm_card")
	s.Require().NoError(err)

	_, err = s.purchases.Refund(purchase.ID, "first")
	s.Require().NoError(err)

	_, err = s.purchases.Refund(purchase.ID, "second")
	s.Require().Error(err)
	s.Equal(apperrors.KindConflict, apperrors.KindOf(err))
}

func (s *PurchaseServiceSuite) TestRefundUnknownPurchase() {
	_, err := s.purchases.Refund(s.buyer.ID, "never existed")
	s.Require().Error(err)
	s.Equal(apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestPurchaseServiceSuite(t *testing.T) {
	suite.Run(t, new(PurchaseServiceSuite))
}
