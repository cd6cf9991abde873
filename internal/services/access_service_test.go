// internal/services/access_service_test.go
package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/smartstudy/marketplace-backend/internal/apperrors"
	"github.com/smartstudy/marketplace-backend/internal/models"
)

type AccessServiceSuite struct {
	suite.Suite
	db        *gorm.DB
	access    *AccessService
	purchases *PurchaseService

	seller   *models.User
	buyer    *models.User
	resource *models.Resource
	freeUnit *models.ResourceUnit
	paidUnit *models.ResourceUnit
}

func (s *AccessServiceSuite) SetupTest() {
	cfg := newTestConfig()
	s.db = newTestDB(s.T())

	storage, err := NewStorageService(cfg)
	s.Require().NoError(err)

	s.access = NewAccessService(s.db, storage)
	s.purchases = NewPurchaseService(s.db, cfg, &stubGateway{}, NewWalletService(s.db, cfg), nil)

	s.seller = createTestUser(s.T(), s.db, "seller")
	s.buyer = createTestUser(s.T(), s.db, "buyer")
	s.resource = createTestResource(s.T(), s.db, s.seller.ID)
	s.freeUnit = createTestUnit(s.T(), s.db, s.resource.ID, 1, 0)
	s.paidUnit = createTestUnit(s.T(), s.db, s.resource.ID, 2, 1000)
}

func (s *AccessServiceSuite) TestFreeUnitOpenToEveryone() {
	allowed, err := s.access.HasAccess(s.buyer.ID, s.freeUnit.ID)
	s.Require().NoError(err)
	s.True(allowed)
}

func (s *AccessServiceSuite) TestPaidUnitRequiresPurchase() {
	allowed, err := s.access.HasAccess(s.buyer.ID, s.paidUnit.ID)
	s.Require().NoError(err)
	s.False(allowed)

	_, err = s.access.DownloadUnit(s.buyer.ID, s.resource.ID, s.paidUnit.ID)
	s.Require().Error(err)
	s.Equal(apperrors.KindAuthorization, apperrors.KindOf(err))

	_, err = s.purchases.Purchase(context.Background(), s.buyer.ID, s.paidUnit.ID, "pm_card")
	s.Require().NoError(err)

	allowed, err = s.access.HasAccess(s.buyer.ID, s.paidUnit.ID)
	s.Require().NoError(err)
	s.True(allowed)
}

func (s *AccessServiceSuite) TestRefundRevokesAccess() {
	purchase, err := s.purchases.Purchase(context.Background(), s.buyer.ID, s.paidUnit.ID, "pm_card")
	s.Require().NoError(err)

	allowed, err := s.access.HasAccess(s.buyer.ID, s.paidUnit.ID)
	s.Require().NoError(err)
	s.True(allowed)

	_, err = s.purchases.Refund(purchase.ID, "buyer complaint")
	s.Require().NoError(err)

	allowed, err = s.access.HasAccess(s.buyer.ID, s.paidUnit.ID)
	s.Require().NoError(err)
	s.False(allowed)
}

func (s *AccessServiceSuite) TestPurchaseDoesNotUnlockOtherUnits() {
	third := createTestUnit(s.T(), s.db, s.resource.ID, 3, 500)

	_, err := s.purchases.Purchase(context.Background(), s.buyer.ID, s.paidUnit.ID, "pm_card")
	s.Require().NoError(err)

	allowed, err := s.access.HasAccess(s.buyer.ID, third.ID)
	s.Require().NoError(err)
	s.False(allowed)
}

func (s *AccessServiceSuite) TestDownloadResolvesURLAndCounts() {
	info, err := s.access.DownloadUnit(s.buyer.ID, s.resource.ID, s.freeUnit.ID)
	s.Require().NoError(err)
	s.True(strings.Contains(info.URL, s.freeUnit.FileKey))
	s.Equal(s.freeUnit.FileName, info.FileName)

	var unit models.ResourceUnit
	s.Require().NoError(s.db.First(&unit, "id = ?", s.freeUnit.ID).Error)
	s.Equal(int64(1), unit.DownloadCount)

	var resource models.Resource
	s.Require().NoError(s.db.First(&resource, "id = ?", s.resource.ID).Error)
	s.Equal(int64(1), resource.TotalDownloads)
}

func (s *AccessServiceSuite) TestDownloadChecksUnitBelongsToResource() {
	stray := createTestResource(s.T(), s.db, s.seller.ID)

	_, err := s.access.DownloadUnit(s.buyer.ID, stray.ID, s.freeUnit.ID)
	s.Require().Error(err)
	s.Equal(apperrors.KindNotFound, apperrors.KindOf(err))
}

func (s *AccessServiceSuite) TestUnknownUnit() {
	_, err := s.access.HasAccess(s.buyer.ID, s.buyer.ID)
	s.Require().Error(err)
	s.Equal(apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestAccessServiceSuite(t *testing.T) {
	suite.Run(t, new(AccessServiceSuite))
}
