// internal/services/access_service.go
package services

import (
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/smartstudy/marketplace-backend/internal/apperrors"
	"github.com/smartstudy/marketplace-backend/internal/models"
)

// AccessService decides whether a user may fetch a unit's content: the
// free tier or proof of purchase. The predicate is evaluated fresh on every
// request and never cached, since a refund can revoke access between
// requests.
type AccessService struct {
	db      *gorm.DB
	storage *StorageService
}

type DownloadInfo struct {
	URL      string `json:"url"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
}

func NewAccessService(db *gorm.DB, storage *StorageService) *AccessService {
	return &AccessService{
		db:      db,
		storage: storage,
	}
}

func (s *AccessService) HasAccess(userID, unitID uuid.UUID) (bool, error) {
	var unit models.ResourceUnit
	if err := s.db.First(&unit, "id = ?", unitID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperrors.NotFound("unit not found")
		}
		return false, apperrors.Persistence("failed to load unit", err)
	}

	if unit.IsFree {
		return true, nil
	}

	var count int64
	err := s.db.Model(&models.Purchase{}).
		Where("buyer_id = ? AND resource_unit_id = ? AND payment_status = ?",
			userID, unitID, models.PaymentStatusCompleted).
		Count(&count).Error
	if err != nil {
		return false, apperrors.Persistence("failed to check purchases", err)
	}

	return count > 0, nil
}

// RecordDownload bumps the unit and resource download counters. It is a
// best-effort side effect: failures are logged and never abort the
// retrieval that triggered them.
func (s *AccessService) RecordDownload(unitID uuid.UUID) {
	var unit models.ResourceUnit
	if err := s.db.Select("id", "resource_id").First(&unit, "id = ?", unitID).Error; err != nil {
		logrus.WithError(err).WithField("unit_id", unitID).Warn("Failed to resolve unit for download count")
		return
	}

	if err := s.db.Model(&models.ResourceUnit{}).
		Where("id = ?", unitID).
		UpdateColumn("download_count", gorm.Expr("download_count + 1")).Error; err != nil {
		logrus.WithError(err).WithField("unit_id", unitID).Warn("Failed to increment unit download count")
	}

	if err := s.db.Model(&models.Resource{}).
		Where("id = ?", unit.ResourceID).
		UpdateColumn("total_downloads", gorm.Expr("total_downloads + 1")).Error; err != nil {
		logrus.WithError(err).WithField("resource_id", unit.ResourceID).Warn("Failed to increment resource download count")
	}
}

// DownloadUnit authorizes and resolves a content download. The returned URL
// points at the content store; the engine never streams the bytes itself.
func (s *AccessService) DownloadUnit(userID, resourceID, unitID uuid.UUID) (*DownloadInfo, error) {
	var unit models.ResourceUnit
	err := s.db.Where("id = ? AND resource_id = ?", unitID, resourceID).First(&unit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("unit not found")
		}
		return nil, apperrors.Persistence("failed to load unit", err)
	}

	allowed, err := s.HasAccess(userID, unitID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperrors.Authorization("purchase required to access this unit")
	}

	url, err := s.storage.PresignedDownloadURL(unit.FileKey, unit.FileName)
	if err != nil {
		return nil, err
	}

	s.RecordDownload(unitID)

	return &DownloadInfo{
		URL:      url,
		FileName: unit.FileName,
		FileType: unit.FileType,
	}, nil
}
