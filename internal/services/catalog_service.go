// internal/services/catalog_service.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/smartstudy/marketplace-backend/internal/apperrors"
	"github.com/smartstudy/marketplace-backend/internal/models"
	"github.com/smartstudy/marketplace-backend/internal/utils"
)

// CatalogService creates resources and their units, enforces the
// free-first-unit pricing rule and keeps the derived unit counts in step
// with the detail rows.
type CatalogService struct {
	db *gorm.DB
}

type CreateResourceRequest struct {
	Title       string   `json:"title" validate:"required,min=3,max=200"`
	Description string   `json:"description,omitempty"`
	Subject     string   `json:"subject" validate:"required,min=2,max=100"`
	Category    string   `json:"category,omitempty" validate:"omitempty,max=100"`
	Tags        []string `json:"tags,omitempty"`
}

type UpdateResourceRequest struct {
	Title        string   `json:"title,omitempty" validate:"omitempty,min=3,max=200"`
	Description  *string  `json:"description,omitempty"`
	Subject      string   `json:"subject,omitempty" validate:"omitempty,min=2,max=100"`
	Category     *string  `json:"category,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	ThumbnailURL *string  `json:"thumbnail_url,omitempty"`
}

type AddUnitRequest struct {
	UnitNumber  int          `json:"unit_number" validate:"required,gte=1"`
	Title       string       `json:"title" validate:"required,min=3,max=200"`
	Description string       `json:"description,omitempty"`
	Price       models.Cents `json:"price"`
	FileKey     string       `json:"file_key" validate:"required"`
	FileName    string       `json:"file_name" validate:"required"`
	FileSize    int64        `json:"file_size"`
	FileType    string       `json:"file_type"`
}

type UpdateUnitRequest struct {
	Title       string        `json:"title,omitempty" validate:"omitempty,min=3,max=200"`
	Description *string       `json:"description,omitempty"`
	Price       *models.Cents `json:"price,omitempty"`
}

type BrowseParams struct {
	Subject   string
	Category  string
	Search    string
	MinRating float64
	SortBy    models.SortBy
	Limit     int
	Offset    int
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

func (s *CatalogService) CreateResource(ownerID uuid.UUID, req *CreateResourceRequest) (*models.Resource, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "invalid resource", err)
	}

	resource := &models.Resource{
		UserID:      ownerID,
		Title:       req.Title,
		Description: req.Description,
		Subject:     req.Subject,
		Category:    req.Category,
		Tags:        req.Tags,
		IsApproved:  true,
		IsActive:    true,
	}

	if err := s.db.Create(resource).Error; err != nil {
		return nil, apperrors.Persistence("failed to create resource", err)
	}

	return resource, nil
}

func (s *CatalogService) GetResource(id uuid.UUID) (*models.Resource, error) {
	var resource models.Resource
	err := s.db.Where("id = ? AND is_active = ?", id, true).First(&resource).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("resource not found")
		}
		return nil, apperrors.Persistence("failed to load resource", err)
	}

	return &resource, nil
}

func (s *CatalogService) UpdateResource(id, ownerID uuid.UUID, req *UpdateResourceRequest) (*models.Resource, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "invalid resource", err)
	}

	resource, err := s.ownedResource(s.db, id, ownerID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Title != "" {
		updates["title"] = req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Subject != "" {
		updates["subject"] = req.Subject
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.Tags != nil {
		updates["tags"] = pq.StringArray(req.Tags)
	}
	if req.ThumbnailURL != nil {
		updates["thumbnail_url"] = *req.ThumbnailURL
	}

	if len(updates) > 0 {
		if err := s.db.Model(resource).Updates(updates).Error; err != nil {
			return nil, apperrors.Persistence("failed to update resource", err)
		}
	}

	return resource, nil
}

// DeactivateResource soft-deletes: the rows stay because purchases may
// reference the units forever.
func (s *CatalogService) DeactivateResource(id, ownerID uuid.UUID) error {
	resource, err := s.ownedResource(s.db, id, ownerID)
	if err != nil {
		return err
	}

	if err := s.db.Model(resource).Update("is_active", false).Error; err != nil {
		return apperrors.Persistence("failed to deactivate resource", err)
	}

	return nil
}

// AddUnit appends one purchasable unit. Unit number 1 is always free: a
// caller-supplied price is overridden to zero, not rejected. The parent's
// total_units is recomputed in the same transaction as the insert.
func (s *CatalogService) AddUnit(resourceID, ownerID uuid.UUID, req *AddUnitRequest) (*models.ResourceUnit, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "invalid unit", err)
	}
	if req.Price < 0 {
		return nil, apperrors.Validation("price must not be negative")
	}

	var unit *models.ResourceUnit
	err := s.db.Transaction(func(tx *gorm.DB) error {
		resource, err := s.ownedResource(tx, resourceID, ownerID)
		if err != nil {
			return err
		}

		price := req.Price
		isFree := false
		if req.UnitNumber == 1 {
			price = 0
			isFree = true
		}

		unit = &models.ResourceUnit{
			ResourceID:  resourceID,
			UnitNumber:  req.UnitNumber,
			Title:       req.Title,
			Description: req.Description,
			FileKey:     req.FileKey,
			FileName:    req.FileName,
			FileSize:    req.FileSize,
			FileType:    req.FileType,
			Price:       price,
			IsFree:      isFree,
		}

		if err := tx.Create(unit).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.Newf(apperrors.KindValidation, "unit number %d is already taken", req.UnitNumber)
			}
			return apperrors.Persistence("failed to create unit", err)
		}

		var count int64
		if err := tx.Model(&models.ResourceUnit{}).
			Where("resource_id = ?", resourceID).
			Count(&count).Error; err != nil {
			return apperrors.Persistence("failed to count units", err)
		}

		if err := tx.Model(resource).UpdateColumn("total_units", count).Error; err != nil {
			return apperrors.Persistence("failed to update unit count", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return unit, nil
}

func (s *CatalogService) UpdateUnit(resourceID, unitID, ownerID uuid.UUID, req *UpdateUnitRequest) (*models.ResourceUnit, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Wrap(apperrors.KindValidation, "invalid unit", err)
	}
	if req.Price != nil && *req.Price < 0 {
		return nil, apperrors.Validation("price must not be negative")
	}

	if _, err := s.ownedResource(s.db, resourceID, ownerID); err != nil {
		return nil, err
	}

	var unit models.ResourceUnit
	err := s.db.Where("id = ? AND resource_id = ?", unitID, resourceID).First(&unit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("unit not found")
		}
		return nil, apperrors.Persistence("failed to load unit", err)
	}

	updates := make(map[string]interface{})
	if req.Title != "" {
		updates["title"] = req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	// The free unit keeps its zero price no matter what the owner asks for.
	if req.Price != nil && !unit.IsFree {
		updates["price"] = *req.Price
	}

	if len(updates) > 0 {
		if err := s.db.Model(&unit).Updates(updates).Error; err != nil {
			return nil, apperrors.Persistence("failed to update unit", err)
		}
	}

	return &unit, nil
}

func (s *CatalogService) ListUnits(resourceID uuid.UUID) ([]models.ResourceUnit, error) {
	var units []models.ResourceUnit
	err := s.db.Where("resource_id = ?", resourceID).
		Order("unit_number ASC").
		Find(&units).Error
	if err != nil {
		return nil, apperrors.Persistence("failed to list units", err)
	}

	return units, nil
}

// Browse lists active, approved resources. Pagination is offset-based and
// stable only in the absence of concurrent writes; no snapshot isolation is
// promised.
func (s *CatalogService) Browse(params BrowseParams) ([]models.Resource, int64, error) {
	query := s.db.Model(&models.Resource{}).
		Where("is_active = ? AND is_approved = ?", true, true)

	if params.Subject != "" {
		query = query.Where("subject = ?", params.Subject)
	}
	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}
	if params.Search != "" {
		searchTerm := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", searchTerm, searchTerm)
	}
	if params.MinRating > 0 {
		query = query.Where("average_rating >= ?", params.MinRating)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Persistence("failed to count resources", err)
	}

	switch params.SortBy {
	case models.SortByPopular:
		query = query.Order("total_downloads DESC")
	case models.SortByRating:
		query = query.Order("average_rating DESC")
	default:
		query = query.Order("created_at DESC")
	}

	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var resources []models.Resource
	if err := query.Limit(limit).Offset(params.Offset).Find(&resources).Error; err != nil {
		return nil, 0, apperrors.Persistence("failed to fetch resources", err)
	}

	return resources, total, nil
}

func (s *CatalogService) GetUserUploads(ownerID uuid.UUID) ([]models.Resource, error) {
	var resources []models.Resource
	err := s.db.Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Find(&resources).Error
	if err != nil {
		return nil, apperrors.Persistence("failed to fetch uploads", err)
	}

	return resources, nil
}

func (s *CatalogService) ownedResource(tx *gorm.DB, id, ownerID uuid.UUID) (*models.Resource, error) {
	var resource models.Resource
	err := tx.Where("id = ? AND is_active = ?", id, true).First(&resource).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("resource not found")
		}
		return nil, apperrors.Persistence("failed to load resource", err)
	}

	if resource.UserID != ownerID {
		return nil, apperrors.Authorization(fmt.Sprintf("not the owner of resource %s", id))
	}

	return &resource, nil
}
