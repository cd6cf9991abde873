// internal/handlers/resource.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/smartstudy/marketplace-backend/internal/models"
	"github.com/smartstudy/marketplace-backend/internal/services"
	"github.com/smartstudy/marketplace-backend/internal/utils"
)

type ResourceHandler struct {
	catalogService *services.CatalogService
	accessService  *services.AccessService
	storageService *services.StorageService
}

func NewResourceHandler(catalogService *services.CatalogService, accessService *services.AccessService, storageService *services.StorageService) *ResourceHandler {
	return &ResourceHandler{
		catalogService: catalogService,
		accessService:  accessService,
		storageService: storageService,
	}
}

// POST /marketplace/resources
func (h *ResourceHandler) CreateResource(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.CreateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	resource, err := h.catalogService.CreateResource(ownerID, &req)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, resource)
}

// GET /marketplace/resources
func (h *ResourceHandler) BrowseResources(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	browseParams := services.BrowseParams{
		Subject:  c.Query("subject"),
		Category: params.Category,
		Search:   params.Search,
		SortBy:   models.SortBy(c.DefaultQuery("sort_by", string(models.SortByRecent))),
		Limit:    params.Limit,
		Offset:   params.Offset(),
	}

	if minRatingStr := c.Query("min_rating"); minRatingStr != "" {
		if minRating, err := strconv.ParseFloat(minRatingStr, 64); err == nil {
			browseParams.MinRating = minRating
		}
	}

	resources, total, err := h.catalogService.Browse(browseParams)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	result := utils.CreatePaginationResult(resources, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /marketplace/resources/:id
func (h *ResourceHandler) GetResource(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	resource, err := h.catalogService.GetResource(id)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, resource)
}

// PUT /marketplace/resources/:id
func (h *ResourceHandler) UpdateResource(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req services.UpdateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	resource, err := h.catalogService.UpdateResource(id, ownerID, &req)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, resource)
}

// DELETE /marketplace/resources/:id
func (h *ResourceHandler) DeleteResource(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.catalogService.DeactivateResource(id, ownerID); err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "Resource deactivated"})
}

// GET /marketplace/my-resources
func (h *ResourceHandler) GetMyResources(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}

	resources, err := h.catalogService.GetUserUploads(ownerID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, resources)
}

// POST /marketplace/resources/:id/units (multipart)
func (h *ResourceHandler) AddUnit(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	resourceID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	unitNumber, err := strconv.Atoi(c.PostForm("unit_number"))
	if err != nil || unitNumber < 1 {
		utils.BadRequestResponse(c, "unit_number must be a positive integer", nil)
		return
	}

	price := models.Cents(0)
	if priceStr := c.PostForm("price"); priceStr != "" {
		cents, err := strconv.ParseInt(priceStr, 10, 64)
		if err != nil || cents < 0 {
			utils.BadRequestResponse(c, "price must be a non-negative integer number of cents", nil)
			return
		}
		price = models.Cents(cents)
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, "unit content file is required", nil)
		return
	}
	defer file.Close()

	upload, err := h.storageService.UploadUnitFile(file, header, resourceID, unitNumber)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	req := services.AddUnitRequest{
		UnitNumber:  unitNumber,
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Price:       price,
		FileKey:     upload.Key,
		FileName:    upload.FileName,
		FileSize:    upload.Size,
		FileType:    upload.FileType,
	}

	unit, err := h.catalogService.AddUnit(resourceID, ownerID, &req)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, unit)
}

// GET /marketplace/resources/:id/units
func (h *ResourceHandler) ListUnits(c *gin.Context) {
	resourceID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	units, err := h.catalogService.ListUnits(resourceID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, units)
}

// PUT /marketplace/resources/:id/units/:unit_id
func (h *ResourceHandler) UpdateUnit(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	resourceID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	unitID, ok := pathUUID(c, "unit_id")
	if !ok {
		return
	}

	var req services.UpdateUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	unit, err := h.catalogService.UpdateUnit(resourceID, unitID, ownerID, &req)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, unit)
}

// GET /marketplace/resources/:id/units/:unit_id/download
func (h *ResourceHandler) DownloadUnit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	resourceID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	unitID, ok := pathUUID(c, "unit_id")
	if !ok {
		return
	}

	info, err := h.accessService.DownloadUnit(userID, resourceID, unitID)
	if err != nil {
		utils.DomainErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, info)
}

// Shared helpers

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return uuid.Nil, false
	}

	return userID, true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}
