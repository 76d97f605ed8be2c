package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"booking-backend/internal/model"
)

// ResourceResponse represents the API response for a single resource.
type ResourceResponse struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	TotalAllocations int64  `json:"totalAllocations"`
}

// ListResources handles the GET /api/resources request.
func (h *Handler) ListResources(c *gin.Context) {
	resources, err := h.store.ListResources(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve resources"})
		return
	}

	// One aggregation pass for all per-resource allocation counts.
	type aggRow struct {
		MirrorOf string
		Total    int64
	}
	var aggs []aggRow
	err = h.store.DB().
		Model(&model.Allocation{}).
		Select("mirror_of, COUNT(*) as total").
		Where("resource = mirror_of").
		Group("mirror_of").
		Scan(&aggs).Error
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate allocations"})
		return
	}

	aggMap := make(map[string]int64, len(aggs))
	for _, a := range aggs {
		aggMap[a.MirrorOf] = a.Total
	}

	responses := make([]ResourceResponse, 0, len(resources))
	for _, r := range resources {
		responses = append(responses, ResourceResponse{
			ID:               r.ID,
			Title:            r.Title,
			TotalAllocations: aggMap[r.ID],
		})
	}
	c.JSON(http.StatusOK, responses)
}

type createResourceRequest struct {
	Title string `json:"title" binding:"required"`
}

// CreateResource handles the POST /api/resources request.
func (h *Handler) CreateResource(c *gin.Context) {
	if !h.exposure.IsViewExposed(c, "manage-resources") {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	var req createResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	resource := model.Resource{
		ID:    uuid.NewString(),
		Title: req.Title,
	}
	if err := h.store.CreateResource(c.Request.Context(), &resource); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resource)
}
