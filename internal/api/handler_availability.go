package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetAvailability handles the GET /api/resources/{resource_id}/availability
// request and reports the percentage of free capacity across the requested
// range.
func (h *Handler) GetAvailability(c *gin.Context) {
	resourceID := c.Param("resource_id")
	ctx := c.Request.Context()

	if _, err := h.store.GetResource(ctx, resourceID); err != nil {
		abortWithError(c, err)
		return
	}

	start, end, err := rangeParams(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid time range. Use RFC3339 'start' and 'end'."})
		return
	}

	availability, err := h.schedulerFor(resourceID).Availability(ctx, start, end)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"resource":     resourceID,
		"start":        start,
		"end":          end,
		"availability": availability,
	})
}
