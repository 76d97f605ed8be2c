package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"booking-backend/internal/report"
)

// MonthlyReport handles the GET /api/reports/monthly request. The year and
// month query parameters select the period; one or more resource parameters
// select the resources to include.
func (h *Handler) MonthlyReport(c *gin.Context) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil || year < 1 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
		return
	}
	month, err := strconv.Atoi(c.Query("month"))
	if err != nil || month < 1 || month > 12 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid month"})
		return
	}

	resourceIDs := c.QueryArray("resource")
	if len(resourceIDs) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "at least one resource is required"})
		return
	}

	monthly, err := report.BuildMonthly(c.Request.Context(), h.store, h, year, time.Month(month), resourceIDs)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to build report"})
		return
	}

	c.JSON(http.StatusOK, monthly)
}
