package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"booking-backend/internal/model"
	"booking-backend/internal/scheduler"
	"booking-backend/internal/timespan"
)

type createAllocationRequest struct {
	Start            time.Time `json:"start" binding:"required"`
	End              time.Time `json:"end" binding:"required"`
	Quota            int       `json:"quota"`
	Group            string    `json:"group"`
	PartlyAvailable  bool      `json:"partly_available"`
	Approve          bool      `json:"approve"`
	WaitinglistSpots int       `json:"waitinglist_spots"`
}

// CreateAllocation handles the POST /api/resources/{resource_id}/allocations
// request. A quota above one creates the mirror allocations alongside the
// primary.
func (h *Handler) CreateAllocation(c *gin.Context) {
	if !h.exposure.IsViewExposed(c, "manage-allocations") {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	var req createAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	resourceID := c.Param("resource_id")
	if _, err := h.store.GetResource(c.Request.Context(), resourceID); err != nil {
		abortWithError(c, err)
		return
	}

	if req.Approve && req.WaitinglistSpots == 0 {
		req.WaitinglistSpots = h.defaultWaitinglist
	}

	sched := h.schedulerFor(resourceID)
	allocations, err := sched.Allocate(c.Request.Context(), req.Start, req.End, scheduler.AllocateOptions{
		Quota:            req.Quota,
		Group:            req.Group,
		PartlyAvailable:  req.PartlyAvailable,
		Approve:          req.Approve,
		WaitinglistSpots: req.WaitinglistSpots,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	h.flushCache()
	c.JSON(http.StatusCreated, allocations)
}

// allocationResponse is an allocation with its presentation-ready
// availability status.
type allocationResponse struct {
	model.Allocation
	Grouped      bool                       `json:"grouped"`
	Availability scheduler.AvailabilityInfo `json:"availability"`
	FreeSpans    []timespan.Span            `json:"free_spans"`
}

// ListAllocations handles the GET /api/resources/{resource_id}/allocations
// request. Only primary-mirror allocations are listed; mirrors carry no
// information of their own.
func (h *Handler) ListAllocations(c *gin.Context) {
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

	allocations, err := h.store.MastersOverlapping(ctx, resourceID, start, end)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve allocations"})
		return
	}

	sched := h.schedulerFor(resourceID)
	response := make([]allocationResponse, 0, len(allocations))
	for i := range allocations {
		info, err := sched.DescribeAvailability(ctx, &allocations[i])
		if err != nil {
			abortWithError(c, err)
			return
		}
		grouped, err := sched.IsGroupAllocation(ctx, &allocations[i])
		if err != nil {
			abortWithError(c, err)
			return
		}
		free, err := sched.FreeSpans(ctx, &allocations[i])
		if err != nil {
			abortWithError(c, err)
			return
		}
		response = append(response, allocationResponse{
			Allocation:   allocations[i],
			Grouped:      grouped,
			Availability: info,
			FreeSpans:    free,
		})
	}

	c.JSON(http.StatusOK, response)
}

// rangeParams reads the RFC3339 start/end query parameters, defaulting to
// the next 30 days.
func rangeParams(c *gin.Context) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	start, end := now, now.AddDate(0, 0, 30)

	if s := c.Query("start"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = parsed
	}
	if s := c.Query("end"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = parsed
	}
	return start, end, nil
}
