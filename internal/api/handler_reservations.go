package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"booking-backend/internal/model"
)

type createReservationRequest struct {
	Start time.Time     `json:"start"`
	End   time.Time     `json:"end"`
	Group string        `json:"group"`
	Data  model.JSONMap `json:"data"`
}

// CreateReservation handles the POST /api/resources/{resource_id}/reservations
// request. A request carrying a group books the whole recurrence; otherwise
// start and end select the allocations to book.
func (h *Handler) CreateReservation(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	resourceID := c.Param("resource_id")
	ctx := c.Request.Context()
	if _, err := h.store.GetResource(ctx, resourceID); err != nil {
		abortWithError(c, err)
		return
	}

	sched := h.schedulerFor(resourceID)
	if req.Group != "" {
		reservation, err := sched.ReserveGroup(ctx, req.Group, req.Data)
		if err != nil {
			abortWithError(c, err)
			return
		}
		h.flushCache()
		c.JSON(http.StatusCreated, []model.Reservation{*reservation})
		return
	}

	reservations, err := sched.Reserve(ctx, req.Start, req.End, req.Data)
	if err != nil {
		abortWithError(c, err)
		return
	}

	h.flushCache()
	c.JSON(http.StatusCreated, reservations)
}

// ConfirmReservation handles the POST /api/reservations/{reservation_id}/confirm
// request. Confirming claims a concrete spot, so a full allocation rejects the
// confirmation even when the reservation was accepted onto the waiting list.
func (h *Handler) ConfirmReservation(c *gin.Context) {
	reservationID, err := strconv.ParseInt(c.Param("reservation_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid reservation id"})
		return
	}

	ctx := c.Request.Context()
	reservation, err := h.store.GetReservation(ctx, reservationID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	confirmed, err := h.schedulerFor(reservation.Resource).Confirm(ctx, reservationID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	h.flushCache()
	c.JSON(http.StatusOK, confirmed)
}

// CancelReservation handles the DELETE /api/reservations/{reservation_id}
// request. When a confirmed reservation frees a spot that a pending
// reservation is waiting for, subscribers of the resource are notified.
func (h *Handler) CancelReservation(c *gin.Context) {
	reservationID, err := strconv.ParseInt(c.Param("reservation_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid reservation id"})
		return
	}

	ctx := c.Request.Context()
	reservation, err := h.store.GetReservation(ctx, reservationID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	promotable, err := h.schedulerFor(reservation.Resource).Cancel(ctx, reservationID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	h.flushCache()
	if promotable != nil && h.pool != nil {
		h.pool.Dispatch(promotable.Resource)
	}
	c.Status(http.StatusNoContent)
}

// ListReservations handles the GET /api/resources/{resource_id}/reservations
// request.
func (h *Handler) ListReservations(c *gin.Context) {
	resourceID := c.Param("resource_id")
	ctx := c.Request.Context()

	if _, err := h.store.GetResource(ctx, resourceID); err != nil {
		abortWithError(c, err)
		return
	}

	reservations, err := h.store.ReservationsByResource(ctx, resourceID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve reservations"})
		return
	}

	c.JSON(http.StatusOK, reservations)
}
