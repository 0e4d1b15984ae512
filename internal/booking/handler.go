package booking

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/xSkywa1ker/dance-bot/internal/api"
	"github.com/xSkywa1ker/dance-bot/internal/auth"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Reserve handles POST /bot/bookings.
func (h *Handler) Reserve(c *gin.Context) {
	var req ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	result, err := h.service.Reserve(c.Request.Context(), req.TgID, req.SlotID, SourceBot)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotRegistered):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "user not registered"})
		case errors.Is(err, ErrSlotUnavailable):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "slot is not open for booking"})
		case errors.Is(err, ErrCapacityExceeded):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "no free seats left"})
		case errors.Is(err, ErrDuplicateBooking):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "already booked for this slot"})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to create booking"})
		}
		return
	}

	c.JSON(http.StatusCreated, result)
}

// Cancel handles POST /bot/bookings/:bookingID/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("bookingID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid booking id"})
		return
	}

	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	booking, err := h.service.Cancel(c.Request.Context(), req.TgID, id, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotRegistered):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "user not registered"})
		case errors.Is(err, ErrBookingNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "booking not found"})
		case errors.Is(err, ErrCannotCancel):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "booking is not active"})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to cancel booking"})
		}
		return
	}

	c.JSON(http.StatusOK, booking)
}

// ListForUser handles GET /bot/users/:tgID/bookings.
func (h *Handler) ListForUser(c *gin.Context) {
	tgID, err := strconv.ParseInt(c.Param("tgID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid telegram id"})
		return
	}

	upcomingOnly := c.Query("upcoming") == "true"

	bookings, err := h.service.ListForUser(c.Request.Context(), tgID, upcomingOnly)
	if err != nil {
		if errors.Is(err, ErrUserNotRegistered) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "user not registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load bookings"})
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// CancelAsAdmin handles POST /admin/bookings/:bookingID/cancel.
func (h *Handler) CancelAsAdmin(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("bookingID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid booking id"})
		return
	}

	var req AdminCancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	var adminID *int
	if actor, ok := auth.GetAdminID(c); ok {
		adminID = &actor
	}

	booking, err := h.service.CancelAsAdmin(c.Request.Context(), id, adminID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, ErrBookingNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "booking not found"})
		case errors.Is(err, ErrCannotCancel):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "booking is not active"})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to cancel booking"})
		}
		return
	}

	c.JSON(http.StatusOK, booking)
}

// MarkAttendance handles POST /admin/bookings/:bookingID/attendance.
func (h *Handler) MarkAttendance(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("bookingID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid booking id"})
		return
	}

	var req AttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	booking, err := h.service.MarkAttendance(c.Request.Context(), id, *req.Attended)
	if err != nil {
		switch {
		case errors.Is(err, ErrBookingNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "booking not found"})
		case errors.Is(err, ErrCannotMark):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "booking cannot be marked"})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to mark attendance"})
		}
		return
	}

	c.JSON(http.StatusOK, booking)
}

// Stats handles GET /admin/bookings/stats.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ListForSlot handles GET /admin/slots/:slotID/bookings.
func (h *Handler) ListForSlot(c *gin.Context) {
	slotID, err := strconv.Atoi(c.Param("slotID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid slot id"})
		return
	}

	bookings, err := h.service.ListForSlot(c.Request.Context(), slotID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load bookings"})
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// CancelSlot handles POST /admin/slots/:slotID/cancel.
func (h *Handler) CancelSlot(c *gin.Context) {
	slotID, err := strconv.Atoi(c.Param("slotID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid slot id"})
		return
	}

	var adminID *int
	if id, ok := auth.GetAdminID(c); ok {
		adminID = &id
	}

	count, err := h.service.CancelSlot(c.Request.Context(), slotID, adminID)
	if err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "slot not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to cancel slot"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings_canceled": count})
}
