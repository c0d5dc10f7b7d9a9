package handlers

import (
	"net/http"
	"strings"

	"fieldhand/middleware"
	"fieldhand/models"
	"fieldhand/services/booking"
	"fieldhand/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BookingHandler exposes the booking lifecycle over HTTP.
type BookingHandler struct {
	Service booking.BookingService
}

func NewBookingHandler(svc booking.BookingService) *BookingHandler {
	return &BookingHandler{Service: svc}
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type completionRequest struct {
	Amount float64 `json:"amount" binding:"required"`
}

type ratingRequest struct {
	Rating   int    `json:"rating" binding:"required"`
	Feedback string `json:"feedback"`
}

type refundRequest struct {
	Amount float64 `json:"amount"`
	Reason string  `json:"reason" binding:"required"`
}

func actorOrAbort(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		utils.JSONError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", "")
	}
	return actor, ok
}

func bindOrAbort(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return false
	}
	return true
}

// CreateBooking handles POST /api/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var in booking.CreateBookingInput
	if !bindOrAbort(c, &in) {
		return
	}
	res, err := h.Service.CreateBooking(c.Request.Context(), actor, in)
	if err != nil {
		writeError(c, err)
		return
	}
	utils.LoggerFromContext(c).Info("Booking created", zap.String("bookingID", res.BookingID), zap.String("customerID", actor.ID))
	c.JSON(http.StatusCreated, res)
}

// VerifyInitialPayment handles POST /api/bookings/:id/payments/initial/verify.
func (h *BookingHandler) VerifyInitialPayment(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var cb models.PaymentCallback
	if !bindOrAbort(c, &cb) {
		return
	}
	view, err := h.Service.VerifyInitialPayment(c.Request.Context(), actor, c.Param("id"), cb)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CancelBooking handles POST /api/bookings/:id/cancel. The body is optional.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req cancelRequest
	if c.Request.ContentLength > 0 && !bindOrAbort(c, &req) {
		return
	}
	view, err := h.Service.CancelBooking(c.Request.Context(), actor, c.Param("id"), strings.TrimSpace(req.Reason))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// AcceptBooking handles POST /api/bookings/:id/accept.
func (h *BookingHandler) AcceptBooking(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	view, err := h.Service.AcceptBooking(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// StartService handles POST /api/bookings/:id/start.
func (h *BookingHandler) StartService(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	view, err := h.Service.StartService(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RequestCompletionPayment handles POST /api/bookings/:id/payments/final.
func (h *BookingHandler) RequestCompletionPayment(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req completionRequest
	if !bindOrAbort(c, &req) {
		return
	}
	view, err := h.Service.RequestCompletionPayment(c.Request.Context(), actor, c.Param("id"), req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"paymentOrderRef": view.FinalPayment.OrderRef,
		"booking":         view,
	})
}

// VerifyFinalPayment handles POST /api/bookings/:id/payments/final/verify.
func (h *BookingHandler) VerifyFinalPayment(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var cb models.PaymentCallback
	if !bindOrAbort(c, &cb) {
		return
	}
	view, err := h.Service.VerifyFinalPayment(c.Request.Context(), actor, c.Param("id"), cb)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RateBooking handles POST /api/bookings/:id/rating.
func (h *BookingHandler) RateBooking(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req ratingRequest
	if !bindOrAbort(c, &req) {
		return
	}
	view, err := h.Service.RateBooking(c.Request.Context(), actor, c.Param("id"), req.Rating, req.Feedback)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RequestRefund handles POST /api/bookings/:id/refund. An omitted amount refunds everything captured.
func (h *BookingHandler) RequestRefund(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req refundRequest
	if !bindOrAbort(c, &req) {
		return
	}
	view, err := h.Service.RequestRefund(c.Request.Context(), actor, c.Param("id"), req.Amount, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, view)
}

// GetBooking handles GET /api/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	view, err := h.Service.GetBooking(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListBookings handles GET /api/bookings?customerId=&providerId=&status=&limit=.
// status may repeat or be comma separated.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var query struct {
		CustomerID string   `form:"customerId"`
		ProviderID string   `form:"providerId"`
		Status     []string `form:"status"`
		Limit      int      `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query", err.Error())
		return
	}
	filter := models.BookingFilter{
		CustomerID: query.CustomerID,
		ProviderID: query.ProviderID,
		Limit:      query.Limit,
	}
	for _, raw := range query.Status {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				filter.Statuses = append(filter.Statuses, models.BookingStatus(s))
			}
		}
	}

	views, err := h.Service.ListBookings(c.Request.Context(), actor, filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": views, "count": len(views)})
}

// History handles GET /api/bookings/:id/history.
func (h *BookingHandler) History(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	events, err := h.Service.History(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
