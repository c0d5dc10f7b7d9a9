package handlers

import (
	"errors"
	"net/http"

	"fieldhand/services/booking"
	"fieldhand/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// writeError maps service errors onto the HTTP error contract. Gateway
// details are logged but never returned to the client.
func writeError(c *gin.Context, err error) {
	var (
		ve *booking.ValidationError
		te *booking.TransitionError
		ge *booking.GatewayError
		nf *booking.NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		utils.JSONError(c, http.StatusBadRequest, "VALIDATION_ERROR", ve.Error(), "")
	case errors.As(err, &te) && te.Kind == booking.Conflict:
		utils.JSONError(c, http.StatusConflict, "CONFLICT", "The booking was modified concurrently, please retry", "")
	case errors.As(err, &te):
		utils.JSONError(c, http.StatusConflict, "INVALID_TRANSITION", "cannot perform this action", te.Message)
	case errors.Is(err, booking.ErrAlreadyAssigned):
		utils.JSONError(c, http.StatusConflict, "ALREADY_ASSIGNED", "Booking already has a provider", "")
	case errors.As(err, &ge):
		utils.LoggerFromContext(c).Error("Payment gateway error", zap.String("op", ge.Op), zap.Bool("timeout", ge.Timeout), zap.Error(ge.Err))
		if ge.Timeout {
			utils.JSONError(c, http.StatusGatewayTimeout, "GATEWAY_TIMEOUT", "Payment provider did not respond in time", "")
			return
		}
		utils.JSONError(c, http.StatusBadGateway, "GATEWAY_ERROR", "Payment provider error", "")
	case errors.As(err, &nf):
		utils.JSONError(c, http.StatusNotFound, "NOT_FOUND", nf.Error(), "")
	case errors.Is(err, booking.ErrForbidden):
		utils.JSONError(c, http.StatusForbidden, "FORBIDDEN", "Not allowed to access this booking", "")
	default:
		utils.LoggerFromContext(c).Error("Unhandled booking error", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "INTERNAL", "Internal Server Error", "")
	}
}
