package handlers

import (
	"errors"
	"io"
	"net/http"

	"fieldhand/services/booking"
	"fieldhand/services/payment"
	"fieldhand/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 64 << 10

// PaymentWebhookHandler ingests signed gateway webhooks.
type PaymentWebhookHandler struct {
	Parser  payment.WebhookParser
	Service booking.BookingService
	Header  string
}

// NewPaymentWebhookHandler reads the signature from header ("Stripe-Signature" for Stripe).
func NewPaymentWebhookHandler(parser payment.WebhookParser, svc booking.BookingService, header string) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{Parser: parser, Service: svc, Header: header}
}

// HandleWebhook handles POST /api/payments/webhook. Anything other than a
// transient failure is acknowledged so the gateway stops redelivering.
func (h *PaymentWebhookHandler) HandleWebhook(c *gin.Context) {
	logger := utils.LoggerFromContext(c)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unreadable webhook body", err.Error())
		return
	}

	ev, err := h.Parser.ParseWebhook(body, c.GetHeader(h.Header))
	if err != nil {
		logger.Warn("Rejected payment webhook", zap.Error(err))
		utils.JSONError(c, http.StatusBadRequest, "INVALID_SIGNATURE", "Webhook could not be verified", "")
		return
	}

	err = h.Service.HandlePaymentEvent(c.Request.Context(), ev)
	var ve *booking.ValidationError
	var nf *booking.NotFoundError
	switch {
	case err == nil:
	case errors.As(err, &ve), errors.As(err, &nf):
		logger.Warn("Ignoring payment webhook", zap.String("type", ev.Type), zap.String("bookingID", ev.BookingID), zap.Error(err))
	default:
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
