package handlers

import "github.com/gin-gonic/gin"

// HandlerBundle groups all endpoint handlers and the auth middleware routes need.
type HandlerBundle struct {
	Booking *BookingHandler
	Webhook *PaymentWebhookHandler

	Auth        gin.HandlerFunc
	RateLimiter gin.HandlerFunc
}
