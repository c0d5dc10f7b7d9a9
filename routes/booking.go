package routes

import (
	"fieldhand/handlers"
	"fieldhand/middleware"
	"fieldhand/models"

	"github.com/gin-gonic/gin"
)

// RegisterBookingRoutes registers all booking lifecycle endpoints.
func RegisterBookingRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	customer := middleware.RequireRole(models.ActorCustomer)
	provider := middleware.RequireRole(models.ActorProvider)
	admin := middleware.RequireRole(models.ActorAdmin)

	api := r.Group("/api/bookings")
	{
		api.Use(hb.Auth)
		api.POST("", customer, hb.Booking.CreateBooking)
		api.GET("", hb.Booking.ListBookings)
		api.GET("/:id", hb.Booking.GetBooking)
		api.GET("/:id/history", hb.Booking.History)

		api.POST("/:id/payments/initial/verify", customer, hb.Booking.VerifyInitialPayment)
		api.POST("/:id/cancel", customer, hb.Booking.CancelBooking)
		api.POST("/:id/payments/final/verify", customer, hb.Booking.VerifyFinalPayment)
		api.POST("/:id/rating", customer, hb.Booking.RateBooking)

		api.POST("/:id/accept", provider, hb.Booking.AcceptBooking)
		api.POST("/:id/start", provider, hb.Booking.StartService)
		api.POST("/:id/payments/final", provider, hb.Booking.RequestCompletionPayment)

		api.POST("/:id/refund", admin, hb.Booking.RequestRefund)
	}
}

// RegisterPaymentRoutes registers the gateway webhook. It is authenticated by signature, not JWT.
func RegisterPaymentRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.POST("/api/payments/webhook", hb.Webhook.HandleWebhook)
}
