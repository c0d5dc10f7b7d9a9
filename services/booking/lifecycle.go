package booking

import "fieldhand/models"

// Trigger names an event that may move a booking along its lifecycle.
type Trigger string

const (
	TriggerCreate                     Trigger = "create"
	TriggerInitialPaymentVerified     Trigger = "initial-payment-verified"
	TriggerPaymentWindowElapsed       Trigger = "payment-window-elapsed"
	TriggerCustomerCancel             Trigger = "customer-cancel"
	TriggerProviderAssigned           Trigger = "provider-assigned"
	TriggerProviderStart              Trigger = "provider-start"
	TriggerCompletionPaymentRequested Trigger = "completion-payment-requested"
	TriggerFinalPaymentVerified       Trigger = "final-payment-verified"
	TriggerRefundApproved             Trigger = "refund-approved"

	// Bookkeeping triggers that never change status.
	TriggerRate             Trigger = "rate"
	TriggerRefundRequested  Trigger = "refund-requested"
	TriggerRefundProcessing Trigger = "refund-processing"
	TriggerRefundFailed     Trigger = "refund-failed"
	// TriggerLatePaymentCaptured records an initial payment that arrived
	// after the booking was cancelled and queues its refund.
	TriggerLatePaymentCaptured Trigger = "late-payment-captured"
)

// edges is the complete transition table. A trigger not listed for the
// current status is an invalid transition.
var edges = map[Trigger]map[models.BookingStatus]models.BookingStatus{
	TriggerInitialPaymentVerified: {
		models.StatusPending: models.StatusConfirmed,
	},
	TriggerPaymentWindowElapsed: {
		models.StatusPending: models.StatusCancelled,
	},
	TriggerCustomerCancel: {
		models.StatusPending:   models.StatusCancelled,
		models.StatusConfirmed: models.StatusCancelled,
		models.StatusStarted:   models.StatusCancelled,
	},
	TriggerProviderAssigned: {
		models.StatusConfirmed: models.StatusConfirmed,
	},
	TriggerProviderStart: {
		models.StatusConfirmed: models.StatusStarted,
	},
	TriggerCompletionPaymentRequested: {
		models.StatusStarted: models.StatusStarted,
	},
	TriggerFinalPaymentVerified: {
		models.StatusStarted: models.StatusCompleted,
	},
	TriggerRefundApproved: {
		models.StatusCompleted: models.StatusRefunded,
		models.StatusCancelled: models.StatusRefunded,
	},
	TriggerRate: {
		models.StatusCompleted: models.StatusCompleted,
	},
	TriggerRefundRequested: {
		models.StatusCompleted: models.StatusCompleted,
		models.StatusCancelled: models.StatusCancelled,
	},
	TriggerRefundProcessing: {
		models.StatusCompleted: models.StatusCompleted,
		models.StatusCancelled: models.StatusCancelled,
	},
	TriggerRefundFailed: {
		models.StatusCompleted: models.StatusCompleted,
		models.StatusCancelled: models.StatusCancelled,
	},
	TriggerLatePaymentCaptured: {
		models.StatusCancelled: models.StatusCancelled,
	},
}

// NextStatus returns the status trigger leads to from status.
func NextStatus(from models.BookingStatus, trigger Trigger) (models.BookingStatus, bool) {
	to, ok := edges[trigger][from]
	return to, ok
}

// IsKnown reports whether t can be passed to Apply.
func (t Trigger) IsKnown() bool {
	_, ok := edges[t]
	return ok
}

// IsTerminal reports statuses after which the provider is released.
func IsTerminal(s models.BookingStatus) bool {
	switch s {
	case models.StatusCompleted, models.StatusCancelled, models.StatusRefunded:
		return true
	}
	return false
}
