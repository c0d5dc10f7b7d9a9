package booking

import (
	"errors"
	"fmt"

	"fieldhand/models"
)

// ErrAlreadyAssigned is returned when another provider won the binding race.
var ErrAlreadyAssigned = errors.New("booking already has a provider")

// ValidationError is a malformed request or an out-of-range amount.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// TransitionKind separates rejected triggers from lost version races.
type TransitionKind int

const (
	InvalidTransition TransitionKind = iota
	Conflict
)

func (k TransitionKind) String() string {
	if k == Conflict {
		return "conflict"
	}
	return "invalid_transition"
}

type TransitionError struct {
	Kind    TransitionKind
	Trigger Trigger
	From    models.BookingStatus
	Message string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s from %s: %s", e.Kind, e.Trigger, e.From, e.Message)
}

func invalid(trigger Trigger, from models.BookingStatus, msg string) error {
	return &TransitionError{Kind: InvalidTransition, Trigger: trigger, From: from, Message: msg}
}

func conflict(trigger Trigger, from models.BookingStatus) error {
	return &TransitionError{Kind: Conflict, Trigger: trigger, From: from, Message: "booking was modified concurrently"}
}

// GatewayError wraps a payment provider failure. Timeout means the outcome is unknown.
type GatewayError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("gateway %s timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// IsConflict reports whether err is a lost optimistic-concurrency race.
func IsConflict(err error) bool {
	var te *TransitionError
	return errors.As(err, &te) && te.Kind == Conflict
}

// IsInvalidTransition reports whether err rejected the trigger outright.
func IsInvalidTransition(err error) bool {
	var te *TransitionError
	return errors.As(err, &te) && te.Kind == InvalidTransition
}

// ErrForbidden is returned when the actor may not see or touch the booking.
var ErrForbidden = errors.New("not allowed to access this booking")
