package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/lifecycle"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrSlotTaken           = errors.New("slot is already taken")
	ErrInvalidState        = errors.New("appointment is not in a state that allows this")
	ErrProviderUnavailable = errors.New("provider is not accepting bookings")
	ErrReasonRequired      = errors.New("cancellation reason is required")
	ErrInvalidFilter       = errors.New("invalid filter")
	// ErrTransactionFailed wraps every storage or infrastructure failure.
	ErrTransactionFailed = errors.New("transaction failed")
)

var domainErrors = []error{
	ErrNotFound, ErrForbidden, ErrSlotTaken, ErrInvalidState,
	ErrProviderUnavailable, ErrReasonRequired, ErrInvalidFilter,
}

// classify turns an error out of a store transaction into one of the
// package errors. Validation errors pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if availability.IsValidationError(err) {
		return err
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	switch {
	case errors.Is(err, storage.ErrStale), errors.Is(err, lifecycle.ErrIllegalTransition):
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	default:
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
}

// outcome is the metrics label for a booking result.
func outcome(err error) string {
	switch {
	case err == nil:
		return "booked"
	case availability.IsValidationError(err):
		return "invalid"
	case errors.Is(err, ErrSlotTaken):
		return "slot_taken"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrProviderUnavailable), errors.Is(err, ErrForbidden):
		return "rejected"
	default:
		return "error"
	}
}
