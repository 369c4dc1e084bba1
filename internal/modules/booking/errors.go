package booking

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation              = errors.New("validation error")
	ErrConflict                = errors.New("booking conflict")
	ErrNotFound                = errors.New("not found")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrRoomBusy                = errors.New("room is being booked by another request")
	ErrStaleBooking            = errors.New("booking was changed by another request")
)

// ValidationError carries field -> rule failures. It matches ErrValidation.
type ValidationError struct {
	Fields  map[string]string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+e.Fields[k])
	}
	return "validation error: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// ConflictError identifies the confirmed booking that blocks a request. It matches ErrConflict.
type ConflictError struct {
	BookingID     int64
	BookingNumber string
	EventName     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("booking conflicts with %s (%s)", e.BookingNumber, e.EventName)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func conflictFrom(res ConflictResult) *ConflictError {
	return &ConflictError{
		BookingID:     res.ConflictingBookingID,
		BookingNumber: res.ConflictingBookingNumber,
		EventName:     res.ConflictingEventName,
	}
}

// NotFoundError matches ErrNotFound.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
