package booking

import (
	"time"

	"confbooking/internal/domain"
)

// Candidate is a proposed occupancy of a room checked against existing reservations.
type Candidate struct {
	RoomID           int64
	StartDate        string
	EndDate          string
	StartTime        string
	EndTime          string
	ExcludeBookingID int64
}

// ConflictResult is the outcome of a conflict check.
type ConflictResult struct {
	HasConflict              bool                `json:"has_conflict"`
	ConflictingBookingID     int64               `json:"conflicting_booking_id,omitempty"`
	ConflictingBookingNumber string              `json:"conflicting_booking_number,omitempty"`
	ConflictingEventName     string              `json:"conflicting_event_name,omitempty"`
	ConflictingBooking       *domain.Reservation `json:"-"`
}

// CandidateFor builds the conflict candidate of an existing reservation, excluding itself.
func CandidateFor(r *domain.Reservation) Candidate {
	return Candidate{
		RoomID:           r.RoomID,
		StartDate:        r.StartDate,
		EndDate:          r.EndDate,
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		ExcludeBookingID: r.ID,
	}
}

// CheckConflict reports the first confirmed reservation in existing that
// overlaps candidate. Only reservations of the candidate's room count.
// Dates are inclusive; when the shared span is a single day the daily time
// ranges must strictly overlap, when it is longer the bookings conflict
// regardless of time. Dates and times must already be normalized
// (YYYY-MM-DD, HH:MM:SS) so they compare lexically.
func CheckConflict(candidate Candidate, existing []domain.Reservation) ConflictResult {
	for i := range existing {
		r := &existing[i]
		if r.Status != domain.BookingConfirmed || r.RoomID != candidate.RoomID {
			continue
		}
		if candidate.ExcludeBookingID != 0 && r.ID == candidate.ExcludeBookingID {
			continue
		}
		if !overlaps(candidate, r) {
			continue
		}
		return ConflictResult{
			HasConflict:              true,
			ConflictingBookingID:     r.ID,
			ConflictingBookingNumber: r.BookingNumber,
			ConflictingEventName:     r.EventName,
			ConflictingBooking:       r,
		}
	}
	return ConflictResult{}
}

func overlaps(c Candidate, r *domain.Reservation) bool {
	if c.EndDate < r.StartDate || c.StartDate > r.EndDate {
		return false
	}

	sharedStart := maxString(c.StartDate, r.StartDate)
	sharedEnd := minString(c.EndDate, r.EndDate)
	if sharedStart != sharedEnd {
		return true
	}

	return c.StartTime < r.EndTime && c.EndTime > r.StartTime
}

func maxString(a, b string) string {
	if a > b {
		return a
	}
	return b
}

func minString(a, b string) string {
	if a < b {
		return a
	}
	return b
}

// spanDays counts the calendar days of an inclusive date range.
func spanDays(startDate, endDate string) (int, error) {
	start, err := time.Parse(domain.DateLayout, startDate)
	if err != nil {
		return 0, err
	}
	end, err := time.Parse(domain.DateLayout, endDate)
	if err != nil {
		return 0, err
	}
	return int(end.Sub(start).Hours()/24) + 1, nil
}
