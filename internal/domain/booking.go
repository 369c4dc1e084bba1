package domain

import "time"

type BookingStatus string

const (
	BookingTentative BookingStatus = "tentative"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// bookingTransitions is the booking state machine. Cancelled and completed are terminal.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingTentative: {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
	BookingCancelled: {},
	BookingCompleted: {},
}

func (s BookingStatus) IsValid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

// CanTransitionTo reports whether s may move to target.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range bookingTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

type LineItemKind string

const (
	LineItemRoom    LineItemKind = "room"
	LineItemAddon   LineItemKind = "addon"
	LineItemService LineItemKind = "service"
)

// LineItem is a priced component of a booking. It has no identity outside its booking.
type LineItem struct {
	Kind        LineItemKind `json:"kind"`
	Description string       `json:"description"`
	Quantity    float64      `json:"quantity"`
	Rate        float64      `json:"rate"`
	Amount      float64      `json:"amount"`
}

// Reservation is a booking of exactly one room for an inclusive date span and a daily time span.
type Reservation struct {
	ID            int64         `json:"id"`
	BookingNumber string        `json:"booking_number"`
	RoomID        int64         `json:"room_id"`
	ClientID      int64         `json:"client_id"`
	EventTypeID   int64         `json:"event_type_id"`
	EventName     string        `json:"event_name"`
	StartDate     string        `json:"start_date"`
	EndDate       string        `json:"end_date"`
	StartTime     string        `json:"start_time"`
	EndTime       string        `json:"end_time"`
	Status        BookingStatus `json:"status"`
	Attendees     int           `json:"attendees"`
	Notes         string        `json:"notes,omitempty"`

	LineItems      []LineItem `json:"line_items"`
	DiscountAmount float64    `json:"discount_amount"`
	TotalAmount    float64    `json:"total_amount"`
	FinalAmount    float64    `json:"final_amount"`

	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	ConfirmedBy        *int64     `json:"confirmed_by,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy        *int64     `json:"cancelled_by,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`

	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version increases on every write; updates only apply to the version they read.
	Version int64 `json:"version"`
}

// EndsAt returns the moment the booking's last day ends in loc.
func (r *Reservation) EndsAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+TimeLayout, r.EndDate+" "+r.EndTime, loc)
}

// HasEnded reports whether the booking's end date/time is strictly before now.
func (r *Reservation) HasEnded(now time.Time) bool {
	end, err := r.EndsAt(now.Location())
	if err != nil {
		return false
	}
	return end.Before(now)
}
