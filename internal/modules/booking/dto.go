package booking

import "confbooking/internal/domain"

type LineItemInput struct {
	Kind        domain.LineItemKind `json:"kind" validate:"omitempty,oneof=room addon service"`
	Description string              `json:"description" validate:"required,max=255"`
	Quantity    float64             `json:"quantity" validate:"gt=0"`
	Rate        float64             `json:"rate" validate:"gte=0"`
}

type CreateBookingRequest struct {
	RoomID      int64                `json:"room_id" validate:"required,gt=0"`
	ClientID    int64                `json:"client_id" validate:"required,gt=0"`
	EventTypeID int64                `json:"event_type_id" validate:"gte=0"`
	EventName   string               `json:"event_name" validate:"required,max=255"`
	StartDate   string               `json:"start_date" validate:"required,isodate"`
	EndDate     string               `json:"end_date" validate:"required,isodate"`
	StartTime   string               `json:"start_time" validate:"required,clock"`
	EndTime     string               `json:"end_time" validate:"required,clock"`
	Status      domain.BookingStatus `json:"status" validate:"omitempty,oneof=tentative confirmed"`
	Attendees   int                  `json:"attendees" validate:"gte=0"`
	Notes       string               `json:"notes"`

	// Room rental is derived from the room; these are the add-ons and services.
	LineItems      []LineItemInput `json:"line_items" validate:"omitempty,dive"`
	DiscountAmount float64         `json:"discount_amount" validate:"gte=0"`

	// Client-side totals are accepted but always recomputed.
	TotalAmount *float64 `json:"total_amount,omitempty"`
	FinalAmount *float64 `json:"final_amount,omitempty"`
}

// UpdateBookingRequest patches a booking. Nil fields are left unchanged;
// a non-nil empty LineItems clears the add-ons.
type UpdateBookingRequest struct {
	RoomID             *int64               `json:"room_id" validate:"omitempty,gt=0"`
	ClientID           *int64               `json:"client_id" validate:"omitempty,gt=0"`
	EventTypeID        *int64               `json:"event_type_id" validate:"omitempty,gte=0"`
	EventName          *string              `json:"event_name" validate:"omitempty,min=1,max=255"`
	StartDate          *string              `json:"start_date" validate:"omitempty,isodate"`
	EndDate            *string              `json:"end_date" validate:"omitempty,isodate"`
	StartTime          *string              `json:"start_time" validate:"omitempty,clock"`
	EndTime            *string              `json:"end_time" validate:"omitempty,clock"`
	Status             *domain.BookingStatus `json:"status" validate:"omitempty,oneof=tentative confirmed cancelled completed"`
	Attendees          *int                 `json:"attendees" validate:"omitempty,gte=0"`
	Notes              *string              `json:"notes"`
	LineItems          []LineItemInput      `json:"line_items" validate:"omitempty,dive"`
	DiscountAmount     *float64             `json:"discount_amount" validate:"omitempty,gte=0"`
	CancellationReason *string              `json:"cancellation_reason"`
}

type CancelBookingRequest struct {
	Reason string `json:"cancellation_reason" validate:"required"`
}

type AvailabilityRequest struct {
	RoomID           int64  `json:"room_id" validate:"required,gt=0"`
	StartDate        string `json:"start_date" validate:"required,isodate"`
	EndDate          string `json:"end_date" validate:"required,isodate"`
	StartTime        string `json:"start_time" validate:"required,clock"`
	EndTime          string `json:"end_time" validate:"required,clock"`
	ExcludeBookingID int64  `json:"exclude_booking_id" validate:"gte=0"`
}

type QuoteRequest struct {
	LineItems      []LineItemInput `json:"line_items" validate:"omitempty,dive"`
	DiscountAmount float64         `json:"discount_amount" validate:"gte=0"`
}

type QuoteResult struct {
	LineItems []domain.LineItem `json:"line_items"`
	Totals
}

type ListQuery struct {
	RoomID   int64
	ClientID int64
	Status   domain.BookingStatus
	FromDate string
	ToDate   string
	Limit    int
	Offset   int
}

func toLineItems(in []LineItemInput) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(in))
	for _, it := range in {
		out = append(out, domain.LineItem{
			Kind:        it.Kind,
			Description: it.Description,
			Quantity:    it.Quantity,
			Rate:        it.Rate,
		})
	}
	return out
}
