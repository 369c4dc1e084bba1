package booking

import (
	"fmt"
	"math"
	"strings"

	"confbooking/internal/domain"
)

type Totals struct {
	TotalAmount float64 `json:"total_amount"`
	FinalAmount float64 `json:"final_amount"`
}

// ComputeTotals sums quantity*rate over items and applies discount, never
// going below zero. Client-supplied amounts and totals are ignored.
func ComputeTotals(items []domain.LineItem, discount float64) (Totals, error) {
	if discount < 0 {
		return Totals{}, &ValidationError{Fields: map[string]string{"discount_amount": "gte"}}
	}

	var total float64
	for i, it := range items {
		field := fmt.Sprintf("line_items[%d]", i)
		switch {
		case strings.TrimSpace(it.Description) == "":
			return Totals{}, &ValidationError{Fields: map[string]string{field + ".description": "required"}}
		case it.Quantity <= 0:
			return Totals{}, &ValidationError{Fields: map[string]string{field + ".quantity": "gt"}}
		case it.Rate < 0:
			return Totals{}, &ValidationError{Fields: map[string]string{field + ".rate": "gte"}}
		}
		total += round2(it.Quantity * it.Rate)
	}

	total = round2(total)
	return Totals{
		TotalAmount: total,
		FinalAmount: round2(math.Max(0, total-discount)),
	}, nil
}

// priceLineItems returns a copy of items with Amount derived from quantity and rate.
func priceLineItems(items []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, len(items))
	for i, it := range items {
		it.Amount = round2(it.Quantity * it.Rate)
		out[i] = it
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// roomRentalItem prices the room for every calendar day of the booking.
func roomRentalItem(room *domain.Room, startDate, endDate string) (domain.LineItem, error) {
	days, err := spanDays(startDate, endDate)
	if err != nil {
		return domain.LineItem{}, err
	}
	return domain.LineItem{
		Kind:        domain.LineItemRoom,
		Description: "Room rental: " + room.Name,
		Quantity:    float64(days),
		Rate:        room.RatePerDay,
	}, nil
}

// withRoomRental replaces any room lines in items with the one derived from the room.
func withRoomRental(items []domain.LineItem, rental domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(items)+1)
	out = append(out, rental)
	for _, it := range items {
		if it.Kind == domain.LineItemRoom {
			continue
		}
		if it.Kind == "" {
			it.Kind = domain.LineItemAddon
		}
		out = append(out, it)
	}
	return out
}
