package domain

import "time"

type Room struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name" validate:"required"`
	Code        string    `json:"code,omitempty"`
	Floor       string    `json:"floor,omitempty"`
	Capacity    int       `json:"capacity" validate:"required,gt=0"`
	RatePerDay  float64   `json:"rate_per_day" validate:"gte=0"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
