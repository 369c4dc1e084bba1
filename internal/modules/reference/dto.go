package reference

type ClientInput struct {
	Name         string `json:"name" validate:"required,max=255"`
	Email        string `json:"email" validate:"omitempty,email,max=255"`
	Phone        string `json:"phone" validate:"max=32"`
	Organization string `json:"organization" validate:"max=255"`
}

type EventTypeInput struct {
	Name string `json:"name" validate:"required,max=120"`
}

type CreateRoomRequest struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Code        string  `json:"code" validate:"max=32"`
	Floor       string  `json:"floor" validate:"max=32"`
	Capacity    int     `json:"capacity" validate:"required,gt=0"`
	RatePerDay  float64 `json:"rate_per_day" validate:"gte=0"`
	IsAvailable *bool   `json:"is_available"`
}
