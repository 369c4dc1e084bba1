package booking

import (
	"context"
	"time"

	"confbooking/internal/domain"
	"confbooking/internal/modules/audit"
	"confbooking/internal/repository"
)

// BookingRepository is the reservation store. Create and Update run the
// guard atomically with the write.
type BookingRepository interface {
	Create(ctx context.Context, b *domain.Reservation, guard repository.ConflictGuard) error
	Update(ctx context.Context, b *domain.Reservation, guard repository.ConflictGuard) error
	GetByID(ctx context.Context, id int64) (*domain.Reservation, error)
	List(ctx context.Context, f repository.BookingFilter) ([]domain.Reservation, error)
	ListConfirmedForRoom(ctx context.Context, roomID int64, fromDate, toDate string) ([]domain.Reservation, error)
	ListExpiredConfirmed(ctx context.Context, date, clock string) ([]domain.Reservation, error)
	MarkCompleted(ctx context.Context, id int64, at time.Time) (bool, error)
}

type RoomRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Room, error)
}

// ReferenceRepository resolves the client and event type a booking points at.
type ReferenceRepository interface {
	GetClientByID(ctx context.Context, id int64) (*domain.Client, error)
	GetEventTypeByID(ctx context.Context, id int64) (*domain.EventType, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, e audit.Entry)
}

type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, event string, b *domain.Reservation) error
}

// RoomLocker serialises confirmations of one room across processes.
type RoomLocker interface {
	Lock(ctx context.Context, roomID int64) (unlock func(), err error)
}

type noopLocker struct{}

func (noopLocker) Lock(context.Context, int64) (func(), error) { return func() {}, nil }
