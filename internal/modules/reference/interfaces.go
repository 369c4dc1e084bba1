package reference

import (
	"context"

	"confbooking/internal/domain"
)

type ReferenceRepository interface {
	FindClientByEmail(ctx context.Context, email string) (*domain.Client, error)
	FindClientByName(ctx context.Context, name string) (*domain.Client, error)
	CreateClient(ctx context.Context, c *domain.Client) error
	FindEventTypeByName(ctx context.Context, name string) (*domain.EventType, error)
	CreateEventType(ctx context.Context, et *domain.EventType) error
}

type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id int64) (*domain.Room, error)
	List(ctx context.Context) ([]domain.Room, error)
}
