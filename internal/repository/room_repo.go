package repository

import (
	"context"
	"time"

	"confbooking/internal/domain"

	"gorm.io/gorm"
)

type RoomRepository struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

type roomModel struct {
	ID          int64     `gorm:"column:id;primaryKey"`
	Name        string    `gorm:"column:name;size:120;not null"`
	Code        *string   `gorm:"column:code;size:32;uniqueIndex"`
	Floor       string    `gorm:"column:floor;size:16"`
	Capacity    int       `gorm:"column:capacity;not null"`
	RatePerDay  float64   `gorm:"column:rate_per_day;not null"`
	IsAvailable bool      `gorm:"column:is_available;not null"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (roomModel) TableName() string { return "rooms" }

func toDomainRoom(m roomModel) *domain.Room {
	room := &domain.Room{
		ID:          m.ID,
		Name:        m.Name,
		Floor:       m.Floor,
		Capacity:    m.Capacity,
		RatePerDay:  m.RatePerDay,
		IsAvailable: m.IsAvailable,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.Code != nil {
		room.Code = *m.Code
	}
	return room
}

// Create inserts room. Codes are unique when set; ErrDuplicate reports a clash.
func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	m := roomModel{
		Name:        room.Name,
		Code:        optionalString(room.Code),
		Floor:       room.Floor,
		Capacity:    room.Capacity,
		RatePerDay:  room.RatePerDay,
		IsAvailable: room.IsAvailable,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return mapWriteErr(err)
	}
	*room = *toDomainRoom(m)
	return nil
}

func (r *RoomRepository) GetByID(ctx context.Context, id int64) (*domain.Room, error) {
	var m roomModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, mapReadErr(err)
	}
	return toDomainRoom(m), nil
}

func (r *RoomRepository) List(ctx context.Context) ([]domain.Room, error) {
	var rows []roomModel
	if err := r.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Room, 0, len(rows))
	for _, m := range rows {
		out = append(out, *toDomainRoom(m))
	}
	return out, nil
}
