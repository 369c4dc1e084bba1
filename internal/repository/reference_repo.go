package repository

import (
	"context"
	"strings"
	"time"

	"confbooking/internal/domain"

	"gorm.io/gorm"
)

// ReferenceRepository stores the clients and event types bookings point at.
type ReferenceRepository struct {
	db *gorm.DB
}

func NewReferenceRepository(db *gorm.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

type clientModel struct {
	ID           int64     `gorm:"column:id;primaryKey"`
	Name         string    `gorm:"column:name;size:255;not null;index"`
	Email        *string   `gorm:"column:email;size:255;uniqueIndex"`
	Phone        string    `gorm:"column:phone;size:32"`
	Organization string    `gorm:"column:organization;size:255"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (clientModel) TableName() string { return "clients" }

type eventTypeModel struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name;size:120;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (eventTypeModel) TableName() string { return "event_types" }

func toDomainClient(m clientModel) *domain.Client {
	c := &domain.Client{
		ID:           m.ID,
		Name:         m.Name,
		Phone:        m.Phone,
		Organization: m.Organization,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.Email != nil {
		c.Email = *m.Email
	}
	return c
}

func (r *ReferenceRepository) GetClientByID(ctx context.Context, id int64) (*domain.Client, error) {
	var m clientModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, mapReadErr(err)
	}
	return toDomainClient(m), nil
}

func (r *ReferenceRepository) FindClientByEmail(ctx context.Context, email string) (*domain.Client, error) {
	var m clientModel
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&m).Error
	if err != nil {
		return nil, mapReadErr(err)
	}
	return toDomainClient(m), nil
}

// FindClientByName matches case-insensitively among clients without an email.
func (r *ReferenceRepository) FindClientByName(ctx context.Context, name string) (*domain.Client, error) {
	var m clientModel
	err := r.db.WithContext(ctx).
		Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).
		Where("email IS NULL").
		Order("id").
		First(&m).Error
	if err != nil {
		return nil, mapReadErr(err)
	}
	return toDomainClient(m), nil
}

func (r *ReferenceRepository) CreateClient(ctx context.Context, c *domain.Client) error {
	var email *string
	if e := strings.ToLower(strings.TrimSpace(c.Email)); e != "" {
		email = &e
	}
	m := clientModel{
		Name:         strings.TrimSpace(c.Name),
		Email:        email,
		Phone:        c.Phone,
		Organization: c.Organization,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return mapWriteErr(err)
	}
	*c = *toDomainClient(m)
	return nil
}

func (r *ReferenceRepository) GetEventTypeByID(ctx context.Context, id int64) (*domain.EventType, error) {
	var m eventTypeModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, mapReadErr(err)
	}
	return &domain.EventType{ID: m.ID, Name: m.Name, CreatedAt: m.CreatedAt}, nil
}

func (r *ReferenceRepository) FindEventTypeByName(ctx context.Context, name string) (*domain.EventType, error) {
	var m eventTypeModel
	err := r.db.WithContext(ctx).Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).First(&m).Error
	if err != nil {
		return nil, mapReadErr(err)
	}
	return &domain.EventType{ID: m.ID, Name: m.Name, CreatedAt: m.CreatedAt}, nil
}

func (r *ReferenceRepository) CreateEventType(ctx context.Context, et *domain.EventType) error {
	m := eventTypeModel{Name: strings.TrimSpace(et.Name)}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return mapWriteErr(err)
	}
	*et = domain.EventType{ID: m.ID, Name: m.Name, CreatedAt: m.CreatedAt}
	return nil
}

// Models lists every table owned by this package, in migration order.
func Models() []any {
	return []any{
		&roomModel{},
		&clientModel{},
		&eventTypeModel{},
		&bookingModel{},
		&auditModel{},
	}
}
