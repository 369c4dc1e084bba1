package repository

import (
	"context"
	"errors"
	"time"

	"confbooking/internal/domain"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConflictGuard inspects the confirmed reservations of a room inside the write
// transaction and returns an error to abort the write.
type ConflictGuard func(existing []domain.Reservation) error

type BookingFilter struct {
	RoomID   int64
	ClientID int64
	Status   domain.BookingStatus
	FromDate string
	ToDate   string
	Limit    int
	Offset   int
}

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

type bookingModel struct {
	ID                 int64                               `gorm:"column:id;primaryKey"`
	BookingNumber      string                              `gorm:"column:booking_number;size:32;uniqueIndex"`
	RoomID             int64                               `gorm:"column:room_id;not null;index:idx_bookings_room_span,priority:1"`
	ClientID           int64                               `gorm:"column:client_id;index"`
	EventTypeID        int64                               `gorm:"column:event_type_id"`
	EventName          string                              `gorm:"column:event_name;size:255"`
	StartDate          string                              `gorm:"column:start_date;size:10;not null;index:idx_bookings_room_span,priority:2"`
	EndDate            string                              `gorm:"column:end_date;size:10;not null;index:idx_bookings_room_span,priority:3"`
	StartTime          string                              `gorm:"column:start_time;size:8;not null"`
	EndTime            string                              `gorm:"column:end_time;size:8;not null"`
	Status             string                              `gorm:"column:status;size:16;not null;index"`
	Attendees          int                                 `gorm:"column:attendees"`
	Notes              *string                             `gorm:"column:notes;type:text"`
	LineItems          datatypes.JSONSlice[domain.LineItem] `gorm:"column:line_items"`
	DiscountAmount     float64                             `gorm:"column:discount_amount"`
	TotalAmount        float64                             `gorm:"column:total_amount"`
	FinalAmount        float64                             `gorm:"column:final_amount"`
	ConfirmedAt        *time.Time                          `gorm:"column:confirmed_at"`
	ConfirmedBy        *int64                              `gorm:"column:confirmed_by"`
	CancelledAt        *time.Time                          `gorm:"column:cancelled_at"`
	CancelledBy        *int64                              `gorm:"column:cancelled_by"`
	CancellationReason *string                             `gorm:"column:cancellation_reason;type:text"`
	CompletedAt        *time.Time                          `gorm:"column:completed_at"`
	CreatedBy          int64                               `gorm:"column:created_by"`
	CreatedAt          time.Time                           `gorm:"column:created_at"`
	UpdatedAt          time.Time                           `gorm:"column:updated_at;autoUpdateTime:false"`
	Version            int64                               `gorm:"column:version;not null;default:0"`
}

func (bookingModel) TableName() string { return "bookings" }

func toDomainBooking(m bookingModel) *domain.Reservation {
	r := &domain.Reservation{
		ID:             m.ID,
		BookingNumber:  m.BookingNumber,
		RoomID:         m.RoomID,
		ClientID:       m.ClientID,
		EventTypeID:    m.EventTypeID,
		EventName:      m.EventName,
		StartDate:      m.StartDate,
		EndDate:        m.EndDate,
		StartTime:      m.StartTime,
		EndTime:        m.EndTime,
		Status:         domain.BookingStatus(m.Status),
		Attendees:      m.Attendees,
		LineItems:      []domain.LineItem(m.LineItems),
		DiscountAmount: m.DiscountAmount,
		TotalAmount:    m.TotalAmount,
		FinalAmount:    m.FinalAmount,
		ConfirmedAt:    m.ConfirmedAt,
		ConfirmedBy:    m.ConfirmedBy,
		CancelledAt:    m.CancelledAt,
		CancelledBy:    m.CancelledBy,
		CompletedAt:    m.CompletedAt,
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		Version:        m.Version,
	}
	if m.Notes != nil {
		r.Notes = *m.Notes
	}
	if m.CancellationReason != nil {
		r.CancellationReason = *m.CancellationReason
	}
	if r.LineItems == nil {
		r.LineItems = []domain.LineItem{}
	}
	return r
}

func toBookingModel(r *domain.Reservation) bookingModel {
	return bookingModel{
		ID:                 r.ID,
		BookingNumber:      r.BookingNumber,
		RoomID:             r.RoomID,
		ClientID:           r.ClientID,
		EventTypeID:        r.EventTypeID,
		EventName:          r.EventName,
		StartDate:          r.StartDate,
		EndDate:            r.EndDate,
		StartTime:          r.StartTime,
		EndTime:            r.EndTime,
		Status:             string(r.Status),
		Attendees:          r.Attendees,
		Notes:              optionalString(r.Notes),
		LineItems:          datatypes.NewJSONSlice(r.LineItems),
		DiscountAmount:     r.DiscountAmount,
		TotalAmount:        r.TotalAmount,
		FinalAmount:        r.FinalAmount,
		ConfirmedAt:        r.ConfirmedAt,
		ConfirmedBy:        r.ConfirmedBy,
		CancelledAt:        r.CancelledAt,
		CancelledBy:        r.CancelledBy,
		CancellationReason: optionalString(r.CancellationReason),
		CompletedAt:        r.CompletedAt,
		CreatedBy:          r.CreatedBy,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		Version:            r.Version,
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Create inserts b. With a guard, the room row is locked and the guard sees
// the room's confirmed reservations overlapping b before the insert, so the
// check and the write are atomic with respect to other guarded writers.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Reservation, guard ConflictGuard) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.runGuard(tx, b, guard); err != nil {
			return err
		}

		m := toBookingModel(b)
		if m.CreatedAt.IsZero() {
			m.CreatedAt = tx.NowFunc()
		}
		if m.UpdatedAt.IsZero() {
			m.UpdatedAt = m.CreatedAt
		}
		if err := tx.Create(&m).Error; err != nil {
			return mapWriteErr(err)
		}
		*b = *toDomainBooking(m)
		return nil
	})
}

// Update writes every column of b, provided the stored row still carries
// b.Version. A row that changed since it was read yields ErrStale and is left
// untouched. The guard behaves as in Create.
func (r *BookingRepository) Update(ctx context.Context, b *domain.Reservation, guard ConflictGuard) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.runGuard(tx, b, guard); err != nil {
			return err
		}

		m := toBookingModel(b)
		m.Version = b.Version + 1
		if m.UpdatedAt.IsZero() {
			m.UpdatedAt = tx.NowFunc()
		}
		res := tx.Model(&bookingModel{ID: b.ID}).
			Where("version = ?", b.Version).
			Select("*").Omit("id", "created_at").
			Updates(&m)
		if res.Error != nil {
			return mapWriteErr(res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&bookingModel{}).Where("id = ?", b.ID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrStale
		}

		var fresh bookingModel
		if err := tx.First(&fresh, b.ID).Error; err != nil {
			return mapReadErr(err)
		}
		*b = *toDomainBooking(fresh)
		return nil
	})
}

func (r *BookingRepository) runGuard(tx *gorm.DB, b *domain.Reservation, guard ConflictGuard) error {
	if guard == nil {
		return nil
	}
	if err := lockRoom(tx, b.RoomID); err != nil {
		return err
	}
	existing, err := confirmedForRoom(tx, b.RoomID, b.StartDate, b.EndDate)
	if err != nil {
		return err
	}
	return guard(existing)
}

// lockRoom takes a row lock on the room so guarded writes to one room run one at a time.
// SQLite has no row locks; its single writer already serialises transactions.
func lockRoom(tx *gorm.DB, roomID int64) error {
	q := tx.Model(&roomModel{}).Select("id").Where("id = ?", roomID)
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var room roomModel
	if err := q.First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoomNotFound
		}
		return err
	}
	return nil
}

func confirmedForRoom(db *gorm.DB, roomID int64, fromDate, toDate string) ([]domain.Reservation, error) {
	var rows []bookingModel
	err := db.
		Where("room_id = ?", roomID).
		Where("status = ?", string(domain.BookingConfirmed)).
		Where("start_date <= ? AND end_date >= ?", toDate, fromDate).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainBookings(rows), nil
}

// ListConfirmedForRoom returns the confirmed reservations of a room whose date span
// intersects [fromDate, toDate], oldest first.
func (r *BookingRepository) ListConfirmedForRoom(ctx context.Context, roomID int64, fromDate, toDate string) ([]domain.Reservation, error) {
	return confirmedForRoom(r.db.WithContext(ctx), roomID, fromDate, toDate)
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	var m bookingModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, mapReadErr(err)
	}
	return toDomainBooking(m), nil
}

func (r *BookingRepository) List(ctx context.Context, f BookingFilter) ([]domain.Reservation, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := r.db.WithContext(ctx).Model(&bookingModel{})
	if f.RoomID != 0 {
		q = q.Where("room_id = ?", f.RoomID)
	}
	if f.ClientID != 0 {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.FromDate != "" {
		q = q.Where("end_date >= ?", f.FromDate)
	}
	if f.ToDate != "" {
		q = q.Where("start_date <= ?", f.ToDate)
	}

	var rows []bookingModel
	if err := q.Order("start_date, start_time, id").Limit(f.Limit).Offset(f.Offset).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainBookings(rows), nil
}

// ListExpiredConfirmed returns confirmed reservations whose end is strictly before date+clock.
func (r *BookingRepository) ListExpiredConfirmed(ctx context.Context, date, clock string) ([]domain.Reservation, error) {
	var rows []bookingModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(domain.BookingConfirmed)).
		Where("end_date < ? OR (end_date = ? AND end_time < ?)", date, date, clock).
		Order("end_date, end_time, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainBookings(rows), nil
}

// MarkCompleted flips a confirmed reservation to completed. It reports false
// when the row was not confirmed, which makes repeated calls harmless.
func (r *BookingRepository) MarkCompleted(ctx context.Context, id int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&bookingModel{}).
		Where("id = ? AND status = ?", id, string(domain.BookingConfirmed)).
		Updates(map[string]any{
			"status":       string(domain.BookingCompleted),
			"completed_at": at,
			"updated_at":   at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func toDomainBookings(rows []bookingModel) []domain.Reservation {
	out := make([]domain.Reservation, 0, len(rows))
	for _, m := range rows {
		out = append(out, *toDomainBooking(m))
	}
	return out
}
