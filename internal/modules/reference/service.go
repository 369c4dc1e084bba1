package reference

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"confbooking/internal/domain"
	"confbooking/internal/pkg/logger"
	"confbooking/internal/pkg/validator"
	"confbooking/internal/repository"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
)

// ValidationError carries field -> rule failures. It matches ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "validation error" }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Resolver finds clients and event types, creating them when missing.
// Callers always learn whether a record was created.
type Resolver struct {
	refs  ReferenceRepository
	rooms RoomRepository
	log   *slog.Logger
}

func NewResolver(refs ReferenceRepository, rooms RoomRepository) *Resolver {
	return &Resolver{
		refs:  refs,
		rooms: rooms,
		log:   logger.WithService("reference"),
	}
}

// ResolveClient matches by email when one is given, otherwise by
// case-insensitive name among clients without an email.
func (r *Resolver) ResolveClient(ctx context.Context, in ClientInput) (*domain.Client, bool, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if errs := validator.Validate(in); errs != nil {
		return nil, false, &ValidationError{Fields: errs}
	}

	find := func() (*domain.Client, error) {
		if in.Email != "" {
			return r.refs.FindClientByEmail(ctx, in.Email)
		}
		return r.refs.FindClientByName(ctx, in.Name)
	}

	c, err := find()
	if err == nil {
		return c, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	c = &domain.Client{
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		Organization: in.Organization,
	}
	if err := r.refs.CreateClient(ctx, c); err != nil {
		// Lost a race with a concurrent resolve of the same email.
		if errors.Is(err, repository.ErrDuplicate) {
			existing, ferr := find()
			if ferr == nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}

	r.log.InfoContext(ctx, "client created", "client_id", c.ID)
	return c, true, nil
}

func (r *Resolver) ResolveEventType(ctx context.Context, name string) (*domain.EventType, bool, error) {
	in := EventTypeInput{Name: strings.TrimSpace(name)}
	if errs := validator.Validate(in); errs != nil {
		return nil, false, &ValidationError{Fields: errs}
	}

	et, err := r.refs.FindEventTypeByName(ctx, in.Name)
	if err == nil {
		return et, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	et = &domain.EventType{Name: in.Name}
	if err := r.refs.CreateEventType(ctx, et); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			if existing, ferr := r.refs.FindEventTypeByName(ctx, in.Name); ferr == nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}

	r.log.InfoContext(ctx, "event type created", "event_type_id", et.ID, "name", et.Name)
	return et, true, nil
}

func (r *Resolver) CreateRoom(ctx context.Context, req CreateRoomRequest) (*domain.Room, error) {
	req.Name = strings.TrimSpace(req.Name)
	if errs := validator.Validate(req); errs != nil {
		return nil, &ValidationError{Fields: errs}
	}

	room := &domain.Room{
		Name:        req.Name,
		Code:        strings.TrimSpace(req.Code),
		Floor:       strings.TrimSpace(req.Floor),
		Capacity:    req.Capacity,
		RatePerDay:  req.RatePerDay,
		IsAvailable: req.IsAvailable == nil || *req.IsAvailable,
	}
	if err := r.rooms.Create(ctx, room); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, &ValidationError{Fields: map[string]string{"code": "unique"}}
		}
		return nil, err
	}
	return room, nil
}

func (r *Resolver) GetRoom(ctx context.Context, id int64) (*domain.Room, error) {
	room, err := r.rooms.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return room, err
}

func (r *Resolver) ListRooms(ctx context.Context) ([]domain.Room, error) {
	return r.rooms.List(ctx)
}
