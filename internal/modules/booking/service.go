package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"confbooking/internal/domain"
	"confbooking/internal/modules/audit"
	"confbooking/internal/pkg/logger"
	"confbooking/internal/pkg/validator"
	"confbooking/internal/repository"

	"github.com/google/uuid"
)

const (
	resourceBooking = "booking"

	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
	EventBookingCompleted = "booking.completed"

	bookingNumberAttempts = 3
)

type Service struct {
	bookings BookingRepository
	rooms    RoomRepository
	refs     ReferenceRepository
	audit    AuditRecorder
	events   EventPublisher
	locker   RoomLocker
	log      *slog.Logger
	now      func() time.Time
	loc      *time.Location
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the zone in which booking dates and times are interpreted.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithEvents(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

func WithLocker(l RoomLocker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

func NewService(
	bookings BookingRepository,
	rooms RoomRepository,
	refs ReferenceRepository,
	recorder AuditRecorder,
	opts ...Option,
) *Service {
	s := &Service{
		bookings: bookings,
		rooms:    rooms,
		refs:     refs,
		audit:    recorder,
		locker:   noopLocker{},
		log:      logger.WithService("booking"),
		now:      time.Now,
		loc:      time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

func (s *Service) Create(ctx context.Context, actor domain.Actor, req CreateBookingRequest) (*domain.Reservation, error) {
	if errs := validator.Validate(req); errs != nil {
		return nil, &ValidationError{Fields: errs}
	}

	span, err := normalizeSpan(req.StartDate, req.EndDate, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = domain.BookingTentative
	}

	if err := s.checkReferences(ctx, req.ClientID, req.EventTypeID); err != nil {
		return nil, err
	}

	room, err := s.room(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	if err := checkRoom(room, req.Attendees); err != nil {
		return nil, err
	}

	items, totals, err := s.price(room, span, toLineItems(req.LineItems), req.DiscountAmount)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	b := &domain.Reservation{
		RoomID:         req.RoomID,
		ClientID:       req.ClientID,
		EventTypeID:    req.EventTypeID,
		EventName:      strings.TrimSpace(req.EventName),
		StartDate:      span.startDate,
		EndDate:        span.endDate,
		StartTime:      span.startTime,
		EndTime:        span.endTime,
		Status:         status,
		Attendees:      req.Attendees,
		Notes:          req.Notes,
		LineItems:      items,
		DiscountAmount: req.DiscountAmount,
		TotalAmount:    totals.TotalAmount,
		FinalAmount:    totals.FinalAmount,
		CreatedBy:      actor.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if status == domain.BookingConfirmed {
		stampConfirmed(b, actor, now)
	}

	for attempt := 1; ; attempt++ {
		b.BookingNumber = newBookingNumber(now)
		err = s.persist(ctx, b, status == domain.BookingConfirmed, s.bookings.Create)
		if errors.Is(err, repository.ErrDuplicate) && attempt < bookingNumberAttempts {
			continue
		}
		break
	}
	if err != nil {
		return nil, mapStoreErr(err, b)
	}

	s.log.InfoContext(ctx, "booking created",
		"booking_id", b.ID, "booking_number", b.BookingNumber, "room_id", b.RoomID, "status", b.Status)

	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionCreate,
		ResourceType: resourceBooking,
		ResourceID:   strconv.FormatInt(b.ID, 10),
		After:        b,
		Actor:        actor,
	})
	if b.Status == domain.BookingConfirmed {
		s.publish(ctx, EventBookingConfirmed, b)
	}
	return b, nil
}

// Update applies a partial change. The conflict check runs whenever the room,
// dates or times change, or the status is set to confirmed.
func (s *Service) Update(ctx context.Context, actor domain.Actor, id int64, req UpdateBookingRequest) (*domain.Reservation, error) {
	if errs := validator.Validate(req); errs != nil {
		return nil, &ValidationError{Fields: errs}
	}

	current, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.materialize(ctx, current)

	if current.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: booking is %s", ErrInvalidStatusTransition, current.Status)
	}

	before := cloneReservation(current)
	next := cloneReservation(current)
	now := s.clock()

	target := current.Status
	if req.Status != nil {
		target = *req.Status
	}
	if target != current.Status {
		if !current.Status.CanTransitionTo(target) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current.Status, target)
		}
	}

	scheduleChanged := false
	if req.RoomID != nil && *req.RoomID != next.RoomID {
		next.RoomID = *req.RoomID
		scheduleChanged = true
	}
	startDate, endDate, startTime, endTime := next.StartDate, next.EndDate, next.StartTime, next.EndTime
	if req.StartDate != nil {
		startDate = *req.StartDate
	}
	if req.EndDate != nil {
		endDate = *req.EndDate
	}
	if req.StartTime != nil {
		startTime = *req.StartTime
	}
	if req.EndTime != nil {
		endTime = *req.EndTime
	}
	span, err := normalizeSpan(startDate, endDate, startTime, endTime)
	if err != nil {
		return nil, err
	}
	datesChanged := span.startDate != next.StartDate || span.endDate != next.EndDate
	if datesChanged || span.startTime != next.StartTime || span.endTime != next.EndTime {
		scheduleChanged = true
	}
	next.StartDate, next.EndDate, next.StartTime, next.EndTime = span.startDate, span.endDate, span.startTime, span.endTime

	clientID, eventTypeID := int64(0), int64(0)
	if req.ClientID != nil && *req.ClientID != next.ClientID {
		clientID = *req.ClientID
	}
	if req.EventTypeID != nil && *req.EventTypeID != next.EventTypeID {
		eventTypeID = *req.EventTypeID
	}
	if err := s.checkReferences(ctx, clientID, eventTypeID); err != nil {
		return nil, err
	}
	if req.ClientID != nil {
		next.ClientID = *req.ClientID
	}
	if req.EventTypeID != nil {
		next.EventTypeID = *req.EventTypeID
	}
	if req.EventName != nil {
		name := strings.TrimSpace(*req.EventName)
		if name == "" {
			return nil, &ValidationError{Fields: map[string]string{"event_name": "required"}}
		}
		next.EventName = name
	}
	if req.Notes != nil {
		next.Notes = *req.Notes
	}
	if req.Attendees != nil {
		next.Attendees = *req.Attendees
	}

	roomChanged := next.RoomID != current.RoomID
	pricingChanged := req.LineItems != nil || req.DiscountAmount != nil
	if roomChanged || req.Attendees != nil || datesChanged || pricingChanged {
		room, err := s.room(ctx, next.RoomID)
		if err != nil {
			return nil, err
		}
		if roomChanged || req.Attendees != nil {
			if err := checkRoom(room, next.Attendees); err != nil {
				return nil, err
			}
		}

		if roomChanged || datesChanged || pricingChanged {
			items := next.LineItems
			if req.LineItems != nil {
				items = toLineItems(req.LineItems)
			}
			if req.DiscountAmount != nil {
				next.DiscountAmount = *req.DiscountAmount
			}
			priced, totals, err := s.price(room, span, items, next.DiscountAmount)
			if err != nil {
				return nil, err
			}
			next.LineItems = priced
			next.TotalAmount = totals.TotalAmount
			next.FinalAmount = totals.FinalAmount
		}
	}

	action := audit.ActionUpdate
	switch {
	case target == current.Status:
	case target == domain.BookingConfirmed:
		stampConfirmed(next, actor, now)
		action = audit.ActionConfirm
	case target == domain.BookingCancelled:
		reason := ""
		if req.CancellationReason != nil {
			reason = strings.TrimSpace(*req.CancellationReason)
		}
		if reason == "" {
			return nil, &ValidationError{Fields: map[string]string{"cancellation_reason": "required"}}
		}
		next.CancellationReason = reason
		next.CancelledAt = &now
		next.CancelledBy = actorID(actor)
		action = audit.ActionCancel
	case target == domain.BookingCompleted:
		if !next.HasEnded(now) {
			return nil, fmt.Errorf("%w: booking has not ended", ErrInvalidStatusTransition)
		}
		next.CompletedAt = &now
		action = audit.ActionComplete
	}
	next.Status = target
	next.UpdatedAt = now

	check := target != domain.BookingCancelled &&
		(scheduleChanged || (req.Status != nil && target == domain.BookingConfirmed))

	if err := s.persist(ctx, next, check, s.bookings.Update); err != nil {
		return nil, mapStoreErr(err, next)
	}

	s.log.InfoContext(ctx, "booking updated",
		"booking_id", next.ID, "action", action, "status", next.Status)

	s.audit.Record(ctx, audit.Entry{
		Action:       action,
		ResourceType: resourceBooking,
		ResourceID:   strconv.FormatInt(next.ID, 10),
		Before:       before,
		After:        next,
		Actor:        actor,
	})

	switch action {
	case audit.ActionConfirm:
		s.publish(ctx, EventBookingConfirmed, next)
	case audit.ActionCancel:
		s.publish(ctx, EventBookingCancelled, next)
	case audit.ActionComplete:
		s.publish(ctx, EventBookingCompleted, next)
	}
	return next, nil
}

func (s *Service) Confirm(ctx context.Context, actor domain.Actor, id int64) (*domain.Reservation, error) {
	status := domain.BookingConfirmed
	return s.Update(ctx, actor, id, UpdateBookingRequest{Status: &status})
}

func (s *Service) Cancel(ctx context.Context, actor domain.Actor, id int64, reason string) (*domain.Reservation, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &ValidationError{Fields: map[string]string{"cancellation_reason": "required"}}
	}
	status := domain.BookingCancelled
	return s.Update(ctx, actor, id, UpdateBookingRequest{Status: &status, CancellationReason: &reason})
}

// Get returns a booking, completing it first when it is confirmed and has ended.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Reservation, error) {
	b, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.materialize(ctx, b)
	return b, nil
}

func (s *Service) List(ctx context.Context, q ListQuery) ([]domain.Reservation, error) {
	if q.Status != "" && !q.Status.IsValid() {
		return nil, &ValidationError{Fields: map[string]string{"status": "oneof"}}
	}
	rows, err := s.bookings.List(ctx, repository.BookingFilter{
		RoomID:   q.RoomID,
		ClientID: q.ClientID,
		Status:   q.Status,
		FromDate: q.FromDate,
		ToDate:   q.ToDate,
		Limit:    q.Limit,
		Offset:   q.Offset,
	})
	if err != nil {
		return nil, err
	}
	for i := range rows {
		s.materialize(ctx, &rows[i])
	}
	return rows, nil
}

// CompleteExpired completes every confirmed booking that has ended and
// returns how many it changed. Running it twice changes nothing the second time.
func (s *Service) CompleteExpired(ctx context.Context) (int, error) {
	now := s.clock()
	rows, err := s.bookings.ListExpiredConfirmed(ctx, now.Format(domain.DateLayout), now.Format(domain.TimeLayout))
	if err != nil {
		return 0, err
	}

	completed := 0
	for i := range rows {
		if s.materialize(ctx, &rows[i]) {
			completed++
		}
	}
	if completed > 0 {
		s.log.InfoContext(ctx, "completed expired bookings", "count", completed)
	}
	return completed, nil
}

func (s *Service) CheckAvailability(ctx context.Context, req AvailabilityRequest) (ConflictResult, error) {
	if errs := validator.Validate(req); errs != nil {
		return ConflictResult{}, &ValidationError{Fields: errs}
	}
	span, err := normalizeSpan(req.StartDate, req.EndDate, req.StartTime, req.EndTime)
	if err != nil {
		return ConflictResult{}, err
	}
	if _, err := s.room(ctx, req.RoomID); err != nil {
		return ConflictResult{}, err
	}

	existing, err := s.bookings.ListConfirmedForRoom(ctx, req.RoomID, span.startDate, span.endDate)
	if err != nil {
		return ConflictResult{}, err
	}
	return CheckConflict(Candidate{
		RoomID:           req.RoomID,
		StartDate:        span.startDate,
		EndDate:          span.endDate,
		StartTime:        span.startTime,
		EndTime:          span.endTime,
		ExcludeBookingID: req.ExcludeBookingID,
	}, existing), nil
}

// Quote prices line items without storing anything.
func (s *Service) Quote(req QuoteRequest) (QuoteResult, error) {
	if errs := validator.Validate(req); errs != nil {
		return QuoteResult{}, &ValidationError{Fields: errs}
	}
	items := toLineItems(req.LineItems)
	totals, err := ComputeTotals(items, req.DiscountAmount)
	if err != nil {
		return QuoteResult{}, err
	}
	return QuoteResult{LineItems: priceLineItems(items), Totals: totals}, nil
}

// materialize completes b when it is confirmed and has ended. It reports
// whether this call made the change. Failures leave b as read.
func (s *Service) materialize(ctx context.Context, b *domain.Reservation) bool {
	now := s.clock()
	if b.Status != domain.BookingConfirmed || !b.HasEnded(now) {
		return false
	}

	before := cloneReservation(b)
	changed, err := s.bookings.MarkCompleted(ctx, b.ID, now)
	if err != nil {
		s.log.WarnContext(ctx, "auto-complete failed", "booking_id", b.ID, "error", err)
		return false
	}
	if !changed {
		if fresh, err := s.bookings.GetByID(ctx, b.ID); err == nil {
			*b = *fresh
		}
		return false
	}

	b.Status = domain.BookingCompleted
	b.CompletedAt = &now
	b.UpdatedAt = now

	s.audit.Record(ctx, audit.Entry{
		Action:       audit.ActionComplete,
		ResourceType: resourceBooking,
		ResourceID:   strconv.FormatInt(b.ID, 10),
		Before:       before,
		After:        b,
		Actor:        domain.SystemActor,
	})
	s.publish(ctx, EventBookingCompleted, b)
	return true
}

// persist runs write, guarding it with the conflict check when check is set.
func (s *Service) persist(
	ctx context.Context,
	b *domain.Reservation,
	check bool,
	write func(context.Context, *domain.Reservation, repository.ConflictGuard) error,
) error {
	if !check {
		return write(ctx, b, nil)
	}

	unlock, err := s.locker.Lock(ctx, b.RoomID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRoomBusy, err)
	}
	defer unlock()

	candidate := CandidateFor(b)
	return write(ctx, b, func(existing []domain.Reservation) error {
		if res := CheckConflict(candidate, existing); res.HasConflict {
			return conflictFrom(res)
		}
		return nil
	})
}

func (s *Service) publish(ctx context.Context, event string, b *domain.Reservation) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishBookingEvent(ctx, event, b); err != nil {
		s.log.WarnContext(ctx, "booking event publish failed", "event", event, "booking_id", b.ID, "error", err)
	}
}

func (s *Service) get(ctx context.Context, id int64) (*domain.Reservation, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Resource: "booking", ID: id}
	}
	return b, err
}

func (s *Service) room(ctx context.Context, id int64) (*domain.Room, error) {
	room, err := s.rooms.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Resource: "room", ID: id}
	}
	return room, err
}

// checkReferences verifies that the client and event type exist. A zero ID is
// not checked.
func (s *Service) checkReferences(ctx context.Context, clientID, eventTypeID int64) error {
	fields := map[string]string{}
	if clientID != 0 {
		_, err := s.refs.GetClientByID(ctx, clientID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			fields["client_id"] = "exists"
		case err != nil:
			return err
		}
	}
	if eventTypeID != 0 {
		_, err := s.refs.GetEventTypeByID(ctx, eventTypeID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			fields["event_type_id"] = "exists"
		case err != nil:
			return err
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func mapStoreErr(err error, b *domain.Reservation) error {
	switch {
	case errors.Is(err, repository.ErrRoomNotFound):
		return &NotFoundError{Resource: "room", ID: b.RoomID}
	case errors.Is(err, repository.ErrNotFound):
		return &NotFoundError{Resource: "booking", ID: b.ID}
	case errors.Is(err, repository.ErrStale):
		return fmt.Errorf("%w: booking %d", ErrStaleBooking, b.ID)
	}
	return err
}

// price derives the room rental line, prices every line and computes totals.
func (s *Service) price(room *domain.Room, sp schedule, items []domain.LineItem, discount float64) ([]domain.LineItem, Totals, error) {
	rental, err := roomRentalItem(room, sp.startDate, sp.endDate)
	if err != nil {
		return nil, Totals{}, err
	}
	all := withRoomRental(items, rental)
	totals, err := ComputeTotals(all, discount)
	if err != nil {
		return nil, Totals{}, err
	}
	return priceLineItems(all), totals, nil
}

func checkRoom(room *domain.Room, attendees int) error {
	if !room.IsAvailable {
		return &ValidationError{Fields: map[string]string{"room_id": "unavailable"}}
	}
	if attendees > room.Capacity {
		return &ValidationError{Fields: map[string]string{"attendees": "capacity"}}
	}
	return nil
}

type schedule struct {
	startDate, endDate string
	startTime, endTime string
}

// normalizeSpan validates a date and daily time range and rewrites times to HH:MM:SS.
func normalizeSpan(startDate, endDate, startTime, endTime string) (schedule, error) {
	fields := map[string]string{}
	if _, err := time.Parse(domain.DateLayout, startDate); err != nil {
		fields["start_date"] = "isodate"
	}
	if _, err := time.Parse(domain.DateLayout, endDate); err != nil {
		fields["end_date"] = "isodate"
	}
	st, err := normalizeClock(startTime)
	if err != nil {
		fields["start_time"] = "clock"
	}
	et, err := normalizeClock(endTime)
	if err != nil {
		fields["end_time"] = "clock"
	}
	if len(fields) > 0 {
		return schedule{}, &ValidationError{Fields: fields}
	}

	if endDate < startDate {
		return schedule{}, &ValidationError{Fields: map[string]string{"end_date": "gtefield"}}
	}
	// Times bound a window that repeats on every day of the span, so the end
	// must follow the start even when the dates differ.
	if et <= st {
		tag := "gtfield"
		if endDate != startDate {
			tag = "daily_window"
		}
		return schedule{}, &ValidationError{Fields: map[string]string{"end_time": tag}}
	}
	return schedule{startDate: startDate, endDate: endDate, startTime: st, endTime: et}, nil
}

func normalizeClock(v string) (string, error) {
	if len(v) == len("15:04") {
		v += ":00"
	}
	t, err := time.Parse(domain.TimeLayout, v)
	if err != nil {
		return "", err
	}
	return t.Format(domain.TimeLayout), nil
}

func newBookingNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "BK-" + now.Format("20060102") + "-" + suffix
}

func stampConfirmed(b *domain.Reservation, actor domain.Actor, now time.Time) {
	b.ConfirmedAt = &now
	b.ConfirmedBy = actorID(actor)
}

func actorID(actor domain.Actor) *int64 {
	if actor.UserID == 0 {
		return nil
	}
	id := actor.UserID
	return &id
}

func cloneReservation(b *domain.Reservation) *domain.Reservation {
	c := *b
	c.LineItems = append([]domain.LineItem(nil), b.LineItems...)
	return &c
}
