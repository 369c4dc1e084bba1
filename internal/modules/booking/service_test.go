package booking

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"confbooking/internal/domain"
	"confbooking/internal/modules/audit"
	"confbooking/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock repositories
type MockBookingRepository struct {
	mock.Mock
	existing []domain.Reservation
}

func (m *MockBookingRepository) Create(ctx context.Context, b *domain.Reservation, guard repository.ConflictGuard) error {
	args := m.Called(ctx, b, guard != nil)
	if guard != nil {
		if err := guard(m.existing); err != nil {
			return err
		}
	}
	if err := args.Error(0); err != nil {
		return err
	}
	b.ID = 999 // simulate DB insert
	return nil
}

func (m *MockBookingRepository) Update(ctx context.Context, b *domain.Reservation, guard repository.ConflictGuard) error {
	args := m.Called(ctx, b, guard != nil)
	if guard != nil {
		if err := guard(m.existing); err != nil {
			return err
		}
	}
	return args.Error(0)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// Hand out a copy so the service cannot mutate the fixture.
	b := *args.Get(0).(*domain.Reservation)
	return &b, args.Error(1)
}

func (m *MockBookingRepository) List(ctx context.Context, f repository.BookingFilter) ([]domain.Reservation, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockBookingRepository) ListConfirmedForRoom(ctx context.Context, roomID int64, fromDate, toDate string) ([]domain.Reservation, error) {
	args := m.Called(ctx, roomID, fromDate, toDate)
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockBookingRepository) ListExpiredConfirmed(ctx context.Context, date, clock string) ([]domain.Reservation, error) {
	args := m.Called(ctx, date, clock)
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockBookingRepository) MarkCompleted(ctx context.Context, id int64, at time.Time) (bool, error) {
	args := m.Called(ctx, id, at)
	return args.Bool(0), args.Error(1)
}

type MockRoomRepository struct {
	mock.Mock
}

func (m *MockRoomRepository) GetByID(ctx context.Context, id int64) (*domain.Room, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Room), args.Error(1)
}

type fakeReferences struct {
	missingClients    map[int64]bool
	missingEventTypes map[int64]bool
}

func (f *fakeReferences) GetClientByID(_ context.Context, id int64) (*domain.Client, error) {
	if f.missingClients[id] {
		return nil, repository.ErrNotFound
	}
	return &domain.Client{ID: id, Name: "Client"}, nil
}

func (f *fakeReferences) GetEventTypeByID(_ context.Context, id int64) (*domain.EventType, error) {
	if f.missingEventTypes[id] {
		return nil, repository.ErrNotFound
	}
	return &domain.EventType{ID: id, Name: "Workshop"}, nil
}

type fakeRecorder struct {
	entries []audit.Entry
}

func (f *fakeRecorder) Record(_ context.Context, e audit.Entry) {
	f.entries = append(f.entries, e)
}

func (f *fakeRecorder) actions() []string {
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakePublisher struct {
	events []string
	err    error
}

func (f *fakePublisher) PublishBookingEvent(_ context.Context, event string, _ *domain.Reservation) error {
	f.events = append(f.events, event)
	return f.err
}

type failingLocker struct{}

func (failingLocker) Lock(context.Context, int64) (func(), error) {
	return nil, errors.New("lock held")
}

var testNow = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	bookings *MockBookingRepository
	rooms    *MockRoomRepository
	refs     *fakeReferences
	audit    *fakeRecorder
	events   *fakePublisher
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		bookings: &MockBookingRepository{},
		rooms:    &MockRoomRepository{},
		refs:     &fakeReferences{missingClients: map[int64]bool{}, missingEventTypes: map[int64]bool{}},
		audit:    &fakeRecorder{},
		events:   &fakePublisher{},
	}
	opts = append([]Option{
		WithClock(func() time.Time { return testNow }),
		WithEvents(f.events),
	}, opts...)
	f.svc = NewService(f.bookings, f.rooms, f.refs, f.audit, opts...)
	return f
}

func hall() *domain.Room {
	return &domain.Room{ID: 101, Name: "Hall", Capacity: 50, RatePerDay: 500, IsAvailable: true}
}

func createReq(status domain.BookingStatus) CreateBookingRequest {
	return CreateBookingRequest{
		RoomID:    101,
		ClientID:  5,
		EventName: "Quarterly review",
		StartDate: "2025-03-10",
		EndDate:   "2025-03-10",
		StartTime: "09:00",
		EndTime:   "12:00",
		Status:    status,
		Attendees: 20,
		LineItems: []LineItemInput{
			{Kind: domain.LineItemAddon, Description: "Projector", Quantity: 1, Rate: 40},
		},
		DiscountAmount: 60,
	}
}

var staff = domain.Actor{UserID: 9, Role: domain.RoleStaff}

func TestCreate_Tentative(t *testing.T) {
	f := newFixture()
	f.rooms.On("GetByID", mock.Anything, int64(101)).Return(hall(), nil)
	f.bookings.On("Create", mock.Anything, mock.Anything, false).Return(nil).Once()

	tampered := 1.0
	req := createReq(domain.BookingTentative)
	req.TotalAmount = &tampered
	req.FinalAmount = &tampered

	b, err := f.svc.Create(context.Background(), staff, req)
	require.NoError(t, err)

	assert.Equal(t, int64(999), b.ID)
	assert.Equal(t, domain.BookingTentative, b.Status)
	assert.Equal(t, "09:00:00", b.StartTime)
	assert.Equal(t, "12:00:00", b.EndTime)
	assert.Regexp(t, regexp.MustCompile(`^BK-20250301-[0-9A-F]{6}$`), b.BookingNumber)
	assert.Equal(t, 540.0, b.TotalAmount)
	assert.Equal(t, 480.0, b.FinalAmount)
	require.Len(t, b.LineItems, 2)
	assert.Equal(t, domain.LineItemRoom, b.LineItems[0].Kind)
	assert.Equal(t, 500.0, b.LineItems[0].Amount)
	assert.Nil(t, b.ConfirmedAt)
	assert.Equal(t, int64(9), b.CreatedBy)

	assert.Equal(t, []string{audit.ActionCreate}, f.audit.actions())
	assert.Nil(t, f.audit.entries[0].Before)
	assert.Empty(t, f.events.events)
	f.bookings.AssertExpectations(t)
}

func TestCreate_ConfirmedConflict(t *testing.T) {
	f := newFixture()
	f.rooms.On("GetByID", mock.Anything, int64(101)).Return(hall(), nil)
	f.bookings.On("Create", mock.Anything, mock.Anything, true).Return(nil).Once()
	f.bookings.existing = []domain.Reservation{
		confirmed(1, 101, "2025-03-10", "2025-03-10", "11:00:00", "13:00:00"),
	}

	_, err := f.svc.Create(context.Background(), staff, createReq(domain.BookingConfirmed))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))

	var cerr *ConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, int64(1), cerr.BookingID)
	assert.Equal(t, "BK-20250310-000001", cerr.BookingNumber)
	assert.Empty(t, f.audit.entries)
	assert.Empty(t, f.events.events)
}

func TestCreate_ConfirmedStampsAndPublishes(t *testing.T) {
	f := newFixture()
	f.rooms.On("GetByID", mock.Anything, int64(101)).Return(hall(), nil)
	f.bookings.On("Create", mock.Anything, mock.Anything, true).Return(nil).Once()
	f.bookings.existing = []domain.Reservation{
		confirmed(1, 101, "2025-03-10", "2025-03-10", "12:00:00", "14:00:00"),
	}

	b, err := f.svc.Create(context.Background(), staff, createReq(domain.BookingConfirmed))
	require.NoError(t, err)

	require.NotNil(t, b.ConfirmedAt)
	assert.Equal(t, testNow, *b.ConfirmedAt)
	require.NotNil(t, b.ConfirmedBy)
	assert.Equal(t, int64(9), *b.ConfirmedBy)
	assert.Equal(t, []string{EventBookingConfirmed}, f.events.events)
}

func TestCreate_PublishFailureIsIgnored(t *testing.T) {
	f := newFixture()
	f.events.err = errors.New("broker down")
	f.rooms.On("GetByID", mock.Anything, int64(101)).Return(hall(), nil)
	f.bookings.On("Create", mock.Anything, mock.Anything, true).Return(nil).Once()

	_, err := f.svc.Create(context.Background(), staff, createReq(domain.BookingConfirmed))
	assert.NoError(t, err)
}

func TestCreate_RetriesDuplicateNumber(t *testing.T) {
	f := newFixture()
	f.rooms.On("GetByID", mock.Anything, int64(101)).Return(hall(), nil)
	f.bookings.On("Create", mock.Anything, mock.Anything, false).Return(repository.ErrDuplicate).Once()
	f.bookings.On("Create", mock.Anything, mock.Anything, false).Return(nil).Once()

	b, err := f.svc.Create(context.Background(), staff, createReq(domain.BookingTentative))
	require.NoError(t, err)
	assert.Equal(t, int64(999), b.ID)
	f.bookings.AssertNumberOfCalls(t, "Create", 2)
}

func TestCreate_LockFailure(t *testing.T) {
	f := newFixture(WithLocker(failingLocker{}))
	f.rooms.On("GetByID", mock.Anything, int64(101)).Return(hall(), nil)

	_, err := f.svc.Create(context.Background(), staff, createReq(domain.BookingConfirmed))
	assert.True(t, errors.Is(err, ErrRoomBusy))
	f.bookings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate_Validation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateBookingRequest)
		field  string
	}{
		{"end before start", func(r *CreateBookingRequest) { r.EndDate = "2025-03-09" }, "end_date"},
		{"end time equals start", func(r *CreateBookingRequest) { r.EndTime = "09:00:00" }, "end_time"},
		{"multi-day window ends before it starts", func(r *CreateBookingRequest) {
			r.EndDate, r.StartTime, r.EndTime = "2025-03-12", "18:00", "10:00"
		}, "end_time"},
		{"bad calendar date", func(r *CreateBookingRequest) { r.StartDate = "2025-02-30" }, "start_date"},
		{"bad clock", func(r *CreateBookingRequest) { r.StartTime = "25:00" }, "start_time"},
		{"missing event name", func(r *CreateBookingRequest) { r.EventName = "" }, "CreateBookingRequest.EventName"},
		{"initial cancelled", func(r *CreateBookingRequest) { r.Status = domain.BookingCancelled }, "CreateBookingRequest.Status"},
		{"negative discount", func(r *CreateBookingRequest) { r.DiscountAmount = -5 }, "CreateBookingRequest.DiscountAmount"},
		{"zero quantity", func(r *CreateBookingRequest) { r.LineItems[0].Quantity = 0 }, "CreateBookingRequest.LineItems[0].Quantity"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.rooms.On("GetByID", mock.Anything, int64(101)).Return(hall(), nil)

			req := createReq(domain.BookingTentative)
			tc.mutate(&req)

			_, err := f.svc.Create(context.Background(), staff, req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tc.field)
			f.bookings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCreate_RoomChecks(t *testing.T) {
	f := newFixture()
	closed := hall()
	closed.IsAvailable = false
	f.rooms.On("GetByID", mock.Anything, int64(101)).Return(closed, nil).Once()

	_, err := f.svc.Create(context.Background(), staff, createReq(domain.BookingTentative))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "unavailable", verr.Fields["room_id"])

	f.rooms.On("GetByID", mock.Anything, int64(101)).Return(hall(), nil).Once()
	req := createReq(domain.BookingTentative)
	req.Attendees = 51
	_, err = f.svc.Create(context.Background(), staff, req)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "capacity", verr.Fields["attendees"])

	f.rooms.On("GetByID", mock.Anything, int64(404)).Return(nil, repository.ErrNotFound).Once()
	req = createReq(domain.BookingTentative)
	req.RoomID = 404
	_, err = f.svc.Create(context.Background(), staff, req)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCreate_MultiDayWindow(t *testing.T) {
	f := newFixture()
	req := createReq(domain.BookingTentative)
	req.EndDate, req.StartTime, req.EndTime = "2025-03-12", "18:00", "10:00"

	_, err := f.svc.Create(context.Background(), staff, req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "daily_window", verr.Fields["end_time"])

	f.rooms.On("GetByID", mock.Anything, int64(101)).Return(hall(), nil)
	f.bookings.On("Create", mock.Anything, mock.Anything, false).Return(nil).Once()
	req.EndDate, req.StartTime, req.EndTime = "2025-03-11", "09:00", "17:00"
	b, err := f.svc.Create(context.Background(), staff, req)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-11", b.EndDate)
}

func TestCreate_UnknownReferences(t *testing.T) {
	f := newFixture()
	f.refs.missingClients[5] = true
	f.refs.missingEventTypes[3] = true

	req := createReq(domain.BookingTentative)
	req.EventTypeID = 3
	_, err := f.svc.Create(context.Background(), staff, req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "exists", verr.Fields["client_id"])
	assert.Equal(t, "exists", verr.Fields["event_type_id"])
	f.bookings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func existingBooking(status domain.BookingStatus) *domain.Reservation {
	return &domain.Reservation{
		ID:            1,
		BookingNumber: "BK-20250220-AAAAAA",
		RoomID:        101,
		ClientID:      5,
		EventName:     "Quarterly review",
		StartDate:     "2025-03-10",
		EndDate:       "2025-03-10",
		StartTime:     "09:00:00",
		EndTime:       "12:00:00",
		Status:        status,
		Attendees:     20,
		LineItems: []domain.LineItem{
			{Kind: domain.LineItemRoom, Description: "Room rental: Hall", Quantity: 1, Rate: 500, Amount: 500},
		},
		TotalAmount: 500,
		FinalAmount: 500,
	}
}

func TestUpdate_ConfirmRunsConflictCheck(t *testing.T) {
	f := newFixture()
	f.bookings.On("GetByID", mock.Anything, int64(1)).Return(existingBooking(domain.BookingTentative), nil)
	f.bookings.On("Update", mock.Anything, mock.Anything, true).Return(nil)
	f.bookings.existing = []domain.Reservation{
		confirmed(2, 101, "2025-03-10", "2025-03-10", "10:00:00", "11:00:00"),
	}

	_, err := f.svc.Confirm(context.Background(), staff, 1)
	require.True(t, errors.Is(err, ErrConflict))
	assert.Empty(t, f.audit.entries)

	f.bookings.existing = nil
	b, err := f.svc.Confirm(context.Background(), staff, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, b.Status)
	require.NotNil(t, b.ConfirmedAt)

	require.Equal(t, []string{audit.ActionConfirm}, f.audit.actions())
	before := f.audit.entries[0].Before.(*domain.Reservation)
	assert.Equal(t, domain.BookingTentative, before.Status)
	assert.Equal(t, []string{EventBookingConfirmed}, f.events.events)
}

func TestUpdate_MetadataSkipsConflictCheck(t *testing.T) {
	f := newFixture()
	f.bookings.On("GetByID", mock.Anything, int64(1)).Return(existingBooking(domain.BookingConfirmed), nil)
	f.bookings.On("Update", mock.Anything, mock.Anything, false).Return(nil).Once()

	notes := "Bring extra chairs"
	b, err := f.svc.Update(context.Background(), staff, 1, UpdateBookingRequest{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, b.Notes)
	assert.Equal(t, 500.0, b.TotalAmount)
	assert.Equal(t, []string{audit.ActionUpdate}, f.audit.actions())
	f.bookings.AssertExpectations(t)
}

func TestUpdate_RescheduleExcludesSelf(t *testing.T) {
	f := newFixture()
	current := existingBooking(domain.BookingConfirmed)
	f.bookings.On("GetByID", mock.Anything, int64(1)).Return(current, nil)
	f.bookings.On("Update", mock.Anything, mock.Anything, true).Return(nil).Once()
	f.bookings.existing = []domain.Reservation{*current}

	end := "13:00"
	b, err := f.svc.Update(context.Background(), staff, 1, UpdateBookingRequest{EndTime: &end})
	require.NoError(t, err)
	assert.Equal(t, "13:00:00", b.EndTime)
	f.bookings.AssertExpectations(t)
}

func TestUpdate_RepricesOnDatesAndItems(t *testing.T) {
	f := newFixture()
	f.bookings.On("GetByID", mock.Anything, int64(1)).Return(existingBooking(domain.BookingTentative), nil)
	f.rooms.On("GetByID", mock.Anything, int64(101)).Return(hall(), nil)
	f.bookings.On("Update", mock.Anything, mock.Anything, true).Return(nil).Once()

	end := "2025-03-11"
	discount := 100.0
	b, err := f.svc.Update(context.Background(), staff, 1, UpdateBookingRequest{
		EndDate:        &end,
		DiscountAmount: &discount,
		LineItems:      []LineItemInput{{Description: "Catering", Kind: domain.LineItemService, Quantity: 2, Rate: 150}},
	})
	require.NoError(t, err)

	require.Len(t, b.LineItems, 2)
	assert.Equal(t, 2.0, b.LineItems[0].Quantity)
	assert.Equal(t, 1300.0, b.TotalAmount)
	assert.Equal(t, 1200.0, b.FinalAmount)
}

func TestUpdate_TerminalRejected(t *testing.T) {
	for _, status := range []domain.BookingStatus{domain.BookingCancelled, domain.BookingCompleted} {
		f := newFixture()
		f.bookings.On("GetByID", mock.Anything, int64(1)).Return(existingBooking(status), nil)

		notes := "late change"
		_, err := f.svc.Update(context.Background(), staff, 1, UpdateBookingRequest{Notes: &notes})
		assert.True(t, errors.Is(err, ErrInvalidStatusTransition), status)
	}
}

func TestUpdate_InvalidTransitions(t *testing.T) {
	f := newFixture()
	f.bookings.On("GetByID", mock.Anything, int64(1)).Return(existingBooking(domain.BookingConfirmed), nil)

	back := domain.BookingTentative
	_, err := f.svc.Update(context.Background(), staff, 1, UpdateBookingRequest{Status: &back})
	assert.True(t, errors.Is(err, ErrInvalidStatusTransition))

	done := domain.BookingCompleted
	_, err = f.svc.Update(context.Background(), staff, 1, UpdateBookingRequest{Status: &done})
	assert.True(t, errors.Is(err, ErrInvalidStatusTransition))
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture()
	f.bookings.On("GetByID", mock.Anything, int64(77)).Return(nil, repository.ErrNotFound)

	_, err := f.svc.Confirm(context.Background(), staff, 77)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, int64(77), nf.ID)
}

func TestUpdate_UnknownClient(t *testing.T) {
	f := newFixture()
	f.refs.missingClients[42] = true
	f.bookings.On("GetByID", mock.Anything, int64(1)).Return(existingBooking(domain.BookingTentative), nil)

	client := int64(42)
	_, err := f.svc.Update(context.Background(), staff, 1, UpdateBookingRequest{ClientID: &client})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "exists", verr.Fields["client_id"])

	// The current client is not looked up again.
	f.refs.missingClients[5] = true
	f.bookings.On("Update", mock.Anything, mock.Anything, false).Return(nil).Once()
	client = 5
	_, err = f.svc.Update(context.Background(), staff, 1, UpdateBookingRequest{ClientID: &client})
	require.NoError(t, err)
}

func TestUpdate_StoreErrors(t *testing.T) {
	notes := "Bring extra chairs"
	cases := []struct {
		name     string
		storeErr error
		resource string
		id       int64
	}{
		{"booking removed", repository.ErrNotFound, "booking", 1},
		{"room removed", repository.ErrRoomNotFound, "room", 101},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.bookings.On("GetByID", mock.Anything, int64(1)).Return(existingBooking(domain.BookingConfirmed), nil)
			f.bookings.On("Update", mock.Anything, mock.Anything, false).Return(tc.storeErr).Once()

			_, err := f.svc.Update(context.Background(), staff, 1, UpdateBookingRequest{Notes: &notes})
			var nf *NotFoundError
			require.ErrorAs(t, err, &nf)
			assert.Equal(t, tc.resource, nf.Resource)
			assert.Equal(t, tc.id, nf.ID)
			assert.Empty(t, f.audit.entries)
		})
	}

	f := newFixture()
	f.bookings.On("GetByID", mock.Anything, int64(1)).Return(existingBooking(domain.BookingConfirmed), nil)
	f.bookings.On("Update", mock.Anything, mock.Anything, false).Return(repository.ErrStale).Once()

	_, err := f.svc.Update(context.Background(), staff, 1, UpdateBookingRequest{Notes: &notes})
	assert.ErrorIs(t, err, ErrStaleBooking)
	assert.Empty(t, f.audit.entries)
	assert.Empty(t, f.events.events)
}

func TestCancel(t *testing.T) {
	f := newFixture()
	f.bookings.On("GetByID", mock.Anything, int64(1)).Return(existingBooking(domain.BookingConfirmed), nil)
	f.bookings.On("Update", mock.Anything, mock.Anything, false).Return(nil).Once()

	_, err := f.svc.Cancel(context.Background(), staff, 1, "   ")
	assert.True(t, errors.Is(err, ErrValidation))

	b, err := f.svc.Cancel(context.Background(), staff, 1, "Client postponed")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, b.Status)
	assert.Equal(t, "Client postponed", b.CancellationReason)
	require.NotNil(t, b.CancelledAt)
	require.NotNil(t, b.CancelledBy)
	assert.Equal(t, int64(9), *b.CancelledBy)
	assert.Equal(t, []string{audit.ActionCancel}, f.audit.actions())
	assert.Equal(t, []string{EventBookingCancelled}, f.events.events)
}

func TestGet_AutoCompletesEndedBooking(t *testing.T) {
	f := newFixture()
	ended := existingBooking(domain.BookingConfirmed)
	ended.StartDate, ended.EndDate = "2025-02-27", "2025-02-28"
	f.bookings.On("GetByID", mock.Anything, int64(1)).Return(ended, nil)
	f.bookings.On("MarkCompleted", mock.Anything, int64(1), testNow).Return(true, nil).Once()

	b, err := f.svc.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCompleted, b.Status)
	require.NotNil(t, b.CompletedAt)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, audit.ActionComplete, f.audit.entries[0].Action)
	assert.Equal(t, domain.SystemActor, f.audit.entries[0].Actor)
	assert.Equal(t, []string{EventBookingCompleted}, f.events.events)
}

func TestGet_CompletionIsIdempotent(t *testing.T) {
	f := newFixture()
	ended := existingBooking(domain.BookingConfirmed)
	ended.EndDate = "2025-02-28"
	ended.StartDate = "2025-02-28"
	done := existingBooking(domain.BookingCompleted)
	done.EndDate = "2025-02-28"

	f.bookings.On("GetByID", mock.Anything, int64(1)).Return(ended, nil).Once()
	f.bookings.On("MarkCompleted", mock.Anything, int64(1), testNow).Return(false, nil).Once()
	f.bookings.On("GetByID", mock.Anything, int64(1)).Return(done, nil).Once()

	b, err := f.svc.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCompleted, b.Status)
	assert.Empty(t, f.audit.entries)
}

func TestGet_FutureBookingUntouched(t *testing.T) {
	f := newFixture()
	f.bookings.On("GetByID", mock.Anything, int64(1)).Return(existingBooking(domain.BookingConfirmed), nil)

	b, err := f.svc.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, b.Status)
	f.bookings.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything, mock.Anything)
}

func TestGet_RespectsLocation(t *testing.T) {
	// 08:00 UTC is 13:00 in UTC+5, after a booking ending at 12:00 local time.
	loc := time.FixedZone("UTC+5", 5*3600)
	f := newFixture(WithLocation(loc))
	today := existingBooking(domain.BookingConfirmed)
	today.StartDate, today.EndDate = "2025-03-01", "2025-03-01"
	f.bookings.On("GetByID", mock.Anything, int64(1)).Return(today, nil)
	f.bookings.On("MarkCompleted", mock.Anything, int64(1), testNow.In(loc)).Return(true, nil).Once()

	b, err := f.svc.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCompleted, b.Status)
}

func TestList_MaterializesRows(t *testing.T) {
	f := newFixture()
	ended := *existingBooking(domain.BookingConfirmed)
	ended.StartDate, ended.EndDate = "2025-02-20", "2025-02-20"
	future := *existingBooking(domain.BookingConfirmed)
	future.ID = 2

	f.bookings.On("List", mock.Anything, repository.BookingFilter{RoomID: 101}).
		Return([]domain.Reservation{ended, future}, nil)
	f.bookings.On("MarkCompleted", mock.Anything, int64(1), testNow).Return(true, nil).Once()

	rows, err := f.svc.List(context.Background(), ListQuery{RoomID: 101})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, domain.BookingCompleted, rows[0].Status)
	assert.Equal(t, domain.BookingConfirmed, rows[1].Status)

	_, err = f.svc.List(context.Background(), ListQuery{Status: "archived"})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestCompleteExpired(t *testing.T) {
	f := newFixture()
	a := *existingBooking(domain.BookingConfirmed)
	a.StartDate, a.EndDate = "2025-02-20", "2025-02-20"
	b := a
	b.ID = 2

	f.bookings.On("ListExpiredConfirmed", mock.Anything, "2025-03-01", "08:00:00").
		Return([]domain.Reservation{a, b}, nil).Once()
	f.bookings.On("MarkCompleted", mock.Anything, int64(1), testNow).Return(true, nil).Once()
	f.bookings.On("MarkCompleted", mock.Anything, int64(2), testNow).Return(false, errors.New("db hiccup")).Once()

	n, err := f.svc.CompleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, f.audit.entries, 1)
}

func TestCheckAvailability(t *testing.T) {
	f := newFixture()
	f.rooms.On("GetByID", mock.Anything, int64(101)).Return(hall(), nil)
	f.bookings.On("ListConfirmedForRoom", mock.Anything, int64(101), "2025-03-10", "2025-03-10").
		Return([]domain.Reservation{confirmed(1, 101, "2025-03-10", "2025-03-10", "09:00:00", "12:00:00")}, nil)

	res, err := f.svc.CheckAvailability(context.Background(), AvailabilityRequest{
		RoomID: 101, StartDate: "2025-03-10", EndDate: "2025-03-10", StartTime: "11:00", EndTime: "13:00",
	})
	require.NoError(t, err)
	assert.True(t, res.HasConflict)
	assert.Equal(t, int64(1), res.ConflictingBookingID)

	res, err = f.svc.CheckAvailability(context.Background(), AvailabilityRequest{
		RoomID: 101, StartDate: "2025-03-10", EndDate: "2025-03-10", StartTime: "11:00", EndTime: "13:00",
		ExcludeBookingID: 1,
	})
	require.NoError(t, err)
	assert.False(t, res.HasConflict)
}

func TestQuote(t *testing.T) {
	f := newFixture()
	q, err := f.svc.Quote(QuoteRequest{
		LineItems:      []LineItemInput{{Description: "Room", Quantity: 2, Rate: 100}, {Description: "Mic", Quantity: 1, Rate: 15}},
		DiscountAmount: 300,
	})
	require.NoError(t, err)
	assert.Equal(t, 215.0, q.TotalAmount)
	assert.Equal(t, 0.0, q.FinalAmount)
	assert.Equal(t, 200.0, q.LineItems[0].Amount)
}
