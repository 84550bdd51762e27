package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/PulpFictionApps/veterinaria/internal/calendar"
	"github.com/PulpFictionApps/veterinaria/internal/clock"
	"github.com/PulpFictionApps/veterinaria/internal/model"
	"github.com/PulpFictionApps/veterinaria/internal/repository"
	"github.com/PulpFictionApps/veterinaria/internal/testutil"
)

func at(hour, min int) time.Time {
	return time.Date(2024, 1, 1, hour, min, 0, 0, time.UTC)
}

func ptr[T any](v T) *T {
	return &v
}

type fixture struct {
	eng   *Engine
	db    *gorm.DB
	store *repository.Store
	owner *model.Owner
	now   time.Time
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	f := &fixture{now: at(7, 0)}
	f.db = testutil.OpenDB(t)
	f.owner = testutil.SeedOwner(t, f.db, "dr")
	f.store = repository.NewStore(f.db)

	clk, err := clock.New("UTC", 999*time.Millisecond, clock.WithNow(func() time.Time { return f.now }))
	require.NoError(t, err)

	f.eng = NewEngine(f.store, clk, zaptest.NewLogger(t), opts)
	return f
}

func (f *fixture) slots(t *testing.T) []model.AvailabilitySlot {
	t.Helper()
	slots, _, err := f.store.Slots.ListByOwner(context.Background(), f.owner.ID, time.Time{}, 0, 0)
	require.NoError(t, err)
	return slots
}

func starts(slots []model.AvailabilitySlot) []time.Time {
	out := make([]time.Time, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.StartsAt.UTC())
	}
	return out
}

func (f *fixture) book(t *testing.T, start time.Time, durationMin int) *model.Appointment {
	t.Helper()
	a, err := f.eng.BookAppointment(context.Background(), BookRequest{
		OwnerID:     f.owner.ID,
		Start:       &start,
		DurationMin: durationMin,
	})
	require.NoError(t, err)
	return a
}

func TestCreateAvailability_SplitsIntoQuarterSlots(t *testing.T) {
	f := newFixture(t, Options{})

	res, err := f.eng.CreateAvailability(context.Background(), f.owner.ID, at(9, 0), at(10, 0))
	require.NoError(t, err)
	require.Len(t, res.Created, 4)
	assert.Empty(t, res.Skipped)

	for _, s := range res.Created {
		assert.Zero(t, s.StartsAt.Minute()%15)
		assert.Zero(t, s.StartsAt.Second())
		assert.Equal(t, calendar.SlotDuration, s.EndsAt.Sub(s.StartsAt))
	}
}

func TestCreateAvailability_RejectsBadRanges(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.eng.CreateAvailability(ctx, f.owner.ID, at(9, 5), at(10, 0))
	require.ErrorIs(t, err, calendar.ErrMisalignedRange)
	var mis *calendar.MisalignedRangeError
	require.True(t, errors.As(err, &mis))
	assert.Equal(t, 5, mis.Start.Minute(), "error carries the parsed start")
	assert.Equal(t, KindValidation, KindOf(err))

	_, err = f.eng.CreateAvailability(ctx, f.owner.ID, at(9, 0), at(9, 0))
	require.ErrorIs(t, err, calendar.ErrRangeTooSmall)

	_, err = f.eng.CreateAvailability(ctx, uuid.New(), at(9, 0), at(10, 0))
	require.ErrorIs(t, err, ErrOwnerNotFound)

	assert.Empty(t, f.slots(t))
}

func TestCreateAvailability_SkipsExistingAndOccupied(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.eng.CreateAvailability(ctx, f.owner.ID, at(9, 0), at(10, 0))
	require.NoError(t, err)
	f.book(t, at(9, 0), 15)

	res, err := f.eng.CreateAvailability(ctx, f.owner.ID, at(8, 45), at(9, 30))
	require.NoError(t, err)

	require.Len(t, res.Created, 1)
	assert.True(t, res.Created[0].StartsAt.Equal(at(8, 45)))

	require.Len(t, res.Skipped, 2)
	assert.Equal(t, SkipReasonOccupied, res.Skipped[0].Reason)
	assert.True(t, res.Skipped[0].Range.Start.Equal(at(9, 0)))
	assert.Equal(t, SkipReasonExists, res.Skipped[1].Reason)
}

func TestCreateAvailability_OccupiedAcrossSeveralAppointments(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.eng.CreateAvailability(ctx, f.owner.ID, at(9, 0), at(11, 0))
	require.NoError(t, err)
	f.book(t, at(9, 0), 15)
	f.book(t, at(10, 30), 30)

	res, err := f.eng.CreateAvailability(ctx, f.owner.ID, at(9, 0), at(11, 0))
	require.NoError(t, err)
	assert.Empty(t, res.Created)

	var occupied []time.Time
	for _, s := range res.Skipped {
		if s.Reason == SkipReasonOccupied {
			occupied = append(occupied, s.Range.Start)
		}
	}
	// 9:15 касается конца первой записи, но не пересекается с ней.
	require.Len(t, occupied, 3)
	assert.True(t, occupied[0].Equal(at(9, 0)))
	assert.True(t, occupied[1].Equal(at(10, 30)))
	assert.True(t, occupied[2].Equal(at(10, 45)))
}

func TestCreateAvailability_SkipsExpiredUnits(t *testing.T) {
	f := newFixture(t, Options{})
	f.now = at(9, 20)

	res, err := f.eng.CreateAvailability(context.Background(), f.owner.ID, at(9, 0), at(10, 0))
	require.NoError(t, err)

	require.Len(t, res.Skipped, 1)
	assert.Equal(t, SkipReasonExpired, res.Skipped[0].Reason)
	assert.Len(t, res.Created, 3)
}

func TestCreateRecurringAvailability(t *testing.T) {
	f := newFixture(t, Options{})

	rule := calendar.RecurringRule{
		Freq:      calendar.FreqDaily,
		Interval:  1,
		StartTime: at(9, 0),
		Duration:  time.Hour,
	}
	window := calendar.TimeRange{Start: at(0, 0), End: at(0, 0).AddDate(0, 0, 3)}

	res, err := f.eng.CreateRecurringAvailability(context.Background(), f.owner.ID, rule, window)
	require.NoError(t, err)
	assert.Len(t, res.Created, 12)

	res, err = f.eng.CreateRecurringAvailability(context.Background(), f.owner.ID, rule, window)
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Len(t, res.Skipped, 12, "re-applying the rule only skips")
}

func TestCreateRecurringAvailability_StoresSchedule(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	rule := calendar.RecurringRule{
		Freq:       calendar.FreqWeekly,
		Weekdays:   []time.Weekday{time.Monday, time.Wednesday},
		StartTime:  at(9, 0),
		Duration:   30 * time.Minute,
		Exceptions: map[time.Time]struct{}{time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC): {}},
	}
	window := calendar.TimeRange{Start: at(0, 0), End: at(0, 0).AddDate(0, 0, 14)}

	res, err := f.eng.CreateRecurringAvailability(ctx, f.owner.ID, rule, window)
	require.NoError(t, err)
	require.NotNil(t, res.Schedule)
	// пн 1, пн 8, ср 10 по два слота; ср 3 — исключение
	assert.Len(t, res.Created, 6)

	page, err := f.eng.ListSchedules(ctx, f.owner.ID, 1, 0)
	require.NoError(t, err)
	list := page.Items
	require.Len(t, list, 1)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 6, list[0].SlotsCreated)
	assert.Equal(t, "UTC", list[0].TimeZone)

	var rules model.ScheduleRules
	require.NoError(t, json.Unmarshal(list[0].Rules, &rules))
	assert.Equal(t, "weekly", rules.Freq)
	assert.Equal(t, []string{"monday", "wednesday"}, rules.Weekdays)
	assert.Equal(t, []string{"2024-01-03"}, rules.Exceptions)
	assert.Equal(t, 30, rules.DurationMin)

	_, err = f.eng.ListSchedules(ctx, uuid.New(), 1, 0)
	assert.ErrorIs(t, err, ErrOwnerNotFound)
}

func TestListAvailability_HidesExpiredAndPaginates(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.eng.CreateAvailability(ctx, f.owner.ID, at(9, 0), at(10, 0))
	require.NoError(t, err)

	f.now = at(9, 20)
	page, err := f.eng.ListAvailability(ctx, f.owner.ID, time.Time{}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 2)
	assert.True(t, page.Items[0].StartsAt.Equal(at(9, 15)))
	assert.True(t, page.HasNext)
	assert.False(t, page.HasPrev)

	page, err = f.eng.ListAvailability(ctx, f.owner.ID, time.Time{}, 2, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.False(t, page.HasNext)
	assert.True(t, page.HasPrev)
}

func TestDeleteAvailability(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	res, err := f.eng.CreateAvailability(ctx, f.owner.ID, at(9, 0), at(9, 30))
	require.NoError(t, err)

	other := testutil.SeedOwner(t, f.db, "other")
	err = f.eng.DeleteAvailability(ctx, other.ID, res.Created[0].ID)
	require.ErrorIs(t, err, ErrNotOwner)

	require.NoError(t, f.eng.DeleteAvailability(ctx, f.owner.ID, res.Created[0].ID))
	require.ErrorIs(t, f.eng.DeleteAvailability(ctx, f.owner.ID, res.Created[0].ID), ErrSlotNotFound)

	assert.Len(t, f.slots(t), 1)
}

// 09:00–10:00 даёт 4 слота, запись на 30 минут в 09:00 забирает два.
func TestBookAppointment_ConsumesSlots(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.eng.CreateAvailability(context.Background(), f.owner.ID, at(9, 0), at(10, 0))
	require.NoError(t, err)

	a := f.book(t, at(9, 0), 30)
	assert.True(t, a.StartsAt.Equal(at(9, 0)))
	assert.True(t, a.EndsAt.Equal(at(9, 30)))
	assert.Equal(t, model.AppointmentStatusActive, a.Status)

	assert.Equal(t, []time.Time{at(9, 30), at(9, 45)}, starts(f.slots(t)))
}

func TestBookAppointment_FortyFiveMinutesTakesThreeSlots(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.eng.CreateAvailability(context.Background(), f.owner.ID, at(9, 0), at(10, 0))
	require.NoError(t, err)

	a := f.book(t, at(9, 0), 45)
	assert.True(t, a.EndsAt.Equal(at(9, 45)))
	assert.Equal(t, []time.Time{at(9, 45)}, starts(f.slots(t)))
}

func TestBookAppointment_PartialDurationRoundsUp(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.eng.CreateAvailability(context.Background(), f.owner.ID, at(9, 0), at(10, 0))
	require.NoError(t, err)

	a := f.book(t, at(9, 0), 20)
	assert.Equal(t, 20, a.DurationMin)
	assert.True(t, a.EndsAt.Equal(at(9, 30)), "footprint covers whole slots")
	assert.Len(t, f.slots(t), 2)
}

func TestBookAppointment_MissingSlotConsumesNothing(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.eng.CreateAvailability(ctx, f.owner.ID, at(9, 0), at(9, 30))
	require.NoError(t, err)
	_, err = f.eng.CreateAvailability(ctx, f.owner.ID, at(9, 45), at(10, 0))
	require.NoError(t, err)
	before := starts(f.slots(t))

	_, err = f.eng.BookAppointment(ctx, BookRequest{OwnerID: f.owner.ID, Start: ptr(at(9, 0)), DurationMin: 45})
	require.ErrorIs(t, err, ErrInsufficientAvailability)
	assert.True(t, IsRetryable(err))

	var ia *InsufficientAvailabilityError
	require.True(t, errors.As(err, &ia))
	require.Len(t, ia.Missing, 1)
	assert.True(t, ia.Missing[0].Start.Equal(at(9, 30)))

	assert.Equal(t, before, starts(f.slots(t)))

	list, err := f.eng.ListAppointments(ctx, f.owner.ID, at(0, 0), at(23, 0), true)
	require.NoError(t, err)
	assert.Empty(t, list)
}

// racingSlots удаляет первый заблокированный слот сразу после выборки,
// как если бы его увели между выборкой и удалением.
type racingSlots struct {
	repository.SlotRepository
}

func (r *racingSlots) LockByStarts(ctx context.Context, ownerID uuid.UUID, starts []time.Time) ([]model.AvailabilitySlot, error) {
	locked, err := r.SlotRepository.LockByStarts(ctx, ownerID, starts)
	if err != nil || len(locked) == 0 {
		return locked, err
	}
	if _, err := r.SlotRepository.Delete(ctx, locked[0].ID); err != nil {
		return nil, err
	}
	return locked, nil
}

func TestReserve_SlotVanishesBeforeDelete(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.eng.CreateAvailability(ctx, f.owner.ID, at(9, 0), at(9, 30))
	require.NoError(t, err)

	err = f.store.InTx(ctx, func(tx *repository.Store) error {
		tx.Slots = &racingSlots{SlotRepository: tx.Slots}
		_, err := f.eng.reserve(ctx, tx, f.owner.ID, at(9, 0), 30, nil)
		return err
	})
	require.ErrorIs(t, err, ErrInsufficientAvailability)
	var ia *InsufficientAvailabilityError
	require.True(t, errors.As(err, &ia))
	assert.Equal(t, KindConflict, KindOf(err))

	// Транзакция откатилась целиком, оба слота на месте.
	assert.Equal(t, []time.Time{at(9, 0), at(9, 15)}, starts(f.slots(t)))
}

func TestBookAppointment_ConcurrentSameStart(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.eng.CreateAvailability(ctx, f.owner.ID, at(9, 0), at(10, 0))
	require.NoError(t, err)

	const n = 4
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.eng.BookAppointment(ctx, BookRequest{
				OwnerID:     f.owner.ID,
				Start:       ptr(at(9, 0)),
				DurationMin: 30,
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t,
			errors.Is(err, ErrAlreadyBooked) || errors.Is(err, ErrInsufficientAvailability),
			"unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok)

	list, err := f.eng.ListAppointments(ctx, f.owner.ID, at(0, 0), at(23, 0), false)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Len(t, f.slots(t), 2)
}

func TestBookAppointment_SlotIDTakesPrecedence(t *testing.T) {
	f := newFixture(t, Options{})

	res, err := f.eng.CreateAvailability(context.Background(), f.owner.ID, at(9, 0), at(10, 0))
	require.NoError(t, err)

	a, err := f.eng.BookAppointment(context.Background(), BookRequest{
		OwnerID:     f.owner.ID,
		SlotID:      &res.Created[2].ID,
		Start:       ptr(at(9, 0)),
		DurationMin: 15,
	})
	require.NoError(t, err)
	assert.True(t, a.StartsAt.Equal(at(9, 30)))
}

func TestBookAppointment_Errors(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	res, err := f.eng.CreateAvailability(ctx, f.owner.ID, at(9, 0), at(10, 0))
	require.NoError(t, err)
	other := testutil.SeedOwner(t, f.db, "other")

	tests := []struct {
		name string
		req  BookRequest
		want error
		kind Kind
	}{
		{
			name: "foreign slot",
			req:  BookRequest{OwnerID: other.ID, SlotID: &res.Created[0].ID},
			want: ErrNotOwner,
			kind: KindAuthorization,
		},
		{
			name: "unknown slot",
			req:  BookRequest{OwnerID: f.owner.ID, SlotID: ptr(uuid.New())},
			want: ErrSlotNotFound,
			kind: KindNotFound,
		},
		{
			name: "no start",
			req:  BookRequest{OwnerID: f.owner.ID},
			want: ErrMissingStart,
			kind: KindValidation,
		},
		{
			name: "negative duration",
			req:  BookRequest{OwnerID: f.owner.ID, Start: ptr(at(9, 0)), DurationMin: -15},
			want: ErrInvalidDuration,
			kind: KindValidation,
		},
		{
			name: "misaligned start",
			req:  BookRequest{OwnerID: f.owner.ID, Start: ptr(at(9, 10)), DurationMin: 15},
			want: calendar.ErrMisalignedRange,
			kind: KindValidation,
		},
		{
			name: "unknown owner",
			req:  BookRequest{OwnerID: uuid.New(), Start: ptr(at(9, 0))},
			want: ErrOwnerNotFound,
			kind: KindNotFound,
		},
		{
			name: "unknown consultation type",
			req:  BookRequest{OwnerID: f.owner.ID, Start: ptr(at(9, 0)), ConsultationTypeID: ptr(uuid.New())},
			want: ErrConsultationTypeNotFound,
			kind: KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.eng.BookAppointment(ctx, tt.req)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}

	assert.Len(t, f.slots(t), 4, "failed bookings consume nothing")
}

// Запредельная длительность — ошибка клиента, до обращения к базе.
func TestBookAppointment_DurationAboveMaximum(t *testing.T) {
	f := newFixture(t, Options{MaxDurationMin: 120})
	ctx := context.Background()

	_, err := f.eng.CreateAvailability(ctx, f.owner.ID, at(9, 0), at(12, 0))
	require.NoError(t, err)

	for _, minutes := range []int{121, 1_000_000} {
		_, err := f.eng.BookAppointment(ctx, BookRequest{OwnerID: f.owner.ID, Start: ptr(at(9, 0)), DurationMin: minutes})
		require.ErrorIs(t, err, ErrInvalidDuration, "minutes=%d", minutes)
		assert.Equal(t, KindValidation, KindOf(err))
	}

	_, err = f.eng.CreateConsultationType(ctx, ConsultationTypeInput{OwnerID: f.owner.ID, Name: "surgery", DurationMin: 240})
	require.ErrorIs(t, err, ErrInvalidDuration)

	a, err := f.eng.BookAppointment(ctx, BookRequest{OwnerID: f.owner.ID, Start: ptr(at(9, 0)), DurationMin: 120})
	require.NoError(t, err)
	assert.True(t, a.EndsAt.Equal(at(11, 0)))

	_, err = f.eng.RescheduleAppointment(ctx, RescheduleRequest{
		AppointmentID: a.ID,
		OwnerID:       f.owner.ID,
		NewStart:      ptr(at(9, 0)),
		DurationMin:   1_000_000,
	})
	require.ErrorIs(t, err, ErrInvalidDuration)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestNewEngine_DefaultMaxDuration(t *testing.T) {
	f := newFixture(t, Options{})
	assert.Equal(t, 24*60, f.eng.opts.MaxDurationMin)
}

func TestBookAppointment_AlreadyBooked(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.eng.CreateAvailability(ctx, f.owner.ID, at(9, 0), at(10, 0))
	require.NoError(t, err)
	f.book(t, at(9, 0), 30)

	_, err = f.eng.BookAppointment(ctx, BookRequest{OwnerID: f.owner.ID, Start: ptr(at(9, 15)), DurationMin: 15})
	require.ErrorIs(t, err, ErrAlreadyBooked)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestBookAppointment_DurationResolution(t *testing.T) {
	f := newFixture(t, Options{DefaultDurationMin: 15})
	ctx := context.Background()

	_, err := f.eng.CreateAvailability(ctx, f.owner.ID, at(9, 0), at(11, 0))
	require.NoError(t, err)

	ct, err := f.eng.CreateConsultationType(ctx, ConsultationTypeInput{
		OwnerID:     f.owner.ID,
		Name:        "Control",
		DurationMin: 45,
	})
	require.NoError(t, err)

	a, err := f.eng.BookAppointment(ctx, BookRequest{OwnerID: f.owner.ID, Start: ptr(at(9, 0)), ConsultationTypeID: &ct.ID})
	require.NoError(t, err)
	assert.Equal(t, 45, a.DurationMin)

	a, err = f.eng.BookAppointment(ctx, BookRequest{
		OwnerID:            f.owner.ID,
		Start:              ptr(at(10, 0)),
		ConsultationTypeID: &ct.ID,
		DurationMin:        30,
	})
	require.NoError(t, err)
	assert.Equal(t, 30, a.DurationMin, "explicit hint wins over type")

	a, err = f.eng.BookAppointment(ctx, BookRequest{OwnerID: f.owner.ID, Start: ptr(at(10, 45))})
	require.NoError(t, err)
	assert.Equal(t, 15, a.DurationMin)
}

func TestListConsultationTypes_Pages(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	for _, name := range []string{"Control", "Surgery", "Vaccination"} {
		_, err := f.eng.CreateConsultationType(ctx, ConsultationTypeInput{OwnerID: f.owner.ID, Name: name, DurationMin: 30})
		require.NoError(t, err)
	}

	page, err := f.eng.ListConsultationTypes(ctx, f.owner.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Control", page.Items[0].Name)
	assert.Equal(t, 3, page.Total)
	assert.True(t, page.HasNext)

	page, err = f.eng.ListConsultationTypes(ctx, f.owner.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Vaccination", page.Items[0].Name)
	assert.False(t, page.HasNext)
	assert.True(t, page.HasPrev)
}

func TestBookAppointment_ExpiredSlotIsNotBookable(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.eng.CreateAvailability(ctx, f.owner.ID, at(9, 0), at(9, 30))
	require.NoError(t, err)

	f.now = at(9, 20)
	_, err = f.eng.BookAppointment(ctx, BookRequest{OwnerID: f.owner.ID, Start: ptr(at(9, 0)), DurationMin: 15})
	require.ErrorIs(t, err, ErrInsufficientAvailability)

	a := f.book(t, at(9, 15), 15)
	assert.True(t, a.StartsAt.Equal(at(9, 15)))
}

func TestBookAppointment_WritesAuditEvent(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	_, err := f.eng.CreateAvailability(ctx, f.owner.ID, at(9, 0), at(10, 0))
	require.NoError(t, err)
	a := f.book(t, at(9, 0), 15)

	_, err = f.eng.CancelAppointment(ctx, CancelRequest{AppointmentID: a.ID, OwnerID: f.owner.ID})
	require.NoError(t, err)

	events, err := f.store.Events.ListByAppointment(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.EventTypeAppointmentBooked, events[0].EventType)
	assert.Equal(t, model.EventTypeAppointmentCancelled, events[1].EventType)
}

func TestEngine_UsesSchedulingZone(t *testing.T) {
	db := testutil.OpenDB(t)
	owner := testutil.SeedOwner(t, db, "dr")

	// В январе Сантьяго живёт по UTC-03:00.
	clk, err := clock.New("America/Santiago", 999*time.Millisecond, clock.WithNow(func() time.Time { return at(0, 0) }))
	require.NoError(t, err)
	eng := NewEngine(repository.NewStore(db), clk, zaptest.NewLogger(t), Options{})
	ctx := context.Background()

	loc := clk.Location()
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, loc)

	res, err := eng.CreateAvailability(ctx, owner.ID, start, start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, res.Created, 4)
	assert.True(t, res.Created[0].StartsAt.Equal(at(12, 0)))

	_, err = eng.CreateAvailability(ctx, owner.ID, start.Add(5*time.Minute), start.Add(time.Hour))
	require.ErrorIs(t, err, calendar.ErrMisalignedRange)

	// Тот же момент, переданный в UTC.
	a, err := eng.BookAppointment(ctx, BookRequest{OwnerID: owner.ID, Start: ptr(at(12, 0)), DurationMin: 30})
	require.NoError(t, err)
	assert.Equal(t, loc, a.StartsAt.Location())
	assert.Equal(t, 9, a.StartsAt.Hour())

	page, err := eng.ListAvailability(ctx, owner.ID, time.Time{}, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, 9, page.Items[0].StartsAt.Hour())
	assert.Equal(t, 30, page.Items[0].StartsAt.Minute())
}
