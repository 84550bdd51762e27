package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/PulpFictionApps/veterinaria/internal/calendar"
	"github.com/PulpFictionApps/veterinaria/internal/model"
	"github.com/PulpFictionApps/veterinaria/internal/repository"
)

// Окно разворачивания повторяющейся доступности.
const maxRecurringWindow = 93 * 24 * time.Hour

type SkipReason string

const (
	SkipReasonExists   SkipReason = "exists"
	SkipReasonOccupied SkipReason = "occupied"
	SkipReasonExpired  SkipReason = "expired"
)

type SkippedRange struct {
	Range  calendar.TimeRange
	Reason SkipReason
}

// AvailabilityResult — частичный успех: дубликаты пропускаются, а не валят запрос.
type AvailabilityResult struct {
	Created []model.AvailabilitySlot
	Skipped []SkippedRange
	// Schedule — сохранённое правило; только для повторяющейся доступности.
	Schedule *model.Schedule
}

func (r *AvailabilityResult) merge(other *AvailabilityResult) {
	r.Created = append(r.Created, other.Created...)
	r.Skipped = append(r.Skipped, other.Skipped...)
}

// CreateAvailability режет [start, end) на 15-минутные слоты и сохраняет их.
func (e *Engine) CreateAvailability(ctx context.Context, ownerID uuid.UUID, start, end time.Time) (*AvailabilityResult, error) {
	units, err := calendar.SplitQuarterSlots(start, end, e.clock.Location())
	if err != nil {
		return nil, err
	}

	res := &AvailabilityResult{}
	err = e.store.InTx(ctx, func(tx *repository.Store) error {
		if _, err := e.getOwner(ctx, tx, ownerID); err != nil {
			return err
		}
		out, err := e.createUnits(ctx, tx, ownerID, units)
		if err != nil {
			return err
		}
		res = out
		return e.auditAvailability(ctx, tx, ownerID, res)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("availability created",
		zap.String("owner_id", ownerID.String()),
		zap.Int("created", len(res.Created)),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

// CreateRecurringAvailability разворачивает правило в окне window
// и создаёт слоты для каждого повторения в одной транзакции.
func (e *Engine) CreateRecurringAvailability(
	ctx context.Context,
	ownerID uuid.UUID,
	rule calendar.RecurringRule,
	window calendar.TimeRange,
) (*AvailabilityResult, error) {
	loc := e.clock.Location()
	win, err := calendar.NormalizeTimeRange(window.Start, window.End, loc, maxRecurringWindow)
	if err != nil {
		return nil, err
	}
	rule.StartTime = rule.StartTime.In(loc)

	occurrences, err := calendar.ExpandRecurringRule(rule, win)
	if err != nil {
		return nil, err
	}

	var units []calendar.TimeRange
	for _, occ := range occurrences {
		split, err := calendar.SplitQuarterSlots(occ.Start, occ.End, loc)
		if err != nil {
			return nil, err
		}
		units = append(units, split...)
	}

	res := &AvailabilityResult{}
	err = e.store.InTx(ctx, func(tx *repository.Store) error {
		if _, err := e.getOwner(ctx, tx, ownerID); err != nil {
			return err
		}
		out, err := e.createUnits(ctx, tx, ownerID, units)
		if err != nil {
			return err
		}
		res.merge(out)

		sched, err := newSchedule(ownerID, rule, win, loc, len(res.Created))
		if err != nil {
			return err
		}
		if err := tx.Schedules.Create(ctx, sched); err != nil {
			return err
		}
		res.Schedule = sched

		return e.auditAvailability(ctx, tx, ownerID, res)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("recurring availability created",
		zap.String("owner_id", ownerID.String()),
		zap.Int("occurrences", len(occurrences)),
		zap.Int("created", len(res.Created)),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

func (e *Engine) createUnits(
	ctx context.Context,
	tx *repository.Store,
	ownerID uuid.UUID,
	units []calendar.TimeRange,
) (*AvailabilityResult, error) {
	cutoff := e.clock.Cutoff(e.clock.Now())
	res := &AvailabilityResult{}

	// Время под активной записью уже потреблено, заново его не открываем.
	occupied, err := occupiedRanges(ctx, tx, ownerID, units)
	if err != nil {
		return nil, err
	}

	for _, u := range units {
		if !u.End.After(cutoff) {
			res.Skipped = append(res.Skipped, SkippedRange{Range: u, Reason: SkipReasonExpired})
			continue
		}
		if busy, _ := calendar.HasOverlap(u, occupied, false); busy {
			res.Skipped = append(res.Skipped, SkippedRange{Range: u, Reason: SkipReasonOccupied})
			continue
		}

		slot := model.AvailabilitySlot{OwnerID: ownerID, StartsAt: u.Start, EndsAt: u.End}
		created, err := tx.Slots.CreateIfAbsent(ctx, &slot)
		if err != nil {
			return nil, err
		}
		if !created {
			res.Skipped = append(res.Skipped, SkippedRange{Range: u, Reason: SkipReasonExists})
			continue
		}
		res.Created = append(res.Created, slot)
	}

	return res, nil
}

// occupiedRanges — интервалы активных записей владельца, задевающих units.
func occupiedRanges(
	ctx context.Context,
	s *repository.Store,
	ownerID uuid.UUID,
	units []calendar.TimeRange,
) ([]calendar.TimeRange, error) {
	if len(units) == 0 {
		return nil, nil
	}

	from, to := units[0].Start, units[0].End
	for _, u := range units[1:] {
		if u.Start.Before(from) {
			from = u.Start
		}
		if u.End.After(to) {
			to = u.End
		}
	}

	busy, err := s.Appointments.ListActiveOverlapping(ctx, ownerID, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]calendar.TimeRange, 0, len(busy))
	for _, a := range busy {
		out = append(out, calendar.TimeRange{Start: a.StartsAt, End: a.EndsAt})
	}
	return out, nil
}

func (e *Engine) auditAvailability(ctx context.Context, tx *repository.Store, ownerID uuid.UUID, res *AvailabilityResult) error {
	if len(res.Created) == 0 {
		return nil
	}
	return e.audit(ctx, tx, model.EventTypeAvailabilityCreated, ownerID, nil, map[string]any{
		"created": len(res.Created),
		"skipped": len(res.Skipped),
		"from":    res.Created[0].StartsAt,
		"to":      res.Created[len(res.Created)-1].EndsAt,
	})
}

// ListAvailability — неистёкшие слоты владельца на момент asOf
// (нулевой asOf — сейчас).
func (e *Engine) ListAvailability(
	ctx context.Context,
	ownerID uuid.UUID,
	asOf time.Time,
	page, pageSize int,
) (calendar.Page[model.AvailabilitySlot], error) {
	if asOf.IsZero() {
		asOf = e.clock.Now()
	}
	page, pageSize, offset := calendar.PageWindow(page, pageSize)

	slots, total, err := e.store.Slots.ListByOwner(ctx, ownerID, e.clock.Cutoff(asOf), pageSize, offset)
	if err != nil {
		return calendar.Page[model.AvailabilitySlot]{}, err
	}

	loc := e.clock.Location()
	for i := range slots {
		slots[i].StartsAt = slots[i].StartsAt.In(loc)
		slots[i].EndsAt = slots[i].EndsAt.In(loc)
	}

	return calendar.NewPage(slots, page, pageSize, int(total)), nil
}

// DeleteAvailability удаляет свободный слот владельца.
func (e *Engine) DeleteAvailability(ctx context.Context, ownerID, slotID uuid.UUID) error {
	return e.store.InTx(ctx, func(tx *repository.Store) error {
		slot, err := tx.Slots.GetByID(ctx, slotID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSlotNotFound
		}
		if err != nil {
			return err
		}
		if slot.OwnerID != ownerID {
			return ErrNotOwner
		}

		n, err := tx.Slots.Delete(ctx, slotID)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrSlotNotFound
		}

		return e.audit(ctx, tx, model.EventTypeAvailabilityDeleted, ownerID, nil, map[string]any{
			"slot_id":   slotID,
			"starts_at": slot.StartsAt,
		})
	})
}
