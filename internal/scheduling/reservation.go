package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PulpFictionApps/veterinaria/internal/calendar"
	"github.com/PulpFictionApps/veterinaria/internal/model"
	"github.com/PulpFictionApps/veterinaria/internal/repository"
)

// ReleaseResult — чем закончилась попытка вернуть слот в доступность.
type ReleaseResult int

const (
	ReleaseRestored ReleaseResult = iota
	ReleaseSkippedCollision
	ReleaseSkippedAlreadyExists
	ReleaseSkippedExpired
	ReleaseFailed
)

func (r ReleaseResult) String() string {
	switch r {
	case ReleaseRestored:
		return "restored"
	case ReleaseSkippedCollision:
		return "skipped_collision"
	case ReleaseSkippedAlreadyExists:
		return "skipped_already_exists"
	case ReleaseSkippedExpired:
		return "skipped_expired"
	default:
		return "failed"
	}
}

type ReleaseOutcome struct {
	Range  calendar.TimeRange
	Result ReleaseResult
}

// Restored — сколько слотов реально вернулось.
func Restored(outcomes []ReleaseOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Result == ReleaseRestored {
			n++
		}
	}
	return n
}

// footprint — интервал, который занимают slotsNeeded слотов начиная со start.
func footprint(start time.Time, durationMin int) calendar.TimeRange {
	n := calendar.SlotsNeeded(durationMin)
	return calendar.TimeRange{Start: start, End: start.Add(time.Duration(n) * calendar.SlotDuration)}
}

// reserve удаляет непрерывную цепочку слотов под запись [start, start+duration).
// Слоты внутри owned уже принадлежат переносимой записи и не требуются.
// Любой недостающий слот — InsufficientAvailabilityError, ничего не удаляется:
// ошибка откатывает транзакцию вызывающего.
func (e *Engine) reserve(
	ctx context.Context,
	tx *repository.Store,
	ownerID uuid.UUID,
	start time.Time,
	durationMin int,
	owned *calendar.TimeRange,
) (calendar.TimeRange, error) {
	if err := e.checkDuration(durationMin); err != nil {
		return calendar.TimeRange{}, err
	}

	loc := e.clock.Location()
	fp := footprint(start.In(loc), durationMin)
	if !calendar.IsQuarterAligned(fp.Start, loc) {
		return calendar.TimeRange{}, &calendar.MisalignedRangeError{Start: fp.Start, End: fp.End}
	}

	var starts []time.Time
	for cur := fp.Start; cur.Before(fp.End); cur = cur.Add(calendar.SlotDuration) {
		if owned != nil && owned.Contains(cur) {
			continue
		}
		starts = append(starts, cur)
	}
	if len(starts) == 0 {
		return fp, nil
	}

	locked, err := tx.Slots.LockByStarts(ctx, ownerID, starts)
	if err != nil {
		return calendar.TimeRange{}, err
	}

	byStart := make(map[int64]model.AvailabilitySlot, len(locked))
	for _, s := range locked {
		byStart[s.StartsAt.UnixNano()] = s
	}

	// Истёкший, но ещё не вычищенный слот забронировать нельзя.
	cutoff := e.clock.Cutoff(e.clock.Now())

	ids := make([]uuid.UUID, 0, len(starts))
	var missing []calendar.TimeRange
	for _, s := range starts {
		end := s.Add(calendar.SlotDuration)
		slot, ok := byStart[s.UnixNano()]
		if !ok || !slot.EndsAt.Equal(end) || !end.After(cutoff) {
			missing = append(missing, calendar.TimeRange{Start: s, End: end})
			continue
		}
		ids = append(ids, slot.ID)
	}
	if len(missing) > 0 {
		return calendar.TimeRange{}, &InsufficientAvailabilityError{Missing: missing}
	}

	deleted, err := tx.Slots.DeleteByIDs(ctx, ids)
	if err != nil {
		return calendar.TimeRange{}, err
	}
	// Кто-то успел забрать слот между выборкой и удалением.
	if deleted != int64(len(ids)) {
		return calendar.TimeRange{}, &InsufficientAvailabilityError{}
	}

	return fp, nil
}

// release пытается вернуть в доступность освобождённый интервал.
// Работает в SAVEPOINT: сбой откатывает только возврат слотов,
// родительская операция продолжается.
func (e *Engine) release(
	ctx context.Context,
	tx *repository.Store,
	ownerID uuid.UUID,
	vacated calendar.TimeRange,
) []ReleaseOutcome {
	loc := e.clock.Location()

	units, err := calendar.SplitQuarterSlots(vacated.Start, vacated.End, loc)
	if err != nil {
		e.log.Warn("release: vacated interval is not splittable",
			zap.String("owner_id", ownerID.String()),
			zap.Time("start", vacated.Start),
			zap.Time("end", vacated.End),
			zap.Error(err),
		)
		return []ReleaseOutcome{{Range: vacated, Result: ReleaseFailed}}
	}
	if !e.opts.ReleaseFullFootprint {
		units = units[:1]
	}

	cutoff := e.clock.Cutoff(e.clock.Now())
	outcomes := make([]ReleaseOutcome, 0, len(units))

	err = tx.InTx(ctx, func(sp *repository.Store) error {
		occupied, err := occupiedRanges(ctx, sp, ownerID, units)
		if err != nil {
			return err
		}

		for _, u := range units {
			if !u.End.After(cutoff) {
				outcomes = append(outcomes, ReleaseOutcome{Range: u, Result: ReleaseSkippedExpired})
				continue
			}
			if busy, _ := calendar.HasOverlap(u, occupied, false); busy {
				outcomes = append(outcomes, ReleaseOutcome{Range: u, Result: ReleaseSkippedCollision})
				continue
			}

			created, err := sp.Slots.CreateIfAbsent(ctx, &model.AvailabilitySlot{
				OwnerID:  ownerID,
				StartsAt: u.Start,
				EndsAt:   u.End,
			})
			if err != nil {
				return err
			}
			res := ReleaseSkippedAlreadyExists
			if created {
				res = ReleaseRestored
			}
			outcomes = append(outcomes, ReleaseOutcome{Range: u, Result: res})
		}
		return nil
	})
	if err != nil {
		e.log.Warn("release failed, availability not restored",
			zap.String("owner_id", ownerID.String()),
			zap.Time("start", vacated.Start),
			zap.Time("end", vacated.End),
			zap.Error(err),
		)
		failed := make([]ReleaseOutcome, 0, len(units))
		for _, u := range units {
			failed = append(failed, ReleaseOutcome{Range: u, Result: ReleaseFailed})
		}
		return failed
	}

	return outcomes
}
