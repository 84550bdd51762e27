// Package scheduling — ядро бронирования: доступность, резервирование слотов
// и жизненный цикл записей. Вся взаимная блокировка между запросами
// делегирована транзакциям хранилища.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/PulpFictionApps/veterinaria/internal/calendar"
	"github.com/PulpFictionApps/veterinaria/internal/clock"
	"github.com/PulpFictionApps/veterinaria/internal/model"
	"github.com/PulpFictionApps/veterinaria/internal/repository"
)

const (
	defaultDurationMin    = 30
	defaultMaxDurationMin = 24 * 60
)

type Options struct {
	// Длительность записи, если её не задали ни запрос, ни тип приёма.
	DefaultDurationMin int
	// Верхняя граница длительности одной записи.
	MaxDurationMin int
	// true — при отмене/переносе возвращаются все слоты записи,
	// false — только первый (как в исходной системе).
	ReleaseFullFootprint bool
}

type Engine struct {
	store *repository.Store
	clock *clock.Clock
	log   *zap.Logger
	opts  Options
}

func NewEngine(store *repository.Store, clk *clock.Clock, log *zap.Logger, opts Options) *Engine {
	if opts.DefaultDurationMin <= 0 {
		opts.DefaultDurationMin = defaultDurationMin
	}
	if opts.MaxDurationMin <= 0 {
		opts.MaxDurationMin = defaultMaxDurationMin
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store: store,
		clock: clk,
		log:   log.Named("scheduling"),
		opts:  opts,
	}
}

func (e *Engine) Clock() *clock.Clock {
	return e.clock
}

func (e *Engine) RegisterOwner(ctx context.Context, displayName, email string) (*model.Owner, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, &ValidationError{Field: "display_name", Reason: "is required"}
	}

	owner := &model.Owner{DisplayName: displayName, Email: strings.TrimSpace(email)}
	if err := e.store.Owners.Create(ctx, owner); err != nil {
		return nil, err
	}

	e.log.Info("owner registered", zap.String("owner_id", owner.ID.String()))
	return owner, nil
}

type ConsultationTypeInput struct {
	OwnerID     uuid.UUID
	Name        string
	Description string
	DurationMin int
}

func (e *Engine) CreateConsultationType(ctx context.Context, in ConsultationTypeInput) (*model.ConsultationType, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "is required"}
	}
	if err := e.checkDuration(in.DurationMin); err != nil {
		return nil, err
	}
	if _, err := e.getOwner(ctx, e.store, in.OwnerID); err != nil {
		return nil, err
	}

	ct := &model.ConsultationType{
		OwnerID:     in.OwnerID,
		Name:        name,
		Description: in.Description,
		DurationMin: in.DurationMin,
		IsActive:    true,
	}
	if err := e.store.ConsultationTypes.Create(ctx, ct); err != nil {
		return nil, err
	}
	return ct, nil
}

// ListConsultationTypes — активные типы приёма владельца, постранично.
func (e *Engine) ListConsultationTypes(
	ctx context.Context,
	ownerID uuid.UUID,
	page, pageSize int,
) (calendar.Page[model.ConsultationType], error) {
	list, err := e.store.ConsultationTypes.ListByOwner(ctx, ownerID, true)
	if err != nil {
		return calendar.Page[model.ConsultationType]{}, err
	}
	return calendar.Paginate(list, page, pageSize), nil
}

func (e *Engine) getOwner(ctx context.Context, s *repository.Store, id uuid.UUID) (*model.Owner, error) {
	o, err := s.Owners.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOwnerNotFound
	}
	return o, err
}

// resolveDuration: явная подсказка > тип приёма > значение по умолчанию.
func (e *Engine) resolveDuration(
	ctx context.Context,
	s *repository.Store,
	ownerID uuid.UUID,
	hint int,
	typeID *uuid.UUID,
) (int, error) {
	if hint != 0 {
		return hint, e.checkDuration(hint)
	}
	if typeID != nil {
		ct, err := s.ConsultationTypes.GetByID(ctx, *typeID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrConsultationTypeNotFound
		}
		if err != nil {
			return 0, err
		}
		if ct.OwnerID != ownerID {
			return 0, ErrNotOwner
		}
		if ct.DurationMin > 0 {
			return ct.DurationMin, e.checkDuration(ct.DurationMin)
		}
	}
	return e.opts.DefaultDurationMin, nil
}

// checkDuration: длительность положительна и не больше MaxDurationMin.
func (e *Engine) checkDuration(minutes int) error {
	if minutes <= 0 || minutes > e.opts.MaxDurationMin {
		return fmt.Errorf("%w: %d min, allowed 1..%d", ErrInvalidDuration, minutes, e.opts.MaxDurationMin)
	}
	return nil
}

// audit пишет событие в той же транзакции, что и изменение.
func (e *Engine) audit(
	ctx context.Context,
	s *repository.Store,
	t model.EventType,
	ownerID uuid.UUID,
	appointmentID *uuid.UUID,
	details any,
) error {
	ev, err := model.NewEvent(t, ownerID, appointmentID, details)
	if err != nil {
		return err
	}
	return s.Events.Create(ctx, ev)
}
