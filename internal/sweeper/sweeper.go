// Package sweeper периодически вычищает истёкшую доступность и старые записи.
// Запуски выровнены по четвертям часа в зоне расписания.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/PulpFictionApps/veterinaria/internal/clock"
	"github.com/PulpFictionApps/veterinaria/internal/repository"
)

const (
	lockKey        = "expiry-sweep"
	defaultTimeout = 30 * time.Second
)

// Locker — распределённая аренда; nil — без координации между репликами.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context), ok bool, err error)
}

type Options struct {
	Schedule  string
	Retention time.Duration
	Timeout   time.Duration
	LockTTL   time.Duration
	OnStart   bool
}

type Result struct {
	Cutoff              time.Time
	SlotsDeleted        int64
	AppointmentsDeleted int64
	// Skipped — аренду держит другая реплика.
	Skipped bool
}

type Sweeper struct {
	store  *repository.Store
	clock  *clock.Clock
	log    *zap.Logger
	opts   Options
	locker Locker

	cron *cron.Cron
	// внеплановый запуск при старте
	initial sync.WaitGroup
}

func New(store *repository.Store, clk *clock.Clock, log *zap.Logger, opts Options, locker Locker) *Sweeper {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{
		store:  store,
		clock:  clk,
		log:    log.Named("sweeper"),
		opts:   opts,
		locker: locker,
	}
}

// RunOnce: два независимых удаления. Ошибка одного не отменяет другое,
// обе возвращаются вместе.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	now := s.clock.Now()
	res := Result{Cutoff: s.clock.Cutoff(now)}

	if s.locker != nil && s.opts.LockTTL > 0 {
		release, ok, err := s.locker.Acquire(ctx, lockKey, s.opts.LockTTL)
		switch {
		case err != nil:
			// Повторная чистка безопасна, так что без аренды всё равно работаем.
			s.log.Warn("sweep lease unavailable, sweeping anyway", zap.Error(err))
		case !ok:
			s.log.Debug("sweep lease held elsewhere, skipping")
			res.Skipped = true
			return res, nil
		default:
			defer release(context.WithoutCancel(ctx))
		}
	}

	var errs []error

	slots, err := s.store.Slots.DeleteExpired(ctx, res.Cutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("delete expired slots: %w", err))
	}
	res.SlotsDeleted = slots

	if s.opts.Retention > 0 {
		appts, err := s.store.Appointments.DeleteStartedBefore(ctx, now.Add(-s.opts.Retention))
		if err != nil {
			errs = append(errs, fmt.Errorf("purge old appointments: %w", err))
		}
		res.AppointmentsDeleted = appts
	}

	s.log.Info("sweep finished",
		zap.Time("cutoff", res.Cutoff),
		zap.Int64("slots_deleted", res.SlotsDeleted),
		zap.Int64("appointments_deleted", res.AppointmentsDeleted),
		zap.Int("errors", len(errs)),
	)

	return res, errors.Join(errs...)
}

// Start регистрирует задачу в cron. Паника и ошибки задачи не роняют процесс,
// наложившиеся запуски пропускаются.
func (s *Sweeper) Start() error {
	if s.cron != nil {
		return errors.New("sweeper already started")
	}

	cl := cronLogger{log: s.log.Sugar()}
	c := cron.New(
		cron.WithLocation(s.clock.Location()),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	id, err := c.AddFunc(s.opts.Schedule, s.tick)
	if err != nil {
		return fmt.Errorf("schedule sweep %q: %w", s.opts.Schedule, err)
	}

	s.cron = c
	c.Start()

	s.log.Info("sweeper started",
		zap.String("schedule", s.opts.Schedule),
		zap.String("zone", s.clock.Location().String()),
		zap.Time("next", c.Entry(id).Next),
	)

	if s.opts.OnStart {
		// Через ту же цепочку, чтобы не пересечься с плановым запуском.
		job := c.Entry(id).WrappedJob
		s.initial.Add(1)
		go func() {
			defer s.initial.Done()
			job.Run()
		}()
	}
	return nil
}

// Stop останавливает планировщик и ждёт текущий запуск (не дольше ctx).
func (s *Sweeper) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	stopped := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		s.initial.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("sweeper stop timed out")
	}
}

func (s *Sweeper) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		s.log.Error("sweep failed, will retry on next tick", zap.Error(err))
	}
}

type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
