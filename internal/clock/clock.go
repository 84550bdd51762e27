// Package clock переводит "сейчас" в зону расписания и считает границы четвертей часа.
package clock

import (
	"fmt"
	"time"
)

const quarter = 15 * time.Minute

// Clock привязан к именованной зоне (не к закешированному смещению),
// поэтому переходы на летнее время учитываются автоматически.
type Clock struct {
	loc       *time.Location
	tolerance time.Duration
	now       func() time.Time
}

type Option func(*Clock)

// WithNow подменяет источник времени (для тестов).
func WithNow(now func() time.Time) Option {
	return func(c *Clock) {
		c.now = now
	}
}

// New загружает зону zone. Ошибка загрузки не маскируется локальным временем:
// вызывающий обязан остановить процесс.
func New(zone string, tolerance time.Duration, opts ...Option) (*Clock, error) {
	if zone == "" {
		return nil, fmt.Errorf("scheduling timezone is empty")
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	if tolerance < 0 || tolerance >= quarter {
		return nil, fmt.Errorf("expiry tolerance %s out of range [0, %s)", tolerance, quarter)
	}

	c := &Clock{loc: loc, tolerance: tolerance, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

func (c *Clock) Location() *time.Location {
	return c.loc
}

func (c *Clock) Tolerance() time.Duration {
	return c.tolerance
}

// LastQuarterBoundary — ближайший момент в прошлом (или сам t), у которого
// минуты кратны 15, а секунды и миллисекунды обнулены.
func (c *Clock) LastQuarterBoundary(t time.Time) time.Time {
	t = t.In(c.loc)
	// Вычитаем, а не собираем через time.Date: в час перевода часов
	// time.Date неоднозначен.
	offset := time.Duration(t.Minute()%15)*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
	return t.Add(-offset)
}

// NextQuarterBoundary — следующая граница строго после t.
func (c *Clock) NextQuarterBoundary(t time.Time) time.Time {
	return c.LastQuarterBoundary(t).Add(quarter)
}

// Cutoff: слот с end <= Cutoff(now) считается истёкшим.
func (c *Clock) Cutoff(now time.Time) time.Time {
	return c.LastQuarterBoundary(now).Add(c.tolerance)
}
