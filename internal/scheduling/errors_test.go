package scheduling

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PulpFictionApps/veterinaria/internal/calendar"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{ErrMissingStart, KindValidation},
		{&ValidationError{Field: "name", Reason: "is required"}, KindValidation},
		{&calendar.MisalignedRangeError{}, KindValidation},
		{fmt.Errorf("book: %w", calendar.ErrRangeTooSmall), KindValidation},
		{ErrAlreadyBooked, KindConflict},
		{&InsufficientAvailabilityError{}, KindConflict},
		{fmt.Errorf("tx: %w", ErrNotOwner), KindAuthorization},
		{ErrAppointmentNotFound, KindNotFound},
		{errors.New("connection refused"), KindInfrastructure},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestInsufficientAvailabilityError_ListsMissingSlots(t *testing.T) {
	err := &InsufficientAvailabilityError{Missing: []calendar.TimeRange{
		{Start: at(9, 30), End: at(9, 45)},
	}}

	assert.ErrorIs(t, err, ErrInsufficientAvailability)
	assert.Contains(t, err.Error(), "2024-01-01T09:30Z")
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(ErrNotOwner))
}
