package appointment

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesSentinelCopies(t *testing.T) {
	err := withMessage(ErrInvalidTransition, "appointment is already completed")

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NotErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, "appointment is already completed", err.Message)
	assert.Equal(t, "status change not allowed from the current status", ErrInvalidTransition.Message)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConflict, KindOf(ErrTimeConflict))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("wrapped: %w", ErrPetNotFound)))
	assert.Equal(t, KindInfrastructure, KindOf(errors.New("connection reset")))
}

func TestInfraErrorHidesCause(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.5:5432: connection refused")
	err := infraError("load appointment", cause)

	assert.Equal(t, KindInfrastructure, err.Kind)
	assert.Equal(t, "internal error", err.Message)
	assert.ErrorIs(t, err, cause)
}

func TestWrapStore(t *testing.T) {
	assert.Same(t, ErrAppointmentModified, wrapStore("update", ErrAppointmentModified))
	assert.Equal(t, KindInfrastructure, KindOf(wrapStore("update", errors.New("boom"))))
}
