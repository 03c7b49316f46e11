package core_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/metacoglab/dreammem-go/pkg/core"
)

func TestMemoryError_Format(t *testing.T) {
	err := &core.MemoryError{
		Op:  "Save",
		Err: core.ErrValidation,
	}
	assert.Equal(t, "dreammem: Save: invalid input", err.Error())
}

func TestMemoryError_Unwrap(t *testing.T) {
	err := core.NewMemoryError("Search", core.ErrIndexInconsistency)
	assert.ErrorIs(t, err, core.ErrIndexInconsistency)

	var memErr *core.MemoryError
	assert.ErrorAs(t, err, &memErr)
	assert.Equal(t, "Search", memErr.Op)
}

func TestMemoryError_UnwrapChain(t *testing.T) {
	inner := fmt.Errorf("%w: empty content", core.ErrValidation)
	err := core.NewMemoryError("Save", inner)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestNewMemoryError_NilSafe(t *testing.T) {
	assert.NoError(t, core.NewMemoryError("Save", nil))
	assert.Error(t, core.NewMemoryError("Save", errors.New("boom")))
}

func TestPredefinedErrorsAreDistinct(t *testing.T) {
	sentinels := []error{
		core.ErrValidation,
		core.ErrNotFound,
		core.ErrInvalidConfig,
		core.ErrBackendUnavailable,
		core.ErrBackendTimeout,
		core.ErrIndexInconsistency,
		core.ErrConsolidationRunning,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.NotErrorIs(t, a, b)
		}
	}
}
