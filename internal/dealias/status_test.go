package dealias

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCode(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0, Status(0).Code())
	assert.Equal(t, 1, StatusNoInitialGuess.Code())
	assert.Equal(t, 2, StatusBoundaryReached.Code())
	assert.Equal(t, 4, StatusNearNyquist.Code())
	assert.Equal(t, 8, StatusInconsistentPrevious.Code())
	assert.Equal(t, 15, (StatusNoInitialGuess | StatusBoundaryReached | StatusNearNyquist | StatusInconsistentPrevious).Code())

	for code := 0; code < 16; code++ {
		assert.Equal(t, code, StatusFromCode(code).Code())
	}
	assert.Equal(t, StatusNoInitialGuess, StatusFromCode(17))
}

func TestStatusHasWith(t *testing.T) {
	t.Parallel()
	s := Status(0).With(StatusNearNyquist)
	assert.True(t, s.Has(StatusNearNyquist))
	assert.False(t, s.Has(StatusBoundaryReached))
	assert.False(t, s.Has(0))

	s = s.With(StatusNearNyquist).With(StatusNoInitialGuess)
	assert.Equal(t, 5, s.Code())
	assert.True(t, s.Has(StatusNearNyquist|StatusNoInitialGuess))
}

func TestStatusString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "ok", Status(0).String())
	assert.Equal(t, "boundary_reached", StatusBoundaryReached.String())
	assert.Equal(t, "no_initial_guess|near_nyquist", (StatusNearNyquist | StatusNoInitialGuess).String())
}

func TestStatusFlags(t *testing.T) {
	t.Parallel()
	f := (StatusBoundaryReached | StatusInconsistentPrevious).Flags()
	assert.Equal(t, StatusFlags{BoundaryReached: true, InconsistentPrevious: true}, f)

	b, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"no_initial_guess":false,"boundary_reached":true,"near_nyquist":false,"inconsistent_previous":true}`, string(b))

	var all Status
	for _, s := range AllStatusFlags() {
		all = all.With(s)
	}
	assert.Equal(t, 15, all.Code())
}
