package timer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yambati03/touille/internal/ports/inbound"
	apperrors "github.com/yambati03/touille/pkg/errors"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestTimerService(t *testing.T, opts Options) (*TimerService, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewTimerService(opts, zaptest.NewLogger(t))
	svc.now = clock.Now
	return svc, clock
}

func TestStartTimerRunsCountdown(t *testing.T) {
	svc, clock := newTestTimerService(t, Options{})

	dto, err := svc.StartTimer(context.Background(), inbound.StartTimerCommand{
		UserID:   "user-1",
		RecipeID: "recipe-1",
		Step:     3,
		Label:    "Simmer the sauce",
		Duration: 5 * time.Minute,
	})
	require.NoError(t, err)

	assert.Equal(t, inbound.TimerStateRunning, dto.State)
	assert.InDelta(t, 300, dto.Remaining, 0.001)
	assert.Equal(t, clock.Now().Add(5*time.Minute), dto.EndsAt)

	clock.Advance(2 * time.Minute)
	dto, err = svc.GetTimer(context.Background(), "user-1", dto.ID)
	require.NoError(t, err)
	assert.InDelta(t, 180, dto.Remaining, 0.001)
}

func TestStartTimerValidatesDuration(t *testing.T) {
	svc, _ := newTestTimerService(t, Options{MaxDuration: time.Hour})

	_, err := svc.StartTimer(context.Background(), inbound.StartTimerCommand{
		UserID: "user-1",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidationFailed, apperrors.GetCode(err))

	_, err = svc.StartTimer(context.Background(), inbound.StartTimerCommand{
		UserID:   "user-1",
		Duration: 2 * time.Hour,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidationFailed, apperrors.GetCode(err))
}

func TestStartTimerReplacesSameStep(t *testing.T) {
	svc, _ := newTestTimerService(t, Options{})

	first, err := svc.StartTimer(context.Background(), inbound.StartTimerCommand{
		UserID:   "user-1",
		RecipeID: "recipe-1",
		Step:     2,
		Duration: 10 * time.Minute,
	})
	require.NoError(t, err)

	second, err := svc.StartTimer(context.Background(), inbound.StartTimerCommand{
		UserID:   "user-1",
		RecipeID: "recipe-1",
		Step:     2,
		Duration: 3 * time.Minute,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	timers, err := svc.ListTimers(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, timers, 1)
	assert.Equal(t, second.ID, timers[0].ID)
}

func TestStartTimerEnforcesPerUserCap(t *testing.T) {
	svc, _ := newTestTimerService(t, Options{MaxPerUser: 2})

	for step := 1; step <= 2; step++ {
		_, err := svc.StartTimer(context.Background(), inbound.StartTimerCommand{
			UserID:   "user-1",
			RecipeID: "recipe-1",
			Step:     step,
			Duration: time.Minute,
		})
		require.NoError(t, err)
	}

	_, err := svc.StartTimer(context.Background(), inbound.StartTimerCommand{
		UserID:   "user-1",
		RecipeID: "recipe-1",
		Step:     3,
		Duration: time.Minute,
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConflict, apperrors.GetCode(err))
}

func TestPauseAndResumeKeepRemainingTime(t *testing.T) {
	svc, clock := newTestTimerService(t, Options{})

	dto, err := svc.StartTimer(context.Background(), inbound.StartTimerCommand{
		UserID:   "user-1",
		Duration: 10 * time.Minute,
	})
	require.NoError(t, err)

	clock.Advance(4 * time.Minute)
	dto, err = svc.PauseTimer(context.Background(), "user-1", dto.ID)
	require.NoError(t, err)
	assert.Equal(t, inbound.TimerStatePaused, dto.State)
	assert.InDelta(t, 360, dto.Remaining, 0.001)

	// A paused timer does not tick down.
	clock.Advance(30 * time.Minute)
	dto, err = svc.GetTimer(context.Background(), "user-1", dto.ID)
	require.NoError(t, err)
	assert.Equal(t, inbound.TimerStatePaused, dto.State)
	assert.InDelta(t, 360, dto.Remaining, 0.001)

	dto, err = svc.ResumeTimer(context.Background(), "user-1", dto.ID)
	require.NoError(t, err)
	assert.Equal(t, inbound.TimerStateRunning, dto.State)
	assert.Equal(t, clock.Now().Add(6*time.Minute), dto.EndsAt)

	clock.Advance(6*time.Minute + time.Second)
	dto, err = svc.GetTimer(context.Background(), "user-1", dto.ID)
	require.NoError(t, err)
	assert.Equal(t, inbound.TimerStateDone, dto.State)
	assert.Zero(t, dto.Remaining)
}

func TestPauseFinishedTimerConflicts(t *testing.T) {
	svc, clock := newTestTimerService(t, Options{})

	dto, err := svc.StartTimer(context.Background(), inbound.StartTimerCommand{
		UserID:   "user-1",
		Duration: time.Minute,
	})
	require.NoError(t, err)

	clock.Advance(90 * time.Second)
	_, err = svc.PauseTimer(context.Background(), "user-1", dto.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConflict, apperrors.GetCode(err))
}

func TestFinishedTimerLingersThenDropsOut(t *testing.T) {
	svc, clock := newTestTimerService(t, Options{})

	dto, err := svc.StartTimer(context.Background(), inbound.StartTimerCommand{
		UserID:   "user-1",
		Duration: time.Minute,
	})
	require.NoError(t, err)

	clock.Advance(90 * time.Second)
	timers, err := svc.ListTimers(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, timers, 1)
	assert.Equal(t, inbound.TimerStateDone, timers[0].State)
	assert.Zero(t, timers[0].Remaining)

	clock.Advance(2 * time.Minute)
	timers, err = svc.ListTimers(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, timers)

	_, err = svc.GetTimer(context.Background(), "user-1", dto.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetCode(err))
}

func TestCancelTimerRemovesIt(t *testing.T) {
	svc, _ := newTestTimerService(t, Options{})

	dto, err := svc.StartTimer(context.Background(), inbound.StartTimerCommand{
		UserID:   "user-1",
		Duration: time.Minute,
	})
	require.NoError(t, err)

	require.NoError(t, svc.CancelTimer(context.Background(), "user-1", dto.ID))

	_, err = svc.GetTimer(context.Background(), "user-1", dto.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetCode(err))

	err = svc.CancelTimer(context.Background(), "user-1", "missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetCode(err))
}

func TestListTimersSortsOldestFirst(t *testing.T) {
	svc, clock := newTestTimerService(t, Options{})

	first, err := svc.StartTimer(context.Background(), inbound.StartTimerCommand{
		UserID:   "user-1",
		Step:     1,
		Duration: time.Hour,
	})
	require.NoError(t, err)

	clock.Advance(time.Minute)
	second, err := svc.StartTimer(context.Background(), inbound.StartTimerCommand{
		UserID:   "user-1",
		Step:     2,
		Duration: time.Hour,
	})
	require.NoError(t, err)

	timers, err := svc.ListTimers(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, timers, 2)
	assert.Equal(t, first.ID, timers[0].ID)
	assert.Equal(t, second.ID, timers[1].ID)
}

func TestTimersAreScopedPerUser(t *testing.T) {
	svc, _ := newTestTimerService(t, Options{})

	dto, err := svc.StartTimer(context.Background(), inbound.StartTimerCommand{
		UserID:   "user-1",
		Duration: time.Minute,
	})
	require.NoError(t, err)

	timers, err := svc.ListTimers(context.Background(), "user-2")
	require.NoError(t, err)
	assert.Empty(t, timers)

	_, err = svc.GetTimer(context.Background(), "user-2", dto.ID)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetCode(err))
}
