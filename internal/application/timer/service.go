// Package timer provides server-side countdown timers for cooking
// steps. Timers live in process memory: they are ephemeral kitchen
// clocks, not durable state, and every connected client of a user reads
// the same deadline.
package timer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yambati03/touille/internal/domain/recipe"
	"github.com/yambati03/touille/internal/ports/inbound"
	apperrors "github.com/yambati03/touille/pkg/errors"
)

// doneLinger is how long a finished timer stays listed so clients can
// show the "done" state before it disappears.
const doneLinger = time.Minute

// Options carries the runtime knobs for the timer service. Zero values
// are replaced with safe defaults.
type Options struct {
	// MaxPerUser caps concurrently tracked timers per user.
	MaxPerUser int
	// MaxDuration caps a single countdown.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxPerUser <= 0 {
		o.MaxPerUser = 16
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 24 * time.Hour
	}
	return o
}

// countdown is the internal state of one timer. A running countdown is
// defined by its deadline; a paused one by the remaining duration. The
// 1-second display ticks are derived, never stored.
type countdown struct {
	id        string
	userID    string
	recipeID  string
	step      int
	label     string
	paused    bool
	remaining time.Duration
	startedAt time.Time
	endsAt    time.Time
}

// TimerService implements the countdown use cases
type TimerService struct {
	mu     sync.Mutex
	byUser map[string]map[string]*countdown
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

var _ inbound.TimerService = (*TimerService)(nil)

// NewTimerService creates a new timer service
func NewTimerService(opts Options, logger *zap.Logger) *TimerService {
	return &TimerService{
		byUser: make(map[string]map[string]*countdown),
		opts:   opts.withDefaults(),
		logger: logger.Named("timer-service"),
		now:    time.Now,
	}
}

// StartTimer starts a countdown. Starting a second timer for the same
// (recipe, step) replaces the first.
func (s *TimerService) StartTimer(ctx context.Context, cmd inbound.StartTimerCommand) (*inbound.TimerDTO, error) {
	if cmd.Duration <= 0 {
		return nil, apperrors.NewValidationError("timer duration must be positive")
	}
	if cmd.Duration > s.opts.MaxDuration {
		return nil, apperrors.NewValidationError("timer duration is too long")
	}
	userID := ownerID(cmd.UserID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(userID)

	timers := s.byUser[userID]
	if timers == nil {
		timers = make(map[string]*countdown)
		s.byUser[userID] = timers
	}

	// Replace rather than stack a duplicate for the same step.
	for id, t := range timers {
		if cmd.RecipeID != "" && t.recipeID == cmd.RecipeID && t.step == cmd.Step {
			delete(timers, id)
		}
	}
	if len(timers) >= s.opts.MaxPerUser {
		return nil, apperrors.NewConflictError("too many active timers")
	}

	now := s.now()
	t := &countdown{
		id:        uuid.NewString(),
		userID:    userID,
		recipeID:  cmd.RecipeID,
		step:      cmd.Step,
		label:     cmd.Label,
		startedAt: now,
		endsAt:    now.Add(cmd.Duration),
	}
	timers[t.id] = t

	s.logger.Debug("Timer started",
		zap.String("timer_id", t.id),
		zap.String("user_id", userID),
		zap.Int("step", t.step),
		zap.Duration("duration", cmd.Duration),
	)
	return s.toDTO(t), nil
}

// PauseTimer freezes a running countdown, keeping its remaining time.
// Pausing a paused timer is a no-op.
func (s *TimerService) PauseTimer(ctx context.Context, userID, timerID string) (*inbound.TimerDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.findLocked(ownerID(userID), timerID)
	if err != nil {
		return nil, err
	}
	if t.paused {
		return s.toDTO(t), nil
	}

	remaining := t.endsAt.Sub(s.now())
	if remaining <= 0 {
		return nil, apperrors.NewConflictError("timer already finished")
	}
	t.paused = true
	t.remaining = remaining
	return s.toDTO(t), nil
}

// ResumeTimer restarts a paused countdown from its remaining time.
// Resuming a running timer is a no-op.
func (s *TimerService) ResumeTimer(ctx context.Context, userID, timerID string) (*inbound.TimerDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.findLocked(ownerID(userID), timerID)
	if err != nil {
		return nil, err
	}
	if !t.paused {
		return s.toDTO(t), nil
	}

	t.paused = false
	t.endsAt = s.now().Add(t.remaining)
	t.remaining = 0
	return s.toDTO(t), nil
}

// CancelTimer removes a countdown.
func (s *TimerService) CancelTimer(ctx context.Context, userID, timerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner := ownerID(userID)
	if _, err := s.findLocked(owner, timerID); err != nil {
		return err
	}
	delete(s.byUser[owner], timerID)
	return nil
}

// GetTimer returns one countdown.
func (s *TimerService) GetTimer(ctx context.Context, userID, timerID string) (*inbound.TimerDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.findLocked(ownerID(userID), timerID)
	if err != nil {
		return nil, err
	}
	return s.toDTO(t), nil
}

// ListTimers returns the user's countdowns, oldest first. Finished
// timers linger briefly, then drop out.
func (s *TimerService) ListTimers(ctx context.Context, userID string) ([]inbound.TimerDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner := ownerID(userID)
	s.sweepLocked(owner)

	timers := s.byUser[owner]
	out := make([]inbound.TimerDTO, 0, len(timers))
	for _, t := range timers {
		out = append(out, *s.toDTO(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

// SweepAll drops lingering finished timers for every user and returns
// how many countdowns remain. The lifecycle sweeper calls this so
// abandoned timers do not accumulate between requests.
func (s *TimerService) SweepAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for owner := range s.byUser {
		s.sweepLocked(owner)
		total += len(s.byUser[owner])
	}
	return total
}

func (s *TimerService) findLocked(userID, timerID string) (*countdown, error) {
	if t, ok := s.byUser[userID][timerID]; ok {
		return t, nil
	}
	return nil, apperrors.NewNotFoundError("timer")
}

// sweepLocked drops finished timers that have lingered long enough.
func (s *TimerService) sweepLocked(userID string) {
	now := s.now()
	for id, t := range s.byUser[userID] {
		if !t.paused && now.Sub(t.endsAt) > doneLinger {
			delete(s.byUser[userID], id)
		}
	}
	if len(s.byUser[userID]) == 0 {
		delete(s.byUser, userID)
	}
}

func (s *TimerService) toDTO(t *countdown) *inbound.TimerDTO {
	now := s.now()
	dto := &inbound.TimerDTO{
		ID:        t.id,
		RecipeID:  t.recipeID,
		Step:      t.step,
		Label:     t.label,
		StartedAt: t.startedAt,
	}
	switch {
	case t.paused:
		dto.State = inbound.TimerStatePaused
		dto.Remaining = t.remaining.Seconds()
		dto.EndsAt = now.Add(t.remaining)
	case now.Before(t.endsAt):
		dto.State = inbound.TimerStateRunning
		dto.Remaining = t.endsAt.Sub(now).Seconds()
		dto.EndsAt = t.endsAt
	default:
		dto.State = inbound.TimerStateDone
		dto.Remaining = 0
		dto.EndsAt = t.endsAt
	}
	return dto
}

func ownerID(userID string) string {
	if userID == "" {
		return recipe.AnonymousUserID
	}
	return userID
}
