package inbound

import (
	"context"
	"time"

	"github.com/yambati03/touille/internal/domain/recipe"
)

// ChatService defines the step chat use case. Replies stream token by
// token; completed exchanges land in a per-step transcript so the
// thread survives closing and reopening the modal.
type ChatService interface {
	// StreamStepChat emits the reply through onDelta and returns the
	// assembled text.
	StreamStepChat(ctx context.Context, cmd StepChatCommand, onDelta func(delta string) error) (string, error)
	// History returns the cached transcript for a step thread.
	History(ctx context.Context, userID, recipeURL string, step int) ([]ChatTurn, error)
	// ClearHistory deletes the cached transcript for a step thread.
	ClearHistory(ctx context.Context, userID, recipeURL string, step int) error
}

// StepChatCommand carries the cooking context for one chat turn.
type StepChatCommand struct {
	UserID         string
	RecipeURL      string
	Recipe         recipe.Document
	CurrentStep    int
	CompletedSteps []int
	Message        string
}

// ChatTurn is one message of a step chat transcript.
type ChatTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Timer states reported to clients.
const (
	TimerStateRunning = "running"
	TimerStatePaused  = "paused"
	TimerStateDone    = "done"
)

// TimerService manages countdown timers for cooking steps. Timers are
// server-side so every connected client of a user sees the same clock.
type TimerService interface {
	StartTimer(ctx context.Context, cmd StartTimerCommand) (*TimerDTO, error)
	PauseTimer(ctx context.Context, userID, timerID string) (*TimerDTO, error)
	ResumeTimer(ctx context.Context, userID, timerID string) (*TimerDTO, error)
	CancelTimer(ctx context.Context, userID, timerID string) error
	GetTimer(ctx context.Context, userID, timerID string) (*TimerDTO, error)
	ListTimers(ctx context.Context, userID string) ([]TimerDTO, error)
}

// StartTimerCommand contains data for starting a countdown. Starting a
// second timer for the same (recipe, step) replaces the first.
type StartTimerCommand struct {
	UserID   string
	RecipeID string
	Step     int
	Label    string
	Duration time.Duration
}

// TimerDTO is the data transfer object for countdown timers
type TimerDTO struct {
	ID        string    `json:"id"`
	RecipeID  string    `json:"recipe_id,omitempty"`
	Step      int       `json:"step,omitempty"`
	Label     string    `json:"label,omitempty"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at"`
	EndsAt    time.Time `json:"ends_at"`
	Remaining float64   `json:"remaining_seconds"`
}
