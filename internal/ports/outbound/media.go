package outbound

import (
	"context"
	"io"
	"time"

	"github.com/yambati03/touille/internal/domain/recipe"
)

// VideoInfo is the metadata probe result for a video URL.
type VideoInfo struct {
	ID          string
	Title       string
	Description string
	Uploader    string
	Duration    float64
}

// VideoDownloader fetches video metadata and media from a platform URL.
// Probe is cheap and never touches the media itself; Download writes an
// mp4 into dir and returns its path. Both fail with a download error
// when the URL is not fetchable.
type VideoDownloader interface {
	Probe(ctx context.Context, rawURL string) (*VideoInfo, error)
	Download(ctx context.Context, rawURL, dir string) (string, error)
}

// Transcriber turns downloaded media into text.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaPath string) (string, error)
}

// ExtractionPreferences carries the per-user settings that bias the
// extraction prompt. Zero values mean "no preference".
type ExtractionPreferences struct {
	DietaryRestrictions string
	SpiceTolerance      int
	CustomRules         string
}

// RecipeExtractor produces a structured recipe document from the text
// gathered for a video. Implementations wrap a specific model provider.
type RecipeExtractor interface {
	Extract(ctx context.Context, transcript string, caption *string, prefs ExtractionPreferences) (recipe.Document, error)
	// Name identifies the provider for logging and health reporting.
	Name() string
}

// Chat roles as stored in history and sent to model providers.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one prior exchange handed back to the model as
// conversation context.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatPrompt is the context handed to the step chat model.
type ChatPrompt struct {
	Document       recipe.Document
	CurrentStep    int
	CompletedSteps []int
	History        []ChatMessage
	Message        string
	Preferences    ExtractionPreferences
}

// ChatStreamer streams a conversational reply about a recipe step.
// onDelta is called once per text fragment in order; returning an error
// from it aborts the stream.
type ChatStreamer interface {
	StreamReply(ctx context.Context, prompt ChatPrompt, onDelta func(delta string) error) error
}

// HistoryTurn is one stored chat turn.
type HistoryTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatHistory stores step chat conversations keyed by user, recipe URL
// and step. Reads and writes are best effort; a failed read behaves as
// an empty history.
type ChatHistory interface {
	Turns(ctx context.Context, userID, url string, step int) []HistoryTurn
	Append(ctx context.Context, userID, url string, step int, question, answer string)
	Clear(ctx context.Context, userID, url string, step int) error
}

// TranscriptCache stores the expensive intermediate of the pipeline so
// reprocessing a known URL skips download and transcription. It also
// holds the per (url, user) lock that keeps identical runs from
// overlapping.
type TranscriptCache interface {
	GetTranscript(ctx context.Context, url string) (string, *string, bool)
	StoreTranscript(ctx context.Context, url, transcript string, caption *string)
	InvalidateTranscript(ctx context.Context, url string)
	AcquireProcessLock(ctx context.Context, url, userID string, ttl time.Duration) (bool, error)
	ReleaseProcessLock(ctx context.Context, url, userID string)
}

// MediaArchive is long-term storage for processed videos. Archiving is
// best effort and happens after transcription, before local cleanup.
type MediaArchive interface {
	Store(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}
