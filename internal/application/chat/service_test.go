package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yambati03/touille/internal/domain/recipe"
	"github.com/yambati03/touille/internal/domain/user"
	"github.com/yambati03/touille/internal/ports/inbound"
	"github.com/yambati03/touille/internal/ports/outbound"
	apperrors "github.com/yambati03/touille/pkg/errors"
)

const testURL = "https://www.tiktok.com/@cook/video/123"

// MockChatStreamer is a mock implementation of the chat streamer
type MockChatStreamer struct {
	mock.Mock
}

func (m *MockChatStreamer) StreamReply(ctx context.Context, prompt outbound.ChatPrompt, onDelta func(delta string) error) error {
	args := m.Called(ctx, prompt, onDelta)
	return args.Error(0)
}

// MockChatHistory is a mock implementation of the chat history store
type MockChatHistory struct {
	mock.Mock
}

func (m *MockChatHistory) Turns(ctx context.Context, userID, url string, step int) []outbound.HistoryTurn {
	args := m.Called(ctx, userID, url, step)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]outbound.HistoryTurn)
}

func (m *MockChatHistory) Append(ctx context.Context, userID, url string, step int, question, answer string) {
	m.Called(ctx, userID, url, step, question, answer)
}

func (m *MockChatHistory) Clear(ctx context.Context, userID, url string, step int) error {
	args := m.Called(ctx, userID, url, step)
	return args.Error(0)
}

// MockSettingsRepository is a mock implementation of the settings repository
type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) Find(ctx context.Context, userID string) (*user.Settings, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.Settings), args.Error(1)
}

func (m *MockSettingsRepository) Upsert(ctx context.Context, s *user.Settings) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

type chatMocks struct {
	streamer *MockChatStreamer
	history  *MockChatHistory
	settings *MockSettingsRepository
}

func newTestChatService(t *testing.T, opts Options) (inbound.ChatService, *chatMocks) {
	t.Helper()
	m := &chatMocks{
		streamer: new(MockChatStreamer),
		history:  new(MockChatHistory),
		settings: new(MockSettingsRepository),
	}
	svc := NewChatService(m.streamer, m.history, m.settings, opts, zaptest.NewLogger(t))
	return svc, m
}

func testDocument() recipe.Document {
	return recipe.Document{
		Title:       "Garlic noodles",
		Ingredients: []recipe.Ingredient{{Name: "garlic"}, {Name: "noodles"}},
		Steps: []recipe.Step{
			{Order: 1, Instruction: "Mince the garlic."},
			{Order: 2, Instruction: "Boil the noodles."},
		},
	}
}

func streamDeltas(deltas ...string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		onDelta := args.Get(2).(func(delta string) error)
		for _, d := range deltas {
			_ = onDelta(d)
		}
	}
}

func TestStreamStepChatForwardsDeltasAndStoresExchange(t *testing.T) {
	svc, m := newTestChatService(t, Options{})

	var captured outbound.ChatPrompt
	m.settings.On("Find", mock.Anything, "user-1").Return(nil, nil).Once()
	m.history.On("Turns", mock.Anything, "user-1", testURL, 2).
		Return([]outbound.HistoryTurn{
			{Role: outbound.RoleUser, Content: "How much garlic?"},
			{Role: outbound.RoleAssistant, Content: "Four cloves."},
		}).Once()
	m.streamer.On("StreamReply", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(outbound.ChatPrompt)
			streamDeltas("Medium heat, ", "about two minutes.")(args)
		}).
		Return(nil).Once()
	m.history.On("Append", mock.Anything, "user-1", testURL, 2,
		"How hot should the pan be?", "Medium heat, about two minutes.").Once()

	var got []string
	reply, err := svc.StreamStepChat(context.Background(), inbound.StepChatCommand{
		UserID:         "user-1",
		RecipeURL:      testURL + "?lang=en",
		Recipe:         testDocument(),
		CurrentStep:    2,
		CompletedSteps: []int{1},
		Message:        "How hot should the pan be?",
	}, func(delta string) error {
		got = append(got, delta)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "Medium heat, about two minutes.", reply)
	assert.Equal(t, []string{"Medium heat, ", "about two minutes."}, got)
	assert.Equal(t, "Garlic noodles", captured.Document.Title)
	assert.Equal(t, 2, captured.CurrentStep)
	assert.Len(t, captured.History, 2)
	m.history.AssertExpectations(t)
}

func TestStreamStepChatRequiresMessage(t *testing.T) {
	svc, m := newTestChatService(t, Options{})

	_, err := svc.StreamStepChat(context.Background(), inbound.StepChatCommand{
		RecipeURL:   testURL,
		CurrentStep: 1,
		Message:     "   ",
	}, func(string) error { return nil })
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidationFailed, apperrors.GetCode(err))
	m.streamer.AssertNotCalled(t, "StreamReply", mock.Anything, mock.Anything, mock.Anything)
}

func TestStreamStepChatRejectsOversizedMessage(t *testing.T) {
	svc, m := newTestChatService(t, Options{MaxMessageLength: 10})

	_, err := svc.StreamStepChat(context.Background(), inbound.StepChatCommand{
		RecipeURL:   testURL,
		CurrentStep: 1,
		Message:     "this question is far past the limit",
	}, func(string) error { return nil })
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidationFailed, apperrors.GetCode(err))
	m.streamer.AssertNotCalled(t, "StreamReply", mock.Anything, mock.Anything, mock.Anything)
}

func TestStreamStepChatFailureSkipsHistoryWrite(t *testing.T) {
	svc, m := newTestChatService(t, Options{})

	m.history.On("Turns", mock.Anything, recipe.AnonymousUserID, testURL, 1).
		Return(nil).Once()
	m.settings.On("Find", mock.Anything, recipe.AnonymousUserID).Return(nil, nil).Once()
	m.streamer.On("StreamReply", mock.Anything, mock.Anything, mock.Anything).
		Run(streamDeltas("Half an ans")).
		Return(errors.New("connection reset")).Once()

	_, err := svc.StreamStepChat(context.Background(), inbound.StepChatCommand{
		RecipeURL:   testURL,
		Recipe:      testDocument(),
		CurrentStep: 1,
		Message:     "What next?",
	}, func(string) error { return nil })
	require.Error(t, err)

	assert.Equal(t, apperrors.CodeUpstreamError, apperrors.GetCode(err))
	m.history.AssertNotCalled(t, "Append",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStreamStepChatTrimsPromptHistory(t *testing.T) {
	svc, m := newTestChatService(t, Options{HistoryTurns: 2})

	var captured outbound.ChatPrompt
	m.history.On("Turns", mock.Anything, recipe.AnonymousUserID, testURL, 1).
		Return([]outbound.HistoryTurn{
			{Role: outbound.RoleUser, Content: "first"},
			{Role: outbound.RoleAssistant, Content: "second"},
			{Role: outbound.RoleUser, Content: "third"},
			{Role: outbound.RoleAssistant, Content: "fourth"},
		}).Once()
	m.settings.On("Find", mock.Anything, recipe.AnonymousUserID).Return(nil, nil).Once()
	m.streamer.On("StreamReply", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(outbound.ChatPrompt)
			streamDeltas("ok")(args)
		}).
		Return(nil).Once()
	m.history.On("Append", mock.Anything, recipe.AnonymousUserID, testURL, 1,
		"Still with me?", "ok").Once()

	_, err := svc.StreamStepChat(context.Background(), inbound.StepChatCommand{
		RecipeURL:   testURL,
		Recipe:      testDocument(),
		CurrentStep: 1,
		Message:     "Still with me?",
	}, func(string) error { return nil })
	require.NoError(t, err)

	require.Len(t, captured.History, 2)
	assert.Equal(t, "third", captured.History[0].Content)
	assert.Equal(t, "fourth", captured.History[1].Content)
}

func TestStreamStepChatAppliesUserPreferences(t *testing.T) {
	svc, m := newTestChatService(t, Options{})

	dietary := "vegan"
	settings, err := user.NewSettings("user-1", &dietary, 3, nil)
	require.NoError(t, err)

	var captured outbound.ChatPrompt
	m.settings.On("Find", mock.Anything, "user-1").Return(settings, nil).Once()
	m.history.On("Turns", mock.Anything, "user-1", testURL, 1).Return(nil).Once()
	m.streamer.On("StreamReply", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(outbound.ChatPrompt)
			streamDeltas("Use oil instead of butter.")(args)
		}).
		Return(nil).Once()
	m.history.On("Append", mock.Anything, "user-1", testURL, 1,
		"Swap for the butter?", "Use oil instead of butter.").Once()

	_, err = svc.StreamStepChat(context.Background(), inbound.StepChatCommand{
		UserID:      "user-1",
		RecipeURL:   testURL,
		Recipe:      testDocument(),
		CurrentStep: 1,
		Message:     "Swap for the butter?",
	}, func(string) error { return nil })
	require.NoError(t, err)

	assert.Equal(t, "vegan", captured.Preferences.DietaryRestrictions)
	assert.Equal(t, 3, captured.Preferences.SpiceTolerance)
}

func TestHistoryMapsStoredTurns(t *testing.T) {
	svc, m := newTestChatService(t, Options{})

	created := time.Now().Add(-time.Minute)
	m.history.On("Turns", mock.Anything, recipe.AnonymousUserID, testURL, 3).
		Return([]outbound.HistoryTurn{
			{Role: outbound.RoleUser, Content: "Can I skip the rest?", CreatedAt: created},
			{Role: outbound.RoleAssistant, Content: "Resting keeps it juicy.", CreatedAt: created},
		}).Once()

	turns, err := svc.History(context.Background(), "", testURL+"#shared", 3)
	require.NoError(t, err)

	require.Len(t, turns, 2)
	assert.Equal(t, inbound.ChatTurn{Role: outbound.RoleUser, Content: "Can I skip the rest?", CreatedAt: created}, turns[0])
	assert.Equal(t, outbound.RoleAssistant, turns[1].Role)
}

func TestClearHistoryNormalizesURL(t *testing.T) {
	svc, m := newTestChatService(t, Options{})

	m.history.On("Clear", mock.Anything, "user-1", testURL, 2).Return(nil).Once()

	require.NoError(t, svc.ClearHistory(context.Background(), "user-1", testURL+"?share=copy", 2))
	m.history.AssertExpectations(t)
}

func TestClearHistoryRejectsInvalidURL(t *testing.T) {
	svc, m := newTestChatService(t, Options{})

	err := svc.ClearHistory(context.Background(), "user-1", "not a url", 1)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidVideoURL, apperrors.GetCode(err))
	m.history.AssertNotCalled(t, "Clear", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
