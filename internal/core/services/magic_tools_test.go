package services

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/manthysbr/floral/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestMagicTools(provider domain.CompletionProvider) (*MagicTools, *Session, *ExecutionLog) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	bus := NewEventBus(logger)
	gate := NewRunGate()
	session := NewSession(gate, bus, SessionDefaults{})
	log := NewExecutionLog(bus)
	return NewMagicTools(logger, session, provider, log, bus, gate, nil), session, log
}

func TestMagicTools_Run(t *testing.T) {
	provider := new(MockCompletionProvider)
	provider.On("Generate", mock.Anything, mock.MatchedBy(func(req domain.CompletionRequest) bool {
		return req.Provider == domain.ProviderOpenAI &&
			req.Model == "gpt-4o-mini" &&
			req.SystemPrompt == domain.ToolSystemPrompt &&
			req.UserPrompt == "Identify the top 10 keywords.\n\nTEXT:\nroses and tulips" &&
			req.Temperature == domain.ToolTemperature &&
			req.MaxTokens == domain.ToolMaxTokens
	})).Return(domain.Completion{Text: "roses, tulips", Tokens: 9}, nil)

	tools, session, log := newTestMagicTools(provider)
	before := session.Ledger()

	notes, err := tools.Run(context.Background(), domain.ToolKeywords, ToolRequest{Text: "roses and tulips", Model: "gpt-4o-mini"})
	require.NoError(t, err)

	assert.Equal(t, "roses, tulips", notes.Output)
	assert.Equal(t, domain.ToolKeywords, notes.Tool)
	assert.Equal(t, notes, session.Notes())
	assert.Equal(t, before, session.Ledger(), "tools cost nothing")

	entries := log.Entries(0)
	require.Len(t, entries, 2)
	assert.Equal(t, "Magic Tool keywords completed.", entries[0].Message)
	assert.Equal(t, "Running Magic Tool: keywords...", entries[1].Message)
	provider.AssertExpectations(t)
}

func TestMagicTools_FallsBackToSessionNotes(t *testing.T) {
	var captured domain.CompletionRequest
	tools, session, _ := newTestMagicTools(providerFunc(func(_ context.Context, req domain.CompletionRequest) (domain.Completion, error) {
		captured = req
		return domain.Completion{Text: "ok"}, nil
	}))

	_, err := tools.Run(context.Background(), domain.ToolQuiz, ToolRequest{Text: "first"})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultOCRModel, captured.Model)
	assert.Equal(t, domain.ProviderGemini, captured.Provider)

	// Second call reuses the stored text and a custom prompt.
	_, err = tools.Run(context.Background(), domain.ToolQuiz, ToolRequest{Prompt: "Ask one question."})
	require.NoError(t, err)
	assert.Equal(t, "Ask one question.\n\nTEXT:\nfirst", captured.UserPrompt)
	assert.Equal(t, "Ask one question.", session.Notes().Prompt)
}

func TestMagicTools_FailureStoredInBand(t *testing.T) {
	provider := new(MockCompletionProvider)
	provider.On("Generate", mock.Anything, mock.Anything).
		Return(domain.Completion{}, domain.NewAPIError(domain.ProviderAnthropic, "overloaded"))

	tools, session, log := newTestMagicTools(provider)

	_, err := tools.Run(context.Background(), domain.ToolMindmap, ToolRequest{Text: "x", Model: "claude-3-haiku"})
	require.Error(t, err)

	assert.Equal(t, "Error: overloaded", session.Notes().Output, "same rendering as a failed step")
	assert.Equal(t, "Magic Tool failed: API Error: overloaded", log.Entries(1)[0].Message)
}

func TestMagicTools_Rejects(t *testing.T) {
	provider := new(MockCompletionProvider)
	tools, _, log := newTestMagicTools(provider)

	_, err := tools.Run(context.Background(), domain.Tool("haiku"), ToolRequest{Text: "x"})
	assert.ErrorIs(t, err, domain.ErrUnknownTool)

	_, err = tools.Run(context.Background(), domain.ToolMarkdown, ToolRequest{Text: "   "})
	var inputErr *domain.InputError
	assert.ErrorAs(t, err, &inputErr)

	require.NoError(t, tools.gate.TryAcquire())
	_, err = tools.Run(context.Background(), domain.ToolMarkdown, ToolRequest{Text: "x"})
	assert.ErrorIs(t, err, domain.ErrPipelineBusy)
	tools.gate.Release()

	assert.Equal(t, 0, log.Len())
	provider.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestBuildDashboard(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	bus := NewEventBus(logger)

	steps := testSteps(2)
	steps[0].TokenUsage = 6000
	steps[0].Output = "héllo"
	steps[0].Status = domain.StepStatusSuccess
	steps[1].TokenUsage = 10
	steps[1].Status = domain.StepStatusSuccess
	session := NewSession(NewRunGate(), bus, SessionDefaults{Steps: steps})
	log := NewExecutionLog(bus)

	d := BuildDashboard(session, log)
	assert.Equal(t, []StepStat{{Name: "A", Tokens: 6000, OutputLength: 5}, {Name: "B", Tokens: 10}}, d.Steps)
	assert.Equal(t, 6010, d.TotalTokens)
	require.Len(t, d.Achievements, 3)
	assert.False(t, d.Achievements[0].Unlocked, "empty log")
	assert.True(t, d.Achievements[1].Unlocked)
	assert.True(t, d.Achievements[2].Unlocked)

	log.Info("something happened")
	_, err := session.SetStepOutput("sB", "edited")
	require.NoError(t, err)
	name := "B2"
	_, err = session.UpdateStep("sB", StepPatch{Name: &name})
	require.NoError(t, err)

	d = BuildDashboard(session, log)
	assert.True(t, d.Achievements[0].Unlocked)
	assert.Equal(t, "B2", d.Steps[1].Name)
}

func TestBuildDashboard_EmptyPipelineHasNoHarmony(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	bus := NewEventBus(logger)
	session := NewSession(NewRunGate(), bus, SessionDefaults{})

	d := BuildDashboard(session, NewExecutionLog(bus))
	assert.Empty(t, d.Steps)
	assert.False(t, d.Achievements[2].Unlocked)
}
