package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/manthysbr/floral/internal/core/domain"
	"github.com/manthysbr/floral/internal/core/ports"
)

// ToolRequest is a note keeper invocation. Empty fields fall back to the
// session's note keeper and the tool's default prompt.
type ToolRequest struct {
	Text   string `json:"text"`
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// MagicTools runs text transformations over the note keeper. They cost no mana.
type MagicTools struct {
	logger   *slog.Logger
	session  *Session
	provider domain.CompletionProvider
	log      *ExecutionLog
	bus      *EventBus
	gate     *RunGate
	runs     ports.RunRepository
	now      func() time.Time
}

func NewMagicTools(
	logger *slog.Logger,
	session *Session,
	provider domain.CompletionProvider,
	log *ExecutionLog,
	bus *EventBus,
	gate *RunGate,
	runs ports.RunRepository,
) *MagicTools {
	return &MagicTools{
		logger:   logger,
		session:  session,
		provider: provider,
		log:      log,
		bus:      bus,
		gate:     gate,
		runs:     runs,
		now:      time.Now,
	}
}

// Run executes tool over req.Text and stores the result in the note keeper.
// Provider failures are stored in-band as "Error: ..." and also returned.
func (m *MagicTools) Run(ctx context.Context, tool domain.Tool, req ToolRequest) (domain.NoteKeeper, error) {
	defaultPrompt, ok := tool.DefaultPrompt()
	if !ok {
		return domain.NoteKeeper{}, fmt.Errorf("%w: %s", domain.ErrUnknownTool, tool)
	}

	notes := m.session.Notes()
	if req.Text == "" {
		req.Text = notes.Text
	}
	if strings.TrimSpace(req.Text) == "" {
		return domain.NoteKeeper{}, &domain.InputError{Reason: "note text is empty"}
	}
	if req.Model == "" {
		req.Model = notes.Model
	}
	if req.Prompt == "" {
		req.Prompt = defaultPrompt
	}

	if err := m.gate.TryAcquire(); err != nil {
		return domain.NoteKeeper{}, err
	}
	defer m.gate.Release()

	m.log.Info(fmt.Sprintf("Running Magic Tool: %s...", tool))
	record := domain.NewRunRecord(domain.RunKindTool, false, m.now())

	completion, err := m.provider.Generate(ctx, domain.CompletionRequest{
		Provider:     domain.ProviderForModel(req.Model),
		Model:        req.Model,
		SystemPrompt: domain.ToolSystemPrompt,
		UserPrompt:   req.Prompt + "\n\nTEXT:\n" + req.Text,
		Temperature:  domain.ToolTemperature,
		MaxTokens:    domain.ToolMaxTokens,
	})

	output := completion.Text
	if err != nil {
		output = domain.FailureOutput(err)
	}

	s := m.session
	s.mu.Lock()
	s.notes = domain.NoteKeeper{Text: req.Text, Tool: tool, Model: req.Model, Prompt: req.Prompt, Output: output}
	result := s.notes
	s.mu.Unlock()

	if err != nil {
		m.logger.Warn("magic tool failed", "tool", tool, "model", req.Model, "error", err)
		m.log.Error(fmt.Sprintf("Magic Tool failed: %s", err.Error()))
		record.Failed = 1
		record.Finish(domain.RunOutcomeFailed, m.now())
	} else {
		m.log.Success(fmt.Sprintf("Magic Tool %s completed.", tool))
		record.Succeeded = 1
		record.TotalTokens = completion.Tokens
		record.Finish(domain.RunOutcomeCompleted, m.now())
	}
	m.bus.Emit(TopicTools, EventToolCompleted, result)
	saveRunRecord(m.logger, m.runs, record)

	return result, err
}
