package services

import (
	"fmt"
	"strings"
	"sync"

	"github.com/manthysbr/floral/internal/core/domain"
)

// Globals are the session-wide inputs shared by every step.
type Globals struct {
	GlobalTask   string `json:"globalTask"`
	GlobalPrompt string `json:"globalPrompt"`
	OCRText      string `json:"ocrText"`
	OCRPrompt    string `json:"ocrPrompt"`
	OCRModel     string `json:"ocrModel"`
	OCRMaxTokens int    `json:"ocrMaxTokens"`
	// Propagation selects sequential mode (true) or independent mode (false).
	Propagation bool `json:"propagation"`
}

// GlobalsPatch updates only the non-nil fields.
type GlobalsPatch struct {
	GlobalTask   *string `json:"globalTask,omitempty"`
	GlobalPrompt *string `json:"globalPrompt,omitempty"`
	OCRText      *string `json:"ocrText,omitempty"`
	OCRPrompt    *string `json:"ocrPrompt,omitempty"`
	OCRModel     *string `json:"ocrModel,omitempty"`
	OCRMaxTokens *int    `json:"ocrMaxTokens,omitempty"`
	Propagation  *bool   `json:"propagation,omitempty"`
}

// StepPatch updates only the non-nil fields of a step.
type StepPatch struct {
	Name           *string  `json:"name,omitempty"`
	Description    *string  `json:"description,omitempty"`
	Provider       *string  `json:"provider,omitempty"`
	Model          *string  `json:"model,omitempty"`
	MaxTokens      *int     `json:"maxTokens,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	SystemPrompt   *string  `json:"systemPrompt,omitempty"`
	Input          *string  `json:"input,omitempty"`
	OutputViewMode *string  `json:"outputViewMode,omitempty"`
}

// Snapshot is a consistent copy of the whole session.
type Snapshot struct {
	Steps   []domain.AgentStep `json:"steps"`
	Ledger  domain.Ledger      `json:"ledger"`
	Globals Globals            `json:"globals"`
	Pages   []domain.Page      `json:"pages"`
	Notes   domain.NoteKeeper  `json:"notes"`
	Busy    bool               `json:"busy"`
}

// Session owns the pipeline, ledger and globals of the running process.
// Runs borrow it through the engine; structural edits are refused while busy.
type Session struct {
	mu      sync.RWMutex
	steps   []domain.AgentStep
	ledger  domain.Ledger
	globals Globals
	pages   []domain.Page
	notes   domain.NoteKeeper
	gate    *RunGate
	bus     *EventBus
}

// SessionDefaults seeds a new session.
type SessionDefaults struct {
	Steps        []domain.AgentStep
	GlobalPrompt string
	OCRPrompt    string
	OCRModel     string
	NoteModel    string
}

func NewSession(gate *RunGate, bus *EventBus, defaults SessionDefaults) *Session {
	if defaults.GlobalPrompt == "" {
		defaults.GlobalPrompt = domain.DefaultGlobalPrompt
	}
	if defaults.OCRPrompt == "" {
		defaults.OCRPrompt = domain.DefaultOCRPrompt
	}
	if defaults.OCRModel == "" {
		defaults.OCRModel = domain.DefaultOCRModel
	}
	if defaults.NoteModel == "" {
		defaults.NoteModel = domain.DefaultOCRModel
	}
	prompt, _ := domain.ToolMarkdown.DefaultPrompt()

	steps := make([]domain.AgentStep, len(defaults.Steps))
	copy(steps, defaults.Steps)

	return &Session{
		steps:  steps,
		ledger: domain.NewLedger(),
		globals: Globals{
			GlobalPrompt: defaults.GlobalPrompt,
			OCRPrompt:    defaults.OCRPrompt,
			OCRModel:     defaults.OCRModel,
			OCRMaxTokens: domain.OCRMaxTokens,
			Propagation:  true,
		},
		notes: domain.NoteKeeper{Tool: domain.ToolMarkdown, Model: defaults.NoteModel, Prompt: prompt},
		gate:  gate,
		bus:   bus,
	}
}

// Snapshot returns a copy of everything.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Steps:   cloneSteps(s.steps),
		Ledger:  s.ledger,
		Globals: s.globals,
		Pages:   clonePages(s.pages),
		Notes:   s.notes,
		Busy:    s.gate.Busy(),
	}
}

func (s *Session) Steps() []domain.AgentStep {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSteps(s.steps)
}

func (s *Session) Step(id domain.StepID) (domain.AgentStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return domain.AgentStep{}, fmt.Errorf("%w: %s", domain.ErrStepNotFound, id)
	}
	return s.steps[i], nil
}

func (s *Session) Ledger() domain.Ledger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger
}

func (s *Session) Globals() Globals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.globals
}

func (s *Session) Pages() []domain.Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePages(s.pages)
}

func (s *Session) Notes() domain.NoteKeeper {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notes
}

// AddStep appends a step. Missing id, model and status are filled in.
func (s *Session) AddStep(step domain.AgentStep) (domain.AgentStep, error) {
	if step.ID == "" {
		step.ID = domain.NewStepID()
	}
	if step.Provider == "" {
		step.Provider = domain.ProviderGemini
	}
	if step.Model == "" {
		step.Model = domain.DefaultModel(step.Provider)
	}
	if step.MaxTokens == 0 {
		step.MaxTokens = 2000
	}
	if step.Name == "" {
		step.Name = "New Agent"
	}
	step.Status = domain.StepStatusIdle
	if err := validateStep(-1, step); err != nil {
		return domain.AgentStep{}, err
	}

	if err := s.gate.TryAcquire(); err != nil {
		return domain.AgentStep{}, err
	}
	defer s.gate.Release()

	s.mu.Lock()
	if s.indexOf(step.ID) >= 0 {
		s.mu.Unlock()
		return domain.AgentStep{}, &domain.ValidationError{Index: -1, Reason: fmt.Sprintf("duplicate id %q", step.ID)}
	}
	s.steps = append(s.steps, step)
	s.mu.Unlock()

	s.emitSteps()
	return step, nil
}

// UpdateStep applies a patch to the configuration of one step.
func (s *Session) UpdateStep(id domain.StepID, patch StepPatch) (domain.AgentStep, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return domain.AgentStep{}, fmt.Errorf("%w: %s", domain.ErrStepNotFound, id)
	}

	step := s.steps[i]
	if patch.Name != nil {
		step.Name = *patch.Name
	}
	if patch.Description != nil {
		step.Description = *patch.Description
	}
	if patch.Provider != nil {
		p, err := domain.ParseProvider(*patch.Provider)
		if err != nil {
			s.mu.Unlock()
			return domain.AgentStep{}, &domain.ValidationError{Index: -1, Reason: err.Error()}
		}
		if p != step.Provider && patch.Model == nil {
			step.Model = domain.DefaultModel(p)
		}
		step.Provider = p
	}
	if patch.Model != nil {
		step.Model = *patch.Model
	}
	if patch.MaxTokens != nil {
		step.MaxTokens = *patch.MaxTokens
	}
	if patch.Temperature != nil {
		step.Temperature = *patch.Temperature
	}
	if patch.SystemPrompt != nil {
		step.SystemPrompt = *patch.SystemPrompt
	}
	if patch.Input != nil {
		step.Input = *patch.Input
	}
	if patch.OutputViewMode != nil {
		step.OutputViewMode = *patch.OutputViewMode
	}

	if err := validateStep(-1, step); err != nil {
		s.mu.Unlock()
		return domain.AgentStep{}, err
	}
	s.steps[i] = step
	s.mu.Unlock()

	s.emitSteps()
	return step, nil
}

// SetStepOutput is a manual edit of a step's output. In sequential mode the
// edit is copied into the next step's input.
func (s *Session) SetStepOutput(id domain.StepID, output string) (domain.AgentStep, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return domain.AgentStep{}, fmt.Errorf("%w: %s", domain.ErrStepNotFound, id)
	}
	s.steps[i].Output = output
	if s.globals.Propagation && i < len(s.steps)-1 {
		s.steps[i+1].Input = output
	}
	step := s.steps[i]
	s.mu.Unlock()

	s.emitSteps()
	return step, nil
}

// RemoveStep deletes a step.
func (s *Session) RemoveStep(id domain.StepID) error {
	if err := s.gate.TryAcquire(); err != nil {
		return err
	}
	defer s.gate.Release()

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrStepNotFound, id)
	}
	s.steps = append(s.steps[:i], s.steps[i+1:]...)
	s.mu.Unlock()

	s.emitSteps()
	return nil
}

// ReorderSteps puts the steps in the order of ids, which must be a permutation
// of the current ids.
func (s *Session) ReorderSteps(ids []domain.StepID) error {
	if err := s.gate.TryAcquire(); err != nil {
		return err
	}
	defer s.gate.Release()

	s.mu.Lock()
	if len(ids) != len(s.steps) {
		s.mu.Unlock()
		return &domain.ValidationError{Index: -1, Reason: fmt.Sprintf("expected %d ids, got %d", len(s.steps), len(ids))}
	}
	reordered := make([]domain.AgentStep, 0, len(ids))
	used := make(map[domain.StepID]bool, len(ids))
	for _, id := range ids {
		i := s.indexOf(id)
		if i < 0 || used[id] {
			s.mu.Unlock()
			return &domain.ValidationError{Index: -1, Reason: fmt.Sprintf("unknown or repeated id %q", id)}
		}
		used[id] = true
		reordered = append(reordered, s.steps[i])
	}
	s.steps = reordered
	s.mu.Unlock()

	s.emitSteps()
	return nil
}

// ReplaceSteps swaps the whole pipeline, used by import.
func (s *Session) ReplaceSteps(steps []domain.AgentStep) error {
	if err := s.gate.TryAcquire(); err != nil {
		return err
	}
	defer s.gate.Release()

	s.mu.Lock()
	s.steps = cloneSteps(steps)
	s.mu.Unlock()

	s.emitSteps()
	return nil
}

// UpdateGlobals applies a patch to the session-wide inputs.
func (s *Session) UpdateGlobals(patch GlobalsPatch) Globals {
	s.mu.Lock()
	g := &s.globals
	if patch.GlobalTask != nil {
		g.GlobalTask = *patch.GlobalTask
	}
	if patch.GlobalPrompt != nil {
		g.GlobalPrompt = *patch.GlobalPrompt
	}
	if patch.OCRText != nil {
		g.OCRText = *patch.OCRText
	}
	if patch.OCRPrompt != nil {
		g.OCRPrompt = *patch.OCRPrompt
	}
	if patch.OCRModel != nil && strings.TrimSpace(*patch.OCRModel) != "" {
		g.OCRModel = *patch.OCRModel
	}
	if patch.OCRMaxTokens != nil && *patch.OCRMaxTokens > 0 {
		g.OCRMaxTokens = *patch.OCRMaxTokens
	}
	if patch.Propagation != nil {
		g.Propagation = *patch.Propagation
	}
	out := *g
	s.mu.Unlock()

	s.bus.Emit(TopicPipeline, EventSessionUpdated, out)
	return out
}

// SetPropagation toggles sequential/independent mode.
func (s *Session) SetPropagation(on bool) Globals {
	return s.UpdateGlobals(GlobalsPatch{Propagation: &on})
}

// setLedger overwrites the ledger, clamped.
func (s *Session) setLedger(l domain.Ledger) domain.Ledger {
	l.Normalize()
	s.mu.Lock()
	s.ledger = l
	s.mu.Unlock()
	s.bus.Emit(TopicLedger, EventLedgerUpdated, l)
	return l
}

func (s *Session) indexOf(id domain.StepID) int {
	for i := range s.steps {
		if s.steps[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) emitSteps() {
	s.bus.Emit(TopicPipeline, EventStepsChanged, s.Steps())
}

func validateStep(index int, step domain.AgentStep) error {
	if strings.TrimSpace(string(step.ID)) == "" {
		return &domain.ValidationError{Index: index, Reason: "missing id"}
	}
	if strings.TrimSpace(step.Name) == "" {
		return &domain.ValidationError{Index: index, Reason: "missing name"}
	}
	if !step.Provider.Valid() {
		return &domain.ValidationError{Index: index, Reason: fmt.Sprintf("unknown provider %q", step.Provider)}
	}
	if step.Temperature < 0 || step.Temperature > 1 {
		return &domain.ValidationError{Index: index, Reason: fmt.Sprintf("temperature %.2f outside [0,1]", step.Temperature)}
	}
	if step.MaxTokens <= 0 {
		return &domain.ValidationError{Index: index, Reason: "maxTokens must be positive"}
	}
	return nil
}

func cloneSteps(steps []domain.AgentStep) []domain.AgentStep {
	out := make([]domain.AgentStep, len(steps))
	copy(out, steps)
	return out
}

func clonePages(pages []domain.Page) []domain.Page {
	out := make([]domain.Page, len(pages))
	copy(out, pages)
	return out
}
