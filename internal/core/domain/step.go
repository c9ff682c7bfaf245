package domain

import (
	"errors"

	"github.com/google/uuid"
)

type StepID string
type StepStatus string

const (
	StepStatusIdle    StepStatus = "idle"
	StepStatusRunning StepStatus = "running"
	StepStatusSuccess StepStatus = "success"
	StepStatusError   StepStatus = "error"
	// StepStatusSkipped is reserved; the engine never assigns it.
	StepStatusSkipped StepStatus = "skipped"
)

// Valid reports whether s is a known status.
func (s StepStatus) Valid() bool {
	switch s {
	case StepStatusIdle, StepStatusRunning, StepStatusSuccess, StepStatusError, StepStatusSkipped:
		return true
	}
	return false
}

// AgentStep is one configured stage of the pipeline.
// Field names in JSON/YAML match exported agent configuration files.
type AgentStep struct {
	ID             StepID     `json:"id" yaml:"id"`
	Name           string     `json:"name" yaml:"name"`
	Description    string     `json:"description" yaml:"description"`
	Provider       Provider   `json:"provider" yaml:"provider"`
	Model          string     `json:"model" yaml:"model"`
	MaxTokens      int        `json:"maxTokens" yaml:"maxTokens"`
	Temperature    float64    `json:"temperature" yaml:"temperature"`
	SystemPrompt   string     `json:"systemPrompt" yaml:"systemPrompt"`
	Input          string     `json:"input" yaml:"input"`
	Output         string     `json:"output" yaml:"output"`
	TokenUsage     int        `json:"tokenUsage" yaml:"tokenUsage"`
	Status         StepStatus `json:"status" yaml:"status"`
	Error          string     `json:"error,omitempty" yaml:"error,omitempty"`
	OutputViewMode string     `json:"outputViewMode,omitempty" yaml:"outputViewMode,omitempty"`
}

// NewStepID returns a fresh unique step id.
func NewStepID() StepID {
	return StepID(uuid.New().String())
}

// Reset puts the step back to idle without touching its output.
func (s *AgentStep) Reset() {
	s.Status = StepStatusIdle
}

// Start transitions the step to running and clears the last error.
// Output is kept until the run completes.
func (s *AgentStep) Start() {
	s.Status = StepStatusRunning
	s.Error = ""
}

// Succeed records a completion.
func (s *AgentStep) Succeed(c Completion) {
	s.Status = StepStatusSuccess
	s.Output = c.Text
	s.TokenUsage = c.Tokens
	s.Error = ""
}

// Fail records an error in-band; TokenUsage is left as it was.
func (s *AgentStep) Fail(err error) {
	s.Status = StepStatusError
	s.Output = FailureOutput(err)
	s.Error = errorMessage(err)
}

// EffectiveSystemPrompt falls back to the session default when empty.
// A whitespace-only prompt is kept.
func (s *AgentStep) EffectiveSystemPrompt(fallback string) string {
	if s.SystemPrompt == "" {
		return fallback
	}
	return s.SystemPrompt
}

// Request builds the completion request for this step.
func (s *AgentStep) Request(input, fallbackPrompt string) CompletionRequest {
	return CompletionRequest{
		Provider:     s.Provider,
		Model:        s.Model,
		SystemPrompt: s.EffectiveSystemPrompt(fallbackPrompt),
		UserPrompt:   input,
		Temperature:  s.Temperature,
		MaxTokens:    s.MaxTokens,
	}
}

// FailureOutput renders a failed call the way it is stored in-band.
func FailureOutput(err error) string {
	return "Error: " + errorMessage(err)
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
