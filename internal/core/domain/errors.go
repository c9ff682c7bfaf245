package domain

import (
	"errors"
	"fmt"
)

var (
	ErrBudgetExceeded  = errors.New("insufficient mana")
	ErrPipelineBusy    = errors.New("pipeline is busy")
	ErrStepNotFound    = errors.New("step not found")
	ErrNoPagesSelected = errors.New("no document pages selected")
	ErrUnknownTool     = errors.New("unknown tool")
)

// BudgetError is returned when the ledger cannot pay for a run.
// No state is mutated when it is returned.
type BudgetError struct {
	Required int
	Mana     int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("not enough mana: need %d, have %d", e.Required, e.Mana)
}

func (e *BudgetError) Is(target error) bool {
	return target == ErrBudgetExceeded
}

// APIError is a failed provider call: transport error, bad status or error payload.
type APIError struct {
	Provider Provider
	Message  string
}

func (e *APIError) Error() string {
	return "API Error: " + e.Message
}

// NewAPIError builds an APIError with a formatted message.
func NewAPIError(provider Provider, format string, args ...any) *APIError {
	return &APIError{Provider: provider, Message: fmt.Sprintf(format, args...)}
}

// ValidationError rejects a malformed import payload as a whole.
type ValidationError struct {
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return "invalid agent configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid agent configuration: record %d: %s", e.Index, e.Reason)
}

// InputError rejects an unsupported upload before any processing.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "invalid input: " + e.Reason
}
