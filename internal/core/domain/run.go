package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunID uniquely identifies one recorded run.
type RunID string

// RunKind classifies what was executed.
type RunKind string

const (
	RunKindPipeline RunKind = "pipeline" // runAll
	RunKindStep     RunKind = "step"     // runOne
	RunKindDocument RunKind = "document" // document analysis
	RunKindTool     RunKind = "tool"     // note keeper tool
)

// RunOutcome indicates how a run ended.
type RunOutcome string

const (
	RunOutcomeCompleted RunOutcome = "completed"
	RunOutcomeAborted   RunOutcome = "aborted" // sequential chain stopped on failure
	RunOutcomeFailed    RunOutcome = "failed"
)

// RunRecord is the history entry written after every run.
type RunRecord struct {
	ID          RunID      `json:"id"`
	Kind        RunKind    `json:"kind"`
	Sequential  bool       `json:"sequential"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  time.Time  `json:"finished_at"`
	Outcome     RunOutcome `json:"outcome"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
	NotRun      int        `json:"not_run"`
	TotalTokens int        `json:"total_tokens"`
	DurationMs  int64      `json:"duration_ms"`
}

// NewRunRecord starts a record stamped with now.
func NewRunRecord(kind RunKind, sequential bool, now time.Time) RunRecord {
	return RunRecord{
		ID:         RunID(uuid.New().String()),
		Kind:       kind,
		Sequential: sequential,
		StartedAt:  now,
	}
}

// Finish closes the record.
func (r *RunRecord) Finish(outcome RunOutcome, now time.Time) {
	r.Outcome = outcome
	r.FinishedAt = now
	r.DurationMs = now.Sub(r.StartedAt).Milliseconds()
}
