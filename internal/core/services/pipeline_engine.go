package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/manthysbr/floral/internal/core/domain"
	"github.com/manthysbr/floral/internal/core/ports"
)

// RunReport summarises a finished run.
type RunReport struct {
	Run     domain.RunRecord   `json:"run"`
	Steps   []domain.AgentStep `json:"steps"`
	LevelUp bool               `json:"levelUp"`
}

// PipelineEngine runs one step or the whole ordered chain against the session.
type PipelineEngine struct {
	logger   *slog.Logger
	session  *Session
	provider domain.CompletionProvider
	log      *ExecutionLog
	bus      *EventBus
	gate     *RunGate
	runs     ports.RunRepository // optional; nil-safe
	now      func() time.Time
}

func NewPipelineEngine(
	logger *slog.Logger,
	session *Session,
	provider domain.CompletionProvider,
	log *ExecutionLog,
	bus *EventBus,
	gate *RunGate,
	runs ports.RunRepository,
) *PipelineEngine {
	return &PipelineEngine{
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

// Busy reports whether a run is in flight.
func (e *PipelineEngine) Busy() bool {
	return e.gate.Busy()
}

// RunOne runs the step at index and waits for it to finish.
func (e *PipelineEngine) RunOne(ctx context.Context, index int) (RunReport, error) {
	id, err := e.acquireOne(index)
	if err != nil {
		return RunReport{}, err
	}
	defer e.gate.Release()
	return e.executeOne(ctx, id), nil
}

// StartOne checks preconditions synchronously and runs the step in the background.
func (e *PipelineEngine) StartOne(ctx context.Context, index int) error {
	id, err := e.acquireOne(index)
	if err != nil {
		return err
	}
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer e.gate.Release()
		e.executeOne(runCtx, id)
	}()
	return nil
}

// RunAll runs every step in order and waits for the chain to finish.
func (e *PipelineEngine) RunAll(ctx context.Context) (RunReport, error) {
	if err := e.acquireAll(); err != nil {
		return RunReport{}, err
	}
	defer e.gate.Release()
	return e.executeAll(ctx), nil
}

// StartAll charges the run synchronously and executes the chain in the background.
func (e *PipelineEngine) StartAll(ctx context.Context) error {
	if err := e.acquireAll(); err != nil {
		return err
	}
	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer e.gate.Release()
		e.executeAll(runCtx)
	}()
	return nil
}

// acquireOne takes the gate and verifies index and budget. The gate is
// released again on any error so nothing is left busy or mutated.
func (e *PipelineEngine) acquireOne(index int) (domain.StepID, error) {
	if err := e.gate.TryAcquire(); err != nil {
		return "", err
	}

	s := e.session
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.steps) {
		e.gate.Release()
		return "", fmt.Errorf("%w: index %d", domain.ErrStepNotFound, index)
	}
	if err := s.ledger.Require(domain.RunOneCost); err != nil {
		e.gate.Release()
		return "", err
	}
	return s.steps[index].ID, nil
}

// acquireAll takes the gate, verifies the budget and applies the up-front
// charge plus the idle reset.
func (e *PipelineEngine) acquireAll() error {
	if err := e.gate.TryAcquire(); err != nil {
		return err
	}

	s := e.session
	s.mu.Lock()
	if err := s.ledger.Require(domain.RunAllCost); err != nil {
		s.mu.Unlock()
		e.gate.Release()
		return err
	}
	s.ledger.Charge(domain.RunAllCost, domain.RunAllXP, domain.RunAllStress)
	for i := range s.steps {
		s.steps[i].Reset()
	}
	ledger := s.ledger
	s.mu.Unlock()

	e.bus.Emit(TopicLedger, EventLedgerUpdated, ledger)
	return nil
}

// executeOne runs a single step. The gate must be held by the caller.
func (e *PipelineEngine) executeOne(ctx context.Context, id domain.StepID) RunReport {
	s := e.session
	record := domain.NewRunRecord(domain.RunKindStep, s.Globals().Propagation, e.now())

	s.mu.Lock()
	index := s.indexOf(id)
	step := &s.steps[index]
	input := step.Input
	if input == "" && index == 0 {
		input = s.globals.GlobalTask + "\n" + s.globals.OCRText
	}
	step.Start()
	req := step.Request(input, s.globals.GlobalPrompt)
	name := step.Name
	s.mu.Unlock()

	e.log.Info(fmt.Sprintf("Running Agent: %s...", name))
	e.bus.Emit(TopicPipeline, EventStepStarted, map[string]any{"id": id, "index": index, "input": input})

	completion, err := e.provider.Generate(ctx, req)

	s.mu.Lock()
	index = s.indexOf(id)
	step = &s.steps[index]
	propagation := s.globals.Propagation
	var nextID domain.StepID
	if err != nil {
		step.Fail(err)
	} else {
		step.Succeed(completion)
		if propagation && index < len(s.steps)-1 {
			s.steps[index+1].Input = completion.Text
			nextID = s.steps[index+1].ID
		}
		s.ledger.Charge(domain.RunOneCost, domain.RunOneXP, domain.RunOneStress)
	}
	result := *step
	ledger := s.ledger
	s.mu.Unlock()

	if err != nil {
		e.logger.Warn("step failed", "step_id", id, "provider", req.Provider, "error", err)
		e.log.Error(fmt.Sprintf("Agent %s failed: %s", name, stepErrorMessage(result)))
		e.bus.Emit(TopicPipeline, EventStepFailed, result)
		record.Failed = 1
		record.Finish(domain.RunOutcomeFailed, e.now())
	} else {
		e.log.Success(fmt.Sprintf("Agent %s finished.", name))
		e.bus.Emit(TopicPipeline, EventStepCompleted, result)
		if nextID != "" {
			e.bus.Emit(TopicPipeline, EventStepInput, map[string]any{"id": nextID, "input": completion.Text})
		}
		e.bus.Emit(TopicLedger, EventLedgerUpdated, ledger)
		record.Succeeded = 1
		record.TotalTokens = completion.Tokens
		record.Finish(domain.RunOutcomeCompleted, e.now())
	}

	e.saveRun(record)
	return RunReport{Run: record, Steps: []domain.AgentStep{result}}
}

// executeAll runs the chain. The gate must be held and the run already charged.
func (e *PipelineEngine) executeAll(ctx context.Context) RunReport {
	s := e.session

	s.mu.RLock()
	globals := s.globals
	ids := make([]domain.StepID, len(s.steps))
	// Inputs as they were when the run started; a set input wins over propagation.
	presets := make(map[domain.StepID]string, len(s.steps))
	for i := range s.steps {
		ids[i] = s.steps[i].ID
		presets[ids[i]] = s.steps[i].Input
	}
	s.mu.RUnlock()

	sequential := globals.Propagation
	record := domain.NewRunRecord(domain.RunKindPipeline, sequential, e.now())

	mode := "Parallel"
	if sequential {
		mode = "Sequential"
	}
	e.log.Info(fmt.Sprintf("Starting %s Pipeline Execution...", mode))
	e.bus.Emit(TopicPipeline, EventPipelineStarted, map[string]any{"run_id": record.ID, "sequential": sequential, "steps": len(ids)})
	e.logger.Info("pipeline run started", "run_id", record.ID, "sequential", sequential, "steps", len(ids))

	previousOutput := globals.GlobalTask + "\n\n[Context from OCR]:\n" + globals.OCRText
	aborted := false

	for pos, id := range ids {
		s.mu.Lock()
		index := s.indexOf(id)
		step := &s.steps[index]
		input := presets[id]
		if input == "" {
			if sequential {
				input = previousOutput
			} else {
				input = globals.GlobalTask
			}
		}
		step.Input = input
		step.Start()
		req := step.Request(input, globals.GlobalPrompt)
		name := step.Name
		s.mu.Unlock()

		e.bus.Emit(TopicPipeline, EventStepStarted, map[string]any{"id": id, "index": pos, "input": input})

		completion, err := e.provider.Generate(ctx, req)

		s.mu.Lock()
		index = s.indexOf(id)
		step = &s.steps[index]
		var nextID domain.StepID
		if err != nil {
			step.Fail(err)
		} else {
			step.Succeed(completion)
			if sequential && index < len(s.steps)-1 && presets[s.steps[index+1].ID] == "" {
				s.steps[index+1].Input = completion.Text
				nextID = s.steps[index+1].ID
			}
			s.ledger.AddStress(-domain.StepSuccessRelief)
		}
		result := *step
		ledger := s.ledger
		s.mu.Unlock()

		if err != nil {
			record.Failed++
			e.logger.Warn("step failed", "run_id", record.ID, "step_id", id, "error", err)
			e.log.Error(fmt.Sprintf("Agent %s failed: %s", name, stepErrorMessage(result)))
			e.bus.Emit(TopicPipeline, EventStepFailed, result)
			if sequential {
				record.NotRun = len(ids) - pos - 1
				aborted = true
				break
			}
			continue
		}

		record.Succeeded++
		record.TotalTokens += completion.Tokens
		previousOutput = completion.Text
		e.log.Success(fmt.Sprintf("Agent %s finished. Used %d tokens.", name, completion.Tokens))
		e.bus.Emit(TopicPipeline, EventStepCompleted, result)
		if nextID != "" {
			e.bus.Emit(TopicPipeline, EventStepInput, map[string]any{"id": nextID, "input": completion.Text})
		}
		e.bus.Emit(TopicLedger, EventLedgerUpdated, ledger)
	}

	e.log.Info("Pipeline Execution Completed.")

	s.mu.Lock()
	leveled := s.ledger.CheckLevelUp()
	ledger := s.ledger
	steps := cloneSteps(s.steps)
	s.mu.Unlock()

	if leveled {
		e.log.Success("Level Up! Health and Mana restored.")
		e.bus.Emit(TopicLedger, EventLevelUp, ledger)
		e.bus.Emit(TopicLedger, EventLedgerUpdated, ledger)
	}

	outcome := domain.RunOutcomeCompleted
	if aborted {
		outcome = domain.RunOutcomeAborted
	}
	record.Finish(outcome, e.now())
	e.bus.Emit(TopicPipeline, EventPipelineCompleted, record)
	e.logger.Info("pipeline run finished",
		"run_id", record.ID,
		"outcome", outcome,
		"succeeded", record.Succeeded,
		"failed", record.Failed,
		"tokens", record.TotalTokens,
	)

	e.saveRun(record)
	return RunReport{Run: record, Steps: steps, LevelUp: leveled}
}

func (e *PipelineEngine) saveRun(record domain.RunRecord) {
	saveRunRecord(e.logger, e.runs, record)
}

// saveRunRecord writes history detached from the run context, so a record is
// kept even when the caller has gone away.
func saveRunRecord(logger *slog.Logger, runs ports.RunRepository, record domain.RunRecord) {
	if runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := runs.SaveRun(ctx, record); err != nil {
		logger.Error("failed to save run record", "run_id", record.ID, "kind", record.Kind, "error", err)
	}
}

func stepErrorMessage(step domain.AgentStep) string {
	if step.Error != "" {
		return step.Error
	}
	return "unknown error"
}
