package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/manthysbr/floral/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// Format is an agent configuration file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml or yml. Empty means json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

// ContentType returns the MIME type for an exported file.
func (f Format) ContentType() string {
	if f == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

// Interchange exports and imports the pipeline as agent configuration files.
type Interchange struct {
	logger  *slog.Logger
	session *Session
	log     *ExecutionLog
}

func NewInterchange(logger *slog.Logger, session *Session, log *ExecutionLog) *Interchange {
	return &Interchange{logger: logger, session: session, log: log}
}

// Export serializes the current pipeline.
func (x *Interchange) Export(format Format) ([]byte, error) {
	steps := x.session.Steps()

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err = enc.Encode(steps); err == nil {
			err = enc.Close()
		}
		data = buf.Bytes()
	default:
		data, err = json.MarshalIndent(steps, "", "  ")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode agents: %w", err)
	}

	x.log.Info("Agents configuration exported.")
	return data, nil
}

// Import replaces the pipeline with the records in data. Either every record
// is accepted or the pipeline is left untouched.
func (x *Interchange) Import(data []byte) ([]domain.AgentStep, error) {
	steps, err := decodeSteps(data)
	if err != nil {
		x.logger.Warn("agent import rejected", "error", err)
		x.log.Error(importFailureMessage(err))
		return nil, err
	}
	if err := normalizeImported(steps); err != nil {
		x.logger.Warn("agent import rejected", "error", err)
		x.log.Error("Invalid agent configuration file.")
		return nil, err
	}

	if err := x.session.ReplaceSteps(steps); err != nil {
		return nil, err
	}

	x.logger.Info("agents imported", "count", len(steps))
	x.log.Success("Agents configuration imported successfully.")
	return steps, nil
}

func decodeSteps(data []byte) ([]domain.AgentStep, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &domain.ValidationError{Index: -1, Reason: "empty file"}
	}

	var steps []domain.AgentStep
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &steps); err != nil {
			return nil, &domain.ValidationError{Index: -1, Reason: jsonReason(err)}
		}
	case '{':
		return nil, &domain.ValidationError{Index: -1, Reason: errNotAList}
	default:
		var doc yaml.Node
		if err := yaml.Unmarshal(trimmed, &doc); err != nil {
			return nil, &domain.ValidationError{Index: -1, Reason: err.Error()}
		}
		if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.SequenceNode {
			return nil, &domain.ValidationError{Index: -1, Reason: errNotAList}
		}
		if err := doc.Content[0].Decode(&steps); err != nil {
			return nil, &domain.ValidationError{Index: -1, Reason: err.Error()}
		}
	}
	return steps, nil
}

// errNotAList marks a payload that parsed but is not an array of agents.
const errNotAList = "expected a list of agents"

func importFailureMessage(err error) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) && verr.Reason == errNotAList {
		return "Invalid agent configuration file."
	}
	return "Error parsing agent configuration file."
}

func jsonReason(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("field %s: expected %s", typeErr.Field, typeErr.Type)
	}
	return err.Error()
}

// normalizeImported fills optional fields and validates every record.
func normalizeImported(steps []domain.AgentStep) error {
	seen := make(map[domain.StepID]bool, len(steps))
	for i := range steps {
		st := &steps[i]
		st.ID = domain.StepID(strings.TrimSpace(string(st.ID)))

		if st.Provider == "" {
			st.Provider = domain.ProviderGemini
		}
		if p, err := domain.ParseProvider(string(st.Provider)); err == nil {
			st.Provider = p
		}
		if st.Model == "" {
			st.Model = domain.DefaultModel(st.Provider)
		}
		if st.MaxTokens == 0 {
			st.MaxTokens = 2000
		}
		if !st.Status.Valid() || st.Status == domain.StepStatusRunning {
			st.Status = domain.StepStatusIdle
		}

		if err := validateStep(i, *st); err != nil {
			return err
		}
		if seen[st.ID] {
			return &domain.ValidationError{Index: i, Reason: fmt.Sprintf("duplicate id %q", st.ID)}
		}
		seen[st.ID] = true
	}
	return nil
}
