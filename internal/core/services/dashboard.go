package services

import (
	"unicode/utf8"

	"github.com/manthysbr/floral/internal/core/domain"
)

const tokenMasterThreshold = 5000

// StepStat is one bar of the token/output chart.
type StepStat struct {
	Name         string `json:"name"`
	Tokens       int    `json:"tokens"`
	OutputLength int    `json:"outputLength"`
}

type Achievement struct {
	ID          int    `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Unlocked    bool   `json:"unlocked"`
}

type Dashboard struct {
	Steps        []StepStat    `json:"steps"`
	TotalTokens  int           `json:"totalTokens"`
	Ledger       domain.Ledger `json:"ledger"`
	Achievements []Achievement `json:"achievements"`
}

// BuildDashboard summarises the session and the log into chart data.
func BuildDashboard(session *Session, log *ExecutionLog) Dashboard {
	snap := session.Snapshot()

	d := Dashboard{Steps: make([]StepStat, 0, len(snap.Steps)), Ledger: snap.Ledger}
	tokenMaster := false
	harmony := len(snap.Steps) > 0
	for _, st := range snap.Steps {
		d.Steps = append(d.Steps, StepStat{
			Name:         st.Name,
			Tokens:       st.TokenUsage,
			OutputLength: utf8.RuneCountInString(st.Output),
		})
		d.TotalTokens += st.TokenUsage
		if st.TokenUsage > tokenMasterThreshold {
			tokenMaster = true
		}
		if st.Status != domain.StepStatusSuccess {
			harmony = false
		}
	}

	d.Achievements = []Achievement{
		{ID: 1, Label: "First Bloom", Description: "Run your first pipeline", Unlocked: log.Len() > 0},
		{ID: 2, Label: "Token Master", Description: "Use over 5000 tokens", Unlocked: tokenMaster},
		{ID: 3, Label: "Floral Harmony", Description: "Complete without errors", Unlocked: harmony},
	}
	return d
}
