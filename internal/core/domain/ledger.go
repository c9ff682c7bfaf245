package domain

// Ledger costs and rewards.
const (
	RunOneCost   = 5
	RunOneXP     = 5
	RunOneStress = 2

	RunAllCost   = 20
	RunAllXP     = 15
	RunAllStress = 10

	StepSuccessRelief = 5

	AnalysisCost   = 30
	AnalysisStress = 5
	AnalysisXP     = 50

	ledgerMax = 100
)

// Ledger is the session's resource budget and progression counters.
// Every mutating method clamps its fields so the bounds always hold.
type Ledger struct {
	Mana   int `json:"mana"`
	Health int `json:"health"`
	XP     int `json:"xp"`
	Level  int `json:"level"`
	Stress int `json:"stress"`
}

// NewLedger returns the session start values.
func NewLedger() Ledger {
	return Ledger{Mana: ledgerMax, Health: ledgerMax, XP: 0, Level: 1, Stress: 0}
}

// CanAfford reports whether cost mana is available.
func (l Ledger) CanAfford(cost int) bool {
	return l.Mana >= cost
}

// Require returns a *BudgetError when cost mana is not available.
func (l Ledger) Require(cost int) error {
	if !l.CanAfford(cost) {
		return &BudgetError{Required: cost, Mana: l.Mana}
	}
	return nil
}

// Charge applies a mana cost, xp reward and stress increase in one step.
func (l *Ledger) Charge(cost, xp, stress int) {
	l.Mana = clamp(l.Mana-cost, 0, ledgerMax)
	l.AddXP(xp)
	l.AddStress(stress)
}

func (l *Ledger) AddXP(n int) {
	l.XP += n
	if l.XP < 0 {
		l.XP = 0
	}
}

// AddStress adds n (which may be negative) within [0,100].
func (l *Ledger) AddStress(n int) {
	l.Stress = clamp(l.Stress+n, 0, ledgerMax)
}

// CheckLevelUp promotes the level when xp exceeds level*100 and restores
// mana and health. It reports whether a promotion happened.
func (l *Ledger) CheckLevelUp() bool {
	if l.Level < 1 {
		l.Level = 1
	}
	if l.XP <= l.Level*100 {
		return false
	}
	l.Level++
	l.Mana = ledgerMax
	l.Health = ledgerMax
	return true
}

// Normalize forces every field back into bounds.
func (l *Ledger) Normalize() {
	l.Mana = clamp(l.Mana, 0, ledgerMax)
	l.Health = clamp(l.Health, 0, ledgerMax)
	l.Stress = clamp(l.Stress, 0, ledgerMax)
	if l.XP < 0 {
		l.XP = 0
	}
	if l.Level < 1 {
		l.Level = 1
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
