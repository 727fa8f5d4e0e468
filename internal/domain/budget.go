package domain

// BudgetPeriod is the closed sum of reset cadences a Budget may use.
type BudgetPeriod string

const (
	PeriodDaily    BudgetPeriod = "Daily"
	PeriodWeekly   BudgetPeriod = "Weekly"
	PeriodMonthly  BudgetPeriod = "Monthly"
	PeriodLifetime BudgetPeriod = "Lifetime"
)

// periodSeconds returns the fixed-seconds duration of one period per
// spec.md §9: months are treated as a fixed 2,592,000s (30 days), not
// calendar arithmetic. See DESIGN.md for the rationale. Lifetime has no
// duration and never resets.
func (p BudgetPeriod) periodSeconds() int64 {
	switch p {
	case PeriodDaily:
		return 86_400
	case PeriodWeekly:
		return 604_800
	case PeriodMonthly:
		return 2_592_000
	default:
		return 0
	}
}

// AlertThreshold fires once per period when cumulative usage first crosses
// ThresholdPercent of the hard limit.
type AlertThreshold struct {
	ThresholdPercent float64 `json:"threshold_percent"`
	Triggered        bool    `json:"triggered"`
}

// BudgetScopes constrains which requests a Budget applies to. Empty lists
// mean "unconstrained" for that dimension.
type BudgetScopes struct {
	APIKeyIDs []string `json:"api_key_ids,omitempty"`
	TeamIDs   []string `json:"team_ids,omitempty"`
	ModelIDs  []string `json:"model_ids,omitempty"`
}

// Budget is a period-scoped spending limit tracked in micro-dollars.
type Budget struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Period             BudgetPeriod     `json:"period"`
	PeriodStartTs       int64            `json:"period_start_ts"`
	HardLimitMicros     int64            `json:"hard_limit_micros"`
	SoftLimitMicros     *int64           `json:"soft_limit_micros,omitempty"`
	CurrentUsageMicros  int64            `json:"current_usage_micros"`
	Alerts              []AlertThreshold `json:"alerts"`
	Enabled             bool             `json:"enabled"`
	Scopes              BudgetScopes     `json:"scopes"`
}

func (b *Budget) Validate() error {
	if err := ValidateID("budget", b.ID); err != nil {
		return err
	}
	if b.Name == "" {
		return NewValidationError("budget.validate", "name must not be empty")
	}
	switch b.Period {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodLifetime:
	default:
		return NewValidationError("budget.validate", "unrecognized period")
	}
	if b.SoftLimitMicros != nil && *b.SoftLimitMicros >= b.HardLimitMicros {
		return NewValidationError("budget.validate", "soft_limit must be less than hard_limit")
	}
	return nil
}

// Applies reports whether the budget's scope constraints match the given
// request attributes, per spec.md §4.5: a budget with empty scope applies
// to every request; non-empty lists are AND-ed together, and each
// non-empty list must contain the corresponding attribute.
func (b *Budget) Applies(apiKeyID, teamID, modelID string) bool {
	if len(b.Scopes.APIKeyIDs) > 0 && !contains(b.Scopes.APIKeyIDs, apiKeyID) {
		return false
	}
	if len(b.Scopes.TeamIDs) > 0 && !contains(b.Scopes.TeamIDs, teamID) {
		return false
	}
	if len(b.Scopes.ModelIDs) > 0 && !contains(b.Scopes.ModelIDs, modelID) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}

// PeriodElapsed reports whether nowSec has crossed the current period's
// boundary (Lifetime budgets never elapse).
func (b *Budget) PeriodElapsed(nowSec int64) bool {
	dur := b.Period.periodSeconds()
	if dur == 0 {
		return false
	}
	return nowSec >= b.PeriodStartTs+dur
}

// ResetPeriod advances PeriodStartTs by one period length, zeros usage, and
// clears all triggered alert flags. Safe to call repeatedly; the sweeper
// decides when it's due via PeriodElapsed.
func (b *Budget) ResetPeriod() {
	dur := b.Period.periodSeconds()
	if dur == 0 {
		return
	}
	b.PeriodStartTs += dur
	b.CurrentUsageMicros = 0
	for i := range b.Alerts {
		b.Alerts[i].Triggered = false
	}
}
