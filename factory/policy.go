/*
Package factory provides JSON to Go schedule-policy conversion.

PURPOSE:
  Converts JSON policy definitions into ledger.SchedulePolicy values. This
  enables schedule configuration without code changes - an admin can define
  billing cadences in JSON, and the factory creates the proper Go struct.

WHY JSON?
  - Non-developers can modify cadences
  - Easy integration with admin UI
  - Version control for policy definitions
  - Database storage of policy configs

JSON SCHEMA:
  {
    "interval": "month",
    "every": 1,
    "redivide_anchor": "first_pending"
  }

KEY FEATURES:
  - Validates JSON structure through ledger.SchedulePolicy.Validate
  - Sets sensible defaults (monthly, anchor on first pending due date)
  - Round-trips back to JSON for storage

USAGE:
  factory := NewPolicyFactory()

  // From JSON string
  policy, err := factory.ParsePolicy(jsonString)

  // From preset (recommended)
  policy, err := factory.ParsePolicy(factory.MonthlyJSON())

  // Use in system
  svc.CreateSchedule(ctx, ledger.CreateScheduleInput{Policy: policy, ...})

SEE ALSO:
  - ledger/types.go: SchedulePolicy type definition
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/warp/fee-ledger/ledger"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of a schedule policy.
type PolicyJSON struct {
	Interval       string `json:"interval"`                  // month, week, day
	Every          int    `json:"every,omitempty"`           // default 1
	RedivideAnchor string `json:"redivide_anchor,omitempty"` // first_pending, now
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts JSON policies to ledger.SchedulePolicy.
type PolicyFactory struct{}

// NewPolicyFactory creates a new policy factory.
func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParsePolicy parses a JSON string into a SchedulePolicy.
func (f *PolicyFactory) ParsePolicy(jsonStr string) (ledger.SchedulePolicy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return ledger.SchedulePolicy{}, fmt.Errorf("failed to parse policy JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PolicyJSON to a validated SchedulePolicy, filling in
// defaults for omitted fields.
func (f *PolicyFactory) FromJSON(pj PolicyJSON) (ledger.SchedulePolicy, error) {
	policy := ledger.MonthlyPolicy()

	if pj.Interval != "" {
		policy.Unit = ledger.IntervalUnit(pj.Interval)
	}
	if pj.Every != 0 {
		policy.Every = pj.Every
	}
	if pj.RedivideAnchor != "" {
		policy.RedivideAnchor = ledger.RedivideAnchor(pj.RedivideAnchor)
	}

	if err := policy.Validate(); err != nil {
		return ledger.SchedulePolicy{}, err
	}
	return policy, nil
}

// ToJSON converts a SchedulePolicy back to its JSON representation.
func (f *PolicyFactory) ToJSON(policy ledger.SchedulePolicy) PolicyJSON {
	return PolicyJSON{
		Interval:       string(policy.Unit),
		Every:          policy.Every,
		RedivideAnchor: string(policy.RedivideAnchor),
	}
}

// =============================================================================
// PRESETS
// =============================================================================

// MonthlyJSON returns the default monthly cadence as a JSON string.
func MonthlyJSON() string {
	return `{"interval": "month", "every": 1, "redivide_anchor": "first_pending"}`
}

// WeeklyJSON returns a weekly cadence as a JSON string.
func WeeklyJSON() string {
	return `{"interval": "week", "every": 1, "redivide_anchor": "first_pending"}`
}

// QuarterlyJSON returns an every-three-months cadence as a JSON string.
func QuarterlyJSON() string {
	return `{"interval": "month", "every": 3, "redivide_anchor": "now"}`
}
