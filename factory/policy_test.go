package factory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fee-ledger/factory"
	"github.com/warp/fee-ledger/ledger"
)

func TestParsePolicy_Presets(t *testing.T) {
	f := factory.NewPolicyFactory()

	monthly, err := f.ParsePolicy(factory.MonthlyJSON())
	require.NoError(t, err)
	assert.Equal(t, ledger.MonthlyPolicy(), monthly)

	quarterly, err := f.ParsePolicy(factory.QuarterlyJSON())
	require.NoError(t, err)
	assert.Equal(t, ledger.IntervalMonth, quarterly.Unit)
	assert.Equal(t, 3, quarterly.Every)
	assert.Equal(t, ledger.AnchorNow, quarterly.RedivideAnchor)
}

func TestFromJSON_DefaultsOmittedFields(t *testing.T) {
	// An empty definition falls back to the monthly default.
	f := factory.NewPolicyFactory()

	policy, err := f.FromJSON(factory.PolicyJSON{})
	require.NoError(t, err)
	assert.Equal(t, ledger.MonthlyPolicy(), policy)

	policy, err = f.FromJSON(factory.PolicyJSON{Interval: "week"})
	require.NoError(t, err)
	assert.Equal(t, ledger.IntervalWeek, policy.Unit)
	assert.Equal(t, 1, policy.Every)
}

func TestFromJSON_RejectsUnknownValues(t *testing.T) {
	f := factory.NewPolicyFactory()

	_, err := f.FromJSON(factory.PolicyJSON{Interval: "fortnight"})
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)

	_, err = f.FromJSON(factory.PolicyJSON{Interval: "month", RedivideAnchor: "yesterday"})
	assert.ErrorIs(t, err, ledger.ErrInvalidArgument)

	_, err = f.ParsePolicy("{not json")
	assert.Error(t, err)
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := factory.NewPolicyFactory()

	pj := f.ToJSON(ledger.MonthlyPolicy())
	back, err := f.FromJSON(pj)
	require.NoError(t, err)
	assert.Equal(t, ledger.MonthlyPolicy(), back)
}
