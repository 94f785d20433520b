package evaluator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vitaliisemenov/flagcore/internal/evaluator"
	"github.com/vitaliisemenov/flagcore/internal/flagtypes"
)

func boolFlag(state flagtypes.State, value bool) flagtypes.Flag {
	return flagtypes.Flag{
		Key:          "feature-x",
		Kind:         flagtypes.KindFlagBoolean,
		State:        state,
		Value:        flagtypes.BoolValue(value),
		DefaultValue: flagtypes.BoolValue(false),
	}
}

func TestEvaluateBooleanFallthrough(t *testing.T) {
	flag := boolFlag(flagtypes.StateEnabled, true)
	result := evaluator.Evaluate(flag, flagtypes.EvaluationContext{})

	assert.Equal(t, flagtypes.ReasonFallthrough, result.Reason)
	assert.True(t, result.Value.AsBool())
	assert.Equal(t, "feature-x", result.FlagKey)
	assert.Nil(t, result.RuleIndex)
}

func TestEvaluateDisabledFlagReturnsDefault(t *testing.T) {
	flag := boolFlag(flagtypes.StateDisabled, true)
	result := evaluator.Evaluate(flag, flagtypes.EvaluationContext{})

	assert.Equal(t, flagtypes.ReasonFlagDisabled, result.Reason)
	assert.False(t, result.Value.AsBool())
}

func TestEvaluateArchivedFlagReturnsDefault(t *testing.T) {
	flag := boolFlag(flagtypes.StateArchived, true)
	result := evaluator.Evaluate(flag, flagtypes.EvaluationContext{})

	assert.Equal(t, flagtypes.ReasonFlagDisabled, result.Reason)
}

func TestEvaluateRolloutMissingUserID(t *testing.T) {
	pct := 50.0
	flag := flagtypes.Flag{
		Key:          "rollout-a",
		Kind:         flagtypes.KindFlagRollout,
		State:        flagtypes.StateEnabled,
		Percentage:   &pct,
		DefaultValue: flagtypes.BoolValue(false),
	}
	result := evaluator.Evaluate(flag, flagtypes.EvaluationContext{})
	assert.Equal(t, flagtypes.ReasonNoUserID, result.Reason)
}

func TestEvaluateRolloutMissingPercentage(t *testing.T) {
	uid := "user-1"
	flag := flagtypes.Flag{
		Key:          "rollout-b",
		Kind:         flagtypes.KindFlagRollout,
		State:        flagtypes.StateEnabled,
		DefaultValue: flagtypes.BoolValue(false),
	}
	result := evaluator.Evaluate(flag, flagtypes.EvaluationContext{UserID: &uid})
	assert.Equal(t, flagtypes.ReasonRolloutConfigMiss, result.Reason)
}

func TestEvaluateRolloutZeroPercentAlwaysExcluded(t *testing.T) {
	pct := 0.0
	flag := flagtypes.Flag{
		Key:          "rollout-c",
		Kind:         flagtypes.KindFlagRollout,
		State:        flagtypes.StateEnabled,
		Percentage:   &pct,
		DefaultValue: flagtypes.BoolValue(false),
	}
	for i := 0; i < 50; i++ {
		uid := randomishUser(i)
		result := evaluator.Evaluate(flag, flagtypes.EvaluationContext{UserID: &uid})
		assert.Equal(t, flagtypes.ReasonRolloutExcluded, result.Reason)
		assert.False(t, result.Value.AsBool())
	}
}

func TestEvaluateRolloutHundredPercentAlwaysIncluded(t *testing.T) {
	pct := 100.0
	flag := flagtypes.Flag{
		Key:          "rollout-d",
		Kind:         flagtypes.KindFlagRollout,
		State:        flagtypes.StateEnabled,
		Percentage:   &pct,
		DefaultValue: flagtypes.BoolValue(false),
	}
	for i := 0; i < 50; i++ {
		uid := randomishUser(i)
		result := evaluator.Evaluate(flag, flagtypes.EvaluationContext{UserID: &uid})
		assert.Equal(t, flagtypes.ReasonRolloutIncluded, result.Reason)
		assert.True(t, result.Value.AsBool())
	}
}

func TestEvaluateRolloutDeterministicAcrossRepeatedCalls(t *testing.T) {
	pct := 42.0
	uid := "stable-user"
	flag := flagtypes.Flag{
		Key:          "rollout-e",
		Kind:         flagtypes.KindFlagRollout,
		State:        flagtypes.StateEnabled,
		Percentage:   &pct,
		DefaultValue: flagtypes.BoolValue(false),
	}
	ctx := flagtypes.EvaluationContext{UserID: &uid}

	first := evaluator.Evaluate(flag, ctx)
	for i := 0; i < 1000; i++ {
		result := evaluator.Evaluate(flag, ctx)
		assert.Equal(t, first.Reason, result.Reason)
		assert.Equal(t, first.Value.AsBool(), result.Value.AsBool())
	}
}

func TestEvaluateSegmentNoRules(t *testing.T) {
	flag := flagtypes.Flag{
		Key:          "segment-a",
		Kind:         flagtypes.KindFlagSegment,
		State:        flagtypes.StateEnabled,
		DefaultValue: flagtypes.StringValue("control"),
	}
	result := evaluator.Evaluate(flag, flagtypes.EvaluationContext{})
	assert.Equal(t, flagtypes.ReasonNoRules, result.Reason)
	assert.Equal(t, "control", result.Value.AsString())
}

func TestEvaluateSegmentNoRuleMatch(t *testing.T) {
	flag := flagtypes.Flag{
		Key:   "segment-b",
		Kind:  flagtypes.KindFlagSegment,
		State: flagtypes.StateEnabled,
		Value: flagtypes.StringValue("treatment"),
		Rules: []flagtypes.TargetingRule{
			{Attribute: "plan", Operator: flagtypes.OpEq, Value: "enterprise"},
		},
		DefaultValue: flagtypes.StringValue("control"),
	}
	result := evaluator.Evaluate(flag, flagtypes.EvaluationContext{
		Attributes: map[string]string{"plan": "free"},
	})
	assert.Equal(t, flagtypes.ReasonNoRuleMatch, result.Reason)
	assert.Equal(t, "control", result.Value.AsString())
}

func TestEvaluateSegmentFirstMatchWins(t *testing.T) {
	flag := flagtypes.Flag{
		Key:   "segment-c",
		Kind:  flagtypes.KindFlagSegment,
		State: flagtypes.StateEnabled,
		Value: flagtypes.StringValue("treatment"),
		Rules: []flagtypes.TargetingRule{
			{Attribute: "plan", Operator: flagtypes.OpEq, Value: "free"},
			{Attribute: "plan", Operator: flagtypes.OpEq, Value: "enterprise"},
		},
		DefaultValue: flagtypes.StringValue("control"),
	}
	result := evaluator.Evaluate(flag, flagtypes.EvaluationContext{
		Attributes: map[string]string{"plan": "enterprise"},
	})
	// Rule 0 doesn't match, rule 1 does -- index 1, not a false positive on rule 0.
	wantIdx := 1
	assert.Equal(t, flagtypes.ReasonRuleMatch, result.Reason)
	assert.Equal(t, &wantIdx, result.RuleIndex)
	assert.Equal(t, "treatment", result.Value.AsString())
}

func TestEvaluateSegmentEmptyAttributesNeverMatch(t *testing.T) {
	flag := flagtypes.Flag{
		Key:   "segment-d",
		Kind:  flagtypes.KindFlagSegment,
		State: flagtypes.StateEnabled,
		Value: flagtypes.StringValue("treatment"),
		Rules: []flagtypes.TargetingRule{
			{Attribute: "plan", Operator: flagtypes.OpEq, Value: "free"},
		},
		DefaultValue: flagtypes.StringValue("control"),
	}
	result := evaluator.Evaluate(flag, flagtypes.EvaluationContext{})
	assert.Equal(t, flagtypes.ReasonNoRuleMatch, result.Reason)
}

func TestEvaluateVariantFallthrough(t *testing.T) {
	flag := flagtypes.Flag{
		Key:          "variant-a",
		Kind:         flagtypes.KindFlagVariant,
		State:        flagtypes.StateEnabled,
		Value:        flagtypes.StringValue("blue"),
		Variants:     []string{"blue", "green"},
		DefaultValue: flagtypes.StringValue("blue"),
	}
	result := evaluator.Evaluate(flag, flagtypes.EvaluationContext{})
	assert.Equal(t, flagtypes.ReasonFallthrough, result.Reason)
	assert.Equal(t, "blue", result.Value.AsString())
}

func randomishUser(i int) string {
	return "user-" + string(rune('a'+i%26)) + string(rune('0'+i%10))
}
