// Package evaluator implements the pure flag-resolution algorithm:
// (Flag, EvaluationContext) -> EvaluationResult, with no I/O, no mutable
// state, and no clock access beyond ctx.Timestamp.
//
// Grounded on internal/business/routing's matcher (operator dispatch,
// regex caching) and evaluator_decision (separating decision construction
// from matching), generalized from Alertmanager route matching to
// flag-targeting-rule matching.
package evaluator

import "github.com/vitaliisemenov/flagcore/internal/flagtypes"

// Evaluate resolves flag against ctx. It never errors: illegal or
// incomplete input yields the flag's default value and an explanatory
// reason, per spec.md §4.2/§7.
func Evaluate(flag flagtypes.Flag, ctx flagtypes.EvaluationContext) flagtypes.EvaluationResult {
	if flag.State == flagtypes.StateDisabled || flag.State == flagtypes.StateArchived {
		return flagtypes.EvaluationResult{
			FlagKey: flag.Key,
			Value:   flag.DefaultValue,
			Reason:  flagtypes.ReasonFlagDisabled,
		}
	}

	switch flag.Kind {
	case flagtypes.KindFlagBoolean, flagtypes.KindFlagVariant:
		return flagtypes.EvaluationResult{
			FlagKey: flag.Key,
			Value:   flag.Value,
			Reason:  flagtypes.ReasonFallthrough,
		}
	case flagtypes.KindFlagRollout:
		return evaluateRollout(flag, ctx)
	case flagtypes.KindFlagSegment:
		return evaluateSegment(flag, ctx)
	default:
		// Unknown kind: behave like an unconfigured flag rather than fail.
		return flagtypes.EvaluationResult{
			FlagKey: flag.Key,
			Value:   flag.DefaultValue,
			Reason:  flagtypes.ReasonFallthrough,
		}
	}
}

func evaluateRollout(flag flagtypes.Flag, ctx flagtypes.EvaluationContext) flagtypes.EvaluationResult {
	if ctx.UserID == nil || *ctx.UserID == "" {
		return flagtypes.EvaluationResult{
			FlagKey: flag.Key,
			Value:   flag.DefaultValue,
			Reason:  flagtypes.ReasonNoUserID,
		}
	}
	if flag.Percentage == nil {
		return flagtypes.EvaluationResult{
			FlagKey: flag.Key,
			Value:   flag.DefaultValue,
			Reason:  flagtypes.ReasonRolloutConfigMiss,
		}
	}

	b := bucket(flag.EffectiveHashSeed(), flag.Key, *ctx.UserID)
	included := float64(b) < *flag.Percentage

	reason := flagtypes.ReasonRolloutExcluded
	if included {
		reason = flagtypes.ReasonRolloutIncluded
	}
	return flagtypes.EvaluationResult{
		FlagKey: flag.Key,
		Value:   flagtypes.BoolValue(included),
		Reason:  reason,
	}
}

func evaluateSegment(flag flagtypes.Flag, ctx flagtypes.EvaluationContext) flagtypes.EvaluationResult {
	if len(flag.Rules) == 0 {
		return flagtypes.EvaluationResult{
			FlagKey: flag.Key,
			Value:   flag.DefaultValue,
			Reason:  flagtypes.ReasonNoRules,
		}
	}

	for i, rule := range flag.Rules {
		if matchRule(rule, ctx) {
			idx := i
			return flagtypes.EvaluationResult{
				FlagKey:   flag.Key,
				Value:     flag.Value,
				Reason:    flagtypes.ReasonRuleMatch,
				RuleIndex: &idx,
			}
		}
	}

	return flagtypes.EvaluationResult{
		FlagKey: flag.Key,
		Value:   flag.DefaultValue,
		Reason:  flagtypes.ReasonNoRuleMatch,
	}
}
