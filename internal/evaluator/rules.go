package evaluator

import (
	"strconv"
	"strings"

	"github.com/vitaliisemenov/flagcore/internal/flagtypes"
)

// matchRule evaluates a single TargetingRule against a context, applying
// negate last. Attribute absence is false regardless of operator
// (spec.md §4.2); this is checked once up front so operator bodies never
// need to special-case "missing".
func matchRule(rule flagtypes.TargetingRule, ctx flagtypes.EvaluationContext) bool {
	attrValue, present := ctx.Attr(rule.Attribute)

	var matched bool
	if present {
		matched = evalOperator(rule.Operator, attrValue, rule.Value)
	}

	if rule.Negate {
		return !matched
	}
	return matched
}

func evalOperator(op flagtypes.Operator, attrValue, ruleValue string) bool {
	switch op {
	case flagtypes.OpEq:
		return attrValue == ruleValue
	case flagtypes.OpNeq:
		return attrValue != ruleValue
	case flagtypes.OpContains:
		return strings.Contains(attrValue, ruleValue)
	case flagtypes.OpStartsWith:
		return strings.HasPrefix(attrValue, ruleValue)
	case flagtypes.OpEndsWith:
		return strings.HasSuffix(attrValue, ruleValue)
	case flagtypes.OpIn:
		return inList(attrValue, ruleValue)
	case flagtypes.OpNotIn:
		return !inList(attrValue, ruleValue)
	case flagtypes.OpGt, flagtypes.OpGte, flagtypes.OpLt, flagtypes.OpLte:
		return evalNumeric(op, attrValue, ruleValue)
	case flagtypes.OpRegex:
		re, ok := defaultRegexCache.compile(ruleValue)
		if !ok {
			return false
		}
		return re.MatchString(attrValue)
	default:
		return false
	}
}

// inList splits ruleValue on literal commas, trims each element, and
// checks for an exact match -- the §4.2-specified semantics for In/NotIn.
func inList(attrValue, ruleValue string) bool {
	for _, candidate := range strings.Split(ruleValue, ",") {
		if strings.TrimSpace(candidate) == attrValue {
			return true
		}
	}
	return false
}

// evalNumeric parses both sides as IEEE-754 doubles; a parse failure on
// either side is false, never an error (spec.md §4.2).
func evalNumeric(op flagtypes.Operator, attrValue, ruleValue string) bool {
	a, err := strconv.ParseFloat(attrValue, 64)
	if err != nil {
		return false
	}
	b, err := strconv.ParseFloat(ruleValue, 64)
	if err != nil {
		return false
	}
	switch op {
	case flagtypes.OpGt:
		return a > b
	case flagtypes.OpGte:
		return a >= b
	case flagtypes.OpLt:
		return a < b
	case flagtypes.OpLte:
		return a <= b
	default:
		return false
	}
}
