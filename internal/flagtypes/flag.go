package flagtypes

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kind is the flag's evaluation strategy.
type Kind string

const (
	KindFlagBoolean Kind = "boolean"
	KindFlagVariant Kind = "variant"
	KindFlagRollout Kind = "rollout"
	KindFlagSegment Kind = "segment"
)

// State is the flag's lifecycle state.
type State string

const (
	StateEnabled  State = "enabled"
	StateDisabled State = "disabled"
	StateArchived State = "archived"
)

// Operator is a TargetingRule comparison operator.
type Operator string

const (
	OpEq         Operator = "eq"
	OpNeq        Operator = "neq"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
	OpGt         Operator = "gt"
	OpGte        Operator = "gte"
	OpLt         Operator = "lt"
	OpLte        Operator = "lte"
	OpRegex      Operator = "regex"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("variant_member", validateVariantMember)
	_ = validate.RegisterValidation("default_kind_match", validateDefaultKindMatch)
}

// validateVariantMember enforces the Variant flag invariant (value must be
// one of the declared variants) as a validator.v10 custom tag rather than
// hand-rolled Go, reaching into the enclosing Flag via FieldLevel.Parent()
// the way the struct-tag rules elsewhere reach into a single field.
func validateVariantMember(fl validator.FieldLevel) bool {
	flag, ok := parentFlag(fl)
	if !ok {
		return true
	}
	if flag.Kind != KindFlagVariant || len(flag.Variants) == 0 {
		return true
	}
	value, ok := fl.Field().Interface().(Value)
	if !ok {
		return true
	}
	for _, variant := range flag.Variants {
		if variant == value.AsString() {
			return true
		}
	}
	return false
}

// validateDefaultKindMatch enforces that DefaultValue, when set, carries the
// same ValueKind as Value.
func validateDefaultKindMatch(fl validator.FieldLevel) bool {
	flag, ok := parentFlag(fl)
	if !ok {
		return true
	}
	if flag.DefaultValue.Kind == "" || flag.Value.Kind == "" {
		return true
	}
	return flag.DefaultValue.Kind == flag.Value.Kind
}

func parentFlag(fl validator.FieldLevel) (Flag, bool) {
	parent := fl.Parent()
	if parent.Kind() == reflect.Ptr {
		parent = parent.Elem()
	}
	flag, ok := parent.Interface().(Flag)
	return flag, ok
}

// TargetingRule is one clause of a Segment flag. Rules are evaluated in
// declared order; the first matching rule wins (internal/evaluator).
type TargetingRule struct {
	Attribute string   `json:"attribute" validate:"required"`
	Operator  Operator `json:"operator" validate:"required,oneof=eq neq contains starts_with ends_with in not_in gt gte lt lte regex"`
	Value     string   `json:"value"`
	Negate    bool     `json:"negate"`
}

// Flag is an immutable-by-convention flag definition. Flag and its
// metadata (FlagMeta) together form the unit of storage and replication
// (FlagWithMeta).
type Flag struct {
	Key          string          `json:"key" validate:"required"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Kind         Kind            `json:"kind" validate:"required,oneof=boolean variant rollout segment"`
	State        State           `json:"state" validate:"required,oneof=enabled disabled archived"`
	Value        Value           `json:"value" validate:"variant_member,default_kind_match"`
	DefaultValue Value           `json:"defaultValue"`
	Variants     []string        `json:"variants,omitempty"`
	Percentage   *float64        `json:"percentage,omitempty" validate:"required_if=Kind rollout,omitempty,min=0,max=100"`
	Rules        []TargetingRule `json:"rules,omitempty" validate:"dive"`
	HashSeed     string          `json:"hashSeed,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	Environment  string          `json:"environment"`
}

// EffectiveHashSeed returns HashSeed, defaulting to Key when unset, as
// required for Rollout flags.
func (f Flag) EffectiveHashSeed() string {
	if f.HashSeed != "" {
		return f.HashSeed
	}
	return f.Key
}

// Validate checks the structural invariants spec.md §3 fixes for Flag,
// via validator.v10 struct tags (required fields, enum membership,
// percentage range, variant/default-kind consistency). It is called by
// the client façade on create/update, never by the evaluator, which must
// accept any Flag value without failing.
func (f Flag) Validate() error {
	if err := validate.Struct(f); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			return fmt.Errorf("flagtypes: flag %q: %s", f.Key, formatValidationErrors(verrs))
		}
		return fmt.Errorf("flagtypes: flag %q: %w", f.Key, err)
	}
	return nil
}

// formatValidationErrors renders validator.ValidationErrors as a single
// human-readable message, one clause per failing field.
func formatValidationErrors(verrs validator.ValidationErrors) string {
	clauses := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_if":
			clauses = append(clauses, fmt.Sprintf("%s is required", fe.Namespace()))
		case "oneof":
			clauses = append(clauses, fmt.Sprintf("%s must be one of [%s], got %v", fe.Namespace(), fe.Param(), fe.Value()))
		case "min", "max":
			clauses = append(clauses, fmt.Sprintf("%s out of range [%s]", fe.Namespace(), fe.Param()))
		case "variant_member":
			clauses = append(clauses, "value is not one of the declared variants")
		case "default_kind_match":
			clauses = append(clauses, "default_value kind must match value kind")
		default:
			clauses = append(clauses, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return strings.Join(clauses, "; ")
}
