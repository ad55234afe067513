package types

import "errors"

// Sentinel errors for overseer operations.
var (
	// ErrRuleNotFound indicates a lookup for an unregistered rule id.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrEmptyRuleID indicates a rule without an identifier.
	ErrEmptyRuleID = errors.New("rule id is empty")

	// ErrDuplicateRuleID indicates the same id twice in one rule set.
	ErrDuplicateRuleID = errors.New("duplicate rule id")

	// ErrPathTooDeep indicates a field path exceeds MaxPathDepth.
	ErrPathTooDeep = errors.New("field path exceeds maximum depth")

	// ErrTooManyInValues indicates an in/not_in list exceeds MaxInOperatorValues.
	ErrTooManyInValues = errors.New("in operator has too many values")

	// ErrInvalidOperator indicates an unknown operator.
	ErrInvalidOperator = errors.New("invalid operator")

	// ErrNotAList indicates an in/not_in value that is not a list.
	ErrNotAList = errors.New("value must be a list")

	// ErrInvalidPattern indicates a matches_regex pattern that does not compile.
	ErrInvalidPattern = errors.New("invalid regular expression")

	// ErrMissingEvaluator indicates a custom condition without an evaluator name.
	ErrMissingEvaluator = errors.New("custom condition requires an evaluator name")

	// ErrEvaluatorNotFound indicates a custom evaluator name with no registration.
	ErrEvaluatorNotFound = errors.New("custom evaluator not registered")

	// ErrEvaluatorPanic indicates a custom evaluator panicked.
	ErrEvaluatorPanic = errors.New("custom evaluator panicked")

	// ErrNonBooleanResult indicates a custom evaluator produced a non-boolean value.
	ErrNonBooleanResult = errors.New("evaluator result is not a boolean")

	// ErrFieldNotFound indicates a field path could not be resolved.
	ErrFieldNotFound = errors.New("field not found")
)
