package validation

import (
	"fmt"
	"sync"

	"github.com/LerianStudio/lib-stablecoin/stablecoin"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/bigdecimal"
	"github.com/LerianStudio/lib-stablecoin/stablecoin/ledger"
	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
	errValidate  error
)

func initValidators() (*validator.Validate, error) {
	vld := validator.New()

	if err := vld.RegisterValidation("ledger_id", func(fl validator.FieldLevel) bool {
		return ledger.IsValidID(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("register ledger_id: %w", err)
	}

	return vld, nil
}

func getValidator() (*validator.Validate, error) {
	validateOnce.Do(func() {
		validate, errValidate = initValidators()
	})

	return validate, errValidate
}

// Rule is a pure predicate over a single value.
type Rule struct {
	Name    string
	Message string
	valid   func(value any) bool
}

// NewRule builds a Rule from a predicate.
func NewRule(name, message string, valid func(value any) bool) Rule {
	return Rule{Name: name, Message: message, valid: valid}
}

// Tag builds a Rule that delegates to a go-playground/validator tag.
func Tag(tag, message string) Rule {
	return NewRule(tag, message, func(value any) bool {
		vld, err := getValidator()
		if err != nil {
			return false
		}

		return vld.Var(value, tag) == nil
	})
}

// Common rules.
var (
	Required  = Tag("required", "is required")
	AccountID = Tag("required,ledger_id", "must be a shard.realm.num account id")
)

// Positive accepts a BigDecimal greater than zero.
var Positive = NewRule("positive", "must be greater than zero", func(value any) bool {
	amount, ok := value.(bigdecimal.BigDecimal)
	return ok && amount.IsPositive()
})

// NotNegative accepts a BigDecimal greater than or equal to zero.
var NotNegative = NewRule("not_negative", "must not be negative", func(value any) bool {
	amount, ok := value.(bigdecimal.BigDecimal)
	return ok && !amount.IsNegative()
})

// ID accepts a non-zero ledger.ID.
var ID = NewRule("ledger_id", "must be a non-zero shard.realm.num id", func(value any) bool {
	id, ok := value.(ledger.ID)
	return ok && !id.IsZero()
})

// Max builds a rule accepting an int at most limit.
func Max(limit int) Rule {
	return Tag(fmt.Sprintf("max=%d", limit), fmt.Sprintf("must be at most %d", limit))
}

// Check is one (field, rule) pair bound to the field's value.
type Check struct {
	Field string
	Value any
	Rule  Rule
}

// On binds value to rules under field.
func On(field string, value any, rules ...Rule) []Check {
	checks := make([]Check, len(rules))
	for i, rule := range rules {
		checks[i] = Check{Field: field, Value: value, Rule: rule}
	}

	return checks
}

// Fields evaluates every check in order and returns a *stablecoin.ValidationError
// listing all failures, or nil.
func Fields(request string, groups ...[]Check) error {
	var failed []stablecoin.FieldError

	for _, group := range groups {
		for _, c := range group {
			if c.Rule.valid != nil && c.Rule.valid(c.Value) {
				continue
			}

			failed = append(failed, stablecoin.FieldError{Field: c.Field, Rule: c.Rule.Name, Message: c.Rule.Message})
		}
	}

	if len(failed) == 0 {
		return nil
	}

	return &stablecoin.ValidationError{Request: request, Fields: failed}
}
