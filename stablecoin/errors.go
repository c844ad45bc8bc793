package stablecoin

import (
	"errors"
	"fmt"
	"strings"

	constant "github.com/LerianStudio/lib-stablecoin/stablecoin/constants"
)

// FieldError describes one failed request-shape rule.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError collects every failed field rule of a request.
type ValidationError struct {
	Request string       `json:"request,omitempty"`
	Fields  []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}

	prefix := "validation failed"
	if e.Request != "" {
		prefix = fmt.Sprintf("validation of %s failed", e.Request)
	}

	return prefix + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return constant.ErrInvalidRequest }

// BusinessRuleViolation is raised by the validation pipeline before any
// network round trip. Err is the constant sentinel and drives errors.Is.
//
// Reason optionally narrows Err. A hold that has expired is reported as
// ErrOperationNotAllowed with Reason ErrHoldExpired, and matches both.
type BusinessRuleViolation struct {
	Err     error
	Reason  error
	Field   string
	Message string
}

// NewBusinessRuleViolation builds a violation for the sentinel code.
func NewBusinessRuleViolation(code error, field, message string) *BusinessRuleViolation {
	return &BusinessRuleViolation{Err: code, Field: field, Message: message}
}

// Code returns the public error code.
func (e *BusinessRuleViolation) Code() string {
	if e.Err == nil {
		return ""
	}

	return e.Err.Error()
}

func (e *BusinessRuleViolation) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s [%s] %s: %s", Title(e.Err), e.Code(), e.Field, e.Message)
	}

	return fmt.Sprintf("%s [%s]: %s", Title(e.Err), e.Code(), e.Message)
}

func (e *BusinessRuleViolation) Unwrap() []error {
	if e.Reason == nil {
		return []error{e.Err}
	}

	return []error{e.Err, e.Reason}
}

// WithReason sets Reason and returns e.
func (e *BusinessRuleViolation) WithReason(reason error) *BusinessRuleViolation {
	e.Reason = reason
	return e
}

// TransactionBuildingError is returned when an unsigned transaction cannot
// be assembled from the request parameters.
type TransactionBuildingError struct {
	Operation string
	Err       error
}

func (e *TransactionBuildingError) Error() string {
	return fmt.Sprintf("building %s transaction: %v", e.Operation, e.Err)
}

func (e *TransactionBuildingError) Unwrap() error { return e.Err }

// SigningError is returned when a wallet fails or refuses to sign.
type SigningError struct {
	Wallet string
	Err    error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("%s wallet signing failed: %v", e.Wallet, e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// TransactionResponseError carries the ledger-side failure of a submitted
// transaction.
type TransactionResponseError struct {
	Message       string
	TransactionID string
	Network       string
	Status        string
	Operation     string
	Err           error
}

func (e *TransactionResponseError) Error() string {
	var b strings.Builder

	b.WriteString("transaction")

	if e.Operation != "" {
		b.WriteString(" " + e.Operation)
	}

	if e.TransactionID != "" {
		b.WriteString(" " + e.TransactionID)
	}

	if e.Network != "" {
		b.WriteString(" on " + e.Network)
	}

	b.WriteString(" failed")

	if e.Status != "" {
		b.WriteString(" with status " + e.Status)
	}

	if e.Message != "" {
		b.WriteString(": " + e.Message)
	} else if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}

	return b.String()
}

func (e *TransactionResponseError) Unwrap() error { return e.Err }

// AggregateError holds every failure of a multi-target check. errors.Is and
// errors.As match against any member.
type AggregateError struct {
	Errs []error
}

// NewAggregateError drops nil entries and returns nil when nothing is left.
func NewAggregateError(errs []error) error {
	kept := make([]error, 0, len(errs))

	for _, err := range errs {
		if err != nil {
			kept = append(kept, err)
		}
	}

	if len(kept) == 0 {
		return nil
	}

	return &AggregateError{Errs: kept}
}

func (e *AggregateError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}

	return fmt.Sprintf("%d errors: %s", len(e.Errs), strings.Join(msgs, "; "))
}

func (e *AggregateError) Unwrap() []error { return e.Errs }

// ConfigurationError signals wiring mistakes such as a missing handler or an
// unregistered wallet.
type ConfigurationError struct {
	Component string
	Err       error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s misconfigured: %v", e.Component, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Response is the serialized form of a business error.
type Response struct {
	EntityType string `json:"entityType,omitempty"`
	Title      string `json:"title,omitempty"`
	Message    string `json:"message,omitempty"`
	Code       string `json:"code,omitempty"`
	Err        error  `json:"-"`
}

func (e Response) Error() string {
	return e.Message
}

func (e Response) Unwrap() error { return e.Err }

var businessTitles = map[error]string{
	constant.ErrStableCoinNotAssociated: "Stable Coin Not Associated",
	constant.ErrAccountFreeze:           "Account Frozen",
	constant.ErrAccountNotKyc:           "Account Not KYC",
	constant.ErrDecimalsOverRange:       "Decimals Over Range",
	constant.ErrOperationNotAllowed:     "Operation Not Allowed",
	constant.ErrInsufficientFunds:       "Insufficient Funds",
	constant.ErrMaxSupplyExceeded:       "Max Supply Exceeded",
	constant.ErrMaxCustomFeesExceeded:   "Max Custom Fees Exceeded",
	constant.ErrHoldNotFound:            "Hold Not Found",
	constant.ErrHoldExpired:             "Hold Expired",
	constant.ErrHoldNotExpired:          "Hold Not Expired",
	constant.ErrNotEscrow:               "Not Escrow",
	constant.ErrHoldTargetMismatch:      "Invalid Hold Destination",
	constant.ErrKycKeyMissing:           "KYC Key Missing",
}

// Title returns the human title of a business sentinel.
func Title(code error) string {
	if title, ok := businessTitles[code]; ok {
		return title
	}

	return "Business Rule Violation"
}

// ValidateBusinessError converts err into a Response when it carries a
// business rule violation and returns err unchanged otherwise.
func ValidateBusinessError(err error, entityType string) error {
	var violation *BusinessRuleViolation
	if !errors.As(err, &violation) {
		return err
	}

	return Response{
		EntityType: entityType,
		Code:       violation.Code(),
		Title:      Title(violation.Err),
		Message:    violation.Message,
		Err:        err,
	}
}
