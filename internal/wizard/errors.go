package wizard

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrClosed      = errors.New("wizard is closed")
	ErrInvalidStep = errors.New("operation not valid for current step")
	ErrNoRows      = errors.New("at least one row is required")

	// ErrZeroUnitRate is the reverse-calculation guard: units cannot be
	// derived from a value when the unit rate is zero.
	ErrZeroUnitRate = errors.New("unit rate is zero, cannot derive units from value")

	// ErrZeroPlanConfirmationDeclined means the user was asked whether an
	// empty revenue plan is intentional and answered no.
	ErrZeroPlanConfirmationDeclined = errors.New("zero revenue plan not confirmed")
)

// RowError is a field-level validation failure on a specific row of a step.
type RowError struct {
	Row     int
	Field   string
	Message string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s: %s", e.Row+1, e.Field, e.Message)
}

// FieldError is a field-level validation failure on step 1.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConsistencyError is a cross-step numeric consistency failure, carrying both
// sides of the comparison so callers can show the delta.
type ConsistencyError struct {
	Code     string
	Message  string
	Expected decimal.Decimal
	Actual   decimal.Decimal
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: %s (expected %s, got %s)", e.Code, e.Message, e.Expected, e.Actual)
}

const (
	CodePlanExceedsFunding  = "plan_exceeds_funding"
	CodeMilestoneImbalance  = "milestone_total_mismatch"
	CodeMilestoneOutOfRange = "milestone_due_date_out_of_range"
)
