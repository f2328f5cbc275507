package errors

import "fmt"

// Error codes for the fishing-stats service.
const (
	// Storage errors
	ErrCodeLoadFailed   = "LOAD_FAILED"
	ErrCodeSaveFailed   = "SAVE_FAILED"
	ErrCodeDeleteFailed = "DELETE_FAILED"
	ErrCodeListFailed   = "LIST_FAILED"

	// Database errors
	ErrCodeDatabaseError = "DATABASE_ERROR"

	// Config errors
	ErrCodeConfigInvalid  = "CONFIG_INVALID"
	ErrCodeConfigNotFound = "CONFIG_NOT_FOUND"

	// Validation errors
	ErrCodeInvalidInput = "INVALID_INPUT"
)

// StatsError represents an error in the fishing-stats service.
type StatsError struct {
	Code    string
	Message string
	Err     error
}

func (e *StatsError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StatsError) Unwrap() error {
	return e.Err
}

// NewStatsError creates a new StatsError.
func NewStatsError(code, message string, err error) *StatsError {
	return &StatsError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Domain-specific error constructors

// ErrLoadFailed wraps a failure to load a stats record. The subject is a
// player ID for player records or a store name for aggregate state.
func ErrLoadFailed(subject string, err error) *StatsError {
	return &StatsError{
		Code:    ErrCodeLoadFailed,
		Message: fmt.Sprintf("failed to load stats record: %s", subject),
		Err:     err,
	}
}

// ErrSaveFailed wraps a failure to persist a stats record.
func ErrSaveFailed(subject string, err error) *StatsError {
	return &StatsError{
		Code:    ErrCodeSaveFailed,
		Message: fmt.Sprintf("failed to save stats record: %s", subject),
		Err:     err,
	}
}

// ErrDeleteFailed wraps a failure to delete a stats record.
func ErrDeleteFailed(subject string, err error) *StatsError {
	return &StatsError{
		Code:    ErrCodeDeleteFailed,
		Message: fmt.Sprintf("failed to delete stats record: %s", subject),
		Err:     err,
	}
}

// ErrListFailed wraps a failure to enumerate the persisted player population.
func ErrListFailed(err error) *StatsError {
	return &StatsError{
		Code:    ErrCodeListFailed,
		Message: "failed to list persisted player records",
		Err:     err,
	}
}

// ErrDatabaseError wraps database errors.
func ErrDatabaseError(operation string, err error) *StatsError {
	return &StatsError{
		Code:    ErrCodeDatabaseError,
		Message: fmt.Sprintf("database error during %s", operation),
		Err:     err,
	}
}

// ErrConfigInvalid returns an error for invalid configuration.
func ErrConfigInvalid(reason string) *StatsError {
	return &StatsError{
		Code:    ErrCodeConfigInvalid,
		Message: fmt.Sprintf("invalid configuration: %s", reason),
		Err:     nil,
	}
}

// ErrInvalidInput returns an error for a rejected caller-supplied value.
func ErrInvalidInput(field, reason string) *StatsError {
	return &StatsError{
		Code:    ErrCodeInvalidInput,
		Message: fmt.Sprintf("invalid %s: %s", field, reason),
		Err:     nil,
	}
}
