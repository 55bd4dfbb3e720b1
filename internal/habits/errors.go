package habits

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrValidation indicates caller-supplied data violates a field constraint.
	ErrValidation = errors.New("habits: validation failed")
	// ErrNotFound indicates the habit does not exist or belongs to another owner.
	ErrNotFound = errors.New("habits: habit not found")
	// ErrDuplicateCheckIn indicates the habit was already checked in on that day.
	ErrDuplicateCheckIn = errors.New("habits: already checked in")
	// ErrStorageUnavailable indicates the backing store failed; callers may retry.
	ErrStorageUnavailable = errors.New("habits: storage unavailable")
)

// ServiceError carries a dotted operation code alongside the classified cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the dotted operation code, e.g. "habits.check_in.insert_failed".
func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// classifyStorageError folds GORM and driver error shapes into the domain
// taxonomy so collaborator-specific errors never cross the boundary.
func classifyStorageError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrDuplicateCheckIn, err)
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite surfaces constraint failures as plain driver errors.
	message := err.Error()
	return strings.Contains(message, "UNIQUE constraint failed") ||
		strings.Contains(message, "constraint failed")
}
