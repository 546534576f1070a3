package upload

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSize indicates a declared size outside (0, max].
	ErrInvalidSize = errors.New("invalid file size")

	// ErrTypeNotAllowed indicates an extension or content type outside the
	// allow-list. Both are checked; neither is trusted alone.
	ErrTypeNotAllowed = errors.New("file type not allowed")

	// ErrQuotaExceeded is matched by errors.Is against QuotaExceededError.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// QuotaExceededError carries the remaining-bytes hint of a denied
// capacity check.
type QuotaExceededError struct {
	RemainingBytes int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("storage quota exceeded: %d bytes remaining", e.RemainingBytes)
}

func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}
