package errors

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

var (
	ErrMailAccountNotFound  = errors.New("mail account not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInvalidInput         = errors.New("invalid input parameters")

	// provider errors
	ErrSyncCursorExpired = errors.New("sync cursor expired")
	ErrInvalidSyncCursor = errors.New("invalid sync cursor")

	// import errors
	ErrMalformedMessage = errors.New("malformed message")
	ErrMergeCycle       = errors.New("conversation merge chain does not terminate")
	ErrIncompleteSync   = errors.New("incremental sync incomplete")
)

// ProviderQueryError is returned when the mail provider answers with a non-2xx status.
type ProviderQueryError struct {
	Operation  string
	StatusCode int
	Err        error
}

func NewProviderQueryError(operation string, statusCode int, err error) *ProviderQueryError {
	return &ProviderQueryError{
		Operation:  operation,
		StatusCode: statusCode,
		Err:        err,
	}
}

func (e *ProviderQueryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider query %s failed with status %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("provider query %s failed with status %d: %v", e.Operation, e.StatusCode, e.Err)
}

func (e *ProviderQueryError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the outer job runner should retry the invocation.
func (e *ProviderQueryError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

func IsProviderQueryError(err error) bool {
	var providerErr *ProviderQueryError
	return errors.As(err, &providerErr)
}
