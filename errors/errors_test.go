package errors

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestProviderQueryError(t *testing.T) {
	cause := errors.New("quota exceeded")
	err := errors.Wrap(NewProviderQueryError("threads.list", http.StatusTooManyRequests, cause), "list window")

	assert.True(t, IsProviderQueryError(err))
	assert.ErrorIs(t, err, cause)

	var providerErr *ProviderQueryError
	assert.True(t, errors.As(err, &providerErr))
	assert.Equal(t, "threads.list", providerErr.Operation)
	assert.True(t, providerErr.Retryable())
	assert.Contains(t, err.Error(), "status 429")
}

func TestProviderQueryError_NotRetryable(t *testing.T) {
	err := NewProviderQueryError("threads.get", http.StatusForbidden, nil)
	assert.False(t, err.Retryable())
	assert.Equal(t, "provider query threads.get failed with status 403", err.Error())
	assert.False(t, IsProviderQueryError(ErrMalformedMessage))
}
