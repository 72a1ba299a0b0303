package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_HasNoCause(t *testing.T) {
	err := New(ErrCodeValidation, "quantity must be positive")
	assert.Equal(t, "[VALIDATION] quantity must be positive", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestWrap_FormatsCauseAndUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrCodeDatabaseError, "failed to begin transaction", cause)

	assert.Equal(t, "[DATABASE_ERROR] failed to begin transaction: connection refused", err.Error())
	assert.Same(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
}

func TestCodeOf_NonDomainErrorIsUnknown(t *testing.T) {
	assert.Equal(t, ErrCodeUnknownError, CodeOf(errors.New("plain error")))
	assert.Equal(t, ErrCodeValidation, CodeOf(New(ErrCodeValidation, "bad input")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeTransientInternal, "serialization failure")))
	assert.True(t, IsRetryable(New(ErrCodeDatabaseError, "connection reset")))
	assert.False(t, IsRetryable(New(ErrCodeValidation, "bad input")))
	assert.False(t, IsRetryable(nil))
}

func TestIsDomainFailure(t *testing.T) {
	assert.True(t, IsDomainFailure(New(ErrCodeInsufficientStock, "not enough stock")))
	assert.True(t, IsDomainFailure(New(ErrCodeProductNotFound, "no such product")))
	assert.False(t, IsDomainFailure(New(ErrCodeTimeout, "deadline exceeded")))
}

func TestIsTransportFailure(t *testing.T) {
	assert.True(t, IsTransportFailure(New(ErrCodeTimeout, "deadline exceeded")))
	assert.True(t, IsTransportFailure(New(ErrCodeUnavailable, "service down")))
	assert.False(t, IsTransportFailure(New(ErrCodeInsufficientStock, "not enough stock")))
}

func TestIsTransportFailure_GenericTransportErrorIsNotConvertedToPendingVerification(t *testing.T) {
	// ErrCodeTransport is the catch-all for an RPC failure that isn't a
	// deadline breach or Unavailable/Canceled/Aborted; per §4.1 step 5 it
	// must fall to "any other error" (500, order stays pending), not the
	// pending_verification path.
	assert.False(t, IsTransportFailure(New(ErrCodeTransport, "connection reset")))
}
