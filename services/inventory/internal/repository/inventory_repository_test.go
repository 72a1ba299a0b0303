package repository

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	domainerrors "github.com/kyungseok/reservation-core/common/errors"
)

func TestClassifyPQError_SerializationFailureIsTransientInternal(t *testing.T) {
	err := classifyPQError(&pq.Error{Code: pqSerializationFailure}, "reserve stock")

	assert.Equal(t, domainerrors.ErrCodeTransientInternal, domainerrors.CodeOf(err))
}

func TestClassifyPQError_UniqueViolationIsConflict(t *testing.T) {
	err := classifyPQError(&pq.Error{Code: pqUniqueViolation}, "insert reservation")

	assert.Equal(t, domainerrors.ErrCodeConflict, domainerrors.CodeOf(err))
}

func TestClassifyPQError_OtherPQErrorIsDatabaseError(t *testing.T) {
	err := classifyPQError(&pq.Error{Code: "55000"}, "lock product")

	assert.Equal(t, domainerrors.ErrCodeDatabaseError, domainerrors.CodeOf(err))
}

func TestClassifyPQError_NonPQErrorIsDatabaseError(t *testing.T) {
	err := classifyPQError(errors.New("connection reset"), "find product")

	assert.Equal(t, domainerrors.ErrCodeDatabaseError, domainerrors.CodeOf(err))
}
