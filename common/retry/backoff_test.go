package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestDo_SucceedsWithoutRetryOnFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), TransientConfig(), zap.NewNop(), func() error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesExactlyOnceUnderTransientConfig(t *testing.T) {
	calls := 0
	err := Do(context.Background(), TransientConfig(), zap.NewNop(), func() error {
		calls++
		if calls == 1 {
			return errors.New("serialization failure")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_ExhaustsMaxAttemptsAndReturnsError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), TransientConfig(), zap.NewNop(), func() error {
		calls++
		return errors.New("still failing")
	})

	assert.Error(t, err)
	assert.Equal(t, 2, calls) // TransientConfig.MaxAttempts == 2
}

func TestDo_RespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, TransientConfig(), zap.NewNop(), func() error {
		calls++
		return nil
	})

	assert.Error(t, err)
	assert.Equal(t, 0, calls)
}

func TestDoWithResult_ReturnsValueOnEventualSuccess(t *testing.T) {
	calls := 0
	result, err := DoWithResult(context.Background(), TransientConfig(), zap.NewNop(), func() (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("transient")
		}
		return "confirmed", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "confirmed", result)
}
