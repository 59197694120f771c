package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emsight-ai/emsight-engine/pkg/llm"
)

func fastConfig() *Config {
	return &Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func serverError() *llm.Error {
	return &llm.Error{Type: llm.ErrorTypeServer, Message: "server error", Retryable: true, StatusCode: 503}
}

func authError() *llm.Error {
	return &llm.Error{Type: llm.ErrorTypeAuth, Message: "authentication failed", StatusCode: 401}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return serverError()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsBudget(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		return errors.New("still down")
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestDo_StopsOnNonRetryableError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		return fmt.Errorf("warmup: %w", authError())
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "auth failures must not be retried")
}

func TestDo_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, &Config{MaxRetries: 5, InitialDelay: time.Minute, Multiplier: 2}, func() error {
		return errors.New("down")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("plain errors default to retryable")))
	assert.True(t, IsRetryable(serverError()))
	assert.False(t, IsRetryable(authError()))

	wrapped := fmt.Errorf("outer: %w", authError())
	assert.False(t, IsRetryable(wrapped), "wrapping must not hide retryability")
}
