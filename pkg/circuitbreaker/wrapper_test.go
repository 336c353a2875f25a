package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapper_TripsAfterFailureRatio(t *testing.T) {
	w := NewWrapper(NewConfig("test-redis", 1, time.Minute, time.Minute, 0.5, 2))
	ctx := context.Background()
	boom := errors.New("connection refused")

	_, err := w.Execute(ctx, func() (interface{}, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.False(t, w.IsOpen())

	_, err = w.Execute(ctx, func() (interface{}, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.True(t, w.IsOpen())

	_, err = w.Execute(ctx, func() (interface{}, error) { return "ok", nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestWrapper_PassesResult(t *testing.T) {
	w := NewWrapper(DefaultConfig("test-mongo"))

	result, err := w.Execute(context.Background(), func() (interface{}, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, "test-mongo", w.Name())
	assert.Equal(t, gobreaker.StateClosed, w.State())
}

func TestWrapper_CancelledContext(t *testing.T) {
	w := NewWrapper(DefaultConfig("test-cancel"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := w.Execute(ctx, func() (interface{}, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
