package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/parcela/internal/logger"
)

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) ReconcileExpired(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestWithSeconds(t *testing.T) {
	assert.Equal(t, "0 */15 * * * *", withSeconds("*/15 * * * *"))
	assert.Equal(t, "30 0 * * * *", withSeconds("30 0 * * * *"))
}

func TestRunOnce(t *testing.T) {
	r := new(MockReconciler)
	r.On("ReconcileExpired", mock.Anything).Return(3, nil).Once()
	r.On("ReconcileExpired", mock.Anything).Return(0, errors.New("db down")).Once()

	s := NewExpiryScheduler(r, "", logger.Nop())

	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = s.RunOnce(context.Background())
	assert.EqualError(t, err, "db down")
	r.AssertExpectations(t)
}

func TestStartStop(t *testing.T) {
	s := NewExpiryScheduler(new(MockReconciler), "0 0 3 * * *", logger.Nop())
	require.NoError(t, s.Start())
	require.NoError(t, s.Start(), "second start is a no-op")
	s.Stop()
	s.Stop()
}

func TestStart_InvalidSchedule(t *testing.T) {
	s := NewExpiryScheduler(new(MockReconciler), "not a schedule", logger.Nop())
	assert.Error(t, s.Start())
}
