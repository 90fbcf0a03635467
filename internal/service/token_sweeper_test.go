package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"point-ledger/internal/core/ports/mocks"
	"point-ledger/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestTokenSweeper_RunOnce_WithLock(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokens := mocks.NewMockPaymentTokenService(ctrl)
	lock := mocks.NewMockSweepLock(ctrl)
	s := NewTokenSweeper(tokens, lock, nil, time.Minute, zerolog.Nop())

	ctx := context.Background()
	gomock.InOrder(
		lock.EXPECT().Acquire(ctx).Return(true, nil),
		tokens.EXPECT().ExpireSweep(ctx).Return(int64(2), nil),
		lock.EXPECT().Release(ctx).Return(nil),
	)

	ran, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestTokenSweeper_RunOnce_SkipsWhenLocked(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokens := mocks.NewMockPaymentTokenService(ctrl)
	lock := mocks.NewMockSweepLock(ctrl)
	s := NewTokenSweeper(tokens, lock, nil, time.Minute, zerolog.Nop())

	lock.EXPECT().Acquire(gomock.Any()).Return(false, nil)

	ran, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestTokenSweeper_RunOnce_LockError(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokens := mocks.NewMockPaymentTokenService(ctrl)
	lock := mocks.NewMockSweepLock(ctrl)
	s := NewTokenSweeper(tokens, lock, nil, time.Minute, zerolog.Nop())

	lock.EXPECT().Acquire(gomock.Any()).Return(false, errors.New("redis down"))

	_, err := s.RunOnce(context.Background())
	require.ErrorContains(t, err, "sweep lock acquire")
}

func TestTokenSweeper_RunOnce_ReleasesAfterFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokens := mocks.NewMockPaymentTokenService(ctrl)
	lock := mocks.NewMockSweepLock(ctrl)
	s := NewTokenSweeper(tokens, lock, nil, time.Minute, zerolog.Nop())

	lock.EXPECT().Acquire(gomock.Any()).Return(true, nil)
	tokens.EXPECT().ExpireSweep(gomock.Any()).Return(int64(0), errors.New("db down"))
	lock.EXPECT().Release(gomock.Any()).Return(errors.New("already gone"))

	ran, err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.True(t, ran)
}

func TestTokenSweeper_RunOnce_NoLock(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokens := mocks.NewMockPaymentTokenService(ctrl)
	s := NewTokenSweeper(tokens, nil, nil, 0, zerolog.Nop())

	tokens.EXPECT().ExpireSweep(gomock.Any()).Return(int64(0), nil)

	ran, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, defaultSweepInterval, s.interval)
}

func TestTokenSweeper_Run_StopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokens := mocks.NewMockPaymentTokenService(ctrl)
	lock := mocks.NewMockSweepLock(ctrl)
	reg := prometheus.NewRegistry()
	s := NewTokenSweeper(tokens, lock, metrics.NewLedgerMetrics(reg), 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	swept := make(chan struct{}, 1)
	lock.EXPECT().Acquire(gomock.Any()).Return(false, nil)
	lock.EXPECT().Acquire(gomock.Any()).Return(true, nil).AnyTimes()
	lock.EXPECT().Release(gomock.Any()).Return(nil).AnyTimes()
	tokens.EXPECT().ExpireSweep(gomock.Any()).DoAndReturn(func(context.Context) (int64, error) {
		select {
		case swept <- struct{}{}:
		default:
		}
		return 0, nil
	}).MinTimes(1)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-swept:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never ran")
	}
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}

	mfs, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, mf := range mfs {
		if mf.GetName() != "payment_token_sweeps_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			counts[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(1), counts["skipped"])
	assert.GreaterOrEqual(t, counts["ran"], float64(1))
}
