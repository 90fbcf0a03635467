package service

import (
	"context"
	"fmt"
	"time"

	"point-ledger/internal/core/ports"
	"point-ledger/pkg/metrics"

	"github.com/rs/zerolog"
)

const defaultSweepInterval = time.Minute

// TokenSweeper periodically expires overdue payment tokens. When a lock is
// configured only the instance holding it sweeps on a given tick.
type TokenSweeper struct {
	tokens   ports.PaymentTokenService
	lock     ports.SweepLock
	metrics  *metrics.LedgerMetrics
	interval time.Duration
	log      zerolog.Logger
}

// NewTokenSweeper creates a TokenSweeper. lock may be nil for a single
// instance deployment.
func NewTokenSweeper(
	tokens ports.PaymentTokenService,
	lock ports.SweepLock,
	m *metrics.LedgerMetrics,
	interval time.Duration,
	log zerolog.Logger,
) *TokenSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &TokenSweeper{
		tokens:   tokens,
		lock:     lock,
		metrics:  m,
		interval: interval,
		log:      log,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *TokenSweeper) Run(ctx context.Context) error {
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("token sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *TokenSweeper) tick(ctx context.Context) {
	ran, err := s.RunOnce(ctx)
	switch {
	case err != nil:
		s.metrics.IncSweep("failed")
		s.log.Error().Err(err).Msg("token sweep failed")
	case !ran:
		s.metrics.IncSweep("skipped")
	default:
		s.metrics.IncSweep("ran")
	}
}

// RunOnce performs a single sweep. It reports false when another instance
// holds the lock.
func (s *TokenSweeper) RunOnce(ctx context.Context) (bool, error) {
	if s.lock != nil {
		locked, err := s.lock.Acquire(ctx)
		if err != nil {
			return false, fmt.Errorf("sweep lock acquire: %w", err)
		}
		if !locked {
			s.log.Debug().Msg("another instance is sweeping; skipping this tick")
			return false, nil
		}
		defer func() {
			if err := s.lock.Release(ctx); err != nil {
				s.log.Warn().Err(err).Msg("failed to release sweep lock")
			}
		}()
	}

	start := time.Now()
	n, err := s.tokens.ExpireSweep(ctx)
	if err != nil {
		return true, err
	}
	s.log.Debug().
		Int64("expired", n).
		Dur("duration", time.Since(start)).
		Msg("token sweep complete")
	return true, nil
}
