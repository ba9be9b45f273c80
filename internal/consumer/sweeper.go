package consumer

import (
	"context"
	"time"

	"wallet-service/internal/core/ports"

	"github.com/rs/zerolog"
)

// Sweeper purges applied-transaction ledger rows older than the retention
// window. A redelivery older than the window would be applied again, so the
// window must exceed the broker's retention.
type Sweeper struct {
	ledger    ports.LedgerRepository
	retention time.Duration
	interval  time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

// NewSweeper creates a Sweeper. A non-positive retention disables it.
func NewSweeper(ledger ports.LedgerRepository, retention, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		ledger:    ledger,
		retention: retention,
		interval:  interval,
		log:       log,
		now:       time.Now,
	}
}

// Run sweeps once immediately, then every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.retention <= 0 {
		s.log.Info().Msg("ledger retention disabled, applied transactions are kept forever")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for ctx.Err() == nil {
		s.Sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep deletes ledger rows applied before now minus retention.
func (s *Sweeper) Sweep(ctx context.Context) int64 {
	cutoff := s.now().Add(-s.retention)
	n, err := s.ledger.PurgeBefore(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error().Err(err).Time("cutoff", cutoff).Msg("ledger sweep failed")
		}
		return 0
	}
	if n > 0 {
		s.log.Info().Int64("purged", n).Time("cutoff", cutoff).Msg("ledger sweep completed")
	}
	return n
}
