package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// ExpiredTokenDeleter removes reservation tokens that expired before cutoff.
type ExpiredTokenDeleter interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// TokenJanitor prunes reservation tokens once their validity window and a
// retention grace period have passed. Redemption state is only needed while a
// token can still be presented.
type TokenJanitor struct {
	tokens    ExpiredTokenDeleter
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

// NewTokenJanitor creates a TokenJanitor that sweeps every interval.
func NewTokenJanitor(tokens ExpiredTokenDeleter, retention, interval time.Duration) *TokenJanitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &TokenJanitor{
		tokens:    tokens,
		retention: retention,
		interval:  interval,
		now:       time.Now,
	}
}

// Sweep deletes tokens that expired more than the retention period ago.
func (j *TokenJanitor) Sweep(ctx context.Context) (int64, error) {
	return j.tokens.DeleteExpired(ctx, j.now().Add(-j.retention))
}

// Run sweeps until ctx is cancelled.
func (j *TokenJanitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := j.Sweep(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Warn().Err(err).Msg("token sweep failed")
				}
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("expired reservation tokens removed")
			}
		}
	}
}
