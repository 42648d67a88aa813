// Package scratch manages the pool the latency benchmark writes into.
package scratch

import (
	"context"
	"time"

	"github.com/AntonOks/ceph-scripts/pkg/log"
	"github.com/AntonOks/ceph-scripts/pkg/types"
	"github.com/avast/retry-go/v4"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Pools is the part of the cluster adapter that manages pools
type Pools interface {
	PoolExists(ctx context.Context, name string) (bool, error)
	CreatePool(ctx context.Context, name string) error
	DeletePool(ctx context.Context, name string) error
}

// Lifecycle owns the scratch pool the latency prober writes into
type Lifecycle struct {
	pools  Pools
	logger zerolog.Logger

	// Attempts bounds EnsureReady retries of transient failures (default: 3)
	Attempts uint

	// Delay is the initial backoff between attempts (default: 2 seconds)
	Delay time.Duration
}

// NewLifecycle creates a scratch pool lifecycle
func NewLifecycle(pools Pools) *Lifecycle {
	return &Lifecycle{
		pools:    pools,
		logger:   log.WithComponent("scratch"),
		Attempts: 3,
		Delay:    2 * time.Second,
	}
}

// EnsureReady creates the pool unless it already exists
func (l *Lifecycle) EnsureReady(ctx context.Context, name string) error {
	var created bool
	err := retry.Do(
		func() error {
			exists, err := l.pools.PoolExists(ctx, name)
			if err != nil {
				return err
			}
			if exists {
				return nil
			}
			if err := l.pools.CreatePool(ctx, name); err != nil {
				return err
			}
			created = true
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(l.Attempts),
		retry.Delay(l.Delay),
		retry.RetryIf(types.IsTransient),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			l.logger.Warn().Err(err).Uint("attempt", n+1).Str("pool", name).Msg("scratch pool not ready, retrying")
		}),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to prepare scratch pool %s", name)
	}

	if created {
		l.logger.Info().Str("pool", name).Msg("scratch pool created")
	} else {
		l.logger.Debug().Str("pool", name).Msg("scratch pool already exists")
	}
	return nil
}

// Release deletes the pool if it exists. A refusal by the cluster is
// returned marked with types.ErrCleanupRefused; the drain itself is still
// considered successful.
func (l *Lifecycle) Release(ctx context.Context, name string) error {
	exists, err := l.pools.PoolExists(ctx, name)
	if err != nil {
		return errors.Wrapf(err, "failed to check scratch pool %s", name)
	}
	if !exists {
		return nil
	}

	if err := l.pools.DeletePool(ctx, name); err != nil {
		if errors.Is(err, types.ErrCleanupRefused) {
			l.logger.Warn().Err(err).Str("pool", name).Msg("cluster refused to delete scratch pool, remove it manually")
		}
		return err
	}

	l.logger.Info().Str("pool", name).Msg("scratch pool deleted")
	return nil
}
