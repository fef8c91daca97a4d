// Package redis provides the distributed run lock that keeps newsletter
// generation single-flight across replicas.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	"go.uber.org/zap"

	"github.com/cpeq/infolettre-automatique/internal/adapters/config"
	"github.com/cpeq/infolettre-automatique/pkg/logger"
)

const lockName = "newsletter:generation:lock"

// RunLock is the interface the pipeline uses for run exclusion. It allows a
// no-op implementation when Redis is not configured.
type RunLock interface {
	// TryAcquire attempts to take the lock. Returns false when another
	// replica holds it.
	TryAcquire(ctx context.Context) (bool, error)
	// Release releases the lock.
	Release(ctx context.Context) error
}

// RedLock implements RunLock with the Redlock algorithm.
type RedLock struct {
	manager *redlock.RedLock
	ttl     time.Duration
	locked  bool
}

// NewRunLock creates a Redlock-backed run lock.
func NewRunLock(ctx context.Context, cfg *config.RedisConfig) (*RedLock, error) {
	addr := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	manager, err := redlock.NewRedLock(connectCtx, []string{addr})
	if err != nil {
		return nil, fmt.Errorf("failed to create redlock manager: %w", err)
	}

	logger.Info("redis run lock initialized",
		zap.String("address", addr),
		zap.Duration("ttl", cfg.LockTTL),
	)

	return &RedLock{manager: manager, ttl: cfg.LockTTL}, nil
}

// TryAcquire attempts to acquire the generation lock. A failure to acquire
// means another replica is already generating.
func (l *RedLock) TryAcquire(ctx context.Context) (bool, error) {
	expiry, err := l.manager.Lock(ctx, lockName, l.ttl)
	if err != nil {
		logger.Debug("generation lock held by another replica", zap.Error(err))
		return false, nil
	}
	if expiry <= 0 {
		return false, fmt.Errorf("failed to acquire lock: invalid expiry %v", expiry)
	}

	l.locked = true
	logger.Info("generation lock acquired", zap.Duration("expiry", expiry))
	return true, nil
}

// Release releases the generation lock. An expired lock is not an error.
func (l *RedLock) Release(ctx context.Context) error {
	if !l.locked {
		return nil
	}

	if err := l.manager.UnLock(ctx, lockName); err != nil {
		logger.Warn("failed to release generation lock (may have expired)", zap.Error(err))
	} else {
		logger.Info("generation lock released")
	}

	l.locked = false
	return nil
}

// NoopLock satisfies RunLock when no Redis is configured. Single-replica
// deployments rely on in-process exclusion instead.
type NoopLock struct{}

func (NoopLock) TryAcquire(ctx context.Context) (bool, error) { return true, nil }
func (NoopLock) Release(ctx context.Context) error            { return nil }
