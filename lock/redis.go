package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/warp/textile-ledger/generic"
)

// =============================================================================
// REDIS - Distributed lock per tenant
// =============================================================================

// Redis serializes tenant writers across processes. Keys look like
// "ledger:<tenant>" and expire after generic.LockTTL if a holder dies.
type Redis struct {
	client  *redis.Client
	locker  *redislock.Client
	retry   redislock.RetryStrategy
	log     *logrus.Logger
	keyFunc func(generic.TenantID) string
}

// NewRedis connects to addr and verifies the connection with PING.
func NewRedis(ctx context.Context, addr, password string, log *logrus.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &Redis{
		client: client,
		locker: redislock.New(client),
		// A sale waits at most ~5s for another writer of the same shop.
		retry: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
		log:   log,
		keyFunc: func(t generic.TenantID) string {
			return fmt.Sprintf("ledger:%s", t)
		},
	}, nil
}

func (r *Redis) Lock(ctx context.Context, tenant generic.TenantID) (func(), error) {
	if tenant == "" {
		return nil, generic.ErrTenantRequired
	}
	key := r.keyFunc(tenant)
	held, err := r.locker.Obtain(ctx, key, generic.LockTTL, &redislock.Options{RetryStrategy: r.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", generic.ErrLockNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain %s: %w", key, err)
	}

	return func() {
		// Release on a fresh context: the request context may already be cancelled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := held.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			r.log.WithFields(logrus.Fields{
				"tenant_id": tenant,
				"key":       key,
			}).WithError(err).Warn("release tenant lock")
		}
	}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
