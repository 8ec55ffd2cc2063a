package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LeaseLock is a cluster-wide single-owner critical section. Only one holder
// exists at a time; contention is a normal outcome, not an error.
type LeaseLock interface {
	// TryAcquire attempts to take the lease. On success it returns a release
	// function and true; on contention it returns false. The lease renews
	// itself in the background until released.
	TryAcquire(ctx context.Context) (release func(), acquired bool, err error)
}

var (
	releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`)

	extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end`)
)

// redisLease implements LeaseLock with SET NX PX plus a token so a holder can
// only release or extend its own lease. The short TTL bounds how long a
// crashed holder blocks the next cycle.
type redisLease struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisLease(client *redis.Client, key string, ttl time.Duration, logger *zap.Logger) LeaseLock {
	return &redisLease{client: client, key: key, ttl: ttl, logger: logger}
}

func (l *redisLease) TryAcquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !acquired {
		return nil, false, nil
	}

	done := make(chan struct{})
	go l.renew(token, done)

	release := func() {
		close(done)
		if err := releaseScript.Run(context.Background(), l.client, []string{l.key}, token).Err(); err != nil {
			l.logger.Warn("failed to release lease", zap.String("key", l.key), zap.Error(err))
		}
	}
	return release, true, nil
}

// renew extends the lease while the holder is still working. If the extension
// fails (Redis gone, lease expired) the holder keeps going; correctness does
// not depend on the lock, it only prevents duplicate scans.
func (l *redisLease) renew(token string, done <-chan struct{}) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			err := extendScript.Run(context.Background(), l.client, []string{l.key}, token, l.ttl.Milliseconds()).Err()
			if err != nil {
				l.logger.Warn("failed to extend lease", zap.String("key", l.key), zap.Error(err))
			}
		}
	}
}
