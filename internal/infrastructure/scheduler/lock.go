package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CycleLocker keeps two workers from running the same network cycle at once.
// A held lock stays held until release, however long the cycle runs.
type CycleLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type RedisLocker struct {
	client   *redis.Client
	workerID string
}

func NewRedisLocker(client *redis.Client, workerID string) *RedisLocker {
	return &RedisLocker{client: client, workerID: workerID}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(options), nil
}

// Acquire takes the key with SET NX PX and refreshes its expiry every third of
// the TTL until release. The TTL only bounds how long a crashed worker blocks others.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := l.workerID + ":" + uuid.NewString()
	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !acquired {
		return nil, false, nil
	}

	renewCtx, stopRenewing := context.WithCancel(context.Background())
	renewed := make(chan struct{})
	go func() {
		defer close(renewed)
		keepAlive(renewCtx, ttl/3, func(ctx context.Context) (bool, error) {
			held, err := renewScript.Run(ctx, l.client, []string{key}, token, ttl.Milliseconds()).Int()
			return held == 1, err
		})
	}()

	var once sync.Once
	release := func() {
		once.Do(func() {
			stopRenewing()
			<-renewed
			// The cycle context may already be cancelled.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
		})
	}
	return release, true, nil
}

// keepAlive calls renew every interval until ctx ends or renew reports the lock
// is no longer ours. Transient errors are retried on the next tick.
func keepAlive(ctx context.Context, interval time.Duration, renew func(context.Context) (bool, error)) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		held, err := renew(ctx)
		if err == nil && !held {
			return
		}
	}
}

func lockKey(kind, network string) string {
	return "invoicewallet:scheduler:" + kind + ":" + network
}
