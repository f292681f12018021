package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goran-ethernal/SolanaIndexor/internal/logger"
	"github.com/goran-ethernal/SolanaIndexor/pkg/config"
	"github.com/redis/go-redis/v9"
)

const minRetryDelay = 50 * time.Millisecond

var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// Redis is a lease lock shared by several indexer instances.
// The lease is refreshed while held so a long tick does not lose it.
type Redis struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	log       *logger.Logger
}

var _ Locker = (*Redis)(nil)

// NewRedis connects to redis and verifies the connection.
func NewRedis(ctx context.Context, cfg config.LockConfig, log *logger.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.LeaseTTL.Duration,
		log:       log,
	}, nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (r *Redis) Lock(ctx context.Context, program string) (context.Context, func(), error) {
	key := r.keyPrefix + program

	token, err := newToken()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate lock token: %w", err)
	}

	delay := minRetryDelay
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(delay):
		}

		delay = min(delay*2, r.ttl/2)
	}

	held, cancel := context.WithCancelCause(ctx)
	refreshCtx, stop := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if !r.refresh(refreshCtx, key, token) {
			cancel(ErrLeaseLost)
		}
	}()

	var once sync.Once

	return held, func() {
		once.Do(func() {
			stop()
			wg.Wait()
			cancel(nil)

			ctx, cancelRelease := context.WithTimeout(context.Background(), r.ttl)
			defer cancelRelease()

			if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil &&
				!errors.Is(err, redis.Nil) {
				r.log.Warnf("failed to release lock %s: %v", key, err)
			}
		})
	}, nil
}

// refresh extends the lease every third of its ttl until ctx is cancelled.
// It returns false once the lease is gone: another owner holds the key or
// no refresh succeeded for a whole ttl.
func (r *Redis) refresh(ctx context.Context, key, token string) bool {
	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()

	extended := time.Now()

	for {
		select {
		case <-ctx.Done():
			return true
		case <-ticker.C:
			res, err := refreshScript.Run(ctx, r.client, []string{key}, token, r.ttl.Milliseconds()).Int()
			if err != nil {
				if ctx.Err() != nil {
					return true
				}
				if time.Since(extended) >= r.ttl {
					r.log.Errorf("lock %s expired, refresh kept failing: %v", key, err)
					return false
				}
				r.log.Warnf("failed to refresh lock %s: %v", key, err)
				continue
			}
			if res == 0 {
				r.log.Errorf("lock %s was lost before release", key)
				return false
			}
			extended = time.Now()
		}
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
