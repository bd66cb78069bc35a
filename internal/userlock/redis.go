package userlock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultPollInterval = 50 * time.Millisecond

// releaseScript deletes the lock only if it still holds our token, so an
// expired holder cannot release a lease someone else has since taken.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a lease lock shared by every instance pointed at the same
// Redis. A lease expires after ttl even if its holder never unlocks.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	poll   time.Duration
	log    zerolog.Logger
}

// NewRedis creates a Redis-backed Locker.
func NewRedis(client redis.UniversalClient, ttl time.Duration, log zerolog.Logger) *Redis {
	return &Redis{
		client: client,
		ttl:    ttl,
		poll:   defaultPollInterval,
		log:    log,
	}
}

func lockKey(key string) string {
	return fmt.Sprintf("lock:user:%s", key)
}

// Lock polls SET NX until it wins the lease or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	k := lockKey(key)
	token := uuid.New().String()

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("setnx %s: %w", k, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's ctx may already be cancelled.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, r.client, []string{k}, token).Err(); err != nil {
				r.log.Warn().Err(err).Str("key", k).Msg("Failed to release user lock")
			}
		})
	}, nil
}

var _ Locker = (*Redis)(nil)
