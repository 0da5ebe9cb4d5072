// Package guard rejects a second concurrent operation on the same key.
// It only protects against duplicate submissions; correctness of the guarded
// operation must not depend on it.
package guard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrHeld = errors.New("guard already held")

type Guard interface {
	// Acquire returns a release func, or ErrHeld if key is already held.
	Acquire(ctx context.Context, key string) (func(), error)
}

type localGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalGuard() Guard {
	return &localGuard{held: make(map[string]struct{})}
}

func (g *localGuard) Acquire(_ context.Context, key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.held[key]; ok {
		return nil, ErrHeld
	}
	g.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, nil
}

// release only deletes the key if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisGuard struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisGuard shares the guard across instances. ttl bounds how long a
// crashed holder can block the key.
func NewRedisGuard(client redis.UniversalClient, prefix string, ttl time.Duration) Guard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisGuard{client: client, prefix: prefix, ttl: ttl}
}

func (g *redisGuard) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := g.prefix + key
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, redisKey, token, g.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, g.client, []string{redisKey}, token).Err()
		})
	}, nil
}
