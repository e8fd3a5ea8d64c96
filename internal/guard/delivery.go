package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DeliveryGuard de-duplicates trigger deliveries. Claim reports true for the
// first caller of a key within ttl; Release lets a failed delivery be retried.
type DeliveryGuard interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// MemoryGuard is a process-local DeliveryGuard.
type MemoryGuard struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	now       func() time.Time
	lastSweep time.Time
}

// memorySweepInterval bounds how often Claim scans for expired keys.
const memorySweepInterval = time.Minute

// NewMemoryGuard creates an empty in-memory delivery guard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{seen: make(map[string]time.Time), now: time.Now}
}

func (g *MemoryGuard) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return true, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now.Sub(g.lastSweep) >= memorySweepInterval {
		g.sweep(now)
	}
	if exp, ok := g.seen[key]; ok && (exp.IsZero() || now.Before(exp)) {
		return false, nil
	}
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	g.seen[key] = exp
	return true, nil
}

// sweep drops expired claims. Callers hold g.mu.
func (g *MemoryGuard) sweep(now time.Time) {
	for key, exp := range g.seen {
		if !exp.IsZero() && !now.Before(exp) {
			delete(g.seen, key)
		}
	}
	g.lastSweep = now
}

func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, key)
	return nil
}

// RedisGuard shares claims across worker replicas with SET NX.
type RedisGuard struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisGuard creates a guard whose keys live under prefix.
func NewRedisGuard(rdb redis.UniversalClient, prefix string) *RedisGuard {
	return &RedisGuard{rdb: rdb, prefix: prefix}
}

func (g *RedisGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return true, nil
	}
	ok, err := g.rdb.SetNX(ctx, g.prefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	if err := g.rdb.Del(ctx, g.prefix+key).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}
