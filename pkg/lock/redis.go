// Package lock provides mutual exclusion leases used to keep scheduled jobs
// single-flight across every replica of the service, backed by Redis keys or
// Postgres advisory locks.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	appErrors "github.com/noah-isme/bio-attendance-api/pkg/errors"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lease never removes a lock taken over by another holder.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Client is the subset of go-redis used by the locker.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Lease is a held lock.
type Lease interface {
	Key() string
	Release(ctx context.Context) error
}

// RedisLocker hands out leases stored as Redis keys with a TTL.
type RedisLocker struct {
	client Client
	prefix string
}

// NewRedisLocker constructs a locker. Keys are namespaced by prefix.
func NewRedisLocker(client Client, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = "lock:"
	}
	return &RedisLocker{client: client, prefix: prefix}
}

// Acquire takes the named lock for ttl. It returns ErrLockHeld when another holder owns it.
func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("lock %s: ttl must be positive", name)
	}
	key := l.prefix + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrLockHeld, fmt.Sprintf("lock %s is held", name))
	}
	return &redisLease{client: l.client, key: key, token: token}, nil
}

type redisLease struct {
	client Client
	key    string
	token  string
}

func (l *redisLease) Key() string { return l.key }

func (l *redisLease) Release(ctx context.Context) error {
	deleted, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	if deleted == 0 {
		return fmt.Errorf("release lock %s: lease expired before release", l.key)
	}
	return nil
}

// LocalLocker is an in-process locker for single-replica deployments and tests.
type LocalLocker struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewLocalLocker constructs an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{keys: make(map[string]struct{})}
}

// Acquire takes the named lock. The ttl is ignored because the process owns every lease.
func (l *LocalLocker) Acquire(_ context.Context, name string, _ time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, taken := l.keys[name]; taken {
		return nil, appErrors.Clone(appErrors.ErrLockHeld, fmt.Sprintf("lock %s is held", name))
	}
	l.keys[name] = struct{}{}
	return &localLease{owner: l, key: name}, nil
}

type localLease struct {
	owner *LocalLocker
	key   string
}

func (l *localLease) Key() string { return l.key }

func (l *localLease) Release(context.Context) error {
	l.owner.mu.Lock()
	delete(l.owner.keys, l.key)
	l.owner.mu.Unlock()
	return nil
}
