package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/yeremiapane/campus-food/utils"
)

// sweep lease: lock:receipt-sweep -> holder token
const KeySweepLease = "lock:%s"

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// LeaseLocker hands out short-lived SET NX leases so only one instance runs a job per tick.
type LeaseLocker struct {
	rdb *redis.Client
}

func NewLeaseLocker(rdb *redis.Client) *LeaseLocker {
	return &LeaseLocker{rdb: rdb}
}

// TryLock returns acquired=false when another holder owns the lease. The
// returned release func is a no-op when the lease was not acquired.
func (l *LeaseLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (bool, func(), error) {
	key := fmt.Sprintf(KeySweepLease, name)
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, func() {}, err
	}
	if !ok {
		return false, func() {}, nil
	}
	release := func() {
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.rdb, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			utils.ErrorLogger.Printf("release lease %s: %v", key, err)
		}
	}
	return true, release, nil
}
