package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// luaReleaseIfMatch 仅当锁值匹配 requestID 时才删除，避免误删后来者的锁。
const luaReleaseIfMatch = `
local lockKey = KEYS[1]
local requestID = ARGV[1]
if redis.call('GET', lockKey) == requestID then
  return redis.call('DEL', lockKey)
end
return 0
`

// AcquireCheckoutLock SET NX 占位；返回 false 表示该会话已有结账在进行。
func AcquireCheckoutLock(ctx context.Context, rdb *rd.Client, session, requestID string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, CheckoutLockKey(session), requestID, ttl).Result()
}

// ReleaseCheckoutLock 安全释放结账锁。
func ReleaseCheckoutLock(ctx context.Context, rdb *rd.Client, session, requestID string) error {
	_, err := rdb.Eval(ctx, luaReleaseIfMatch, []string{CheckoutLockKey(session)}, requestID).Int()
	return err
}
