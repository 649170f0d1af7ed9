package redis

import (
	"context"
	"strconv"
	"time"

	"store_manager/internal/identity"

	rd "github.com/redis/go-redis/v9"
)

// Sessions 基于 Redis hash 的会话存储，过期交给 key TTL。
type Sessions struct {
	rdb *rd.Client
}

func NewSessions(rdb *rd.Client) *Sessions {
	return &Sessions{rdb: rdb}
}

// Put 写入会话并刷新 TTL。
func (s *Sessions) Put(ctx context.Context, sess identity.Session, ttl time.Duration) error {
	key := SessionKey(sess.Token)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"owner_id", strconv.FormatUint(uint64(sess.Owner.ID), 10),
		"email", sess.Owner.Email,
		"display_name", sess.Owner.DisplayName,
		"expires_at", time.Now().Add(ttl).UTC().Format(time.RFC3339),
	)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// Get 查询会话。found=false 表示 key 不存在（或已过期被删除）。
func (s *Sessions) Get(ctx context.Context, token string) (identity.Session, bool, error) {
	m, err := s.rdb.HGetAll(ctx, SessionKey(token)).Result()
	if err != nil {
		return identity.Session{}, false, err
	}
	if len(m) == 0 {
		return identity.Session{}, false, nil
	}
	id, err := strconv.ParseUint(m["owner_id"], 10, 64)
	if err != nil || id == 0 {
		// 脏数据按不存在处理
		return identity.Session{}, false, nil
	}
	expires, _ := time.Parse(time.RFC3339, m["expires_at"])
	return identity.Session{
		Token: token,
		Owner: identity.Owner{
			ID:          uint(id),
			Email:       m["email"],
			DisplayName: m["display_name"],
		},
		ExpiresAt: expires,
	}, true, nil
}

func (s *Sessions) Delete(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, SessionKey(token)).Err()
}
