package identity

import (
	"context"
	"sync"
	"time"
)

// Session 服务端会话：token -> 身份。
type Session struct {
	Token     string
	Owner     Owner
	ExpiresAt time.Time
}

// SessionStore 会话存储。found=false 表示 token 不存在或已过期。
type SessionStore interface {
	Put(ctx context.Context, s Session, ttl time.Duration) error
	Get(ctx context.Context, token string) (Session, bool, error)
	Delete(ctx context.Context, token string) error
}

// MemorySessions 进程内会话存储，单实例部署或测试使用。
type MemorySessions struct {
	mu   sync.Mutex
	data map[string]Session
	now  func() time.Time
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{data: make(map[string]Session), now: time.Now}
}

func (m *MemorySessions) Put(_ context.Context, s Session, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ExpiresAt = m.now().Add(ttl)
	m.data[s.Token] = s
	return nil
}

func (m *MemorySessions) Get(_ context.Context, token string) (Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[token]
	if !ok {
		return Session{}, false, nil
	}
	if !m.now().Before(s.ExpiresAt) {
		delete(m.data, token)
		return Session{}, false, nil
	}
	return s, true, nil
}

func (m *MemorySessions) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, token)
	return nil
}
