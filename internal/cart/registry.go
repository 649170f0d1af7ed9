package cart

import (
	"context"
	"log"
	"sync"
	"time"
)

type registryEntry struct {
	cart     *Cart
	lastUsed time.Time
}

// Registry 按会话 token 维护购物车；同一店主的多个会话各自独立。
// 会话过期不会通知这里，由 Sweep 按最近使用时间回收。
type Registry struct {
	mu    sync.Mutex
	carts map[string]*registryEntry
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{carts: make(map[string]*registryEntry), now: time.Now}
}

// Get 取出会话的购物车，不存在则创建，并刷新最近使用时间。
func (r *Registry) Get(session string) *Cart {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.carts[session]
	if !ok {
		e = &registryEntry{cart: New()}
		r.carts[session] = e
	}
	e.lastUsed = r.now()
	return e.cart
}

// Drop 会话结束时丢弃购物车。
func (r *Registry) Drop(session string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, session)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.carts)
}

// Sweep 删除超过 maxIdle 未使用的购物车，返回删除数量。
// maxIdle 取会话 TTL：空闲超过 TTL 的购物车，其会话必然已经过期。
func (r *Registry) Sweep(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-maxIdle)
	n := 0
	for token, e := range r.carts {
		if e.lastUsed.Before(cutoff) {
			delete(r.carts, token)
			n++
		}
	}
	return n
}

// RunSweeper 每隔 interval 执行一次 Sweep，直到 ctx 结束。
func (r *Registry) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(maxIdle); n > 0 {
				log.Printf("cart registry: reclaimed %d idle carts, %d left", n, r.Len())
			}
		}
	}
}
