package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// KeyedLocker 按 key 发放互斥令牌（每个 key 一个容量为 1 的 channel）。
// 多个 key 总是按字典序获取，避免两个请求交叉等待。
type KeyedLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	token chan struct{}
	refs  int
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{slots: make(map[string]*slot)}
}

func userKey(id int64) string    { return fmt.Sprintf("user:%d", id) }
func productKey(id int64) string { return fmt.Sprintf("product:%d", id) }

// Lock 依次获取所有 key；ctx 结束时释放已拿到的令牌并返回 ctx.Err()
func (l *KeyedLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = sortedUnique(keys)
	held := make([]string, 0, len(keys))
	for _, k := range keys {
		s := l.acquireSlot(k)
		select {
		case s.token <- struct{}{}:
			held = append(held, k)
		case <-ctx.Done():
			l.releaseSlot(k, false)
			l.unlock(held)
			return nil, ctx.Err()
		}
	}
	var once sync.Once
	return func() { once.Do(func() { l.unlock(held) }) }, nil
}

func (l *KeyedLocker) acquireSlot(k string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[k]
	if !ok {
		s = &slot{token: make(chan struct{}, 1)}
		l.slots[k] = s
	}
	s.refs++
	return s
}

// releaseSlot drain 为 true 时归还令牌
func (l *KeyedLocker) releaseSlot(k string, drain bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.slots[k]
	if drain {
		<-s.token
	}
	s.refs--
	if s.refs == 0 {
		delete(l.slots, k)
	}
}

func (l *KeyedLocker) unlock(held []string) {
	for i := len(held) - 1; i >= 0; i-- {
		l.releaseSlot(held[i], true)
	}
}

// size 当前仍被引用的 key 数，测试用
func (l *KeyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func sortedUnique(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
