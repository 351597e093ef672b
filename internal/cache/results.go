// Package cache 缓存按策略结果键重建的交易者。
// 同一键的并发加载只执行一次。
package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"trade-simulator/internal/store"
	"trade-simulator/internal/trader"
)

// Loader 按键加载一组交易者
type Loader func(ctx context.Context, key string) ([]*trader.Trader, error)

// Results 策略结果缓存
type Results struct {
	load  Loader
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string][]*trader.Trader
}

// NewResults 创建结果缓存
// 参数 load: 缓存未命中时的加载函数
func NewResults(load Loader) *Results {
	return &Results{load: load, entries: make(map[string][]*trader.Trader)}
}

// Get 读取键对应的交易者，未命中时加载并缓存
// 加载失败不缓存
func (r *Results) Get(ctx context.Context, key string) ([]*trader.Trader, error) {
	r.mu.RLock()
	traders, ok := r.entries[key]
	r.mu.RUnlock()
	if ok {
		return traders, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		r.mu.RLock()
		cached, ok := r.entries[key]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}

		loaded, err := r.load(ctx, key)
		if err != nil {
			return nil, err
		}
		r.Put(key, loaded)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*trader.Trader), nil
}

// Put 直接写入缓存（回测完成后登记结果）
func (r *Results) Put(key string, traders []*trader.Trader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = traders
}

// Invalidate 移除缓存项
func (r *Results) Invalidate(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

// Keys 已缓存的键（升序）
func (r *Results) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StoreLoader 从交易者状态存储重建交易者（只读，不带策略）
func StoreLoader(s store.TraderStore) Loader {
	return func(ctx context.Context, key string) ([]*trader.Trader, error) {
		states, err := s.Load(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("加载策略结果 %s 失败: %w", key, err)
		}
		traders := make([]*trader.Trader, 0, len(states))
		for _, st := range states {
			t, err := trader.Restore(st, nil, trader.Options{})
			if err != nil {
				return nil, fmt.Errorf("重建交易者 %s 失败: %w", st.Name, err)
			}
			traders = append(traders, t)
		}
		return traders, nil
	}
}
