// Package memory 提供交易者状态的内存存储，状态以 JSON 形式保存，与调用方不共享可变数据。
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"trade-simulator/internal/store"
	"trade-simulator/internal/trader"
)

var _ store.TraderStore = (*TraderStore)(nil)

// TraderStore 内存实现
type TraderStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// NewTraderStore 创建内存存储
func NewTraderStore() *TraderStore {
	return &TraderStore{data: make(map[string]map[string][]byte)}
}

// Save 保存键下的全部交易者状态
func (s *TraderStore) Save(_ context.Context, key string, states []trader.State) error {
	if err := store.ValidateSave(key, states); err != nil {
		return err
	}
	encoded := make(map[string][]byte, len(states))
	for _, st := range states {
		b, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("序列化交易者 %s 失败: %w", st.Name, err)
		}
		encoded[st.Name] = b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = encoded
	return nil
}

// Load 读取键下的全部交易者状态
func (s *TraderStore) Load(_ context.Context, key string) ([]trader.State, error) {
	if key == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.RLock()
	encoded, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}

	names := make([]string, 0, len(encoded))
	for name := range encoded {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]trader.State, 0, len(names))
	for _, name := range names {
		var st trader.State
		if err := json.Unmarshal(encoded[name], &st); err != nil {
			return nil, fmt.Errorf("反序列化交易者 %s 失败: %w", name, err)
		}
		out = append(out, st)
	}
	return out, nil
}

// Keys 全部键
func (s *TraderStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete 删除键
func (s *TraderStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; !ok {
		return store.ErrNotFound
	}
	delete(s.data, key)
	return nil
}
