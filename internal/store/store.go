// Package store 定义交易者状态的持久化边界。
// 以策略结果键为单位保存一组交易者状态，保存为整体替换。
package store

import (
	"context"
	"errors"
	"fmt"

	"trade-simulator/internal/trader"
)

// 存储错误
var (
	// ErrNotFound 指定键不存在
	ErrNotFound = errors.New("未找到")
	// ErrDuplicateKey 同一键下交易者名称重复
	ErrDuplicateKey = errors.New("交易者名称重复")
	// ErrInvalidInput 输入校验失败
	ErrInvalidInput = errors.New("无效输入")
)

// TraderStore 交易者状态存储
type TraderStore interface {
	// Save 保存键下的全部交易者状态，替换已有内容
	Save(ctx context.Context, key string, states []trader.State) error
	// Load 读取键下的全部交易者状态（按名称升序），键不存在返回 ErrNotFound
	Load(ctx context.Context, key string) ([]trader.State, error)
	// Keys 全部键（升序）
	Keys(ctx context.Context) ([]string, error)
	// Delete 删除键，键不存在返回 ErrNotFound
	Delete(ctx context.Context, key string) error
}

// ValidateSave 检查 Save 的输入
func ValidateSave(key string, states []trader.State) error {
	if key == "" {
		return fmt.Errorf("键不能为空: %w", ErrInvalidInput)
	}
	if len(states) == 0 {
		return fmt.Errorf("键 %s 没有交易者状态: %w", key, ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(states))
	for _, st := range states {
		if st.Name == "" {
			return fmt.Errorf("交易者名称不能为空: %w", ErrInvalidInput)
		}
		if _, dup := seen[st.Name]; dup {
			return fmt.Errorf("%s: %w", st.Name, ErrDuplicateKey)
		}
		seen[st.Name] = struct{}{}
	}
	return nil
}
