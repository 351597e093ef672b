// Package backoff 实现指数退避重试。
// 用于行情 WebSocket 断线重连与 HTTP K 线回补的失败重试。
// 默认基础间隔 1s，最大间隔 30s，抖动 ±20%。
package backoff

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// ErrExhausted 超过最大重试次数
var ErrExhausted = errors.New("重试次数已用尽")

// maxShift 指数上限，避免位移溢出
const maxShift = 30

// Backoff 指数退避计算器（非并发安全）
// 每次调用 Next() 返回下一次重试的等待时间，按 base × 2^attempt 增长直到 max。
type Backoff struct {
	// base 基础等待时间
	base time.Duration
	// max 最大等待时间
	max time.Duration
	// jitter 抖动比例（0-1），例如 0.2 表示 ±20%
	jitter float64
	// limit 最大重试次数，0 表示不限
	limit int
	// attempt 当前重试次数
	attempt int
}

// New 创建退避计算器
// 参数 base: 基础等待时间
// 参数 max: 最大等待时间
// 参数 jitter: 抖动比例
func New(base, max time.Duration, jitter float64) *Backoff {
	if jitter < 0 {
		jitter = 0
	}
	return &Backoff{base: base, max: max, jitter: jitter}
}

// NewDefault 创建默认配置的退避计算器
func NewDefault() *Backoff {
	return New(time.Second, 30*time.Second, 0.2)
}

// WithLimit 设置最大重试次数，超过后 Wait 返回 ErrExhausted
func (b *Backoff) WithLimit(n int) *Backoff {
	b.limit = n
	return b
}

// Next 获取下次重试的等待时间
func (b *Backoff) Next() time.Duration {
	shift := b.attempt
	if shift > maxShift {
		shift = maxShift
	}
	delay := b.base * time.Duration(int64(1)<<shift)
	if delay > b.max || delay <= 0 {
		delay = b.max
	}

	if b.jitter > 0 {
		factor := 1.0 + (rand.Float64()*2-1)*b.jitter
		delay = time.Duration(float64(delay) * factor)
	}

	b.attempt++
	return delay
}

// Wait 等待下一次重试
// 返回: ctx 取消时返回 ctx.Err()；超过最大重试次数返回 ErrExhausted
func (b *Backoff) Wait(ctx context.Context) error {
	if b.limit > 0 && b.attempt >= b.limit {
		return ErrExhausted
	}
	timer := time.NewTimer(b.Next())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reset 连接或请求成功后重置重试次数
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt 当前重试次数
func (b *Backoff) Attempt() int {
	return b.attempt
}
