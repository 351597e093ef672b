// Package backoff 退避算法测试
package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// **Feature: trade-simulator, Property 12: Exponential Backoff Bounds**
// **Validates: reconnect delays grow monotonically and never exceed max × (1 + jitter)**

func TestBackoff_Bounds_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("无抖动时单调不减且不超过最大值", prop.ForAll(
		func(baseMs int, maxMs int, steps int) bool {
			base := time.Duration(baseMs) * time.Millisecond
			max := time.Duration(maxMs) * time.Millisecond
			b := New(base, max, 0)

			prev := time.Duration(0)
			for i := 0; i < steps; i++ {
				delay := b.Next()
				if delay < prev || delay > max {
					return false
				}
				prev = delay
			}
			return true
		},
		gen.IntRange(1, 2000),
		gen.IntRange(2000, 60000),
		gen.IntRange(1, 80), // 覆盖位移上限
	))

	properties.Property("抖动后不超过 max×(1+jitter)", prop.ForAll(
		func(jitterPercent int, steps int) bool {
			jitter := float64(jitterPercent) / 100.0
			max := 10 * time.Second
			b := New(100*time.Millisecond, max, jitter)
			for i := 0; i < steps; i++ {
				if float64(b.Next()) > float64(max)*(1+jitter) {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 50),
		gen.IntRange(1, 40),
	))

	properties.TestingRun(t)
}

func TestBackoff_SpecificValues(t *testing.T) {
	b := New(time.Second, 30*time.Second, 0)
	want := []time.Duration{1, 2, 4, 8, 16, 30, 30}
	for i, w := range want {
		if got := b.Next(); got != w*time.Second {
			t.Fatalf("attempt %d: got %v, want %v", i, got, w*time.Second)
		}
	}
	b.Reset()
	if b.Attempt() != 0 || b.Next() != time.Second {
		t.Fatalf("Reset 后应从基础值开始")
	}
}

func TestBackoff_WaitLimit(t *testing.T) {
	b := New(time.Millisecond, 2*time.Millisecond, 0).WithLimit(2)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := b.Wait(ctx); err != nil {
			t.Fatalf("Wait #%d: %v", i, err)
		}
	}
	if err := b.Wait(ctx); !errors.Is(err, ErrExhausted) {
		t.Fatalf("err=%v, want ErrExhausted", err)
	}
}

func TestBackoff_WaitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := New(time.Hour, time.Hour, 0)
	if err := b.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}
