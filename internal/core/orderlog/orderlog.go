// Package orderlog 记录每个标的的成交流水（只追加）。
package orderlog

import (
	"sort"

	"trade-simulator/internal/core/model"
)

// Log 成交流水（单写者）
type Log struct {
	// orders 按标的分组的成交记录（成交顺序）
	orders map[string][]model.OrderRecord
}

// New 创建空的成交流水
func New() *Log {
	return &Log{orders: make(map[string][]model.OrderRecord)}
}

// Restore 用持久化数据重建成交流水
func Restore(m map[string][]model.OrderRecord) *Log {
	l := New()
	for k, v := range m {
		l.orders[k] = append([]model.OrderRecord(nil), v...)
	}
	return l
}

// Append 追加一条成交记录
func (l *Log) Append(rec model.OrderRecord) {
	l.orders[rec.Instrument] = append(l.orders[rec.Instrument], rec)
}

// Orders 标的的成交记录，返回的切片为只读视图
func (l *Log) Orders(instrument string) []model.OrderRecord {
	return l.orders[instrument]
}

// Len 全部成交记录数
func (l *Log) Len() int {
	n := 0
	for _, v := range l.orders {
		n += len(v)
	}
	return n
}

// Instruments 有成交记录的标的（升序）
func (l *Log) Instruments() []string {
	out := make([]string, 0, len(l.orders))
	for k := range l.orders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Map 返回成交流水的拷贝（用于持久化）
func (l *Log) Map() map[string][]model.OrderRecord {
	out := make(map[string][]model.OrderRecord, len(l.orders))
	for k, v := range l.orders {
		out[k] = append([]model.OrderRecord(nil), v...)
	}
	return out
}
