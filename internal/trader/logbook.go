package trader

import (
	"fmt"
)

// LogBook 交易日志缓冲
// 无论是否设置输出端，日志都会保留在内存中，供持久化与回看。
type LogBook struct {
	// lines 历史日志（追加顺序）
	lines []string
	// sink 外部输出端，可为 nil
	sink func(string)
}

// NewLogBook 创建日志缓冲
// 参数 sink: 外部输出端，可为 nil
func NewLogBook(sink func(string)) *LogBook {
	return &LogBook{sink: sink}
}

// Printf 格式化并记录一行日志
func (b *LogBook) Printf(format string, args ...any) {
	b.Print(fmt.Sprintf(format, args...))
}

// Print 记录一行日志
func (b *LogBook) Print(line string) {
	b.lines = append(b.lines, line)
	if b.sink != nil {
		b.sink(line)
	}
}

// Lines 历史日志，返回的切片为只读视图
func (b *LogBook) Lines() []string {
	return b.lines
}
