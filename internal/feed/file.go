package feed

import (
	"fmt"

	"trade-simulator/internal/output/jsonl"
)

// FileSource JSONL 文件回放来源
// 每行一个 BarEvent：{"instrument","timeframe","time","open","high","low","close","volume"}。
type FileSource struct {
	*sliceSource
}

// NewFileSource 读取整个 K 线文件并按时间排序
// 参数 path: JSONL 文件路径
// 参数 timeframes: 周期列表（从粗到细），同一时刻粗周期先于细周期
func NewFileSource(path string, timeframes []string) (*FileSource, error) {
	events, err := jsonl.ReadFile[BarEvent](path)
	if err != nil {
		return nil, fmt.Errorf("加载 K 线文件失败: %w", err)
	}
	for i, ev := range events {
		if ev.Instrument == "" || ev.Timeframe == "" || ev.Time.IsZero() {
			return nil, fmt.Errorf("加载 K 线文件失败: 第 %d 条记录缺少 instrument/timeframe/time", i+1)
		}
	}
	return &FileSource{sliceSource: newSliceSource(events, timeframes)}, nil
}

// NewMemorySource 由内存中的事件构建来源
func NewMemorySource(events []BarEvent, timeframes []string) Source {
	cp := append([]BarEvent(nil), events...)
	return newSliceSource(cp, timeframes)
}
