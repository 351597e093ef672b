// Package jsonl 实现 JSONL 文件的异步写入与流式读取。
// 写入使用带缓冲的 channel，调用方只负责投递；读取按行解码，用于回放信号与 K 线。
package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

type opType int

const (
	opWrite opType = iota
	opFlush
	opClose
)

type op struct {
	typ  opType
	val  any
	done chan error
}

// Mode 文件打开方式
type Mode int

const (
	// Append 追加写入
	Append Mode = iota
	// Truncate 覆盖写入（每次运行导出一份完整结果）
	Truncate
)

// Writer 异步 JSONL 写入器
// Write 只负责投递，实际 JSON 编码与文件 I/O 在后台 goroutine 完成。
type Writer struct {
	// path 输出文件路径
	path string
	// ch 操作通道
	ch chan op

	// written 成功写入的记录数
	written atomic.Int64
	// dropped 编码或写入失败而丢弃的记录数
	dropped atomic.Int64

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool

	sendMu sync.Mutex

	wg sync.WaitGroup
}

// NewWriter 创建 JSONL 写入器
// 参数 path: 输出文件路径
// 参数 bufferSize: 写入缓冲区大小（channel capacity）
// 参数 mode: Append 或 Truncate
func NewWriter(path string, bufferSize int, mode Mode) (*Writer, error) {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if mode == Truncate {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开输出文件失败: %w", err)
	}

	w := &Writer{
		path: path,
		ch:   make(chan op, bufferSize),
	}

	w.wg.Add(1)
	go w.loop(f)

	return w, nil
}

// Path 输出文件路径
func (w *Writer) Path() string { return w.path }

// Written 已成功写入的记录数（Flush 之后准确）
func (w *Writer) Written() int64 { return w.written.Load() }

// Dropped 丢弃的记录数
func (w *Writer) Dropped() int64 { return w.dropped.Load() }

// Write 异步写入一条 JSONL 记录
func (w *Writer) Write(v any) error {
	if w == nil {
		return fmt.Errorf("writer 为空")
	}
	if w.closed.Load() {
		return fmt.Errorf("writer 已关闭")
	}
	w.sendMu.Lock()
	defer w.sendMu.Unlock()
	if w.closed.Load() {
		return fmt.Errorf("writer 已关闭")
	}
	w.ch <- op{typ: opWrite, val: v}
	return nil
}

// Flush 强制 flush 文件缓冲区
func (w *Writer) Flush() error {
	if w == nil || w.closed.Load() {
		return nil
	}
	w.sendMu.Lock()
	defer w.sendMu.Unlock()
	if w.closed.Load() {
		return nil
	}
	done := make(chan error, 1)
	w.ch <- op{typ: opFlush, done: done}
	return <-done
}

// Close 关闭写入器（会先 flush）
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.closeOnce.Do(func() {
		w.closed.Store(true)
		w.sendMu.Lock()
		defer w.sendMu.Unlock()
		done := make(chan error, 1)
		w.ch <- op{typ: opClose, done: done}
		w.closeErr = <-done
		close(w.ch)
	})
	w.wg.Wait()
	return w.closeErr
}

func (w *Writer) loop(f *os.File) {
	defer w.wg.Done()
	defer f.Close()

	bw := bufio.NewWriterSize(f, 1<<20) // 1MB buffer
	reply := func(err error, done chan error) {
		if done != nil {
			done <- err
		}
	}

	for req := range w.ch {
		switch req.typ {
		case opWrite:
			b, err := json.Marshal(req.val)
			if err != nil {
				w.dropped.Add(1)
				continue
			}
			b = append(b, '\n')
			if _, err := bw.Write(b); err != nil {
				w.dropped.Add(1)
				continue
			}
			w.written.Add(1)
		case opFlush:
			reply(bw.Flush(), req.done)
		case opClose:
			reply(bw.Flush(), req.done)
			return
		}
	}
}
