package ev

import "sort"

// rollingWindow 固定容量的环形样本窗口，用于分位数统计
type rollingWindow struct {
	size int
	buf  []float64
	pos  int
	full bool
}

func newRollingWindow(size int) *rollingWindow {
	return &rollingWindow{size: size, buf: make([]float64, 0, size)}
}

func (w *rollingWindow) add(v float64) {
	if w.size <= 0 {
		return
	}

	if !w.full {
		w.buf = append(w.buf, v)
		if len(w.buf) == w.size {
			w.full = true
			w.pos = 0
		}
		return
	}

	w.buf[w.pos] = v
	w.pos++
	if w.pos >= w.size {
		w.pos = 0
	}
}

// quantiles 计算分位数（最近秩，下标 = floor((n-1)×q)）
// 窗口为空时全部返回 0
func (w *rollingWindow) quantiles(qs ...float64) []float64 {
	values := make([]float64, len(qs))
	if len(w.buf) == 0 {
		return values
	}

	tmp := make([]float64, len(w.buf))
	copy(tmp, w.buf)
	sort.Float64s(tmp)

	n := len(tmp)
	for i, q := range qs {
		idx := int(float64(n-1) * q)
		if idx < 0 {
			idx = 0
		}
		if idx >= n {
			idx = n - 1
		}
		values[i] = tmp[idx]
	}
	return values
}
