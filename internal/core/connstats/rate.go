package connstats

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// ============================================================================
//                              RateMeter - 速率计算器
// ============================================================================

// rateWindow 速率窗口（秒）
const rateWindow = 60

type rateBucket struct {
	sec   int64 // 桶对应的 Unix 秒
	bytes int64
}

// RateMeter 速率计算器（基于滑动窗口）
//
// 使用 60 个 1 秒桶计算最近 60 秒的平均速率。
// 每个桶记录自己所属的秒，过期的桶在读取时被忽略，
// 因此长时间无流量后速率会自然回落到 0。
type RateMeter struct {
	clk     clock.Clock
	mu      sync.Mutex
	buckets [rateWindow]rateBucket
	last    time.Time
}

// NewRateMeter 创建速率计算器
func NewRateMeter(clk clock.Clock) *RateMeter {
	if clk == nil {
		clk = clock.New()
	}
	return &RateMeter{clk: clk}
}

// Add 添加字节数到当前秒的桶
func (r *RateMeter) Add(n int64) {
	now := r.clk.Now()
	sec := now.Unix()
	idx := bucketIndex(sec)

	r.mu.Lock()
	b := &r.buckets[idx]
	if b.sec != sec {
		b.sec = sec
		b.bytes = 0
	}
	b.bytes += n
	r.last = now
	r.mu.Unlock()
}

// Rate 返回最近 60 秒的平均速率（字节/秒）
func (r *RateMeter) Rate() float64 {
	return float64(r.windowTotal()) / rateWindow
}

// windowTotal 返回窗口内的字节数
func (r *RateMeter) windowTotal() int64 {
	now := r.clk.Now().Unix()

	r.mu.Lock()
	defer r.mu.Unlock()

	var total int64
	for _, b := range r.buckets {
		if age := now - b.sec; age >= 0 && age < rateWindow {
			total += b.bytes
		}
	}
	return total
}

// LastUpdate 返回最后一次 Add 的时间
func (r *RateMeter) LastUpdate() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Reset 清空所有桶
func (r *RateMeter) Reset() {
	r.mu.Lock()
	r.buckets = [rateWindow]rateBucket{}
	r.last = time.Time{}
	r.mu.Unlock()
}

func bucketIndex(sec int64) int {
	idx := sec % rateWindow
	if idx < 0 {
		idx += rateWindow
	}
	return int(idx)
}
