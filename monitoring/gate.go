package monitoring

import "sync/atomic"

// Gate 单槽准入闸：同一时刻只允许一次在途分析。成功与失败路径
// 都必须通过defer释放。
type Gate struct {
	busy atomic.Bool
}

// TryAcquire 尝试占用唯一的槽位，已被占用时返回false
func (g *Gate) TryAcquire() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Release 释放槽位
func (g *Gate) Release() {
	g.busy.Store(false)
}

// Busy 当前是否有在途分析
func (g *Gate) Busy() bool {
	return g.busy.Load()
}
