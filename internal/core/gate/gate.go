// Package gate 提供单槽、不可重入的原子闸门
//
// Gate 用于串行化每个连接上的同类操作（读或写）：
// 同一时刻最多只有一个持有者，获取失败时立即返回，不排队、不阻塞。
// 调用方获取失败应视为"操作已在进行中"并快速失败。
package gate

import (
	"errors"
	"sync/atomic"
)

// ErrIllegalRelease 在闸门未被持有时释放
var ErrIllegalRelease = errors.New("gate released while not held")

// Gate 原子闸门
//
// 零值即可使用（空闲状态）。
type Gate struct {
	held atomic.Bool
}

// TryAcquire 尝试获取闸门
//
// 执行 free→held 的 CAS，返回是否获取成功。永不阻塞。
func (g *Gate) TryAcquire() bool {
	return g.held.CompareAndSwap(false, true)
}

// Release 释放闸门
//
// 执行 held→free 的 CAS；若闸门未被持有，返回 ErrIllegalRelease。
func (g *Gate) Release() error {
	if !g.held.CompareAndSwap(true, false) {
		return ErrIllegalRelease
	}
	return nil
}

// Held 返回闸门当前是否被持有
func (g *Gate) Held() bool {
	return g.held.Load()
}
