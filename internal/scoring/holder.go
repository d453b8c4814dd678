package scoring

import (
	"go.uber.org/atomic"
)

// ContextHolder 持有当前评分上下文，刷新时原子替换
type ContextHolder struct {
	current *atomic.Pointer[ScoringContext]
}

// NewContextHolder 创建持有者
func NewContextHolder(initial *ScoringContext) *ContextHolder {
	return &ContextHolder{current: atomic.NewPointer(initial)}
}

// Load 当前上下文
func (h *ContextHolder) Load() *ScoringContext {
	return h.current.Load()
}

// Swap 替换上下文，返回旧上下文
func (h *ContextHolder) Swap(next *ScoringContext) *ScoringContext {
	return h.current.Swap(next)
}
