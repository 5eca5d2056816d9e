package session

import (
	"go.uber.org/atomic"
)

// IDGenerator 为新会话分配 ID。
type IDGenerator interface {
	Next() uint64
}

// Uint64IDGenerator 从 1 开始单调递增分配 ID，并发安全。
type Uint64IDGenerator struct {
	last atomic.Uint64
}

var _ IDGenerator = (*Uint64IDGenerator)(nil)

func NewUint64IDGenerator() *Uint64IDGenerator {
	return &Uint64IDGenerator{}
}

// Next 实现 IDGenerator.Next。
func (g *Uint64IDGenerator) Next() uint64 {
	return g.last.Inc()
}
