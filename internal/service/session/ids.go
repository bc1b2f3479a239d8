package session

import (
	"fmt"
	"sync/atomic"
)

// IDGenerator hands out session IDs of the form "<feature>-<n>".
type IDGenerator struct {
	counter uint64
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

func (g *IDGenerator) Next(feature string) string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%s-%d", feature, n)
}
