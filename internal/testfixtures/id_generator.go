package testfixtures

import (
	"strconv"
	"sync"
)

// IDGenerator hands out deterministic ids. Numeric ids mirror the integer
// keys the backend assigns; prefixed ids stand in for uuids such as request
// ids and session record ids.
type IDGenerator struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// NewIDGenerator returns a generator whose Next values look like "prefix-1".
// An empty prefix makes Next return bare numbers.
func NewIDGenerator(prefix string) *IDGenerator {
	return &IDGenerator{prefix: prefix}
}

// Next returns the next id.
func (g *IDGenerator) Next() string {
	n := g.NextNumber()
	if g.prefix == "" {
		return strconv.Itoa(n)
	}
	return g.prefix + "-" + strconv.Itoa(n)
}

// NextNumber returns the next value of the sequence, starting at 1.
func (g *IDGenerator) NextNumber() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return g.next
}

// NextFunc returns g.Next, or a generator of empty ids for a nil generator.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}
