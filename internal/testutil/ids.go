package testutil

import (
	"fmt"
	"sync"
)

// FixedIDGenerator returns the same relay ID every time.
// An empty id defaults to "test-relay-default".
type FixedIDGenerator struct {
	id string
}

func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-relay-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed ID.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}

// SequentialIDGenerator returns prefix-1, prefix-2, ...
type SequentialIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

func NewSequentialIDGenerator(prefix string) *SequentialIDGenerator {
	return &SequentialIDGenerator{prefix: prefix}
}

// Generate returns the next ID in sequence.
func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
