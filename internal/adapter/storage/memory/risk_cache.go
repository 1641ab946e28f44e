package memory

import (
	"context"
	"strings"
	"sync"
)

// RiskCache is a bounded in-memory ports.RiskScoreCache. When full, the
// least recently inserted recipient is evicted.
type RiskCache struct {
	mu       sync.Mutex
	scores   map[string]int
	order    []string
	capacity int
}

// NewRiskCache creates a cache holding at most capacity recipients.
func NewRiskCache(capacity int) *RiskCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &RiskCache{
		scores:   make(map[string]int, capacity),
		capacity: capacity,
	}
}

func (c *RiskCache) Record(_ context.Context, recipient string, score int) error {
	key := strings.ToLower(recipient)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.scores[key]; !ok {
		if len(c.order) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.scores, oldest)
		}
		c.order = append(c.order, key)
	}
	c.scores[key] = score
	return nil
}

func (c *RiskCache) Lookup(_ context.Context, recipient string) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	score, ok := c.scores[strings.ToLower(recipient)]
	return score, ok, nil
}
