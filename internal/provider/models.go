package provider

import "sync"

// modelCycle hands out models round-robin, one per request
type modelCycle struct {
	mu     sync.Mutex
	models []string
	next   int
}

func newModelCycle(models ...string) *modelCycle {
	c := &modelCycle{}
	c.set(models)
	return c
}

func (c *modelCycle) set(models []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var kept []string
	for _, m := range models {
		if m != "" {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		return
	}
	c.models = kept
	c.next = 0
}

func (c *modelCycle) pick() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.models) == 0 {
		return ""
	}
	m := c.models[c.next]
	c.next = (c.next + 1) % len(c.models)
	return m
}

func (c *modelCycle) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.models))
	copy(out, c.models)
	return out
}
