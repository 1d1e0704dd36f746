package models

import (
	"context"
	"time"

	"github.com/Protocol-Lattice/calendar-agent/pkg/cache"
)

// CachedLLM memoizes Generate by prompt. Identical prompts replay the first
// completion, which makes synthesis over an unchanged log reproducible.
type CachedLLM struct {
	Agent Agent
	Cache *cache.LRU[string]
}

// NewCachedLLM wraps agent with an LRU of the given size and TTL.
func NewCachedLLM(agent Agent, size int, ttl time.Duration) *CachedLLM {
	return &CachedLLM{
		Agent: agent,
		Cache: cache.New[string](size, ttl),
	}
}

// Generate checks the cache before calling the underlying agent.
// Errors are never cached.
func (c *CachedLLM) Generate(ctx context.Context, prompt string) (any, error) {
	key := cache.HashKey(prompt)
	if val, ok := c.Cache.Get(key); ok {
		return val, nil
	}

	res, err := c.Agent.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	text := Text(res)
	c.Cache.Set(key, text)
	return text, nil
}

var _ Agent = (*CachedLLM)(nil)
