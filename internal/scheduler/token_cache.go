package scheduler

import (
	"context"
	"fmt"
	"sync"

	"tokenWatch/internal/model"
)

// TokenLister returns every tracked token.
type TokenLister interface {
	ListTokens(ctx context.Context) ([]model.Token, error)
}

// TokenCache is the in-memory view of the token directory. Refresh swaps the
// whole snapshot under the write lock; readers never see a partial load.
type TokenCache struct {
	mu        sync.RWMutex
	loaded    bool
	addresses []string
	ids       map[string]int64
	names     map[int64]string
}

func NewTokenCache() *TokenCache {
	return &TokenCache{
		ids:   make(map[string]int64),
		names: make(map[int64]string),
	}
}

// Refresh reloads every tracked token from dir.
func (c *TokenCache) Refresh(ctx context.Context, dir TokenLister) error {
	tokens, err := dir.ListTokens(ctx)
	if err != nil {
		return fmt.Errorf("list tokens: %w", err)
	}

	addresses := make([]string, 0, len(tokens))
	ids := make(map[string]int64, len(tokens))
	names := make(map[int64]string, len(tokens))
	for _, t := range tokens {
		key := model.AddressKey(t.Address)
		if key == "" {
			continue
		}
		if _, dup := ids[key]; dup {
			continue
		}
		addresses = append(addresses, t.Address)
		ids[key] = t.ID
		names[t.ID] = t.Name
	}

	c.mu.Lock()
	c.addresses = addresses
	c.ids = ids
	c.names = names
	c.loaded = true
	c.mu.Unlock()
	return nil
}

// Loaded reports whether at least one Refresh has succeeded.
func (c *TokenCache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Addresses returns a copy of the tracked addresses.
func (c *TokenCache) Addresses() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.addresses))
	copy(out, c.addresses)
	return out
}

// Resolve maps an address, in any case, to its token id.
func (c *TokenCache) Resolve(address string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.ids[model.AddressKey(address)]
	return id, ok
}

func (c *TokenCache) Name(id int64) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[id]
	return name, ok
}

func (c *TokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.addresses)
}
