package cache

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/singleflight"
)

// SymbolKey identifies a token symbol as read at a given block.
type SymbolKey struct {
	Block uint64
	Token common.Address
}

func (k SymbolKey) String() string {
	return fmt.Sprintf("%d:%s", k.Block, k.Token.Hex())
}

// FetchFunc loads a symbol from chain. resolved is false when the token
// cannot answer (a recoverable failure); err is reserved for fatal ones.
type FetchFunc func(ctx context.Context) (symbol string, resolved bool, err error)

type symbolEntry struct {
	symbol   string
	resolved bool
}

// SymbolCache memoizes token symbols for one run. Concurrent misses on the
// same key share a single fetch.
type SymbolCache struct {
	entries         *xsync.Map[SymbolKey, symbolEntry]
	inflight        singleflight.Group
	cacheUnresolved bool

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewSymbolCache creates an empty cache. With cacheUnresolved set, tokens
// that failed to answer are remembered as unresolvable for their block;
// otherwise they are fetched again on the next lookup.
func NewSymbolCache(cacheUnresolved bool) *SymbolCache {
	return &SymbolCache{
		entries:         xsync.NewMap[SymbolKey, symbolEntry](),
		cacheUnresolved: cacheUnresolved,
	}
}

// Get returns the cached symbol for key. ok is false when key was never
// stored; a nil symbol with ok set means the token is known unresolvable.
func (c *SymbolCache) Get(key SymbolKey) (*string, bool) {
	entry, ok := c.entries.Load(key)
	if !ok {
		return nil, false
	}
	if !entry.resolved {
		return nil, true
	}
	symbol := entry.symbol
	return &symbol, true
}

// Set stores a resolved symbol.
func (c *SymbolCache) Set(key SymbolKey, symbol string) {
	c.entries.Store(key, symbolEntry{symbol: symbol, resolved: true})
}

// Resolve returns the symbol for key, calling fetch on a miss. A nil symbol
// means the token could not be resolved at that block.
func (c *SymbolCache) Resolve(ctx context.Context, key SymbolKey, fetch FetchFunc) (*string, error) {
	if symbol, ok := c.Get(key); ok {
		c.hits.Add(1)
		return symbol, nil
	}

	executed := false
	res, err, _ := c.inflight.Do(key.String(), func() (interface{}, error) {
		executed = true
		if symbol, ok := c.Get(key); ok {
			c.hits.Add(1)
			return symbol, nil
		}

		c.misses.Add(1)
		symbol, resolved, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if !resolved {
			if c.cacheUnresolved {
				c.entries.Store(key, symbolEntry{})
			}
			return (*string)(nil), nil
		}
		c.Set(key, symbol)
		return &symbol, nil
	})
	if !executed {
		// Joined another caller's fetch.
		c.hits.Add(1)
	}
	if err != nil {
		return nil, err
	}

	symbol, _ := res.(*string)
	if symbol == nil {
		return nil, nil
	}
	out := *symbol
	return &out, nil
}

// Len returns the number of cached keys.
func (c *SymbolCache) Len() int {
	return c.entries.Size()
}

// Hits returns the number of lookups served from the cache or from a fetch
// already in flight for the same key.
func (c *SymbolCache) Hits() uint64 {
	return c.hits.Load()
}

// Misses returns the number of lookups that reached fetch.
func (c *SymbolCache) Misses() uint64 {
	return c.misses.Load()
}
